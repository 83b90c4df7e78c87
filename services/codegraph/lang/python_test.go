// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lang

import (
	"context"
	"testing"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

const pythonTestSource = `from typing import Optional
from . import sibling
import os.path as osp

class Animal:
    def speak(self) -> str:
        return "..."

class Dog(Animal):
    @override
    def speak(self) -> str:
        self.wag(speak_loudly)
        return "woof"

    def wag(self, how) -> None:
        pass

class Color(Enum):
    RED = 1

@app.route("/dogs")
def list_dogs(limit: Optional[Dog] = None) -> Dog:
    d = Dog()
    d.speak()
    osp.join("a", "b")
    return d

def _helper():
    pass
`

func findSymbol(t *testing.T, result *ParseResult, name string, kind graph.NodeLabel) *ParsedSymbol {
	t.Helper()
	for i := range result.Symbols {
		s := &result.Symbols[i]
		if s.Name == name && s.Kind == kind {
			return s
		}
	}
	t.Fatalf("symbol %s (%s) not found; have %d symbols", name, kind, len(result.Symbols))
	return nil
}

func parsePython(t *testing.T, source string) *ParseResult {
	t.Helper()
	result, err := NewPythonParser().Parse(context.Background(), []byte(source), "zoo/dogs.py")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return result
}

func TestPythonParser_Symbols(t *testing.T) {
	result := parsePython(t, pythonTestSource)

	t.Run("classes and methods", func(t *testing.T) {
		findSymbol(t, result, "Animal", graph.LabelClass)
		dog := findSymbol(t, result, "Dog", graph.LabelClass)
		if !dog.IsExported {
			t.Errorf("Dog should be exported")
		}
		speak := findSymbol(t, result, "speak", graph.LabelMethod)
		if speak.ClassName != "Animal" && speak.ClassName != "Dog" {
			t.Errorf("speak.ClassName = %q", speak.ClassName)
		}
	})

	t.Run("enum class detected", func(t *testing.T) {
		findSymbol(t, result, "Color", graph.LabelEnum)
	})

	t.Run("decorators captured without arguments", func(t *testing.T) {
		fn := findSymbol(t, result, "list_dogs", graph.LabelFunction)
		if len(fn.Decorators) != 1 || fn.Decorators[0] != "app.route" {
			t.Errorf("decorators = %v, want [app.route]", fn.Decorators)
		}
	})

	t.Run("underscore prefix is unexported", func(t *testing.T) {
		h := findSymbol(t, result, "_helper", graph.LabelFunction)
		if h.IsExported {
			t.Errorf("_helper should not be exported")
		}
	})
}

func TestPythonParser_Imports(t *testing.T) {
	result := parsePython(t, pythonTestSource)

	var relative, aliased, from *ImportStatement
	for i := range result.Imports {
		imp := &result.Imports[i]
		switch {
		case imp.IsRelative:
			relative = imp
		case imp.Alias == "osp":
			aliased = imp
		case imp.ModulePath == "typing":
			from = imp
		}
	}

	if relative == nil {
		t.Errorf("relative import not captured")
	}
	if aliased == nil || aliased.ModulePath != "os.path" {
		t.Errorf("aliased import = %+v", aliased)
	}
	if from == nil || len(from.Symbols) != 1 || from.Symbols[0] != "Optional" {
		t.Errorf("from-import = %+v", from)
	}
}

func TestPythonParser_Calls(t *testing.T) {
	result := parsePython(t, pythonTestSource)

	byName := make(map[string]CallSite)
	for _, c := range result.Calls {
		byName[c.Name] = c
	}

	t.Run("self receiver", func(t *testing.T) {
		c, ok := byName["wag"]
		if !ok {
			t.Fatalf("self.wag call not captured")
		}
		if c.Receiver != "self" {
			t.Errorf("receiver = %q, want self", c.Receiver)
		}
		if len(c.Args) != 1 || c.Args[0] != "speak_loudly" {
			t.Errorf("args = %v, want [speak_loudly]", c.Args)
		}
	})

	t.Run("variable receiver", func(t *testing.T) {
		c, ok := byName["speak"]
		if !ok {
			t.Fatalf("d.speak call not captured")
		}
		if c.Receiver != "d" {
			t.Errorf("receiver = %q, want d", c.Receiver)
		}
	})

	t.Run("bare constructor call", func(t *testing.T) {
		if _, ok := byName["Dog"]; !ok {
			t.Errorf("Dog() call not captured")
		}
	})
}

func TestPythonParser_Heritage(t *testing.T) {
	result := parsePython(t, pythonTestSource)

	found := false
	for _, h := range result.Heritage {
		if h.ChildName == "Dog" && h.ParentName == "Animal" && h.Kind == HeritageExtends {
			found = true
		}
		if h.ParentName == "Enum" {
			t.Errorf("Enum marker should not produce a heritage tuple")
		}
	}
	if !found {
		t.Errorf("Dog extends Animal not captured; have %+v", result.Heritage)
	}
}

func TestPythonParser_TypeRefs(t *testing.T) {
	result := parsePython(t, pythonTestSource)

	var roles []string
	for _, tr := range result.TypeRefs {
		if tr.Name == "Dog" {
			roles = append(roles, tr.Role)
		}
	}
	if len(roles) < 2 {
		t.Fatalf("expected Dog referenced as parameter and return, got roles %v", roles)
	}
}

func TestPythonParser_InvalidInput(t *testing.T) {
	t.Run("rejects oversize content", func(t *testing.T) {
		p := NewPythonParser(WithPythonMaxFileSize(8))
		if _, err := p.Parse(context.Background(), []byte("def f(): pass"), "a.py"); err == nil {
			t.Errorf("expected size error")
		}
	})

	t.Run("rejects invalid utf8", func(t *testing.T) {
		p := NewPythonParser()
		if _, err := p.Parse(context.Background(), []byte{0xff, 0xfe}, "a.py"); err == nil {
			t.Errorf("expected utf8 error")
		}
	})

	t.Run("partial result for syntax errors", func(t *testing.T) {
		p := NewPythonParser()
		result, err := p.Parse(context.Background(), []byte("def broken(:\n    pass\ndef ok():\n    pass\n"), "a.py")
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if len(result.Errors) == 0 {
			t.Errorf("expected syntax error recorded")
		}
	})
}
