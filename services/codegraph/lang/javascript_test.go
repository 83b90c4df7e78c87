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

const jsTestSource = `import { connect } from "./db";
const fs = require("fs");

export class Store {
  save(record) {
    this.validate(record);
    fs.writeFileSync("out.json", record);
  }

  validate(record) {}
}

export function open(path) {
  const store = new Store();
  connect(path, onReady);
  return store;
}

const onReady = () => {};
`

func parseJS(t *testing.T, source string) *ParseResult {
	t.Helper()
	result, err := NewJavaScriptParser().Parse(context.Background(), []byte(source), "src/store.js")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return result
}

func TestJavaScriptParser_Symbols(t *testing.T) {
	result := parseJS(t, jsTestSource)

	findSymbol(t, result, "Store", graph.LabelClass)
	findSymbol(t, result, "onReady", graph.LabelFunction)

	save := findSymbol(t, result, "save", graph.LabelMethod)
	if save.ClassName != "Store" {
		t.Errorf("save.ClassName = %q, want Store", save.ClassName)
	}

	open := findSymbol(t, result, "open", graph.LabelFunction)
	if !open.IsExported {
		t.Errorf("open should be exported")
	}
}

func TestJavaScriptParser_Imports(t *testing.T) {
	result := parseJS(t, jsTestSource)

	var esImport, requireImport *ImportStatement
	for i := range result.Imports {
		imp := &result.Imports[i]
		switch imp.ModulePath {
		case "./db":
			esImport = imp
		case "fs":
			requireImport = imp
		}
	}

	if esImport == nil || !esImport.IsRelative || len(esImport.Symbols) != 1 {
		t.Errorf("es import = %+v", esImport)
	}
	if requireImport == nil || requireImport.Alias != "fs" || requireImport.IsRelative {
		t.Errorf("require import = %+v", requireImport)
	}
}

func TestJavaScriptParser_Calls(t *testing.T) {
	result := parseJS(t, jsTestSource)

	byName := make(map[string]CallSite)
	for _, c := range result.Calls {
		byName[c.Name] = c
	}

	if c, ok := byName["validate"]; !ok || c.Receiver != "this" {
		t.Errorf("this.validate = %+v", c)
	}
	if c, ok := byName["connect"]; !ok {
		t.Errorf("connect call not captured")
	} else if len(c.Args) != 2 || c.Args[1] != "onReady" {
		t.Errorf("connect args = %v, want [path onReady]", c.Args)
	}
	if _, ok := byName["require"]; ok {
		t.Errorf("require should not be recorded as a call")
	}
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	cases := []struct {
		path string
		lang string
	}{
		{"a/b.py", "python"},
		{"a/b.ts", "typescript"},
		{"a/b.tsx", "typescript"},
		{"a/b.jsx", "javascript"},
	}
	for _, tc := range cases {
		p, err := r.ForFile(tc.path)
		if err != nil {
			t.Fatalf("ForFile(%s): %v", tc.path, err)
		}
		if p.Language() != tc.lang {
			t.Errorf("ForFile(%s) = %s, want %s", tc.path, p.Language(), tc.lang)
		}
	}

	if _, err := r.ForFile("a/b.rb"); err == nil {
		t.Errorf("expected ErrUnsupportedLanguage for .rb")
	}
	if r.Supports("x.go") {
		t.Errorf("registry should not claim .go")
	}
}
