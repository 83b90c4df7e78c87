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

const tsTestSource = `import { Widget, render } from "./widgets";
import * as utils from "../utils";
import React from "react";

export interface Draggable {
  drag(dx: number, dy: number): void;
}

export type WidgetID = string;

export enum Theme {
  Light,
  Dark,
}

export class Panel extends Widget implements Draggable {
  private title: WidgetID;

  drag(dx: number, dy: number): void {
    this.redraw();
  }

  redraw(): Panel {
    render(this.title);
    utils.log("redraw");
    return this;
  }
}

export const mount = (panel: Panel): void => {
  panel.drag(0, 0);
};

function internalHelper() {}
`

func parseTS(t *testing.T, source string) *ParseResult {
	t.Helper()
	result, err := NewTypeScriptParser().Parse(context.Background(), []byte(source), "ui/panel.ts")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return result
}

func TestTypeScriptParser_Symbols(t *testing.T) {
	result := parseTS(t, tsTestSource)

	t.Run("declaration kinds", func(t *testing.T) {
		findSymbol(t, result, "Draggable", graph.LabelInterface)
		findSymbol(t, result, "WidgetID", graph.LabelTypeAlias)
		findSymbol(t, result, "Theme", graph.LabelEnum)
		findSymbol(t, result, "Panel", graph.LabelClass)
	})

	t.Run("methods carry class name", func(t *testing.T) {
		redraw := findSymbol(t, result, "redraw", graph.LabelMethod)
		if redraw.ClassName != "Panel" {
			t.Errorf("ClassName = %q, want Panel", redraw.ClassName)
		}
	})

	t.Run("arrow binding is a function", func(t *testing.T) {
		mount := findSymbol(t, result, "mount", graph.LabelFunction)
		if !mount.IsExported {
			t.Errorf("mount should be exported")
		}
	})

	t.Run("unexported function", func(t *testing.T) {
		h := findSymbol(t, result, "internalHelper", graph.LabelFunction)
		if h.IsExported {
			t.Errorf("internalHelper should not be exported")
		}
	})
}

func TestTypeScriptParser_Heritage(t *testing.T) {
	result := parseTS(t, tsTestSource)

	var gotExtends, gotImplements bool
	for _, h := range result.Heritage {
		if h.ChildName == "Panel" && h.Kind == HeritageExtends && h.ParentName == "Widget" {
			gotExtends = true
		}
		if h.ChildName == "Panel" && h.Kind == HeritageImplements && h.ParentName == "Draggable" {
			gotImplements = true
		}
	}
	if !gotExtends {
		t.Errorf("Panel extends Widget not captured; have %+v", result.Heritage)
	}
	if !gotImplements {
		t.Errorf("Panel implements Draggable not captured; have %+v", result.Heritage)
	}
}

func TestTypeScriptParser_Imports(t *testing.T) {
	result := parseTS(t, tsTestSource)

	var named, namespace, def *ImportStatement
	for i := range result.Imports {
		imp := &result.Imports[i]
		switch imp.ModulePath {
		case "./widgets":
			named = imp
		case "../utils":
			namespace = imp
		case "react":
			def = imp
		}
	}

	if named == nil || !named.IsRelative || len(named.Symbols) != 2 {
		t.Errorf("named import = %+v", named)
	}
	if namespace == nil || namespace.Alias != "utils" {
		t.Errorf("namespace import = %+v", namespace)
	}
	if def == nil || def.IsRelative || len(def.Symbols) != 1 || def.Symbols[0] != "React" {
		t.Errorf("default import = %+v", def)
	}
}

func TestTypeScriptParser_Calls(t *testing.T) {
	result := parseTS(t, tsTestSource)

	byName := make(map[string]CallSite)
	for _, c := range result.Calls {
		byName[c.Name] = c
	}

	t.Run("this receiver", func(t *testing.T) {
		c, ok := byName["redraw"]
		if !ok {
			t.Fatalf("this.redraw call not captured")
		}
		if c.Receiver != "this" {
			t.Errorf("receiver = %q, want this", c.Receiver)
		}
	})

	t.Run("namespace receiver", func(t *testing.T) {
		c, ok := byName["log"]
		if !ok {
			t.Fatalf("utils.log call not captured")
		}
		if c.Receiver != "utils" {
			t.Errorf("receiver = %q, want utils", c.Receiver)
		}
	})

	t.Run("bare call", func(t *testing.T) {
		if _, ok := byName["render"]; !ok {
			t.Errorf("render call not captured")
		}
	})
}

func TestTypeScriptParser_TypeRefs(t *testing.T) {
	result := parseTS(t, tsTestSource)

	roles := make(map[string][]string)
	for _, tr := range result.TypeRefs {
		roles[tr.Name] = append(roles[tr.Name], tr.Role)
	}

	if len(roles["Panel"]) == 0 {
		t.Errorf("Panel type refs missing; have %v", roles)
	}
	if len(roles["number"]) != 0 {
		t.Errorf("builtin number should be skipped")
	}
}
