// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"errors"
	"testing"
)

func testNode(label NodeLabel, filePath, name string) *GraphNode {
	qualified := name
	return &GraphNode{
		ID:       GenerateID(label, filePath, qualified),
		Label:    label,
		Name:     name,
		FilePath: filePath,
	}
}

func mustAddNode(t *testing.T, g *KnowledgeGraph, n *GraphNode) {
	t.Helper()
	if err := g.AddNode(n); err != nil {
		t.Fatalf("AddNode(%s): %v", n.ID, err)
	}
}

func mustAddRel(t *testing.T, g *KnowledgeGraph, relType RelType, source, target string, props RelProps) {
	t.Helper()
	err := g.AddRelationship(&GraphRelationship{
		Type:   relType,
		Source: source,
		Target: target,
		Props:  props,
	})
	if err != nil {
		t.Fatalf("AddRelationship(%s, %s -> %s): %v", relType, source, target, err)
	}
}

func TestGenerateID(t *testing.T) {
	t.Run("file node has no qualified name segment", func(t *testing.T) {
		got := GenerateID(LabelFile, "src/app.py")
		want := "file:src/app.py"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("symbol node includes qualified name", func(t *testing.T) {
		got := GenerateID(LabelFunction, "src/app.py", "run")
		want := "function:src/app.py:run"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("method uses class-qualified name", func(t *testing.T) {
		got := GenerateID(LabelMethod, "src/app.py", QualifyName("run", "Server"))
		want := "method:src/app.py:Server.run"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("same inputs always yield same id", func(t *testing.T) {
		a := GenerateID(LabelClass, "pkg/x.ts", "Widget")
		b := GenerateID(LabelClass, "pkg/x.ts", "Widget")
		if a != b {
			t.Errorf("ids differ: %q vs %q", a, b)
		}
	})
}

func TestAddNode(t *testing.T) {
	t.Run("rejects empty id", func(t *testing.T) {
		g := NewKnowledgeGraph()
		err := g.AddNode(&GraphNode{Label: LabelFile})
		if !errors.Is(err, ErrEmptyNodeID) {
			t.Errorf("got %v, want ErrEmptyNodeID", err)
		}
	})

	t.Run("rejects invalid label", func(t *testing.T) {
		g := NewKnowledgeGraph()
		err := g.AddNode(&GraphNode{ID: "bogus:x", Label: NodeLabel("bogus")})
		if !errors.Is(err, ErrInvalidLabel) {
			t.Errorf("got %v, want ErrInvalidLabel", err)
		}
	})

	t.Run("upsert replaces node without duplicating", func(t *testing.T) {
		g := NewKnowledgeGraph()
		first := testNode(LabelFunction, "src/app.py", "run")
		mustAddNode(t, g, first)

		second := testNode(LabelFunction, "src/app.py", "run")
		second.IsDead = true
		mustAddNode(t, g, second)

		if g.NodeCount() != 1 {
			t.Fatalf("NodeCount = %d, want 1", g.NodeCount())
		}
		got, err := g.GetNode(first.ID)
		if err != nil {
			t.Fatalf("GetNode: %v", err)
		}
		if !got.IsDead {
			t.Errorf("upsert did not replace the stored node")
		}
	})

	t.Run("label index preserves insertion order", func(t *testing.T) {
		g := NewKnowledgeGraph()
		mustAddNode(t, g, testNode(LabelFunction, "b.py", "beta"))
		mustAddNode(t, g, testNode(LabelFunction, "a.py", "alpha"))

		fns := g.NodesByLabel(LabelFunction)
		if len(fns) != 2 {
			t.Fatalf("got %d functions, want 2", len(fns))
		}
		if fns[0].Name != "beta" || fns[1].Name != "alpha" {
			t.Errorf("order = [%s, %s], want [beta, alpha]", fns[0].Name, fns[1].Name)
		}
	})
}

func TestAddRelationship(t *testing.T) {
	t.Run("duplicate triple is a no-op", func(t *testing.T) {
		g := NewKnowledgeGraph()
		caller := testNode(LabelFunction, "a.py", "caller")
		callee := testNode(LabelFunction, "a.py", "callee")
		mustAddNode(t, g, caller)
		mustAddNode(t, g, callee)

		mustAddRel(t, g, RelCalls, caller.ID, callee.ID, CallProps{Confidence: 1.0})
		mustAddRel(t, g, RelCalls, caller.ID, callee.ID, CallProps{Confidence: 0.5})

		edges := g.GetOutgoing(caller.ID, RelCalls)
		if len(edges) != 1 {
			t.Fatalf("got %d edges, want 1", len(edges))
		}
		props, ok := edges[0].Props.(CallProps)
		if !ok {
			t.Fatalf("props type = %T, want CallProps", edges[0].Props)
		}
		if props.Confidence != 1.0 {
			t.Errorf("confidence = %v, want first-seen 1.0", props.Confidence)
		}
	})

	t.Run("rejects dangling endpoints", func(t *testing.T) {
		g := NewKnowledgeGraph()
		caller := testNode(LabelFunction, "a.py", "caller")
		mustAddNode(t, g, caller)

		err := g.AddRelationship(&GraphRelationship{
			Type: RelCalls, Source: caller.ID, Target: "function:missing.py:nope",
		})
		if !errors.Is(err, ErrDanglingEndpoint) {
			t.Errorf("got %v, want ErrDanglingEndpoint", err)
		}
	})

	t.Run("rejects invalid type", func(t *testing.T) {
		g := NewKnowledgeGraph()
		err := g.AddRelationship(&GraphRelationship{Type: RelType("knows")})
		if !errors.Is(err, ErrInvalidRelType) {
			t.Errorf("got %v, want ErrInvalidRelType", err)
		}
	})

	t.Run("derives composite id when empty", func(t *testing.T) {
		g := NewKnowledgeGraph()
		a := testNode(LabelFile, "a.py", "")
		b := testNode(LabelFile, "b.py", "")
		mustAddNode(t, g, a)
		mustAddNode(t, g, b)
		mustAddRel(t, g, RelImports, a.ID, b.ID, ImportProps{Symbols: []string{"x"}, Role: "module"})

		edges := g.GetOutgoing(a.ID, RelImports)
		if len(edges) != 1 {
			t.Fatalf("got %d edges, want 1", len(edges))
		}
		want := "imports:" + a.ID + "->" + b.ID
		if edges[0].ID != want {
			t.Errorf("edge id = %q, want %q", edges[0].ID, want)
		}
	})
}

func TestAdjacencyQueries(t *testing.T) {
	g := NewKnowledgeGraph()
	a := testNode(LabelFunction, "x.py", "a")
	b := testNode(LabelFunction, "x.py", "b")
	c := testNode(LabelFunction, "x.py", "c")
	mustAddNode(t, g, a)
	mustAddNode(t, g, b)
	mustAddNode(t, g, c)
	mustAddRel(t, g, RelCalls, a.ID, b.ID, CallProps{Confidence: 1.0})
	mustAddRel(t, g, RelCalls, a.ID, c.ID, CallProps{Confidence: 0.5})
	mustAddRel(t, g, RelUsesType, a.ID, c.ID, TypeUseProps{Role: "return"})

	t.Run("outgoing filtered by type", func(t *testing.T) {
		if n := len(g.GetOutgoing(a.ID, RelCalls)); n != 2 {
			t.Errorf("calls out of a = %d, want 2", n)
		}
		if n := len(g.GetOutgoing(a.ID, "")); n != 3 {
			t.Errorf("all out of a = %d, want 3", n)
		}
	})

	t.Run("incoming filtered by type", func(t *testing.T) {
		if n := len(g.GetIncoming(c.ID, RelCalls)); n != 1 {
			t.Errorf("calls into c = %d, want 1", n)
		}
	})

	t.Run("has incoming short-circuit", func(t *testing.T) {
		if !g.HasIncoming(b.ID, RelCalls) {
			t.Errorf("b should have incoming calls")
		}
		if g.HasIncoming(a.ID, RelCalls) {
			t.Errorf("a should have no incoming calls")
		}
		if g.HasIncoming(b.ID, RelUsesType) {
			t.Errorf("b should have no incoming uses_type")
		}
	})

	t.Run("count by label", func(t *testing.T) {
		counts := g.CountByLabel()
		if counts[LabelFunction] != 3 {
			t.Errorf("function count = %d, want 3", counts[LabelFunction])
		}
	})
}
