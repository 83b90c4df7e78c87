// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"testing"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

func symbolNode(label graph.NodeLabel, filePath, name string, start, end int) *graph.GraphNode {
	return &graph.GraphNode{
		ID:        graph.GenerateID(label, filePath, name),
		Label:     label,
		Name:      name,
		FilePath:  filePath,
		StartLine: start,
		EndLine:   end,
	}
}

func TestSymbolIndex_Lookup(t *testing.T) {
	idx := NewSymbolIndex()
	a := symbolNode(graph.LabelFunction, "src/a.py", "handle", 1, 10)
	b := symbolNode(graph.LabelFunction, "src/b.py", "handle", 1, 10)
	c := symbolNode(graph.LabelClass, "src/a.py", "Server", 12, 40)
	idx.Add(a)
	idx.Add(b)
	idx.Add(c)

	t.Run("by name sorted by id", func(t *testing.T) {
		got := idx.ByName("handle")
		if len(got) != 2 {
			t.Fatalf("got %d, want 2", len(got))
		}
		if got[0].ID > got[1].ID {
			t.Errorf("candidates not id-sorted: %s before %s", got[0].ID, got[1].ID)
		}
	})

	t.Run("by name in file", func(t *testing.T) {
		got := idx.ByNameInFile("handle", "src/b.py")
		if len(got) != 1 || got[0] != b {
			t.Errorf("got %v", got)
		}
	})

	t.Run("re-adding same node does not duplicate", func(t *testing.T) {
		idx.Add(a)
		if n := len(idx.ByName("handle")); n != 2 {
			t.Errorf("got %d, want 2", n)
		}
	})

	t.Run("by file", func(t *testing.T) {
		if n := len(idx.ByFile("src/a.py")); n != 2 {
			t.Errorf("got %d, want 2", n)
		}
	})
}

func TestContainingSymbol(t *testing.T) {
	idx := NewSymbolIndex()
	class := symbolNode(graph.LabelClass, "src/a.py", "Server", 1, 50)
	method := symbolNode(graph.LabelMethod, "src/a.py", "start", 10, 20)
	method.ClassName = "Server"
	idx.Add(class)
	idx.Add(method)

	t.Run("innermost span wins", func(t *testing.T) {
		got := idx.ContainingSymbol("src/a.py", 15)
		if got != method {
			t.Errorf("got %v, want method", got)
		}
	})

	t.Run("outer span when outside method", func(t *testing.T) {
		got := idx.ContainingSymbol("src/a.py", 45)
		if got != class {
			t.Errorf("got %v, want class", got)
		}
	})

	t.Run("nil outside all spans", func(t *testing.T) {
		if got := idx.ContainingSymbol("src/a.py", 99); got != nil {
			t.Errorf("got %v, want nil", got)
		}
	})
}

func TestFuzzyByName(t *testing.T) {
	idx := NewSymbolIndex()
	idx.Add(symbolNode(graph.LabelFunction, "a.py", "resolve_call", 1, 2))
	idx.Add(symbolNode(graph.LabelFunction, "b.py", "resolve_calls", 1, 2))
	idx.Add(symbolNode(graph.LabelFunction, "c.py", "unrelated", 1, 2))

	got := idx.FuzzyByName("resolve_call", 2)
	if len(got) != 2 {
		t.Fatalf("got %d hits, want 2", len(got))
	}
	if got[0].Name != "resolve_call" {
		t.Errorf("exact match should rank first, got %s", got[0].Name)
	}
}

func TestSortByProximity(t *testing.T) {
	deep := symbolNode(graph.LabelFunction, "pkg/sub/dir/x.py", "f", 1, 2)
	shallow := symbolNode(graph.LabelFunction, "x.py", "f", 1, 2)
	mid := symbolNode(graph.LabelFunction, "pkg/x.py", "f", 1, 2)

	nodes := []*graph.GraphNode{deep, shallow, mid}
	SortByProximity(nodes)

	if nodes[0] != shallow || nodes[1] != mid || nodes[2] != deep {
		t.Errorf("order = [%s %s %s]", nodes[0].FilePath, nodes[1].FilePath, nodes[2].FilePath)
	}
}

func TestBoundedLevenshtein(t *testing.T) {
	cases := []struct {
		a, b    string
		max     int
		dist    int
		inBound bool
	}{
		{"kitten", "sitting", 3, 3, true},
		{"kitten", "sitting", 2, 0, false},
		{"same", "same", 0, 0, true},
		{"", "abc", 3, 3, true},
		{"abcdef", "x", 2, 0, false},
	}
	for _, tc := range cases {
		d, ok := boundedLevenshtein(tc.a, tc.b, tc.max)
		if ok != tc.inBound || (ok && d != tc.dist) {
			t.Errorf("boundedLevenshtein(%q, %q, %d) = (%d, %v), want (%d, %v)",
				tc.a, tc.b, tc.max, d, ok, tc.dist, tc.inBound)
		}
	}
}
