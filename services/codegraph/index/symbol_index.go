// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index provides fast lookup structures over knowledge-graph symbol
// nodes: name and file indexes, a line-span lookup for finding the symbol
// containing a source line, and a bounded-distance fuzzy name search.
package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

// SymbolIndex provides name-, file-, and span-based lookup over symbol
// nodes (functions, methods, classes, interfaces, type aliases, enums).
//
// Description:
//
//	Built once after the parsing phase and consulted heavily by call,
//	heritage, and type-reference resolution. All candidate slices are kept
//	sorted by node id so iteration order — and therefore every "first
//	candidate" fallback — is deterministic across runs.
//
// Thread Safety:
//
//	Safe for concurrent use. Writes happen during Build/Add; reads dominate
//	afterwards.
type SymbolIndex struct {
	mu sync.RWMutex

	byName map[string][]*graph.GraphNode
	byFile map[string][]*graph.GraphNode
}

// NewSymbolIndex creates an empty index.
func NewSymbolIndex() *SymbolIndex {
	return &SymbolIndex{
		byName: make(map[string][]*graph.GraphNode),
		byFile: make(map[string][]*graph.GraphNode),
	}
}

// BuildSymbolIndex indexes every symbol-labeled node in the graph.
func BuildSymbolIndex(g *graph.KnowledgeGraph) *SymbolIndex {
	idx := NewSymbolIndex()
	for _, label := range graph.SymbolLabels {
		for _, n := range g.NodesByLabel(label) {
			idx.Add(n)
		}
	}
	return idx
}

// Add inserts one symbol node, keeping candidate lists sorted by node id.
func (idx *SymbolIndex) Add(n *graph.GraphNode) {
	if n == nil || n.Name == "" {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.byName[n.Name] = insertSorted(idx.byName[n.Name], n)
	if n.FilePath != "" {
		idx.byFile[n.FilePath] = insertSorted(idx.byFile[n.FilePath], n)
	}
}

// insertSorted inserts n into nodes at its id-sorted position, skipping
// duplicates.
func insertSorted(nodes []*graph.GraphNode, n *graph.GraphNode) []*graph.GraphNode {
	i := sort.Search(len(nodes), func(i int) bool { return nodes[i].ID >= n.ID })
	if i < len(nodes) && nodes[i].ID == n.ID {
		nodes[i] = n
		return nodes
	}
	nodes = append(nodes, nil)
	copy(nodes[i+1:], nodes[i:])
	nodes[i] = n
	return nodes
}

// ByName returns all symbols with the exact name, sorted by node id.
func (idx *SymbolIndex) ByName(name string) []*graph.GraphNode {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]*graph.GraphNode(nil), idx.byName[name]...)
}

// ByNameInFile returns symbols with the exact name defined in the file.
func (idx *SymbolIndex) ByNameInFile(name, filePath string) []*graph.GraphNode {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []*graph.GraphNode
	for _, n := range idx.byName[name] {
		if n.FilePath == filePath {
			out = append(out, n)
		}
	}
	return out
}

// ByFile returns all symbols defined in the file, sorted by node id.
func (idx *SymbolIndex) ByFile(filePath string) []*graph.GraphNode {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]*graph.GraphNode(nil), idx.byFile[filePath]...)
}

// ContainingSymbol returns the innermost symbol in the file whose line span
// covers the given line, or nil when the line is outside every symbol.
// Innermost means the smallest covering span, so a call inside a method
// attributes to the method rather than its class.
func (idx *SymbolIndex) ContainingSymbol(filePath string, line int) *graph.GraphNode {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var best *graph.GraphNode
	bestSpan := -1
	for _, n := range idx.byFile[filePath] {
		if line < n.StartLine || line > n.EndLine {
			continue
		}
		span := n.EndLine - n.StartLine
		if best == nil || span < bestSpan || (span == bestSpan && n.ID < best.ID) {
			best = n
			bestSpan = span
		}
	}
	return best
}

// FuzzyByName returns symbols whose name is within maxDistance edits of the
// query (case-insensitive), ordered by ascending distance then node id.
func (idx *SymbolIndex) FuzzyByName(query string, maxDistance int) []*graph.GraphNode {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	q := strings.ToLower(query)
	type scored struct {
		node *graph.GraphNode
		dist int
	}
	var hits []scored
	for name, nodes := range idx.byName {
		d, ok := boundedLevenshtein(q, strings.ToLower(name), maxDistance)
		if !ok {
			continue
		}
		for _, n := range nodes {
			hits = append(hits, scored{n, d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].node.ID < hits[j].node.ID
	})
	out := make([]*graph.GraphNode, len(hits))
	for i, h := range hits {
		out[i] = h.node
	}
	return out
}

// SortByProximity orders candidates by (file path length, file path, node
// id). Shorter paths sit closer to the repository root, which the fuzzy
// resolution strategy prefers; the full triple makes ties impossible.
func SortByProximity(nodes []*graph.GraphNode) {
	sort.Slice(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		if len(a.FilePath) != len(b.FilePath) {
			return len(a.FilePath) < len(b.FilePath)
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.ID < b.ID
	})
}
