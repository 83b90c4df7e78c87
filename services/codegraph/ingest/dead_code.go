// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"log/slog"
	"strings"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

// Constructor names that are invoked implicitly on instantiation and must
// never be flagged dead.
var constructorNames = map[string]bool{
	"__init__":    true,
	"__new__":     true,
	"constructor": true,
}

// isDunder reports whether a name is a magic method: starts and ends with
// double underscores with at least one character in between.
func isDunder(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") && len(name) > 4
}

// isTestSymbol reports whether the symbol name follows a test convention:
// snake_case test functions or PascalCase/describe-style test classes.
func isTestSymbol(name string) bool {
	return strings.HasPrefix(name, "test_") ||
		strings.HasPrefix(name, "Test") ||
		strings.HasSuffix(name, "Test") ||
		strings.HasSuffix(name, "Tests")
}

// isTestPath reports whether the file lives under a test directory or is
// itself a test file.
func isTestPath(filePath string) bool {
	for _, segment := range strings.Split(filePath, "/") {
		switch segment {
		case "test", "tests", "__tests__", "spec":
			return true
		}
	}
	base := filePath
	if idx := strings.LastIndexByte(filePath, '/'); idx >= 0 {
		base = filePath[idx+1:]
	}
	return strings.HasPrefix(base, "test_") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.HasSuffix(base, "_test.py")
}

// isPackagePublicAPI reports whether the symbol is a public name in a Python
// package initializer. Those names exist to be imported externally, so zero
// incoming calls is not evidence of death.
func isPackagePublicAPI(name, filePath string) bool {
	return strings.HasSuffix(filePath, "__init__.py") && !strings.HasPrefix(name, "_")
}

// deadCodeExempt is the union of all exemption rules. Any single rule
// holding keeps the symbol out of dead-code analysis.
func deadCodeExempt(n *graph.GraphNode) bool {
	return n.IsEntryPoint ||
		n.IsExported ||
		constructorNames[n.Name] ||
		isTestSymbol(n.Name) ||
		isTestPath(n.FilePath) ||
		isDunder(n.Name) ||
		isPackagePublicAPI(n.Name, n.FilePath)
}

// ProcessDeadCode flags unreachable symbols in two passes and returns the
// net number of nodes left with IsDead set.
//
// Pass 1 flags every Function, Method, or Class that has zero incoming CALLS
// edges and is not exempt (entry point, exported, constructor, test symbol,
// test path, dunder, or package public API).
//
// Pass 2 un-flags method overrides: a dead method whose direct parent class
// defines a non-dead method of the same name is reachable through dynamic
// dispatch on the base type, so flagging it would be a false positive. Only
// the direct parent along EXTENDS edges is consulted, not the full ancestor
// chain.
func ProcessDeadCode(g *graph.KnowledgeGraph) int {
	var flagged []*graph.GraphNode
	for _, label := range callableLabels {
		for _, n := range g.NodesByLabel(label) {
			if deadCodeExempt(n) {
				continue
			}
			if g.HasIncoming(n.ID, graph.RelCalls) {
				continue
			}
			n.IsDead = true
			flagged = append(flagged, n)
			slog.Debug("dead symbol", slog.String("name", n.Name), slog.String("id", n.ID))
		}
	}

	unflagged := suppressOverrides(g, flagged)
	return len(flagged) - unflagged
}

// suppressOverrides runs pass 2 over the flagged set, returning how many
// nodes were un-flagged.
func suppressOverrides(g *graph.KnowledgeGraph, flagged []*graph.GraphNode) int {
	// Live method names per class.
	liveMethods := make(map[string]map[string]bool)
	for _, m := range g.NodesByLabel(graph.LabelMethod) {
		if m.IsDead || m.ClassName == "" {
			continue
		}
		if liveMethods[m.ClassName] == nil {
			liveMethods[m.ClassName] = make(map[string]bool)
		}
		liveMethods[m.ClassName][m.Name] = true
	}

	// Child class name -> direct parent class names, from EXTENDS edges.
	parents := make(map[string][]string)
	for _, c := range g.NodesByLabel(graph.LabelClass) {
		for _, rel := range g.GetOutgoing(c.ID, graph.RelExtends) {
			parent, err := g.GetNode(rel.Target)
			if err != nil {
				continue
			}
			parents[c.Name] = append(parents[c.Name], parent.Name)
		}
	}

	unflagged := 0
	for _, n := range flagged {
		if n.Label != graph.LabelMethod || n.ClassName == "" {
			continue
		}
		for _, parent := range parents[n.ClassName] {
			if liveMethods[parent][n.Name] {
				n.IsDead = false
				unflagged++
				slog.Debug("override kept alive",
					slog.String("method", n.Name),
					slog.String("class", n.ClassName),
					slog.String("parent", parent))
				break
			}
		}
	}
	return unflagged
}
