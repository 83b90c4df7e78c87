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
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

const (
	// flowMaxDepth bounds BFS depth from an entry point.
	flowMaxDepth = 10
	// flowMaxBranching bounds callees followed per node per level.
	flowMaxBranching = 4
	// flowOverlapThreshold: flows sharing more than this fraction of nodes
	// (relative to the smaller flow) are duplicates.
	flowOverlapThreshold = 0.7
)

// Decorator fragments that mark a Python function as a framework entry
// point even when it has incoming calls.
var pythonEntryDecorators = []string{"@app.route", "@router", "@click.command"}

// Well-known entry point names across ecosystems.
var entryPointNames = map[string]bool{
	"main": true, "cli": true, "run": true,
	"app": true, "handler": true, "entrypoint": true,
}

// Script-like Python files whose top-level functions are entry points.
var scriptFileSuffixes = []string{"__main__.py", "cli.py", "main.py", "app.py"}

// FindEntryPoints scans Function and Method nodes and marks execution entry
// points by setting IsEntryPoint on the node.
//
// Framework patterns qualify unconditionally: Python test functions, main,
// route/command decorators; TypeScript handler/middleware names and exported
// functions. Beyond that, a node with no incoming CALLS edges qualifies only
// with extra evidence (exported, a well-known name, or a top-level function
// in a script-like file) so plain unused helpers are not promoted.
func FindEntryPoints(g *graph.KnowledgeGraph) []*graph.GraphNode {
	var entryPoints []*graph.GraphNode
	for _, label := range flowLabels {
		for _, n := range g.NodesByLabel(label) {
			if isEntryPoint(n, g) {
				n.IsEntryPoint = true
				entryPoints = append(entryPoints, n)
			}
		}
	}
	return entryPoints
}

func isEntryPoint(n *graph.GraphNode, g *graph.KnowledgeGraph) bool {
	if matchesFrameworkPattern(n) {
		return true
	}
	if g.HasIncoming(n.ID, graph.RelCalls) {
		return false
	}
	if n.IsExported {
		return true
	}
	if entryPointNames[n.Name] {
		return true
	}
	if n.Label == graph.LabelFunction {
		for _, suffix := range scriptFileSuffixes {
			if strings.HasSuffix(n.FilePath, suffix) {
				return true
			}
		}
	}
	return false
}

func matchesFrameworkPattern(n *graph.GraphNode) bool {
	lang := strings.ToLower(n.Language)

	if lang == "python" || strings.HasSuffix(n.FilePath, ".py") {
		if strings.HasPrefix(n.Name, "test_") || n.Name == "main" {
			return true
		}
		for _, pattern := range pythonEntryDecorators {
			if strings.Contains(n.Content, pattern) {
				return true
			}
		}
	}

	if lang == "typescript" || strings.HasSuffix(n.FilePath, ".ts") || strings.HasSuffix(n.FilePath, ".tsx") {
		if n.Name == "handler" || n.Name == "middleware" {
			return true
		}
		if n.IsExported {
			return true
		}
	}

	return false
}

// TraceFlow walks CALLS edges breadth-first from an entry point, following
// at most flowMaxBranching callees per node (highest confidence first, ties
// in insertion order) down to flowMaxDepth levels. Each node appears at most
// once in the flow.
func TraceFlow(entry *graph.GraphNode, g *graph.KnowledgeGraph) []*graph.GraphNode {
	visited := map[string]bool{entry.ID: true}
	flow := []*graph.GraphNode{entry}

	type queueItem struct {
		id    string
		depth int
	}
	queue := []queueItem{{entry.ID, 0}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.depth >= flowMaxDepth {
			continue
		}

		outgoing := g.GetOutgoing(item.id, graph.RelCalls)
		sort.SliceStable(outgoing, func(i, j int) bool {
			return callConfidence(outgoing[i]) > callConfidence(outgoing[j])
		})

		followed := 0
		for _, rel := range outgoing {
			if followed >= flowMaxBranching {
				break
			}
			if visited[rel.Target] {
				continue
			}
			target, err := g.GetNode(rel.Target)
			if err != nil {
				continue
			}
			visited[rel.Target] = true
			flow = append(flow, target)
			queue = append(queue, queueItem{rel.Target, item.depth + 1})
			followed++
		}
	}

	return flow
}

func callConfidence(rel *graph.GraphRelationship) float64 {
	if props, ok := rel.Props.(graph.CallProps); ok {
		return props.Confidence
	}
	return 0
}

// processName builds a readable label from the first steps of a flow:
// "entry → step2 → step3 → step4".
func processName(steps []*graph.GraphNode) string {
	if len(steps) == 0 {
		return ""
	}
	if len(steps) == 1 {
		return steps[0].Name
	}
	limit := len(steps)
	if limit > 4 {
		limit = 4
	}
	names := make([]string, limit)
	for i := 0; i < limit; i++ {
		names[i] = steps[i].Name
	}
	return strings.Join(names, " → ")
}

// deduplicateFlows keeps longer flows and drops any flow sharing more than
// flowOverlapThreshold of its nodes with an already-kept flow, overlap
// measured against the smaller of the two.
func deduplicateFlows(flows [][]*graph.GraphNode) [][]*graph.GraphNode {
	ordered := append([][]*graph.GraphNode(nil), flows...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i]) > len(ordered[j])
	})

	var kept [][]*graph.GraphNode
	var keptSets []map[string]bool

	for _, flow := range ordered {
		flowIDs := make(map[string]bool, len(flow))
		for _, n := range flow {
			flowIDs[n.ID] = true
		}

		duplicate := false
		for _, keptSet := range keptSets {
			if len(flowIDs) == 0 || len(keptSet) == 0 {
				continue
			}
			intersection := 0
			for id := range flowIDs {
				if keptSet[id] {
					intersection++
				}
			}
			smaller := len(flowIDs)
			if len(keptSet) < smaller {
				smaller = len(keptSet)
			}
			if float64(intersection)/float64(smaller) > flowOverlapThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, flow)
			keptSets = append(keptSets, flowIDs)
		}
	}

	return kept
}

// ProcessFlows detects execution flows and materializes them as Process
// nodes with STEP_IN_PROCESS edges from each step. Returns the number of
// Process nodes created.
//
// Flows are traced from every entry point, deduplicated, and single-step
// flows are dropped as trivial. The process kind reflects whether steps span
// communities: "intra_community", "cross_community", or "unknown" when no
// step belongs to a community.
func ProcessFlows(g *graph.KnowledgeGraph) (int, error) {
	entryPoints := FindEntryPoints(g)
	slog.Debug("entry points found", slog.Int("count", len(entryPoints)))

	flows := make([][]*graph.GraphNode, 0, len(entryPoints))
	for _, ep := range entryPoints {
		flows = append(flows, TraceFlow(ep, g))
	}

	flows = deduplicateFlows(flows)

	kept := flows[:0]
	for _, f := range flows {
		if len(f) > 1 {
			kept = append(kept, f)
		}
	}
	flows = kept

	for i, steps := range flows {
		processID := graph.GenerateID(graph.LabelProcess, fmt.Sprintf("process_%d", i))
		if err := g.AddNode(&graph.GraphNode{
			ID:    processID,
			Label: graph.LabelProcess,
			Name:  processName(steps),
			Properties: map[string]any{
				"step_count": len(steps),
				"kind":       flowKind(steps, g),
			},
		}); err != nil {
			return 0, err
		}

		for stepNumber, step := range steps {
			if err := g.AddRelationship(&graph.GraphRelationship{
				Type:   graph.RelStepInProcess,
				Source: step.ID,
				Target: processID,
				Props:  graph.StepProps{StepNumber: stepNumber},
			}); err != nil {
				return 0, err
			}
			countEdge("processes", string(graph.RelStepInProcess))
		}
	}

	slog.Info("process detection complete", slog.Int("processes", len(flows)))
	return len(flows), nil
}

// flowKind classifies a flow by the communities its steps belong to.
func flowKind(steps []*graph.GraphNode, g *graph.KnowledgeGraph) string {
	communities := make(map[string]bool)
	hasAny := false
	for _, step := range steps {
		for _, rel := range g.GetOutgoing(step.ID, graph.RelMemberOf) {
			hasAny = true
			communities[rel.Target] = true
		}
	}
	if !hasAny {
		return "unknown"
	}
	if len(communities) <= 1 {
		return "intra_community"
	}
	return "cross_community"
}
