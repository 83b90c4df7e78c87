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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

func entryPointIDs(eps []*graph.GraphNode) map[string]bool {
	ids := make(map[string]bool, len(eps))
	for _, ep := range eps {
		ids[ep.ID] = true
	}
	return ids
}

func TestFindEntryPoints(t *testing.T) {
	g := graph.NewKnowledgeGraph()

	main := addFunction(t, g, "main", "src/main.py")
	testFn := addFunction(t, g, "test_roundtrip", "src/core.py")
	routed := addFunction(t, g, "list_items", "src/api.py")
	routed.Content = "@app.route('/items')\ndef list_items():\n    pass\n"
	exported := addFunction(t, g, "render", "src/view.py")
	exported.IsExported = true
	helper := addFunction(t, g, "format_row", "src/view.py")

	tsHandler := addFunction(t, g, "handler", "src/lambda.ts")
	tsHandler.Language = "typescript"

	// Incoming calls disqualify plain functions but not framework matches.
	addCalls(t, g, exported.ID, helper.ID, 1.0)
	addCalls(t, g, helper.ID, main.ID, 1.0)
	addCalls(t, g, helper.ID, tsHandler.ID, 1.0)

	ids := entryPointIDs(FindEntryPoints(g))

	assert.True(t, ids[main.ID], "main is a framework entry point even when called")
	assert.True(t, ids[testFn.ID], "test functions are entry points")
	assert.True(t, ids[routed.ID], "route decorators mark entry points")
	assert.True(t, ids[exported.ID], "exported with no callers")
	assert.True(t, ids[tsHandler.ID], "typescript handler name")
	assert.False(t, ids[helper.ID], "called helper is not an entry point")
	assert.True(t, main.IsEntryPoint, "flag is set on the node")
}

func TestTraceFlowBranchingLimit(t *testing.T) {
	g := graph.NewKnowledgeGraph()

	entry := addFunction(t, g, "dispatch", "src/flow.py")
	var targets []*graph.GraphNode
	for i := 0; i < 6; i++ {
		n := addFunction(t, g, fmt.Sprintf("step_%d", i), "src/flow.py")
		targets = append(targets, n)
		addCalls(t, g, entry.ID, n.ID, 0.9-float64(i)*0.1)
	}

	flow := TraceFlow(entry, g)
	require.Len(t, flow, 5, "entry plus the four highest-confidence callees")
	for i := 0; i < 4; i++ {
		assert.Equal(t, targets[i].ID, flow[i+1].ID)
	}
}

func TestTraceFlowVisitsOnce(t *testing.T) {
	g := graph.NewKnowledgeGraph()

	a := addFunction(t, g, "a", "src/d.py")
	b := addFunction(t, g, "b", "src/d.py")
	c := addFunction(t, g, "c", "src/d.py")
	d := addFunction(t, g, "d", "src/d.py")
	addCalls(t, g, a.ID, b.ID, 1.0)
	addCalls(t, g, a.ID, c.ID, 0.9)
	addCalls(t, g, b.ID, d.ID, 1.0)
	addCalls(t, g, c.ID, d.ID, 1.0)

	flow := TraceFlow(a, g)
	assert.Len(t, flow, 4, "diamond join appears once")
}

func TestDeduplicateFlows(t *testing.T) {
	g := graph.NewKnowledgeGraph()
	nodes := make([]*graph.GraphNode, 6)
	for i := range nodes {
		nodes[i] = addFunction(t, g, fmt.Sprintf("n%d", i), "src/f.py")
	}

	long := []*graph.GraphNode{nodes[0], nodes[1], nodes[2], nodes[3]}
	// Shares 3 of its 4 nodes with long: 0.75 overlap, dropped.
	subsumed := []*graph.GraphNode{nodes[4], nodes[1], nodes[2], nodes[3]}
	// Shares 2 of 3: ~0.67 overlap, kept.
	distinct := []*graph.GraphNode{nodes[5], nodes[1], nodes[2]}

	kept := deduplicateFlows([][]*graph.GraphNode{long, subsumed, distinct})
	require.Len(t, kept, 2)
	assert.Equal(t, long[0].ID, kept[0][0].ID, "longest flow wins")
	assert.Equal(t, distinct[0].ID, kept[1][0].ID)
}

func TestProcessFlows(t *testing.T) {
	g := graph.NewKnowledgeGraph()

	main := addFunction(t, g, "main", "src/main.py")
	handle := addFunction(t, g, "handle_request", "src/api.py")
	save := addFunction(t, g, "save_record", "src/store.py")
	addCalls(t, g, main.ID, handle.ID, 1.0)
	addCalls(t, g, handle.ID, save.ID, 1.0)

	// An entry point with no callees produces a trivial flow and no node.
	lone := addFunction(t, g, "cli", "src/tools.py")
	_ = lone

	count, err := ProcessFlows(g)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	processes := g.NodesByLabel(graph.LabelProcess)
	require.Len(t, processes, 1)
	p := processes[0]
	assert.Equal(t, "main → handle_request → save_record", p.Name)
	assert.Equal(t, 3, p.Properties["step_count"])
	assert.Equal(t, "unknown", p.Properties["kind"])

	steps := g.GetIncoming(p.ID, graph.RelStepInProcess)
	require.Len(t, steps, 3)
	for _, rel := range steps {
		props, ok := rel.Props.(graph.StepProps)
		require.True(t, ok)
		switch rel.Source {
		case main.ID:
			assert.Equal(t, 0, props.StepNumber)
		case handle.ID:
			assert.Equal(t, 1, props.StepNumber)
		case save.ID:
			assert.Equal(t, 2, props.StepNumber)
		default:
			t.Fatalf("unexpected step source %s", rel.Source)
		}
	}
}

func TestProcessFlowsKind(t *testing.T) {
	g := graph.NewKnowledgeGraph()

	main := addFunction(t, g, "main", "src/main.py")
	worker := addFunction(t, g, "run_worker", "src/worker.py")
	addCalls(t, g, main.ID, worker.ID, 1.0)

	community := &graph.GraphNode{
		ID:    graph.GenerateID(graph.LabelCommunity, "community_0"),
		Label: graph.LabelCommunity,
		Name:  "community_0",
	}
	require.NoError(t, g.AddNode(community))
	for _, id := range []string{main.ID, worker.ID} {
		require.NoError(t, g.AddRelationship(&graph.GraphRelationship{
			Type:   graph.RelMemberOf,
			Source: id,
			Target: community.ID,
		}))
	}

	_, err := ProcessFlows(g)
	require.NoError(t, err)

	processes := g.NodesByLabel(graph.LabelProcess)
	require.Len(t, processes, 1)
	assert.Equal(t, "intra_community", processes[0].Properties["kind"])
}
