// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testFunction(name, file string) *graph.GraphNode {
	return &graph.GraphNode{
		ID:       graph.GenerateID(graph.LabelFunction, file, name),
		Label:    graph.LabelFunction,
		Name:     name,
		FilePath: file,
		Language: "python",
	}
}

// testGraph builds two files with a cross-file call for reuse across tests.
func testGraph(t *testing.T) (*graph.KnowledgeGraph, *graph.GraphNode, *graph.GraphNode) {
	t.Helper()
	g := graph.NewKnowledgeGraph()
	caller := testFunction("handle_request", "app/api.py")
	callee := testFunction("save_record", "app/store.py")
	require.NoError(t, g.AddNode(caller))
	require.NoError(t, g.AddNode(callee))
	require.NoError(t, g.AddRelationship(&graph.GraphRelationship{
		Type:   graph.RelCalls,
		Source: caller.ID,
		Target: callee.ID,
		Props:  graph.CallProps{Confidence: 0.8},
	}))
	return g, caller, callee
}

func TestBulkLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g, caller, callee := testGraph(t)

	require.NoError(t, s.BulkLoad(ctx, g))

	got, err := s.GetNode(ctx, caller.ID)
	require.NoError(t, err)
	assert.Equal(t, caller.Name, got.Name)
	assert.Equal(t, caller.FilePath, got.FilePath)
	assert.Equal(t, graph.LabelFunction, got.Label)

	out, err := s.GetOutgoing(ctx, caller.ID, graph.RelCalls)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, callee.ID, out[0].Target)
	assert.Equal(t, 0.8, out[0].Props.Bag()["confidence"])

	in, err := s.GetIncoming(ctx, callee.ID, graph.RelCalls)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, caller.ID, in[0].Source)

	// Type filter excludes unrelated edge types.
	none, err := s.GetOutgoing(ctx, caller.ID, graph.RelExtends)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.GetNode(ctx, "function:nope.py:missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBulkLoadReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g1, caller, _ := testGraph(t)
	require.NoError(t, s.BulkLoad(ctx, g1))

	g2 := graph.NewKnowledgeGraph()
	fresh := testFunction("rebuilt", "app/new.py")
	require.NoError(t, g2.AddNode(fresh))
	require.NoError(t, s.BulkLoad(ctx, g2))

	_, err := s.GetNode(ctx, caller.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetNode(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestRemoveNodesByFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g, caller, callee := testGraph(t)
	require.NoError(t, s.BulkLoad(ctx, g))

	removed, err := s.RemoveNodesByFile(ctx, "app/api.py")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.GetNode(ctx, caller.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The callee survives but its incoming edge is gone.
	_, err = s.GetNode(ctx, callee.ID)
	require.NoError(t, err)
	in, err := s.GetIncoming(ctx, callee.ID, graph.RelCalls)
	require.NoError(t, err)
	assert.Empty(t, in)

	// Removing an unknown file is a zero, not an error.
	removed, err = s.RemoveNodesByFile(ctx, "app/ghost.py")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestAddNodesAndRelationships(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testFunction("alpha", "src/a.py")
	b := testFunction("beta", "src/b.py")
	require.NoError(t, s.AddNodes(ctx, []*graph.GraphNode{a, b}))
	require.NoError(t, s.AddRelationships(ctx, []*graph.GraphRelationship{{
		ID:     graph.RelationshipID(graph.RelCalls, a.ID, b.ID),
		Type:   graph.RelCalls,
		Source: a.ID,
		Target: b.ID,
		Props:  graph.CallProps{Confidence: 1.0},
	}}))

	nodes, err := s.NodesByFile(ctx, "src/a.py")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "alpha", nodes[0].Name)

	out, err := s.GetOutgoing(ctx, a.ID, "")
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestTraverse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g := graph.NewKnowledgeGraph()
	a := testFunction("first", "src/chain.py")
	b := testFunction("second", "src/chain.py")
	c := testFunction("third", "src/chain.py")
	for _, n := range []*graph.GraphNode{a, b, c} {
		require.NoError(t, g.AddNode(n))
	}
	require.NoError(t, g.AddRelationship(&graph.GraphRelationship{
		Type: graph.RelCalls, Source: a.ID, Target: b.ID,
		Props: graph.CallProps{Confidence: 1.0},
	}))
	require.NoError(t, g.AddRelationship(&graph.GraphRelationship{
		Type: graph.RelCalls, Source: b.ID, Target: c.ID,
		Props: graph.CallProps{Confidence: 1.0},
	}))
	require.NoError(t, s.BulkLoad(ctx, g))

	shallow, err := s.Traverse(ctx, a.ID, 1)
	require.NoError(t, err)
	assert.Len(t, shallow, 2)

	deep, err := s.Traverse(ctx, a.ID, 3)
	require.NoError(t, err)
	assert.Len(t, deep, 3)
	assert.Equal(t, a.ID, deep[0].ID)

	_, err = s.Traverse(ctx, "function:ghost.py:nope", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExecuteRaw(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g, _, _ := testGraph(t)
	require.NoError(t, s.BulkLoad(ctx, g))

	rows, err := s.ExecuteRaw(ctx, prefixNode)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	for _, row := range rows {
		assert.Contains(t, row.Key, prefixNode)
		assert.Contains(t, row.Value, `"label":"function"`)
	}
}
