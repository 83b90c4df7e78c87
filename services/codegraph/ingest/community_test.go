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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

func TestProcessCommunitiesTwoClusters(t *testing.T) {
	g := graph.NewKnowledgeGraph()

	// Two call triangles with no edges between them.
	auth := []*graph.GraphNode{
		addFunction(t, g, "login", "src/auth.py"),
		addFunction(t, g, "verify_token", "src/auth.py"),
		addFunction(t, g, "refresh_session", "src/auth.py"),
	}
	billing := []*graph.GraphNode{
		addFunction(t, g, "create_invoice", "src/billing.py"),
		addFunction(t, g, "apply_discount", "src/billing.py"),
		addFunction(t, g, "charge_card", "src/billing.py"),
	}
	for _, cluster := range [][]*graph.GraphNode{auth, billing} {
		addCalls(t, g, cluster[0].ID, cluster[1].ID, 1.0)
		addCalls(t, g, cluster[1].ID, cluster[2].ID, 1.0)
		addCalls(t, g, cluster[2].ID, cluster[0].ID, 1.0)
	}

	// An isolated function joins no community.
	isolated := addFunction(t, g, "orphan", "src/misc.py")

	count, err := ProcessCommunities(g)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	communities := g.NodesByLabel(graph.LabelCommunity)
	require.Len(t, communities, 2)
	for _, c := range communities {
		assert.Equal(t, 3, c.Properties["size"])
		assert.Len(t, g.GetIncoming(c.ID, graph.RelMemberOf), 3)
	}

	assert.Empty(t, g.GetOutgoing(isolated.ID, graph.RelMemberOf))

	// Members of different triangles never share a community.
	authCommunity := g.GetOutgoing(auth[0].ID, graph.RelMemberOf)
	billingCommunity := g.GetOutgoing(billing[0].ID, graph.RelMemberOf)
	require.Len(t, authCommunity, 1)
	require.Len(t, billingCommunity, 1)
	assert.NotEqual(t, authCommunity[0].Target, billingCommunity[0].Target)
}

func TestProcessCommunitiesDeterministic(t *testing.T) {
	build := func() *graph.KnowledgeGraph {
		g := graph.NewKnowledgeGraph()
		a := addFunction(t, g, "parse_row", "src/etl.py")
		b := addFunction(t, g, "clean_row", "src/etl.py")
		c := addFunction(t, g, "load_row", "src/etl.py")
		addCalls(t, g, a.ID, b.ID, 1.0)
		addCalls(t, g, b.ID, c.ID, 1.0)
		return g
	}

	g1, g2 := build(), build()
	_, err := ProcessCommunities(g1)
	require.NoError(t, err)
	_, err = ProcessCommunities(g2)
	require.NoError(t, err)

	rels1 := g1.GetIncoming(graph.GenerateID(graph.LabelCommunity, "community_0"), graph.RelMemberOf)
	rels2 := g2.GetIncoming(graph.GenerateID(graph.LabelCommunity, "community_0"), graph.RelMemberOf)
	require.Equal(t, len(rels1), len(rels2))
	for i := range rels1 {
		assert.Equal(t, rels1[i].Source, rels2[i].Source)
	}
}
