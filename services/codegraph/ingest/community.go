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
	"sort"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

// communityMaxIterations caps label propagation. Propagation on call graphs
// converges in a handful of rounds; the cap guards against oscillation on
// bipartite-ish structures.
const communityMaxIterations = 20

// ProcessCommunities clusters callable symbols into Community nodes using
// label propagation over the undirected call graph, and links members with
// MEMBER_OF edges. Returns the number of communities created.
//
// Label propagation is run asynchronously over nodes in sorted-id order with
// ties broken toward the smallest label, so the clustering is deterministic
// for a given graph. Symbols with no call edges, and clusters with a single
// member, produce no Community node.
func ProcessCommunities(g *graph.KnowledgeGraph) (int, error) {
	var ids []string
	for _, label := range callableLabels {
		for _, n := range g.NodesByLabel(label) {
			ids = append(ids, n.ID)
		}
	}
	sort.Strings(ids)

	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}

	// Undirected adjacency over CALLS edges between callable symbols.
	adj := make(map[int][]int)
	addEdge := func(a, b int) {
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}
	for _, id := range ids {
		for _, rel := range g.GetOutgoing(id, graph.RelCalls) {
			src, okS := pos[rel.Source]
			dst, okT := pos[rel.Target]
			if okS && okT && src != dst {
				addEdge(src, dst)
			}
		}
	}

	// Each node starts in its own community.
	labels := make([]int, len(ids))
	for i := range labels {
		labels[i] = i
	}

	for iter := 0; iter < communityMaxIterations; iter++ {
		changed := false
		for i := range ids {
			neighbors := adj[i]
			if len(neighbors) == 0 {
				continue
			}
			counts := make(map[int]int, len(neighbors))
			for _, nb := range neighbors {
				counts[labels[nb]]++
			}
			best, bestCount := labels[i], 0
			for label, count := range counts {
				if count > bestCount || (count == bestCount && label < best) {
					best, bestCount = label, count
				}
			}
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	// Group members, dropping isolated nodes and singleton clusters.
	groups := make(map[int][]int)
	for i := range ids {
		if len(adj[i]) == 0 {
			continue
		}
		groups[labels[i]] = append(groups[labels[i]], i)
	}

	groupKeys := make([]int, 0, len(groups))
	for k, members := range groups {
		if len(members) < 2 {
			continue
		}
		groupKeys = append(groupKeys, k)
	}
	sort.Ints(groupKeys)

	for i, k := range groupKeys {
		name := fmt.Sprintf("community_%d", i)
		communityID := graph.GenerateID(graph.LabelCommunity, name)
		if err := g.AddNode(&graph.GraphNode{
			ID:    communityID,
			Label: graph.LabelCommunity,
			Name:  name,
			Properties: map[string]any{
				"size": len(groups[k]),
			},
		}); err != nil {
			return 0, err
		}
		for _, member := range groups[k] {
			if err := g.AddRelationship(&graph.GraphRelationship{
				Type:   graph.RelMemberOf,
				Source: ids[member],
				Target: communityID,
			}); err != nil {
				return 0, err
			}
			countEdge("communities", string(graph.RelMemberOf))
		}
	}

	return len(groupKeys), nil
}
