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
	"log/slog"
	"sync"
)

// KnowledgeGraph is the mutable in-memory graph the ingestion pipeline
// builds up phase by phase before handing it to storage.
//
// Description:
//
//	Nodes and relationships are upserted by deterministic id. Adding a node
//	whose id already exists replaces it in place without disturbing insertion
//	order; adding a relationship whose (type, source, target) triple already
//	exists is a no-op. A per-label index and per-node adjacency lists serve
//	the phase queries (NodesByLabel, GetOutgoing, GetIncoming, HasIncoming)
//	without scanning.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. The parse phase merges results
//	on a single goroutine, but later consumers (watch mode, the MCP server's
//	in-process reads) may overlap with writers.
type KnowledgeGraph struct {
	mu sync.RWMutex

	nodes map[string]*GraphNode
	rels  map[string]*GraphRelationship

	// Insertion-order slices keep iteration deterministic across runs.
	nodeOrder []string
	relOrder  []string

	byLabel  map[NodeLabel][]string
	outgoing map[string][]string // node id -> relationship ids
	incoming map[string][]string

	logger *slog.Logger
}

// Option configures a KnowledgeGraph.
type Option func(*KnowledgeGraph)

// WithLogger sets the structured logger used for dropped-input warnings.
func WithLogger(l *slog.Logger) Option {
	return func(g *KnowledgeGraph) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewKnowledgeGraph creates an empty graph.
func NewKnowledgeGraph(opts ...Option) *KnowledgeGraph {
	g := &KnowledgeGraph{
		nodes:    make(map[string]*GraphNode),
		rels:     make(map[string]*GraphRelationship),
		byLabel:  make(map[NodeLabel][]string),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNode upserts a node by id.
//
// A node with an id already present replaces the stored node; the label
// index and insertion order are untouched so repeated ingestion of the same
// entity stays idempotent. Invalid labels and empty ids are rejected.
func (g *KnowledgeGraph) AddNode(n *GraphNode) error {
	if n == nil || n.ID == "" {
		return ErrEmptyNodeID
	}
	if !n.Label.Valid() {
		return ErrInvalidLabel
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[n.ID]; exists {
		g.nodes[n.ID] = n
		return nil
	}
	g.nodes[n.ID] = n
	g.nodeOrder = append(g.nodeOrder, n.ID)
	g.byLabel[n.Label] = append(g.byLabel[n.Label], n.ID)
	return nil
}

// AddRelationship upserts a directed edge, deduplicating by the
// (type, source, target) composite id.
//
// Both endpoints must already exist in the graph; an edge pointing at an
// unknown node returns ErrDanglingEndpoint. Re-adding an existing edge is a
// no-op that keeps the first-seen properties.
func (g *KnowledgeGraph) AddRelationship(r *GraphRelationship) error {
	if r == nil {
		return ErrInvalidRelType
	}
	if !r.Type.Valid() {
		return ErrInvalidRelType
	}
	if r.ID == "" {
		r.ID = RelationshipID(r.Type, r.Source, r.Target)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[r.Source]; !ok {
		return ErrDanglingEndpoint
	}
	if _, ok := g.nodes[r.Target]; !ok {
		return ErrDanglingEndpoint
	}
	if _, exists := g.rels[r.ID]; exists {
		return nil
	}
	g.rels[r.ID] = r
	g.relOrder = append(g.relOrder, r.ID)
	g.outgoing[r.Source] = append(g.outgoing[r.Source], r.ID)
	g.incoming[r.Target] = append(g.incoming[r.Target], r.ID)
	return nil
}

// GetNode returns the node with the given id, or ErrNodeNotFound.
func (g *KnowledgeGraph) GetNode(id string) (*GraphNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return n, nil
}

// HasNode reports whether a node with the given id exists.
func (g *KnowledgeGraph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// NodesByLabel returns all nodes with the given label in insertion order.
func (g *KnowledgeGraph) NodesByLabel(label NodeLabel) []*GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := g.byLabel[label]
	out := make([]*GraphNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.nodes[id])
	}
	return out
}

// Nodes returns all nodes in insertion order.
func (g *KnowledgeGraph) Nodes() []*GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*GraphNode, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// Relationships returns all relationships in insertion order.
func (g *KnowledgeGraph) Relationships() []*GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*GraphRelationship, 0, len(g.relOrder))
	for _, id := range g.relOrder {
		out = append(out, g.rels[id])
	}
	return out
}

// GetOutgoing returns the edges leaving a node, optionally filtered by
// relationship type (empty relType means all types), in insertion order.
func (g *KnowledgeGraph) GetOutgoing(nodeID string, relType RelType) []*GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.filterEdges(g.outgoing[nodeID], relType)
}

// GetIncoming returns the edges arriving at a node, optionally filtered by
// relationship type (empty relType means all types), in insertion order.
func (g *KnowledgeGraph) GetIncoming(nodeID string, relType RelType) []*GraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.filterEdges(g.incoming[nodeID], relType)
}

// HasIncoming reports whether any edge of the given type arrives at the
// node. It short-circuits on the first match, which matters for dead-code
// detection over large graphs.
func (g *KnowledgeGraph) HasIncoming(nodeID string, relType RelType) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, relID := range g.incoming[nodeID] {
		if r := g.rels[relID]; r != nil && (relType == "" || r.Type == relType) {
			return true
		}
	}
	return false
}

// NodeCount returns the number of nodes in the graph.
func (g *KnowledgeGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// RelationshipCount returns the number of relationships in the graph.
func (g *KnowledgeGraph) RelationshipCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rels)
}

// CountByLabel returns the node count per label for summary stats.
func (g *KnowledgeGraph) CountByLabel() map[NodeLabel]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make(map[NodeLabel]int, len(g.byLabel))
	for label, ids := range g.byLabel {
		out[label] = len(ids)
	}
	return out
}

// filterEdges resolves relationship ids to edges, applying an optional type
// filter. Caller must hold at least a read lock.
func (g *KnowledgeGraph) filterEdges(relIDs []string, relType RelType) []*GraphRelationship {
	out := make([]*GraphRelationship, 0, len(relIDs))
	for _, relID := range relIDs {
		r := g.rels[relID]
		if r == nil {
			continue
		}
		if relType != "" && r.Type != relType {
			continue
		}
		out = append(out, r)
	}
	return out
}
