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
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

// storedNode is the on-disk node schema. Field names are part of the stored
// format; changing them requires a version bump in the meta sidecar.
type storedNode struct {
	ID           string         `json:"id"`
	Label        string         `json:"label"`
	Name         string         `json:"name"`
	FilePath     string         `json:"file_path,omitempty"`
	StartLine    int            `json:"start_line,omitempty"`
	EndLine      int            `json:"end_line,omitempty"`
	Content      string         `json:"content,omitempty"`
	Signature    string         `json:"signature,omitempty"`
	Language     string         `json:"language,omitempty"`
	ClassName    string         `json:"class_name,omitempty"`
	IsDead       bool           `json:"is_dead,omitempty"`
	IsEntryPoint bool           `json:"is_entry_point,omitempty"`
	IsExported   bool           `json:"is_exported,omitempty"`
	Decorators   []string       `json:"decorators,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// storedRelationship is the on-disk relationship schema. Typed props are
// flattened to a map on write and come back as graph.BagProps on read.
type storedRelationship struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Source string         `json:"source"`
	Target string         `json:"target"`
	Props  map[string]any `json:"props,omitempty"`
}

func encodeNode(n *graph.GraphNode) ([]byte, error) {
	return json.Marshal(storedNode{
		ID:           n.ID,
		Label:        string(n.Label),
		Name:         n.Name,
		FilePath:     n.FilePath,
		StartLine:    n.StartLine,
		EndLine:      n.EndLine,
		Content:      n.Content,
		Signature:    n.Signature,
		Language:     n.Language,
		ClassName:    n.ClassName,
		IsDead:       n.IsDead,
		IsEntryPoint: n.IsEntryPoint,
		IsExported:   n.IsExported,
		Decorators:   n.Decorators,
		Properties:   n.Properties,
	})
}

func decodeNode(data []byte) (*graph.GraphNode, error) {
	var sn storedNode
	if err := json.Unmarshal(data, &sn); err != nil {
		return nil, fmt.Errorf("decode node: %w", err)
	}
	return &graph.GraphNode{
		ID:           sn.ID,
		Label:        graph.NodeLabel(sn.Label),
		Name:         sn.Name,
		FilePath:     sn.FilePath,
		StartLine:    sn.StartLine,
		EndLine:      sn.EndLine,
		Content:      sn.Content,
		Signature:    sn.Signature,
		Language:     sn.Language,
		ClassName:    sn.ClassName,
		IsDead:       sn.IsDead,
		IsEntryPoint: sn.IsEntryPoint,
		IsExported:   sn.IsExported,
		Decorators:   sn.Decorators,
		Properties:   sn.Properties,
	}, nil
}

func encodeRelationship(r *graph.GraphRelationship) ([]byte, error) {
	var props map[string]any
	if r.Props != nil {
		props = r.Props.Bag()
	}
	return json.Marshal(storedRelationship{
		ID:     r.ID,
		Type:   string(r.Type),
		Source: r.Source,
		Target: r.Target,
		Props:  props,
	})
}

func decodeRelationship(data []byte) (*graph.GraphRelationship, error) {
	var sr storedRelationship
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("decode relationship: %w", err)
	}
	rel := &graph.GraphRelationship{
		ID:     sr.ID,
		Type:   graph.RelType(sr.Type),
		Source: sr.Source,
		Target: sr.Target,
	}
	if sr.Props != nil {
		rel.Props = graph.BagProps(sr.Props)
	}
	return rel, nil
}

// putNode writes a node record plus its file-membership index entry.
func putNode(txn *badger.Txn, n *graph.GraphNode) error {
	data, err := encodeNode(n)
	if err != nil {
		return err
	}
	if err := txn.Set([]byte(prefixNode+n.ID), data); err != nil {
		return err
	}
	if n.FilePath != "" {
		if err := txn.Set([]byte(prefixFile+n.FilePath+keySep+n.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

// putRelationship writes a relationship record plus both adjacency entries.
func putRelationship(txn *badger.Txn, r *graph.GraphRelationship) error {
	data, err := encodeRelationship(r)
	if err != nil {
		return err
	}
	if err := txn.Set([]byte(prefixRel+r.ID), data); err != nil {
		return err
	}
	if err := txn.Set([]byte(prefixOutgoing+r.Source+keySep+r.ID), nil); err != nil {
		return err
	}
	return txn.Set([]byte(prefixIncoming+r.Target+keySep+r.ID), nil)
}

// BulkLoad replaces the stored graph with the given one.
//
// Description:
//
//	Drops all existing graph data (nodes, relationships, indexes, vectors)
//	and writes the new graph in batches. The drop and reload are not a
//	single transaction; callers serialize bulk loads against readers via
//	the ingestion lock, and a crash mid-load is recovered by re-running
//	the pipeline.
//
// Inputs:
//
//	ctx - Context for cancellation between batches.
//	g - The in-memory graph to persist.
//
// Outputs:
//
//	error - Non-nil if a batch fails to commit.
func (s *Store) BulkLoad(ctx context.Context, g *graph.KnowledgeGraph) error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("drop existing graph: %w", err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, n := range g.Nodes() {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := encodeNode(n)
		if err != nil {
			return err
		}
		if err := wb.Set([]byte(prefixNode+n.ID), data); err != nil {
			return err
		}
		if n.FilePath != "" {
			if err := wb.Set([]byte(prefixFile+n.FilePath+keySep+n.ID), nil); err != nil {
				return err
			}
		}
	}

	for _, r := range g.Relationships() {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := encodeRelationship(r)
		if err != nil {
			return err
		}
		if err := wb.Set([]byte(prefixRel+r.ID), data); err != nil {
			return err
		}
		if err := wb.Set([]byte(prefixOutgoing+r.Source+keySep+r.ID), nil); err != nil {
			return err
		}
		if err := wb.Set([]byte(prefixIncoming+r.Target+keySep+r.ID), nil); err != nil {
			return err
		}
	}

	return wb.Flush()
}

// AddNodes upserts nodes without touching the rest of the stored graph.
func (s *Store) AddNodes(ctx context.Context, nodes []*graph.GraphNode) error {
	return s.withTxn(ctx, func(txn *badger.Txn) error {
		for _, n := range nodes {
			if err := putNode(txn, n); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddRelationships upserts relationships. An edge whose endpoint is missing
// from storage is still written; the read path tolerates dangling edges the
// same way the in-memory graph rejects them, because incremental updates may
// land edges before a cross-file endpoint's next reindex.
func (s *Store) AddRelationships(ctx context.Context, rels []*graph.GraphRelationship) error {
	return s.withTxn(ctx, func(txn *badger.Txn) error {
		for _, r := range rels {
			if err := putRelationship(txn, r); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveNodesByFile deletes every node defined in a file, together with the
// node's edges, index entries, tokens, and embedding. Returns the number of
// nodes removed.
func (s *Store) RemoveNodesByFile(ctx context.Context, filePath string) (int, error) {
	removed := 0
	err := s.withTxn(ctx, func(txn *badger.Txn) error {
		var nodeIDs []string
		err := scanPrefix(txn, prefixFile+filePath+keySep, false, func(key string, _ []byte) error {
			nodeIDs = append(nodeIDs, strings.TrimPrefix(key, prefixFile+filePath+keySep))
			return nil
		})
		if err != nil {
			return err
		}

		for _, nodeID := range nodeIDs {
			if err := removeNode(txn, filePath, nodeID); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// removeNode deletes one node record with all of its secondary entries and
// incident edges.
func removeNode(txn *badger.Txn, filePath, nodeID string) error {
	// Incident edges, both directions.
	for _, adjPrefix := range []string{prefixOutgoing, prefixIncoming} {
		var relIDs []string
		err := scanPrefix(txn, adjPrefix+nodeID+keySep, false, func(key string, _ []byte) error {
			relIDs = append(relIDs, strings.TrimPrefix(key, adjPrefix+nodeID+keySep))
			return nil
		})
		if err != nil {
			return err
		}
		for _, relID := range relIDs {
			if err := removeRelationship(txn, relID); err != nil {
				return err
			}
		}
	}

	// Token index entries for this node.
	item, err := txn.Get([]byte(prefixNode + nodeID))
	if err == nil {
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		n, err := decodeNode(data)
		if err != nil {
			return err
		}
		for _, token := range nodeTokens(n) {
			if err := txn.Delete([]byte(prefixToken + token + keySep + nodeID)); err != nil {
				return err
			}
		}
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}

	if err := txn.Delete([]byte(prefixNode + nodeID)); err != nil {
		return err
	}
	if err := txn.Delete([]byte(prefixVector + nodeID)); err != nil {
		return err
	}
	return txn.Delete([]byte(prefixFile + filePath + keySep + nodeID))
}

// removeRelationship deletes an edge record and both adjacency entries.
func removeRelationship(txn *badger.Txn, relID string) error {
	item, err := txn.Get([]byte(prefixRel + relID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	rel, err := decodeRelationship(data)
	if err != nil {
		return err
	}

	if err := txn.Delete([]byte(prefixRel + relID)); err != nil {
		return err
	}
	if err := txn.Delete([]byte(prefixOutgoing + rel.Source + keySep + relID)); err != nil {
		return err
	}
	return txn.Delete([]byte(prefixIncoming + rel.Target + keySep + relID))
}

// GetNode returns the stored node with the given id, or ErrNotFound.
func (s *Store) GetNode(ctx context.Context, id string) (*graph.GraphNode, error) {
	var node *graph.GraphNode
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixNode + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		node, err = decodeNode(data)
		return err
	})
	return node, err
}

// GetOutgoing returns the stored edges leaving a node, optionally filtered
// by type (empty means all).
func (s *Store) GetOutgoing(ctx context.Context, nodeID string, relType graph.RelType) ([]*graph.GraphRelationship, error) {
	return s.adjacentEdges(ctx, prefixOutgoing, nodeID, relType)
}

// GetIncoming returns the stored edges arriving at a node, optionally
// filtered by type (empty means all).
func (s *Store) GetIncoming(ctx context.Context, nodeID string, relType graph.RelType) ([]*graph.GraphRelationship, error) {
	return s.adjacentEdges(ctx, prefixIncoming, nodeID, relType)
}

func (s *Store) adjacentEdges(ctx context.Context, adjPrefix, nodeID string, relType graph.RelType) ([]*graph.GraphRelationship, error) {
	var rels []*graph.GraphRelationship
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		var relIDs []string
		err := scanPrefix(txn, adjPrefix+nodeID+keySep, false, func(key string, _ []byte) error {
			relIDs = append(relIDs, strings.TrimPrefix(key, adjPrefix+nodeID+keySep))
			return nil
		})
		if err != nil {
			return err
		}

		for _, relID := range relIDs {
			item, err := txn.Get([]byte(prefixRel + relID))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue // dangling index entry
			}
			if err != nil {
				return err
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			rel, err := decodeRelationship(data)
			if err != nil {
				return err
			}
			if relType != "" && rel.Type != relType {
				continue
			}
			rels = append(rels, rel)
		}
		return nil
	})
	return rels, err
}

// Traverse walks outgoing edges breadth-first from a start node up to the
// given depth and returns the visited nodes, start first.
func (s *Store) Traverse(ctx context.Context, startID string, depth int) ([]*graph.GraphNode, error) {
	start, err := s.GetNode(ctx, startID)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{startID: true}
	nodes := []*graph.GraphNode{start}
	frontier := []string{startID}

	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []string
		for _, id := range frontier {
			rels, err := s.GetOutgoing(ctx, id, "")
			if err != nil {
				return nil, err
			}
			for _, rel := range rels {
				if visited[rel.Target] {
					continue
				}
				visited[rel.Target] = true
				target, err := s.GetNode(ctx, rel.Target)
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if err != nil {
					return nil, err
				}
				nodes = append(nodes, target)
				next = append(next, rel.Target)
			}
		}
		frontier = next
	}

	return nodes, nil
}

// NodesByFile returns the stored nodes defined in a file.
func (s *Store) NodesByFile(ctx context.Context, filePath string) ([]*graph.GraphNode, error) {
	var nodes []*graph.GraphNode
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		var nodeIDs []string
		err := scanPrefix(txn, prefixFile+filePath+keySep, false, func(key string, _ []byte) error {
			nodeIDs = append(nodeIDs, strings.TrimPrefix(key, prefixFile+filePath+keySep))
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range nodeIDs {
			item, err := txn.Get([]byte(prefixNode + id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			n, err := decodeNode(data)
			if err != nil {
				return err
			}
			nodes = append(nodes, n)
		}
		return nil
	})
	return nodes, err
}

// NodesByLabel returns all stored nodes with the given label, optionally
// filtered by a predicate (nil keeps everything). A full node scan; the
// query surfaces that use it (dead-code listing, flow listing) are
// human-paced.
func (s *Store) NodesByLabel(ctx context.Context, label graph.NodeLabel, keep func(*graph.GraphNode) bool) ([]*graph.GraphNode, error) {
	var nodes []*graph.GraphNode
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixNode+string(label)+":", true, func(_ string, value []byte) error {
			n, err := decodeNode(value)
			if err != nil {
				return err
			}
			if keep == nil || keep(n) {
				nodes = append(nodes, n)
			}
			return nil
		})
	})
	return nodes, err
}

// RawRow is one key/value pair returned by ExecuteRaw.
type RawRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ExecuteRaw scans raw records under a key prefix. A diagnostic escape
// hatch, not a query language: "n:" dumps nodes, "r:" dumps relationships.
func (s *Store) ExecuteRaw(ctx context.Context, query string) ([]RawRow, error) {
	var rows []RawRow
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, query, true, func(key string, value []byte) error {
			rows = append(rows, RawRow{Key: key, Value: string(value)})
			return nil
		})
	})
	return rows, err
}
