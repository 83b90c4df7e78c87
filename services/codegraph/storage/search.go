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
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/index"
)

// tokenize splits an identifier into lowercase search tokens: snake_case
// and kebab-case on separators, camelCase on case boundaries. "parseHTTPBody"
// yields [parsehttpbody parse http body] (the whole identifier is kept too).
func tokenize(identifier string) []string {
	if identifier == "" {
		return nil
	}

	var tokens []string
	whole := strings.ToLower(identifier)

	var cur strings.Builder
	flush := func() {
		if cur.Len() > 1 {
			tokens = append(tokens, strings.ToLower(cur.String()))
		}
		cur.Reset()
	}

	runes := []rune(identifier)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			cur.WriteRune(r)
		case unicode.IsUpper(r) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) && cur.Len() > 0 &&
			unicode.IsUpper(runes[i-1]):
			// End of an acronym run: "HTTPBody" splits before "Body".
			flush()
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	if len(tokens) != 1 || tokens[0] != whole {
		if len(whole) > 1 {
			tokens = append(tokens, whole)
		}
	}

	seen := make(map[string]bool, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// nodeTokens returns the full-text tokens indexed for a node: its name, its
// owning class, and the file's base name.
func nodeTokens(n *graph.GraphNode) []string {
	tokens := tokenize(n.Name)
	tokens = append(tokens, tokenize(n.ClassName)...)
	if n.FilePath != "" {
		base := n.FilePath
		if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
			base = base[idx+1:]
		}
		if idx := strings.IndexByte(base, '.'); idx > 0 {
			base = base[:idx]
		}
		tokens = append(tokens, tokenize(base)...)
	}

	seen := make(map[string]bool, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// RebuildFTSIndexes drops and rebuilds the token index from the stored
// nodes. Called after every bulk load or incremental batch.
func (s *Store) RebuildFTSIndexes(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.DropPrefix([]byte(prefixToken)); err != nil {
		return fmt.Errorf("drop token index: %w", err)
	}

	var keys []string
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixNode, true, func(_ string, value []byte) error {
			n, err := decodeNode(value)
			if err != nil {
				return err
			}
			for _, token := range nodeTokens(n) {
				keys = append(keys, prefixToken+token+keySep+n.ID)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Set([]byte(key), nil); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// FTSSearch finds nodes whose indexed tokens prefix-match the query tokens,
// ranked by the number of matching tokens, ties by node id.
func (s *Store) FTSSearch(ctx context.Context, query string, limit int) ([]*graph.GraphNode, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	hits := make(map[string]int)
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		for _, token := range queryTokens {
			// Prefix scan without the separator gives prefix matching on
			// the token itself ("trans" matches "transform").
			err := scanPrefix(txn, prefixToken+token, false, func(key string, _ []byte) error {
				rest := strings.TrimPrefix(key, prefixToken)
				sep := strings.Index(rest, keySep)
				if sep < 0 {
					return nil
				}
				hits[rest[sep+len(keySep):]]++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(hits))
	for id := range hits {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if hits[ids[i]] != hits[ids[j]] {
			return hits[ids[i]] > hits[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	return s.loadNodes(ctx, ids)
}

// FuzzySearch finds nodes whose names are within maxDistance edits of the
// query, ranked by distance then id. The scan visits every stored node; the
// bounded edit distance keeps the per-name cost low.
func (s *Store) FuzzySearch(ctx context.Context, query string, limit, maxDistance int) ([]*graph.GraphNode, error) {
	lowered := strings.ToLower(query)

	type hit struct {
		node *graph.GraphNode
		dist int
	}
	var hits []hit
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixNode, true, func(_ string, value []byte) error {
			n, err := decodeNode(value)
			if err != nil {
				return err
			}
			if n.Name == "" {
				return nil
			}
			if dist, ok := index.BoundedLevenshtein(strings.ToLower(n.Name), lowered, maxDistance); ok {
				hits = append(hits, hit{node: n, dist: dist})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].node.ID < hits[j].node.ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	nodes := make([]*graph.GraphNode, len(hits))
	for i, h := range hits {
		nodes[i] = h.node
	}
	return nodes, nil
}

// SetEmbedding stores an embedding vector for a node.
func (s *Store) SetEmbedding(ctx context.Context, nodeID string, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	return s.withTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixVector+nodeID), data)
	})
}

// CountEmbeddings returns how many nodes have stored embeddings.
func (s *Store) CountEmbeddings(ctx context.Context) (int, error) {
	count := 0
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixVector, false, func(string, []byte) error {
			count++
			return nil
		})
	})
	return count, err
}

// VectorHit is one vector search result with its cosine similarity.
type VectorHit struct {
	Node  *graph.GraphNode
	Score float64
}

// VectorSearch ranks nodes with stored embeddings by cosine similarity to
// the query vector. Nodes whose embedding dimension differs from the query
// are skipped.
func (s *Store) VectorSearch(ctx context.Context, vector []float32, limit int) ([]VectorHit, error) {
	type scored struct {
		id    string
		score float64
	}
	var results []scored
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixVector, true, func(key string, value []byte) error {
			var stored []float32
			if err := json.Unmarshal(value, &stored); err != nil {
				return err
			}
			score, ok := cosineSimilarity(vector, stored)
			if !ok {
				return nil
			}
			results = append(results, scored{
				id:    strings.TrimPrefix(key, prefixVector),
				score: score,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	hits := make([]VectorHit, 0, len(results))
	for _, r := range results {
		node, err := s.GetNode(ctx, r.id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		hits = append(hits, VectorHit{Node: node, Score: r.score})
	}
	return hits, nil
}

func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

// loadNodes fetches nodes by id, skipping ids whose records vanished.
func (s *Store) loadNodes(ctx context.Context, ids []string) ([]*graph.GraphNode, error) {
	nodes := make([]*graph.GraphNode, 0, len(ids))
	for _, id := range ids {
		n, err := s.GetNode(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
