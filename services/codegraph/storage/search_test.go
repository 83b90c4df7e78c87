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

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"transform", []string{"transform"}},
		{"parse_row", []string{"parse", "row", "parse_row"}},
		{"parseRow", []string{"parse", "row", "parserow"}},
		{"HTTPServer", []string{"http", "server", "httpserver"}},
		{"", nil},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, tokenize(tc.in))
		})
	}
}

func searchFixture(t *testing.T) (*Store, context.Context) {
	t.Helper()
	s := newTestStore(t)
	ctx := context.Background()

	g := graph.NewKnowledgeGraph()
	for _, spec := range []struct{ name, file string }{
		{"transform_record", "app/etl.py"},
		{"transform_batch", "app/etl.py"},
		{"send_email", "app/mail.py"},
	} {
		require.NoError(t, g.AddNode(testFunction(spec.name, spec.file)))
	}
	require.NoError(t, s.BulkLoad(ctx, g))
	require.NoError(t, s.RebuildFTSIndexes(ctx))
	return s, ctx
}

func TestFTSSearch(t *testing.T) {
	s, ctx := searchFixture(t)

	t.Run("exact token", func(t *testing.T) {
		hits, err := s.FTSSearch(ctx, "transform", 10)
		require.NoError(t, err)
		require.Len(t, hits, 2)
	})

	t.Run("token prefix", func(t *testing.T) {
		hits, err := s.FTSSearch(ctx, "trans", 10)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("multi token ranks full match first", func(t *testing.T) {
		hits, err := s.FTSSearch(ctx, "transform batch", 10)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, "transform_batch", hits[0].Name)
	})

	t.Run("limit", func(t *testing.T) {
		hits, err := s.FTSSearch(ctx, "transform", 1)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("no match", func(t *testing.T) {
		hits, err := s.FTSSearch(ctx, "zzzzz", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestFTSSearchAfterRemoval(t *testing.T) {
	s, ctx := searchFixture(t)

	_, err := s.RemoveNodesByFile(ctx, "app/mail.py")
	require.NoError(t, err)

	hits, err := s.FTSSearch(ctx, "email", 10)
	require.NoError(t, err)
	assert.Empty(t, hits, "tokens are cleaned up with the node")
}

func TestFuzzySearch(t *testing.T) {
	s, ctx := searchFixture(t)

	hits, err := s.FuzzySearch(ctx, "transform_recrod", 10, 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "transform_record", hits[0].Name)

	none, err := s.FuzzySearch(ctx, "completely_unrelated", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestVectorSearch(t *testing.T) {
	s, ctx := searchFixture(t)

	near := graph.GenerateID(graph.LabelFunction, "app/etl.py", "transform_record")
	far := graph.GenerateID(graph.LabelFunction, "app/mail.py", "send_email")
	require.NoError(t, s.SetEmbedding(ctx, near, []float32{1, 0, 0}))
	require.NoError(t, s.SetEmbedding(ctx, far, []float32{0, 1, 0}))

	count, err := s.CountEmbeddings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	hits, err := s.VectorSearch(ctx, []float32{0.9, 0.1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, near, hits[0].Node.ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	top, err := s.VectorSearch(ctx, []float32{0.9, 0.1, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}
