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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryMetaRoundTrip(t *testing.T) {
	base := t.TempDir()
	repo := t.TempDir()

	reg, err := NewRegistry(base)
	require.NoError(t, err)

	meta := NewMeta(Stats{Files: 12, Symbols: 80, Relationships: 200, DeadCode: 3})
	require.NoError(t, reg.WriteMeta(repo, meta))

	got, err := reg.ReadMeta(repo)
	require.NoError(t, err)
	assert.Equal(t, MetaVersion, got.Version)
	assert.Equal(t, meta.Stats, got.Stats)

	// Timestamp is ISO-8601.
	_, err = time.Parse(time.RFC3339, got.LastIndexed)
	assert.NoError(t, err)
}

func TestRegistryReadMetaUnindexed(t *testing.T) {
	reg, err := NewRegistry(t.TempDir())
	require.NoError(t, err)

	_, err = reg.ReadMeta(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRegistryList(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base)
	require.NoError(t, err)

	repoA := t.TempDir()
	repoB := t.TempDir()
	require.NoError(t, reg.WriteMeta(repoA, NewMeta(Stats{Files: 1})))
	require.NoError(t, reg.WriteMeta(repoB, NewMeta(Stats{Files: 2})))

	repos, err := reg.List()
	require.NoError(t, err)
	require.Len(t, repos, 2)

	roots := map[string]int{}
	for _, info := range repos {
		roots[info.Root] = info.Meta.Stats.Files
	}
	absA, _ := filepath.Abs(repoA)
	absB, _ := filepath.Abs(repoB)
	assert.Equal(t, 1, roots[absA])
	assert.Equal(t, 2, roots[absB])
}

func TestRegistryListDropsStaleEntries(t *testing.T) {
	base := t.TempDir()
	reg, err := NewRegistry(base)
	require.NoError(t, err)

	repo := filepath.Join(t.TempDir(), "checkout")
	require.NoError(t, os.MkdirAll(repo, 0o755))
	require.NoError(t, reg.WriteMeta(repo, NewMeta(Stats{Files: 1})))

	require.NoError(t, os.RemoveAll(repo))

	repos, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, repos)

	// The registry directory itself was cleaned up.
	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRegistrySlugsDistinguishSameName(t *testing.T) {
	parentA := t.TempDir()
	parentB := t.TempDir()
	repoA := filepath.Join(parentA, "service")
	repoB := filepath.Join(parentB, "service")
	require.NoError(t, os.MkdirAll(repoA, 0o755))
	require.NoError(t, os.MkdirAll(repoB, 0o755))

	reg, err := NewRegistry(t.TempDir())
	require.NoError(t, err)

	dirA, err := reg.DataDir(repoA)
	require.NoError(t, err)
	dirB, err := reg.DataDir(repoB)
	require.NoError(t, err)
	assert.NotEqual(t, dirA, dirB)
}
