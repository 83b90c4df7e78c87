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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MetaVersion is the stored graph schema version. Bump when the key scheme
// or record shapes change incompatibly.
const MetaVersion = "1"

// metaFileName is the sidecar written next to the database after each
// successful full index; the status and list surfaces read it instead of
// opening the database.
const metaFileName = "meta.json"

// repoFileName records which repository a registry entry belongs to.
const repoFileName = "repo.json"

// Stats are the aggregate counts from the last successful index.
type Stats struct {
	Files         int `json:"files"`
	Symbols       int `json:"symbols"`
	Relationships int `json:"relationships"`
	Clusters      int `json:"clusters"`
	Flows         int `json:"flows"`
	DeadCode      int `json:"dead_code"`
	CoupledPairs  int `json:"coupled_pairs"`
	Embeddings    int `json:"embeddings"`
}

// Meta is the sidecar metadata record for one indexed repository.
type Meta struct {
	Version     string `json:"version"`
	Stats       Stats  `json:"stats"`
	LastIndexed string `json:"last_indexed"`
}

// NewMeta builds a Meta stamped with the current UTC time in ISO-8601.
func NewMeta(stats Stats) Meta {
	return Meta{
		Version:     MetaVersion,
		Stats:       stats,
		LastIndexed: time.Now().UTC().Format(time.RFC3339),
	}
}

// repoRecord ties a registry directory back to the repository it indexes.
type repoRecord struct {
	Root string `json:"root"`
}

// Registry maps repository roots to per-repository data directories under a
// base directory (defaults to ~/.codegraph/repos).
//
// Directory names are the repository's base name plus a short hash of its
// absolute path, so two checkouts with the same name never collide and the
// mapping is stable across runs.
type Registry struct {
	baseDir string
}

// NewRegistry creates a registry rooted at baseDir. An empty baseDir uses
// ~/.codegraph/repos.
func NewRegistry(baseDir string) (*Registry, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".codegraph", "repos")
	}
	return &Registry{baseDir: baseDir}, nil
}

// slugFor builds the registry directory name for a repository root.
func slugFor(absRoot string) string {
	base := filepath.Base(absRoot)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('-')
		}
	}
	sum := sha256.Sum256([]byte(absRoot))
	return b.String() + "-" + hex.EncodeToString(sum[:4])
}

// DataDir returns (creating if needed) the data directory for a repository
// root and records the root in the registry entry.
func (r *Registry) DataDir(repoRoot string) (string, error) {
	absRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return "", fmt.Errorf("resolve repository root: %w", err)
	}

	dir := filepath.Join(r.baseDir, slugFor(absRoot))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}

	data, err := json.MarshalIndent(repoRecord{Root: absRoot}, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, repoFileName), data, 0640); err != nil {
		return "", fmt.Errorf("write registry record: %w", err)
	}
	return dir, nil
}

// WriteMeta persists the sidecar for a repository into its data directory.
func (r *Registry) WriteMeta(repoRoot string, meta Meta) error {
	dir, err := r.DataDir(repoRoot)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, metaFileName), data, 0640); err != nil {
		return fmt.Errorf("write meta sidecar: %w", err)
	}
	return nil
}

// ReadMeta loads the sidecar for a repository. Returns os.ErrNotExist when
// the repository has never been indexed.
func (r *Registry) ReadMeta(repoRoot string) (Meta, error) {
	absRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return Meta{}, err
	}
	data, err := os.ReadFile(filepath.Join(r.baseDir, slugFor(absRoot), metaFileName))
	if err != nil {
		return Meta{}, err
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("parse meta sidecar: %w", err)
	}
	return meta, nil
}

// RepoInfo is one registry entry: the repository root and its last-index
// metadata (zero-valued when the sidecar is missing).
type RepoInfo struct {
	Root    string `json:"root"`
	DataDir string `json:"data_dir"`
	Meta    Meta   `json:"meta"`
}

// List returns all registered repositories, dropping and cleaning up stale
// entries whose repository root no longer exists on disk.
func (r *Registry) List() ([]RepoInfo, error) {
	entries, err := os.ReadDir(r.baseDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var repos []RepoInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(r.baseDir, entry.Name())

		recData, err := os.ReadFile(filepath.Join(dir, repoFileName))
		if err != nil {
			continue
		}
		var rec repoRecord
		if err := json.Unmarshal(recData, &rec); err != nil {
			continue
		}

		// Stale entry: the checkout was deleted or moved.
		if _, err := os.Stat(rec.Root); err != nil {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				return nil, fmt.Errorf("remove stale registry entry %s: %w", dir, rmErr)
			}
			continue
		}

		info := RepoInfo{Root: rec.Root, DataDir: dir}
		if metaData, err := os.ReadFile(filepath.Join(dir, metaFileName)); err == nil {
			_ = json.Unmarshal(metaData, &info.Meta)
		}
		repos = append(repos, info)
	}
	return repos, nil
}
