// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// codegraph indexes a source repository into a local knowledge graph and
// serves it to AI agents.
//
// Usage:
//
//	codegraph analyze [path]    index a repository
//	codegraph status [path]     show index stats for a repository
//	codegraph list              list all indexed repositories
//	codegraph watch [path]      index, then reindex on file changes
//	codegraph serve [path]      serve the MCP tools over stdio
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codegraph/services/codegraph/config"
	"github.com/AleutianAI/codegraph/services/codegraph/storage"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// configPath holds the --config flag value.
var configPath string

// cfg is the resolved configuration, populated before any command runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:          "codegraph",
	Short:        "Index a repository into a code knowledge graph",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = "codegraph.yaml"
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		slog.SetDefault(cfg.Logging.NewLogger())
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to codegraph.yaml (default: ./codegraph.yaml if present)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveRepoPath turns an optional positional argument into an absolute
// repository root, defaulting to the working directory.
func resolveRepoPath(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat %q: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%q is not a directory", abs)
	}
	return abs, nil
}

// openRepoStore opens (or creates) the BadgerDB database registered for the
// given repository root. The caller owns the returned store.
func openRepoStore(repoRoot string) (*storage.Store, *storage.Registry, error) {
	registry, err := storage.NewRegistry(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, err
	}
	dataDir, err := registry.DataDir(repoRoot)
	if err != nil {
		return nil, nil, err
	}

	storeCfg := storage.DefaultConfig()
	storeCfg.Path = dataDir
	storeCfg.SyncWrites = cfg.Storage.SyncWrites
	storeCfg.GCInterval = cfg.Storage.GCInterval
	storeCfg.Logger = slog.Default()

	store, err := storage.Open(storeCfg)
	if err != nil {
		return nil, nil, err
	}
	return store, registry, nil
}
