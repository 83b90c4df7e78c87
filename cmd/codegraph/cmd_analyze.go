// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codegraph/services/codegraph/gitlog"
	"github.com/AleutianAI/codegraph/services/codegraph/ingest"
	"github.com/AleutianAI/codegraph/services/codegraph/lang"
	"github.com/AleutianAI/codegraph/services/codegraph/storage"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Index a repository into the knowledge graph",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyzeCommand,
}

func runAnalyzeCommand(_ *cobra.Command, args []string) error {
	repoRoot, err := resolveRepoPath(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, registry, err := openRepoStore(repoRoot)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	fmt.Printf("Indexing %s\n", repoRoot)
	pipeline := buildPipeline(store, consoleProgress)
	result, err := pipeline.Run(ctx, repoRoot)
	if err != nil {
		return err
	}

	if err := writeMeta(ctx, registry, store, repoRoot, result); err != nil {
		return err
	}

	fmt.Printf("\nIndexed %d files, %d symbols, %d relationships in %.1fs\n",
		result.Files, result.Symbols, result.Relationships, result.DurationSeconds)
	fmt.Printf("Communities: %d  Flows: %d  Dead symbols: %d  Coupled pairs: %d\n",
		result.Clusters, result.Processes, result.DeadCode, result.CoupledPairs)
	return nil
}

// buildPipeline wires the configured walker, parser registry, git miner, and
// storage backend into an ingestion pipeline.
func buildPipeline(store *storage.Store, progress ingest.ProgressFunc) *ingest.Pipeline {
	return ingest.NewPipeline(lang.NewDefaultRegistry(),
		ingest.WithStorage(store),
		ingest.WithProgress(progress),
		ingest.WithPipelineLogger(slog.Default()),
		ingest.WithGitMiner(gitlog.NewMiner(
			gitlog.WithMaxCommits(cfg.Git.MaxCommits),
			gitlog.WithLogger(slog.Default()))),
		ingest.WithMaxFileSize(cfg.Walker.MaxFileSize),
	)
}

// consoleProgress prints one line per pipeline phase.
func consoleProgress(phase string, fraction float64) {
	switch {
	case fraction <= 0:
		fmt.Printf("  %-28s", phase)
	case fraction >= 1:
		fmt.Println("done")
	}
}

// writeMeta records index stats in the repository registry.
func writeMeta(ctx context.Context, registry *storage.Registry, store *storage.Store, repoRoot string, result *ingest.PipelineResult) error {
	embeddings, err := store.CountEmbeddings(ctx)
	if err != nil {
		return err
	}
	return registry.WriteMeta(repoRoot, storage.NewMeta(storage.Stats{
		Files:         result.Files,
		Symbols:       result.Symbols,
		Relationships: result.Relationships,
		Clusters:      result.Clusters,
		Flows:         result.Processes,
		DeadCode:      result.DeadCode,
		CoupledPairs:  result.CoupledPairs,
		Embeddings:    embeddings,
	}))
}
