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

	"github.com/AleutianAI/codegraph/services/codegraph/lang"
	"github.com/AleutianAI/codegraph/services/codegraph/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Index a repository, then reindex changed files as they are saved",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatchCommand,
}

func runWatchCommand(_ *cobra.Command, args []string) error {
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

	// Full index first so the watch loop starts from a consistent graph.
	fmt.Printf("Indexing %s\n", repoRoot)
	pipeline := buildPipeline(store, consoleProgress)
	result, err := pipeline.Run(ctx, repoRoot)
	if err != nil {
		return err
	}
	if err := writeMeta(ctx, registry, store, repoRoot, result); err != nil {
		return err
	}
	fmt.Printf("\nIndexed %d files, %d symbols. Watching for changes (Ctrl-C to stop).\n",
		result.Files, result.Symbols)

	reindex := func(ctx context.Context, files []string) error {
		_, res, err := pipeline.ReindexFiles(ctx, repoRoot, files)
		if err != nil {
			return err
		}
		fmt.Printf("Reindexed %d files (%d symbols) in %.1fs\n",
			len(files), res.Symbols, res.DurationSeconds)
		return nil
	}

	watcher, err := watch.New(repoRoot, reindex,
		watch.WithDebounce(cfg.Watch.Debounce),
		watch.WithExtensions(lang.NewDefaultRegistry().Extensions()),
		watch.WithLogger(slog.Default()))
	if err != nil {
		return err
	}
	return watcher.Run(ctx)
}
