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
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codegraph/services/codegraph/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Serve the knowledge graph to MCP clients over stdio",
	Long: "Serve the knowledge graph of an indexed repository to MCP clients " +
		"over stdio. Logs go to stderr; stdout carries the protocol.",
	Args: cobra.MaximumNArgs(1),
	RunE: runServeCommand,
}

func runServeCommand(_ *cobra.Command, args []string) error {
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

	mcpserver.Version = version
	server := mcpserver.New(store, registry, repoRoot,
		mcpserver.WithLogger(slog.Default()))
	return server.Run(ctx)
}
