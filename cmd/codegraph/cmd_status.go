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
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/codegraph/services/codegraph/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show index stats for a repository",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatusCommand,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all indexed repositories",
	Args:  cobra.NoArgs,
	RunE:  runListCommand,
}

func runStatusCommand(_ *cobra.Command, args []string) error {
	repoRoot, err := resolveRepoPath(args)
	if err != nil {
		return err
	}

	registry, err := storage.NewRegistry(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	meta, err := registry.ReadMeta(repoRoot)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Printf("%s is not indexed. Run `codegraph analyze %s` first.\n", repoRoot, repoRoot)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Repository: %s\n", repoRoot)
	fmt.Printf("Last indexed: %s\n\n", meta.LastIndexed)
	fmt.Printf("  Files:         %d\n", meta.Stats.Files)
	fmt.Printf("  Symbols:       %d\n", meta.Stats.Symbols)
	fmt.Printf("  Relationships: %d\n", meta.Stats.Relationships)
	fmt.Printf("  Communities:   %d\n", meta.Stats.Clusters)
	fmt.Printf("  Flows:         %d\n", meta.Stats.Flows)
	fmt.Printf("  Dead symbols:  %d\n", meta.Stats.DeadCode)
	fmt.Printf("  Coupled pairs: %d\n", meta.Stats.CoupledPairs)
	fmt.Printf("  Embeddings:    %d\n", meta.Stats.Embeddings)
	return nil
}

func runListCommand(_ *cobra.Command, _ []string) error {
	registry, err := storage.NewRegistry(cfg.Storage.DataDir)
	if err != nil {
		return err
	}
	repos, err := registry.List()
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		fmt.Println("No indexed repositories. Run `codegraph analyze` on a project first.")
		return nil
	}

	fmt.Printf("Indexed repositories (%d):\n\n", len(repos))
	for i, info := range repos {
		fmt.Printf("%d. %s\n", i+1, info.Root)
		fmt.Printf("   Files: %d  Symbols: %d  Relationships: %d\n",
			info.Meta.Stats.Files, info.Meta.Stats.Symbols, info.Meta.Stats.Relationships)
		fmt.Printf("   Last indexed: %s\n", info.Meta.LastIndexed)
	}
	return nil
}
