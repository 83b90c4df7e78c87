// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/AleutianAI/codegraph/services/codegraph/gitlog"
	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

const (
	// couplingMinCoChanges filters noise: pairs that changed together fewer
	// times than this carry no signal.
	couplingMinCoChanges = 3
	// couplingMaxCommitFiles skips bulk commits (formatting sweeps, vendored
	// imports) whose co-change pairs say nothing about logical coupling.
	couplingMaxCommitFiles = 50
)

// ProcessCoupling mines git history for files that change together and
// creates COUPLED_WITH edges between their File nodes. Returns the number of
// coupled pairs created.
//
// Strength is the co-change count divided by the larger of the two files'
// total change counts, so a pair scores 1.0 only when neither file ever
// changes without the other. Pairs below couplingMinCoChanges co-changes are
// dropped. A missing or empty git repository skips the phase silently.
func ProcessCoupling(ctx context.Context, miner *gitlog.Miner, repoPath string, g *graph.KnowledgeGraph) (int, error) {
	commits, err := miner.Commits(ctx, repoPath)
	if err != nil {
		if errors.Is(err, gitlog.ErrNotARepo) {
			slog.Info("not a git repository, skipping coupling analysis",
				slog.String("path", repoPath))
			return 0, nil
		}
		return 0, err
	}

	indexed := make(map[string]bool)
	for _, n := range g.NodesByLabel(graph.LabelFile) {
		indexed[n.FilePath] = true
	}

	coChanges := gitlog.CoChangeCounts(commits, indexed, couplingMaxCommitFiles)
	fileChanges := gitlog.FileChangeCounts(commits, indexed, couplingMaxCommitFiles)

	// Deterministic edge order.
	pairs := make([][2]string, 0, len(coChanges))
	for pair, count := range coChanges {
		if count >= couplingMinCoChanges {
			pairs = append(pairs, pair)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	created := 0
	for _, pair := range pairs {
		count := coChanges[pair]
		denom := fileChanges[pair[0]]
		if fileChanges[pair[1]] > denom {
			denom = fileChanges[pair[1]]
		}
		if denom == 0 {
			continue
		}

		err := g.AddRelationship(&graph.GraphRelationship{
			Type:   graph.RelCoupledWith,
			Source: graph.GenerateID(graph.LabelFile, pair[0]),
			Target: graph.GenerateID(graph.LabelFile, pair[1]),
			Props: graph.CouplingProps{
				Strength:  float64(count) / float64(denom),
				CoChanges: count,
			},
		})
		if err != nil {
			slog.Debug("skipping coupling edge",
				slog.String("a", pair[0]),
				slog.String("b", pair[1]),
				slog.String("error", err.Error()))
			continue
		}
		countEdge("coupling", string(graph.RelCoupledWith))
		created++
	}

	return created, nil
}
