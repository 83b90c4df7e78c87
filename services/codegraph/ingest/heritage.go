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
	"log/slog"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/index"
	"github.com/AleutianAI/codegraph/services/codegraph/lang"
)

// ProcessHeritage creates EXTENDS and IMPLEMENTS edges from class heritage
// tuples.
//
// Both endpoints resolve by name over Class and Interface nodes. A candidate
// in the same file as the tuple wins; otherwise the lexically smallest node
// id is taken so repeated runs produce the same edge. Tuples whose child or
// parent cannot be found (parent defined in an external package, usually)
// are dropped with a debug log, never an error.
func ProcessHeritage(parseData []FileParseData, g *graph.KnowledgeGraph) {
	idx := index.NewSymbolIndex()
	for _, label := range heritageLabels {
		for _, n := range g.NodesByLabel(label) {
			idx.Add(n)
		}
	}

	for _, fpd := range parseData {
		for _, h := range fpd.Result.Heritage {
			var relType graph.RelType
			switch h.Kind {
			case lang.HeritageExtends:
				relType = graph.RelExtends
			case lang.HeritageImplements:
				relType = graph.RelImplements
			default:
				slog.Warn("unknown heritage kind",
					slog.String("kind", string(h.Kind)),
					slog.String("child", h.ChildName),
					slog.String("file", fpd.FilePath))
				continue
			}

			child := resolveTypeByName(idx, h.ChildName, fpd.FilePath)
			parent := resolveTypeByName(idx, h.ParentName, fpd.FilePath)
			if child == nil || parent == nil {
				slog.Debug("unresolved heritage endpoint",
					slog.String("child", h.ChildName),
					slog.String("parent", h.ParentName),
					slog.String("file", fpd.FilePath))
				continue
			}

			err := g.AddRelationship(&graph.GraphRelationship{
				Type:   relType,
				Source: child.ID,
				Target: parent.ID,
			})
			if err != nil {
				slog.Debug("skipping heritage edge",
					slog.String("child", child.ID),
					slog.String("parent", parent.ID),
					slog.String("error", err.Error()))
				continue
			}
			countEdge("heritage", string(relType))
		}
	}
}

// resolveTypeByName picks the node for a type name, preferring a definition
// in the given file. Candidates from ByName arrive ordered by id, so the
// cross-file fallback is deterministic.
func resolveTypeByName(idx *index.SymbolIndex, name, filePath string) *graph.GraphNode {
	candidates := idx.ByName(name)
	if len(candidates) == 0 {
		return nil
	}
	for _, n := range candidates {
		if n.FilePath == filePath {
			return n
		}
	}
	return candidates[0]
}
