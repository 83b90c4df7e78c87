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
)

// ProcessTypeRefs creates USES_TYPE edges from type annotations to the
// user-defined types they name.
//
// The source is the symbol whose line span contains the annotation; module
// level annotations outside any symbol are skipped. The target resolves by
// name over Class, Interface, TypeAlias, and Enum nodes with the usual
// same-file-first, then smallest-id preference. Builtin and external type
// names were already filtered during parsing, so an unresolved name here
// just means the type lives outside the repository.
func ProcessTypeRefs(parseData []FileParseData, g *graph.KnowledgeGraph) {
	targets := index.NewSymbolIndex()
	for _, label := range typeTargetLabels {
		for _, n := range g.NodesByLabel(label) {
			targets.Add(n)
		}
	}
	sources := index.NewSymbolIndex()
	for _, label := range graph.SymbolLabels {
		for _, n := range g.NodesByLabel(label) {
			sources.Add(n)
		}
	}

	for _, fpd := range parseData {
		for _, ref := range fpd.Result.TypeRefs {
			containing := sources.ContainingSymbol(fpd.FilePath, ref.StartLine)
			if containing == nil {
				continue
			}

			target := resolveTypeByName(targets, ref.Name, fpd.FilePath)
			if target == nil || target.ID == containing.ID {
				continue
			}

			err := g.AddRelationship(&graph.GraphRelationship{
				Type:   graph.RelUsesType,
				Source: containing.ID,
				Target: target.ID,
				Props:  graph.TypeUseProps{Role: ref.Role},
			})
			if err != nil {
				slog.Debug("skipping uses_type edge",
					slog.String("source", containing.ID),
					slog.String("target", target.ID),
					slog.String("error", err.Error()))
				continue
			}
			countEdge("types", string(graph.RelUsesType))
		}
	}
}
