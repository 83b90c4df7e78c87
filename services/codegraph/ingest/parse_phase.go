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
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/lang"
)

// ProcessParsing parses every file and materializes symbol nodes plus
// DEFINES edges from each File node to the symbols it defines.
//
// Parsing runs in parallel across files, but results are merged into the
// graph in the input file order: each worker writes into its own slot of a
// pre-sized slice, so the graph content is deterministic regardless of
// goroutine scheduling. Files no parser supports are skipped; files that
// fail to parse are logged and skipped rather than failing the pipeline.
func ProcessParsing(ctx context.Context, files []FileEntry, registry *lang.Registry, g *graph.KnowledgeGraph) ([]FileParseData, error) {
	results := make([]*lang.ParseResult, len(files))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for i := range files {
		eg.Go(func() error {
			f := files[i]
			parser, err := registry.ForFile(f.Path)
			if err != nil {
				return nil // unsupported extension
			}
			res, err := parser.Parse(gctx, []byte(f.Content), f.Path)
			if err != nil {
				slog.Warn("parse failed, skipping file",
					slog.String("file", f.Path),
					slog.String("error", err.Error()))
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var parseData []FileParseData
	for i, res := range results {
		if res == nil {
			continue
		}
		f := files[i]
		fileID := graph.GenerateID(graph.LabelFile, f.Path)

		for si := range res.Symbols {
			sym := &res.Symbols[si]
			nodeID := symbolNodeID(f.Path, sym)
			if err := g.AddNode(&graph.GraphNode{
				ID:         nodeID,
				Label:      sym.Kind,
				Name:       sym.Name,
				FilePath:   f.Path,
				StartLine:  sym.StartLine,
				EndLine:    sym.EndLine,
				Content:    sym.Content,
				Signature:  sym.Signature,
				Language:   res.Language,
				ClassName:  sym.ClassName,
				IsExported: sym.IsExported,
				Decorators: sym.Decorators,
			}); err != nil {
				return nil, err
			}
			if err := g.AddRelationship(&graph.GraphRelationship{
				Type:   graph.RelDefines,
				Source: fileID,
				Target: nodeID,
			}); err != nil {
				return nil, err
			}
			countEdge("parse", string(graph.RelDefines))
		}

		parseData = append(parseData, FileParseData{
			FilePath: f.Path,
			Language: res.Language,
			Result:   res,
		})
	}

	return parseData, nil
}
