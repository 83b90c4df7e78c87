// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest implements the knowledge-graph ingestion pipeline: the
// ordered phases that turn a repository's source tree into nodes and
// relationships, plus the orchestrator that sequences them and loads the
// result into storage.
package ingest

import (
	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/lang"
)

// FileEntry is one source file handed to the pipeline: relative path,
// raw content, and detected language.
type FileEntry struct {
	Path     string
	Content  string
	Language string
}

// FileParseData pairs a file with its parse result. Produced by the parsing
// phase and consumed read-only by every later file-local phase; never
// persisted.
type FileParseData struct {
	FilePath string
	Language string
	Result   *lang.ParseResult
}

// Labels eligible as call targets and dead-code candidates.
var callableLabels = []graph.NodeLabel{
	graph.LabelFunction,
	graph.LabelMethod,
	graph.LabelClass,
}

// Labels eligible as flow entry points and steps.
var flowLabels = []graph.NodeLabel{
	graph.LabelFunction,
	graph.LabelMethod,
}

// Labels participating in heritage relationships.
var heritageLabels = []graph.NodeLabel{
	graph.LabelClass,
	graph.LabelInterface,
}

// Labels a type annotation can resolve to.
var typeTargetLabels = []graph.NodeLabel{
	graph.LabelClass,
	graph.LabelInterface,
	graph.LabelTypeAlias,
	graph.LabelEnum,
}

// symbolNodeID builds the deterministic node id for a parsed symbol,
// class-qualifying method names.
func symbolNodeID(filePath string, sym *lang.ParsedSymbol) string {
	qualified := sym.Name
	if sym.Kind == graph.LabelMethod && sym.ClassName != "" {
		qualified = graph.QualifyName(sym.Name, sym.ClassName)
	}
	return graph.GenerateID(sym.Kind, filePath, qualified)
}
