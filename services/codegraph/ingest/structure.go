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
	"path"
	"sort"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

// ProcessStructure builds File and Folder nodes plus CONTAINS edges from the
// file list.
//
// Every file entry produces a File node; every unique ancestor directory
// produces a Folder node. Parent-to-child folder containment and
// folder-to-file containment are expressed as CONTAINS edges. Nodes and
// relationships are added, never removed.
func ProcessStructure(files []FileEntry, g *graph.KnowledgeGraph) error {
	folderSet := make(map[string]bool)
	for _, f := range files {
		for dir := path.Dir(f.Path); dir != "." && dir != "/"; dir = path.Dir(dir) {
			folderSet[dir] = true
		}
	}

	// Sorted iteration keeps node insertion order, and therefore storage
	// output, identical across runs.
	folders := make([]string, 0, len(folderSet))
	for dir := range folderSet {
		folders = append(folders, dir)
	}
	sort.Strings(folders)

	for _, dir := range folders {
		folderID := graph.GenerateID(graph.LabelFolder, dir)
		if g.HasNode(folderID) {
			continue
		}
		if err := g.AddNode(&graph.GraphNode{
			ID:       folderID,
			Label:    graph.LabelFolder,
			Name:     path.Base(dir),
			FilePath: dir,
		}); err != nil {
			return err
		}
	}

	for _, f := range files {
		if err := g.AddNode(&graph.GraphNode{
			ID:       graph.GenerateID(graph.LabelFile, f.Path),
			Label:    graph.LabelFile,
			Name:     path.Base(f.Path),
			FilePath: f.Path,
			Content:  f.Content,
			Language: f.Language,
		}); err != nil {
			return err
		}
	}

	// Folder -> Folder containment.
	for _, dir := range folders {
		parent := path.Dir(dir)
		if parent == "." || parent == "/" {
			continue
		}
		if err := g.AddRelationship(&graph.GraphRelationship{
			Type:   graph.RelContains,
			Source: graph.GenerateID(graph.LabelFolder, parent),
			Target: graph.GenerateID(graph.LabelFolder, dir),
		}); err != nil {
			return err
		}
		countEdge("structure", string(graph.RelContains))
	}

	// Folder -> File containment. Root-level files have no containing folder.
	for _, f := range files {
		parent := path.Dir(f.Path)
		if parent == "." || parent == "/" {
			continue
		}
		if err := g.AddRelationship(&graph.GraphRelationship{
			Type:   graph.RelContains,
			Source: graph.GenerateID(graph.LabelFolder, parent),
			Target: graph.GenerateID(graph.LabelFile, f.Path),
		}); err != nil {
			return err
		}
		countEdge("structure", string(graph.RelContains))
	}

	return nil
}
