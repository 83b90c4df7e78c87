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
	"path"
	"sort"
	"strings"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/lang"
)

// Index-file and extension candidates tried when an import path omits them.
var importSuffixes = []string{
	"", ".py", ".pyi", ".ts", ".tsx", ".js", ".jsx", ".mts", ".mjs",
	"/__init__.py", "/index.ts", "/index.tsx", "/index.js", "/index.jsx",
}

// ProcessImports resolves raw import statements to repository files and
// creates file-to-file IMPORTS edges carrying the imported symbol names and
// an edge role ("module" or "symbol").
//
// Imports of external packages (nothing in the repository matches) are
// skipped silently; that is the common case, not an error.
func ProcessImports(parseData []FileParseData, g *graph.KnowledgeGraph) {
	fileSet := make(map[string]bool)
	var filePaths []string
	for _, n := range g.NodesByLabel(graph.LabelFile) {
		fileSet[n.FilePath] = true
		filePaths = append(filePaths, n.FilePath)
	}
	sort.Strings(filePaths)

	for _, fpd := range parseData {
		sourceID := graph.GenerateID(graph.LabelFile, fpd.FilePath)
		for _, imp := range fpd.Result.Imports {
			target := resolveImportPath(imp, fpd.FilePath, fileSet, filePaths)
			if target == "" || target == fpd.FilePath {
				continue
			}

			role := "module"
			if len(imp.Symbols) > 0 {
				role = "symbol"
			}
			err := g.AddRelationship(&graph.GraphRelationship{
				Type:   graph.RelImports,
				Source: sourceID,
				Target: graph.GenerateID(graph.LabelFile, target),
				Props:  graph.ImportProps{Symbols: imp.Symbols, Role: role},
			})
			if err != nil {
				slog.Debug("skipping import edge",
					slog.String("file", fpd.FilePath),
					slog.String("module", imp.ModulePath),
					slog.String("error", err.Error()))
				continue
			}
			countEdge("imports", string(graph.RelImports))
		}
	}
}

// resolveImportPath maps one import statement to a repository file path, or
// "" when the import is external.
//
// Relative imports resolve against the importing file's directory. Absolute
// module paths are tried as repo-rooted paths first, then by longest-suffix
// match against the file list to handle src-layout roots; suffix ties go to
// the shortest, lexically smallest path.
func resolveImportPath(imp lang.ImportStatement, fromFile string, fileSet map[string]bool, filePaths []string) string {
	module := imp.ModulePath
	if module == "" {
		return ""
	}

	if imp.IsRelative {
		return resolveRelative(module, fromFile, fileSet)
	}

	// Dotted module notation (Python) becomes a path.
	slashed := strings.ReplaceAll(module, ".", "/")
	for _, suffix := range importSuffixes {
		if candidate := slashed + suffix; fileSet[candidate] {
			return candidate
		}
	}

	// Suffix match for repositories whose import root is a subdirectory.
	var best string
	for _, fp := range filePaths {
		for _, suffix := range importSuffixes {
			if suffix == "" {
				continue
			}
			if strings.HasSuffix(fp, "/"+slashed+suffix) {
				if best == "" || len(fp) < len(best) || (len(fp) == len(best) && fp < best) {
					best = fp
				}
			}
		}
	}
	return best
}

// resolveRelative handles "./x" and "../x" (JS/TS) and "."-prefixed Python
// relative modules (".sibling", "..utils.helpers").
func resolveRelative(module, fromFile string, fileSet map[string]bool) string {
	dir := path.Dir(fromFile)

	var rel string
	if strings.HasPrefix(module, "./") || strings.HasPrefix(module, "../") {
		rel = path.Join(dir, module)
	} else if strings.HasPrefix(module, ".") {
		// Python: each leading dot beyond the first climbs one directory.
		trimmed := strings.TrimLeft(module, ".")
		climb := len(module) - len(trimmed) - 1
		base := dir
		for i := 0; i < climb; i++ {
			base = path.Dir(base)
		}
		if trimmed == "" {
			rel = base
		} else {
			rel = path.Join(base, strings.ReplaceAll(trimmed, ".", "/"))
		}
	} else {
		rel = path.Join(dir, module)
	}

	rel = path.Clean(rel)
	for _, suffix := range importSuffixes {
		if candidate := rel + suffix; fileSet[candidate] {
			return candidate
		}
	}
	return ""
}
