// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package walker enumerates the source files of a repository, honoring
// .gitignore rules and a built-in set of directories that never contain
// indexable source.
package walker

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// FileInfo describes one discovered source file.
type FileInfo struct {
	// Path is the repo-relative path with forward slashes.
	Path string

	// AbsPath is the absolute filesystem path.
	AbsPath string

	// Size is the file size in bytes.
	Size int64
}

// Default directories skipped regardless of .gitignore content.
var defaultSkipDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
	"node_modules": true, "__pycache__": true,
	".venv": true, "venv": true, ".tox": true,
	"dist": true, "build": true, ".next": true,
	".codegraph": true, ".idea": true, ".vscode": true,
}

// SkipDir reports whether a directory with the given name is never
// indexed, regardless of .gitignore content.
func SkipDir(name string) bool {
	return defaultSkipDirs[name] || strings.HasPrefix(name, ".")
}

// Option configures a Walker.
type Option func(*Walker)

// WithExtensions restricts results to files with the given extensions
// (leading dot, lowercase). Empty means every file.
func WithExtensions(exts []string) Option {
	return func(w *Walker) {
		w.exts = make(map[string]bool, len(exts))
		for _, ext := range exts {
			w.exts[strings.ToLower(ext)] = true
		}
	}
}

// WithMaxFileSize skips files larger than the given size. Zero disables
// the check.
func WithMaxFileSize(bytes int64) Option {
	return func(w *Walker) {
		w.maxFileSize = bytes
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Walker) {
		if l != nil {
			w.logger = l
		}
	}
}

// Walker enumerates repository source files.
//
// Thread Safety: a Walker is immutable after construction; Walk may be
// called concurrently.
type Walker struct {
	exts        map[string]bool
	maxFileSize int64
	logger      *slog.Logger
}

// New creates a Walker with the given options.
func New(opts ...Option) *Walker {
	w := &Walker{logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk returns every matching file under root in lexical order.
//
// A .gitignore at the repository root is honored when present; nested
// .gitignore files are not consulted. Results use repo-relative paths with
// forward slashes so node ids stay identical across platforms.
func (w *Walker) Walk(ctx context.Context, root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if info, err := os.Stat(absRoot); err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", absRoot)
	}

	var matcher *ignore.GitIgnore
	gitignorePath := filepath.Join(absRoot, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		matcher, err = ignore.CompileIgnoreFile(gitignorePath)
		if err != nil {
			w.logger.Warn("failed to parse .gitignore, continuing without it",
				slog.String("path", gitignorePath),
				slog.String("error", err.Error()))
			matcher = nil
		}
	}

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping unreadable path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			if matcher != nil && matcher.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if matcher != nil && matcher.MatchesPath(rel) {
			return nil
		}
		if len(w.exts) > 0 && !w.exts[strings.ToLower(filepath.Ext(rel))] {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		if w.maxFileSize > 0 && info.Size() > w.maxFileSize {
			w.logger.Debug("skipping oversize file",
				slog.String("path", rel),
				slog.Int64("size_bytes", info.Size()))
			return nil
		}

		files = append(files, FileInfo{Path: rel, AbsPath: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absRoot, err)
	}

	return files, nil
}
