// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lang

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// MaxWalkDepth bounds recursive AST walks against pathological nesting.
const MaxWalkDepth = 200

// Parser extracts a ParseResult from one source file.
//
// Implementations must be safe for concurrent use: each Parse call creates
// its own tree-sitter parser instance internally.
type Parser interface {
	// Parse extracts symbols, imports, calls, type references, and
	// heritage from the given source. Error-tolerant: syntactically
	// invalid input yields partial results with entries in
	// ParseResult.Errors rather than a failure.
	Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error)

	// Language returns the canonical language name.
	Language() string

	// Extensions returns the file extensions this parser handles,
	// including the leading dot.
	Extensions() []string
}

// Registry maps file extensions to parsers.
type Registry struct {
	byExt map[string]Parser
}

// NewRegistry creates a registry over the given parsers. Later parsers win
// extension conflicts.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{byExt: make(map[string]Parser)}
	for _, p := range parsers {
		for _, ext := range p.Extensions() {
			r.byExt[ext] = p
		}
	}
	return r
}

// NewDefaultRegistry creates a registry with every built-in parser.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		NewPythonParser(),
		NewTypeScriptParser(),
		NewJavaScriptParser(),
	)
}

// ForFile returns the parser handling the file's extension, or
// ErrUnsupportedLanguage.
func (r *Registry) ForFile(path string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	p, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, ext)
	}
	return p, nil
}

// Supports reports whether any registered parser handles the file.
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns every registered extension.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	return out
}

// validateContent enforces the size limit and UTF-8 requirement shared by
// all parsers.
func validateContent(content []byte, maxSize int64) error {
	if int64(len(content)) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), maxSize)
	}
	if !utf8.Valid(content) {
		return fmt.Errorf("%w", ErrInvalidContent)
	}
	return nil
}

// hashContent returns the hex sha256 of the content.
func hashContent(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// nodeText returns the source text covered by a node.
func nodeText(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	return string(content[n.StartByte():n.EndByte()])
}

// startLine returns the 1-based starting line of a node.
func startLine(n *sitter.Node) int {
	return int(n.StartPoint().Row + 1)
}

// endLine returns the 1-based ending line of a node.
func endLine(n *sitter.Node) int {
	return int(n.EndPoint().Row + 1)
}

// firstLine returns the first source line of a node's text, used as the
// declaration signature for functions and methods.
func firstLine(n *sitter.Node, content []byte) string {
	text := nodeText(n, content)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// baseTypeName strips generic arguments, array suffixes, and qualifier
// prefixes from a type expression, leaving the bare referenced name:
// "List[Widget]" -> "List", "pkg.Widget[]" -> "Widget".
func baseTypeName(expr string) string {
	s := strings.TrimSpace(expr)
	for _, cut := range []byte{'[', '<', '('} {
		if idx := strings.IndexByte(s, cut); idx >= 0 {
			s = s[:idx]
		}
	}
	s = strings.TrimSuffix(s, "[]")
	if idx := strings.LastIndexByte(s, '.'); idx >= 0 {
		s = s[idx+1:]
	}
	return strings.TrimSpace(s)
}
