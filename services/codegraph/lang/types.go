// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lang provides tree-sitter based source parsers for the languages
// codegraph understands (Python, TypeScript, JavaScript) and the
// language-agnostic ParseResult model every ingestion phase consumes.
package lang

import (
	"errors"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

// DefaultMaxFileSize is the largest file a parser accepts by default (10MB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// WarnFileSize is the threshold above which parsing logs a warning (1MB).
const WarnFileSize = 1 * 1024 * 1024

var (
	// ErrFileTooLarge is returned when content exceeds the parser's limit.
	ErrFileTooLarge = errors.New("lang: file exceeds maximum size")

	// ErrInvalidContent is returned for content that is not valid UTF-8.
	ErrInvalidContent = errors.New("lang: content is not valid UTF-8")

	// ErrUnsupportedLanguage is returned when no parser handles a file.
	ErrUnsupportedLanguage = errors.New("lang: unsupported language")
)

// HeritageKind distinguishes class inheritance from interface implementation.
type HeritageKind string

const (
	HeritageExtends    HeritageKind = "extends"
	HeritageImplements HeritageKind = "implements"
)

// ParsedSymbol is a code entity extracted from a source file.
type ParsedSymbol struct {
	// Name is the symbol name.
	Name string

	// Kind is the node label the symbol materializes as.
	Kind graph.NodeLabel

	// StartLine and EndLine delimit the definition span (1-based).
	StartLine int
	EndLine   int

	// Content is the raw source of the definition.
	Content string

	// Signature is the declaration line for functions and methods.
	Signature string

	// ClassName is the owning class for methods, empty otherwise.
	ClassName string

	// IsExported reports whether the symbol is visible outside its module.
	IsExported bool

	// Decorators holds decorator/attribute names, outermost first.
	Decorators []string
}

// ImportStatement is a raw import extracted from a source file.
type ImportStatement struct {
	// ModulePath is the imported module path as written in source.
	ModulePath string

	// Symbols lists the imported names, empty for whole-module imports.
	Symbols []string

	// Alias is the local binding name, if the import renames.
	Alias string

	// IsRelative marks relative imports ("./x", "from . import y").
	IsRelative bool

	// StartLine is the line of the import statement (1-based).
	StartLine int
}

// CallSite is a raw call or attribute-invocation expression.
type CallSite struct {
	// Name is the called name. Dotted for attribute chains the parser
	// could not split into receiver + leaf.
	Name string

	// Receiver is the receiver token for method-style calls ("self",
	// "this", a variable name), empty for bare calls.
	Receiver string

	// StartLine is the line of the call expression (1-based).
	StartLine int

	// Args lists bare-identifier arguments, in order. Used for the
	// callback-passing heuristic; literals and complex expressions are
	// not recorded.
	Args []string
}

// TypeRef is a type annotation occurrence.
type TypeRef struct {
	// Name is the referenced type name (generics stripped to the base).
	Name string

	// Role is where the annotation appears: "parameter", "return",
	// "field", or "variable".
	Role string

	// StartLine is the line of the annotation (1-based).
	StartLine int
}

// HeritageTuple records one extends/implements relation as written.
type HeritageTuple struct {
	// ChildName is the declaring class or interface name.
	ChildName string

	// Kind is extends or implements.
	Kind HeritageKind

	// ParentName is the referenced base name as written in source.
	ParentName string
}

// ParseResult is everything a parser extracts from one source file.
type ParseResult struct {
	// FilePath is the repo-relative path that was parsed.
	FilePath string

	// Language is the parser's language name.
	Language string

	// Hash is the hex sha256 of the parsed content.
	Hash string

	Symbols  []ParsedSymbol
	Imports  []ImportStatement
	Calls    []CallSite
	TypeRefs []TypeRef
	Heritage []HeritageTuple

	// Errors holds non-fatal extraction problems (syntax errors yield
	// partial results rather than failures).
	Errors []string
}
