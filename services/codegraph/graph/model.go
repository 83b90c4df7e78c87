// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the knowledge-graph data model for codegraph.
//
// It defines the node and relationship types that represent code-level
// entities (files, folders, functions, classes, ...) and the typed edges
// between them (contains, defines, calls, extends, ...), plus the mutable
// in-memory KnowledgeGraph every ingestion phase reads and writes.
package graph

import "strings"

// NodeLabel is the entity kind of a graph node.
type NodeLabel string

// Node labels. The set is fixed; storage derives one table per label.
const (
	LabelFile      NodeLabel = "file"
	LabelFolder    NodeLabel = "folder"
	LabelFunction  NodeLabel = "function"
	LabelMethod    NodeLabel = "method"
	LabelClass     NodeLabel = "class"
	LabelInterface NodeLabel = "interface"
	LabelTypeAlias NodeLabel = "type_alias"
	LabelEnum      NodeLabel = "enum"
	LabelCommunity NodeLabel = "community"
	LabelProcess   NodeLabel = "process"
)

// AllLabels lists every valid node label in declaration order.
var AllLabels = []NodeLabel{
	LabelFile, LabelFolder, LabelFunction, LabelMethod, LabelClass,
	LabelInterface, LabelTypeAlias, LabelEnum, LabelCommunity, LabelProcess,
}

// SymbolLabels lists the labels that represent code symbols, i.e. everything
// that is neither structural (File/Folder) nor synthetic (Community/Process).
var SymbolLabels = []NodeLabel{
	LabelFunction, LabelMethod, LabelClass,
	LabelInterface, LabelTypeAlias, LabelEnum,
}

// Valid reports whether the label is one of the fixed enumerated set.
func (l NodeLabel) Valid() bool {
	switch l {
	case LabelFile, LabelFolder, LabelFunction, LabelMethod, LabelClass,
		LabelInterface, LabelTypeAlias, LabelEnum, LabelCommunity, LabelProcess:
		return true
	}
	return false
}

// RelType is the typed edge kind connecting two nodes.
type RelType string

// Relationship types. AddRelationship rejects anything outside this set.
const (
	RelContains      RelType = "contains"
	RelDefines       RelType = "defines"
	RelImports       RelType = "imports"
	RelCalls         RelType = "calls"
	RelExtends       RelType = "extends"
	RelImplements    RelType = "implements"
	RelUsesType      RelType = "uses_type"
	RelMemberOf      RelType = "member_of"
	RelStepInProcess RelType = "step_in_process"
	RelCoupledWith   RelType = "coupled_with"
)

// Valid reports whether the relationship type is one of the fixed set.
func (t RelType) Valid() bool {
	switch t {
	case RelContains, RelDefines, RelImports, RelCalls, RelExtends,
		RelImplements, RelUsesType, RelMemberOf, RelStepInProcess, RelCoupledWith:
		return true
	}
	return false
}

// GraphNode is a node in the knowledge graph.
//
// The ID is deterministic — derived from label, file path, and qualified
// name — so re-parsing unchanged source yields the same ID. That stability
// is what lets incremental reindexing replace nodes instead of duplicating
// them.
//
// Nodes are created once by the phase that first observes the entity and
// mutated in place by later phases (IsDead, IsEntryPoint). They are never
// deleted from the in-memory graph; file-scoped removal happens at the
// storage layer on incremental reindex.
type GraphNode struct {
	// ID is the unique identifier: {label}:{file_path}[:{qualified_name}].
	ID string

	// Label is the entity kind.
	Label NodeLabel

	// Name is the entity name (file name, function name, flow label, ...).
	Name string

	// FilePath is the repo-relative path of the defining file.
	// Empty for synthetic nodes (Community, Process).
	FilePath string

	// StartLine and EndLine delimit the source span (1-based, inclusive).
	StartLine int
	EndLine   int

	// Content is the raw source span for the entity.
	Content string

	// Signature is the declaration signature (functions and methods).
	Signature string

	// Language is the source language ("python", "typescript", ...).
	Language string

	// ClassName is the owning class for methods, empty otherwise.
	ClassName string

	// IsDead is set by dead-code detection for unreachable symbols.
	IsDead bool

	// IsEntryPoint is set by flow detection for execution entry points.
	IsEntryPoint bool

	// IsExported marks symbols visible outside their defining module.
	IsExported bool

	// Decorators holds decorator/attribute names attached to the symbol.
	Decorators []string

	// Properties holds label-specific extras (step_count and kind on
	// Process nodes, size on Community nodes). Nil for most nodes.
	Properties map[string]any
}

// GraphRelationship is a directed, typed edge between two nodes.
//
// The ID is a deterministic composite of type, source, and target, which is
// also the deduplication key: at most one edge exists per (type, source,
// target) triple, and repeated inserts of the same triple are no-ops.
type GraphRelationship struct {
	// ID is the unique identifier: {type}:{source}->{target}.
	ID string

	// Type is the relationship type.
	Type RelType

	// Source and Target are node IDs. Both endpoints must exist in the
	// graph; storage may still reject an edge whose endpoint vanished,
	// which is logged and dropped rather than propagated.
	Source string
	Target string

	// Props carries the type-specific properties for this edge, or nil
	// when the edge type has none. See props.go for the variants.
	Props RelProps
}

// GenerateID builds the deterministic node ID for a label, file path, and
// optional qualified symbol name.
//
// Format: {label}:{file_path} for structural nodes, or
// {label}:{file_path}:{qualified_name} for symbols. Methods use
// "Class.method" as the qualified name so two same-named methods on
// different classes in one file stay distinct.
func GenerateID(label NodeLabel, filePath string, qualifiedName ...string) string {
	var b strings.Builder
	b.WriteString(string(label))
	b.WriteByte(':')
	b.WriteString(filePath)
	for _, part := range qualifiedName {
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// RelationshipID builds the deterministic edge ID used for deduplication.
func RelationshipID(relType RelType, source, target string) string {
	return string(relType) + ":" + source + "->" + target
}

// QualifyName returns the qualified symbol name used in node IDs:
// "Class.method" for methods with a known owning class, the bare name
// otherwise.
func QualifyName(name, className string) string {
	if className != "" {
		return className + "." + name
	}
	return name
}
