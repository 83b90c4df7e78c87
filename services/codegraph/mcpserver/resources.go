// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	overviewURI = "codegraph://overview"
	deadCodeURI = "codegraph://dead-code"
	schemaURI   = "codegraph://schema"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         overviewURI,
		Name:        "Codebase Overview",
		Description: "High-level statistics about the indexed repository",
		MIMEType:    "text/plain",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return plainResource(overviewURI, s.overviewText())
	})

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         deadCodeURI,
		Name:        "Dead Code Report",
		Description: "Every symbol flagged as unreachable",
		MIMEType:    "text/plain",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		text, err := s.handleFindDeadCode(ctx)
		if err != nil {
			return nil, err
		}
		return plainResource(deadCodeURI, text)
	})

	s.mcpServer.AddResource(&mcp.Resource{
		URI:         schemaURI,
		Name:        "Graph Schema",
		Description: "Node labels and relationship types of the knowledge graph",
		MIMEType:    "text/plain",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return plainResource(schemaURI, schemaText)
	})
}

func plainResource(uri, text string) (*mcp.ReadResourceResult, error) {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: "text/plain", Text: text},
		},
	}, nil
}

func (s *Server) overviewText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\n", s.repoRoot)

	if s.registry == nil {
		b.WriteString("No registry configured; index metadata unavailable.\n")
		return b.String()
	}
	meta, err := s.registry.ReadMeta(s.repoRoot)
	if err != nil {
		b.WriteString("Repository is not indexed yet. Run `codegraph analyze` first.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Last indexed: %s\n\n", meta.LastIndexed)
	fmt.Fprintf(&b, "Files:         %d\n", meta.Stats.Files)
	fmt.Fprintf(&b, "Symbols:       %d\n", meta.Stats.Symbols)
	fmt.Fprintf(&b, "Relationships: %d\n", meta.Stats.Relationships)
	fmt.Fprintf(&b, "Communities:   %d\n", meta.Stats.Clusters)
	fmt.Fprintf(&b, "Flows:         %d\n", meta.Stats.Flows)
	fmt.Fprintf(&b, "Dead symbols:  %d\n", meta.Stats.DeadCode)
	fmt.Fprintf(&b, "Coupled pairs: %d\n", meta.Stats.CoupledPairs)
	fmt.Fprintf(&b, "Embeddings:    %d\n", meta.Stats.Embeddings)
	return b.String()
}

const schemaText = `Knowledge graph schema

Node labels:
  file, folder          structure
  function, method      callables
  class, interface,     declared types
  type_alias, enum
  community             call-graph cluster (synthetic)
  process               execution flow (synthetic)

Node ids: {label}:{file_path}[:{qualified_name}]; methods qualify as
Class.method.

Relationship types:
  contains              folder -> folder/file
  defines               file/class -> symbol
  imports               file -> file (props: symbols, role)
  calls                 callable -> callable (props: confidence)
  extends, implements   type heritage
  uses_type             symbol -> type (props: role)
  member_of             callable -> community
  step_in_process       callable -> process (props: step_number)
  coupled_with          file -> file (props: strength, co_changes)
`
