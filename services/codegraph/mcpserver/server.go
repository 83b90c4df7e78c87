// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mcpserver exposes the knowledge graph to AI agents over the Model
// Context Protocol (stdio transport).
//
// The tools are thin read-only views over the storage layer: search, symbol
// context, caller/callee traversal, impact analysis, dead-code and flow
// listings. All handlers return human-readable text.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AleutianAI/codegraph/services/codegraph/storage"
)

const serverName = "codegraph"

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger. Logs go to stderr; stdout carries
// the MCP protocol.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server serves the codegraph MCP tools for one indexed repository.
//
// Thread Safety: safe for the concurrent tool dispatch the MCP SDK performs;
// all handlers are read-only over the store.
type Server struct {
	store     *storage.Store
	registry  *storage.Registry
	repoRoot  string
	logger    *slog.Logger
	mcpServer *mcp.Server
}

// New creates a Server over an opened store. repoRoot is the absolute path
// of the indexed checkout; registry provides cross-repository listings and
// index metadata.
func New(store *storage.Store, registry *storage.Registry, repoRoot string, opts ...Option) *Server {
	s := &Server{
		store:    store,
		registry: registry,
		repoRoot: repoRoot,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: Version,
	}, nil)
	s.registerTools()
	s.registerResources()
	return s
}

// Run serves MCP over stdio until the context is canceled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting",
		slog.String("repo", s.repoRoot),
		slog.String("version", Version))
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
