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
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/storage"
)

const (
	defaultSearchLimit = 20
	defaultImpactDepth = 3

	// fuzzyMaxDistance bounds the edit distance for the typo fallback.
	fuzzyMaxDistance = 2
)

// Argument structs.

type SearchCodeArgs struct {
	Query string `json:"query" jsonschema:"required,description:Search query text; identifier fragments work best"`
	Limit int    `json:"limit" jsonschema:"description:Maximum number of results (default 20)"`
}

type ContextArgs struct {
	Symbol string `json:"symbol" jsonschema:"required,description:Name of the symbol to look up"`
}

type WhoCallsArgs struct {
	Symbol string `json:"symbol" jsonschema:"required,description:Name of the symbol whose callers to list"`
}

type WhatCallsArgs struct {
	Symbol string `json:"symbol" jsonschema:"required,description:Name of the symbol whose callees to list"`
}

type ImpactOfArgs struct {
	Symbol string `json:"symbol" jsonschema:"required,description:Name of the symbol to analyze"`
	Depth  int    `json:"depth" jsonschema:"description:Maximum caller-traversal depth (default 3)"`
}

type FindDeadCodeArgs struct{}

type ListFlowsArgs struct{}

type ListReposArgs struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "search_code",
		Description: "Search indexed symbols by name tokens; falls back to fuzzy matching for typos",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SearchCodeArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.handleSearchCode(ctx, args.Query, args.Limit)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "context",
		Description: "Full view of a symbol: location, signature, callers, callees, type references, and community",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ContextArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.handleContext(ctx, args.Symbol)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "who_calls",
		Description: "List the direct callers of a symbol with call confidence",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args WhoCallsArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.handleWhoCalls(ctx, args.Symbol)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "what_calls",
		Description: "List the direct callees of a symbol with call confidence",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args WhatCallsArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.handleWhatCalls(ctx, args.Symbol)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "impact_of",
		Description: "Blast radius analysis: every symbol that transitively calls the given symbol",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ImpactOfArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.handleImpactOf(ctx, args.Symbol, args.Depth)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "find_dead_code",
		Description: "List every symbol flagged as unreachable",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FindDeadCodeArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.handleFindDeadCode(ctx)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_flows",
		Description: "List detected execution flows with their steps",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListFlowsArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.handleListFlows(ctx)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_repos",
		Description: "List indexed repositories with their stats",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListReposArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.handleListRepos()
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		return textResult(text), nil, nil
	})
}

// lookupSymbol resolves a symbol name to its best-matching node: exact or
// token-prefix FTS match first, bounded-distance fuzzy match as a typo
// fallback.
func (s *Server) lookupSymbol(ctx context.Context, symbol string) (*graph.GraphNode, error) {
	hits, err := s.store.FTSSearch(ctx, symbol, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		hits, err = s.store.FuzzySearch(ctx, symbol, 1, fuzzyMaxDistance)
		if err != nil {
			return nil, err
		}
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("symbol %q not found", symbol)
	}
	return hits[0], nil
}

func (s *Server) handleSearchCode(ctx context.Context, query string, limit int) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("query must not be empty")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	hits, err := s.store.FTSSearch(ctx, query, limit)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		hits, err = s.store.FuzzySearch(ctx, query, limit, fuzzyMaxDistance)
		if err != nil {
			return "", err
		}
	}
	if len(hits) == 0 {
		return fmt.Sprintf("No results found for %q.", query), nil
	}

	var b strings.Builder
	for i, n := range hits {
		fmt.Fprintf(&b, "%d. %s (%s) -- %s:%d\n", i+1, n.Name, n.Label, n.FilePath, n.StartLine)
		if n.Signature != "" {
			fmt.Fprintf(&b, "   %s\n", n.Signature)
		}
	}
	b.WriteString("\nNext: use context on a specific symbol for the full picture.")
	return b.String(), nil
}

func (s *Server) handleContext(ctx context.Context, symbol string) (string, error) {
	node, err := s.lookupSymbol(ctx, symbol)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Symbol: %s (%s)\n", node.Name, node.Label)
	fmt.Fprintf(&b, "File: %s:%d-%d\n", node.FilePath, node.StartLine, node.EndLine)
	if node.Signature != "" {
		fmt.Fprintf(&b, "Signature: %s\n", node.Signature)
	}
	if node.IsDead {
		b.WriteString("Status: DEAD CODE (unreachable)\n")
	}
	if node.IsEntryPoint {
		b.WriteString("Status: entry point\n")
	}

	callers, err := s.adjacentSymbols(ctx, node.ID, graph.RelCalls, incoming)
	if err != nil {
		return "", err
	}
	if len(callers) > 0 {
		fmt.Fprintf(&b, "\nCallers (%d):\n", len(callers))
		for _, c := range callers {
			fmt.Fprintf(&b, "  <- %s  %s:%d\n", c.Name, c.FilePath, c.StartLine)
		}
	}

	callees, err := s.adjacentSymbols(ctx, node.ID, graph.RelCalls, outgoing)
	if err != nil {
		return "", err
	}
	if len(callees) > 0 {
		fmt.Fprintf(&b, "\nCallees (%d):\n", len(callees))
		for _, c := range callees {
			fmt.Fprintf(&b, "  -> %s  %s:%d\n", c.Name, c.FilePath, c.StartLine)
		}
	}

	typeRefs, err := s.adjacentSymbols(ctx, node.ID, graph.RelUsesType, outgoing)
	if err != nil {
		return "", err
	}
	if len(typeRefs) > 0 {
		fmt.Fprintf(&b, "\nType references (%d):\n", len(typeRefs))
		for _, t := range typeRefs {
			fmt.Fprintf(&b, "  -> %s  %s\n", t.Name, t.FilePath)
		}
	}

	communities, err := s.adjacentSymbols(ctx, node.ID, graph.RelMemberOf, outgoing)
	if err != nil {
		return "", err
	}
	if len(communities) > 0 {
		fmt.Fprintf(&b, "\nCommunity: %s\n", communities[0].Name)
	}

	b.WriteString("\nNext: use impact_of if planning changes to this symbol.")
	return b.String(), nil
}

func (s *Server) handleWhoCalls(ctx context.Context, symbol string) (string, error) {
	return s.handleCallEdges(ctx, symbol, incoming)
}

func (s *Server) handleWhatCalls(ctx context.Context, symbol string) (string, error) {
	return s.handleCallEdges(ctx, symbol, outgoing)
}

func (s *Server) handleCallEdges(ctx context.Context, symbol string, dir direction) (string, error) {
	node, err := s.lookupSymbol(ctx, symbol)
	if err != nil {
		return "", err
	}

	var rels []*graph.GraphRelationship
	if dir == incoming {
		rels, err = s.store.GetIncoming(ctx, node.ID, graph.RelCalls)
	} else {
		rels, err = s.store.GetOutgoing(ctx, node.ID, graph.RelCalls)
	}
	if err != nil {
		return "", err
	}
	if len(rels) == 0 {
		if dir == incoming {
			return fmt.Sprintf("No callers recorded for %q.", node.Name), nil
		}
		return fmt.Sprintf("No callees recorded for %q.", node.Name), nil
	}

	var b strings.Builder
	if dir == incoming {
		fmt.Fprintf(&b, "Callers of %s (%d):\n", node.Name, len(rels))
	} else {
		fmt.Fprintf(&b, "Callees of %s (%d):\n", node.Name, len(rels))
	}
	for _, rel := range rels {
		otherID := rel.Source
		if dir == outgoing {
			otherID = rel.Target
		}
		other, err := s.store.GetNode(ctx, otherID)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "  %s (%s) -- %s:%d  confidence %.2f\n",
			other.Name, other.Label, other.FilePath, other.StartLine, callConfidence(rel))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *Server) handleImpactOf(ctx context.Context, symbol string, depth int) (string, error) {
	node, err := s.lookupSymbol(ctx, symbol)
	if err != nil {
		return "", err
	}
	if depth <= 0 {
		depth = defaultImpactDepth
	}

	affected, err := s.traverseCallers(ctx, node.ID, depth)
	if err != nil {
		return "", err
	}
	if len(affected) == 0 {
		return fmt.Sprintf("Nothing calls %q; its blast radius is the symbol itself.", node.Name), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Impact analysis for: %s (%s)\n", node.Name, node.Label)
	fmt.Fprintf(&b, "Depth: %d\n", depth)
	fmt.Fprintf(&b, "Affected symbols: %d\n\n", len(affected))
	for i, n := range affected {
		fmt.Fprintf(&b, "  %d. %s (%s) -- %s:%d\n", i+1, n.Name, n.Label, n.FilePath, n.StartLine)
	}
	b.WriteString("\nTip: review each affected symbol before making changes.")
	return b.String(), nil
}

// traverseCallers walks CALLS edges backwards from startID, breadth-first,
// up to depth hops. The start node itself is excluded from the result.
func (s *Server) traverseCallers(ctx context.Context, startID string, depth int) ([]*graph.GraphNode, error) {
	visited := map[string]bool{startID: true}
	frontier := []string{startID}
	var affected []*graph.GraphNode

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, id := range frontier {
			rels, err := s.store.GetIncoming(ctx, id, graph.RelCalls)
			if err != nil {
				return nil, err
			}
			for _, rel := range rels {
				if visited[rel.Source] {
					continue
				}
				visited[rel.Source] = true
				caller, err := s.store.GetNode(ctx, rel.Source)
				if err != nil {
					continue
				}
				affected = append(affected, caller)
				next = append(next, rel.Source)
			}
		}
		frontier = next
	}
	return affected, nil
}

func (s *Server) handleFindDeadCode(ctx context.Context) (string, error) {
	var dead []*graph.GraphNode
	for _, label := range graph.SymbolLabels {
		nodes, err := s.store.NodesByLabel(ctx, label, func(n *graph.GraphNode) bool {
			return n.IsDead
		})
		if err != nil {
			return "", err
		}
		dead = append(dead, nodes...)
	}
	if len(dead) == 0 {
		return "No dead code detected.", nil
	}

	sort.Slice(dead, func(i, j int) bool {
		if dead[i].FilePath != dead[j].FilePath {
			return dead[i].FilePath < dead[j].FilePath
		}
		return dead[i].StartLine < dead[j].StartLine
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Dead code (%d symbols):\n\n", len(dead))
	for i, n := range dead {
		fmt.Fprintf(&b, "  %d. %s (%s) -- %s:%d\n", i+1, n.Name, n.Label, n.FilePath, n.StartLine)
	}
	b.WriteString("\nTip: consider removing or refactoring these symbols.")
	return b.String(), nil
}

func (s *Server) handleListFlows(ctx context.Context) (string, error) {
	flows, err := s.store.NodesByLabel(ctx, graph.LabelProcess, nil)
	if err != nil {
		return "", err
	}
	if len(flows) == 0 {
		return "No execution flows detected.", nil
	}
	sort.Slice(flows, func(i, j int) bool { return flows[i].ID < flows[j].ID })

	var b strings.Builder
	fmt.Fprintf(&b, "Execution flows (%d):\n", len(flows))
	for _, flow := range flows {
		kind := propString(flow.Properties, "kind")
		fmt.Fprintf(&b, "\n%s [%s]\n", flow.Name, kind)

		steps, err := s.flowSteps(ctx, flow.ID)
		if err != nil {
			return "", err
		}
		for i, step := range steps {
			fmt.Fprintf(&b, "  %d. %s  %s:%d\n", i+1, step.Name, step.FilePath, step.StartLine)
		}
	}
	return b.String(), nil
}

// flowSteps returns the step symbols of a process in step order.
func (s *Server) flowSteps(ctx context.Context, processID string) ([]*graph.GraphNode, error) {
	rels, err := s.store.GetIncoming(ctx, processID, graph.RelStepInProcess)
	if err != nil {
		return nil, err
	}
	sort.Slice(rels, func(i, j int) bool {
		return stepNumber(rels[i]) < stepNumber(rels[j])
	})

	steps := make([]*graph.GraphNode, 0, len(rels))
	for _, rel := range rels {
		step, err := s.store.GetNode(ctx, rel.Source)
		if err != nil {
			continue
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (s *Server) handleListRepos() (string, error) {
	if s.registry == nil {
		return "", errors.New("no repository registry configured")
	}
	repos, err := s.registry.List()
	if err != nil {
		return "", err
	}
	if len(repos) == 0 {
		return "No indexed repositories found. Run `codegraph analyze` on a project first.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Indexed repositories (%d):\n\n", len(repos))
	for i, info := range repos {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, info.Root)
		fmt.Fprintf(&b, "     Files: %d  Symbols: %d  Relationships: %d\n",
			info.Meta.Stats.Files, info.Meta.Stats.Symbols, info.Meta.Stats.Relationships)
		fmt.Fprintf(&b, "     Last indexed: %s\n", info.Meta.LastIndexed)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// direction selects edge orientation for shared caller/callee handlers.
type direction int

const (
	incoming direction = iota
	outgoing
)

// adjacentSymbols loads the nodes on the far end of the given edges,
// skipping endpoints that no longer resolve.
func (s *Server) adjacentSymbols(ctx context.Context, nodeID string, relType graph.RelType, dir direction) ([]*graph.GraphNode, error) {
	var rels []*graph.GraphRelationship
	var err error
	if dir == incoming {
		rels, err = s.store.GetIncoming(ctx, nodeID, relType)
	} else {
		rels, err = s.store.GetOutgoing(ctx, nodeID, relType)
	}
	if err != nil {
		return nil, err
	}

	nodes := make([]*graph.GraphNode, 0, len(rels))
	for _, rel := range rels {
		otherID := rel.Source
		if dir == outgoing {
			otherID = rel.Target
		}
		other, err := s.store.GetNode(ctx, otherID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, other)
	}
	return nodes, nil
}

// callConfidence extracts the confidence from a CALLS edge regardless of
// whether the props are typed (in-memory) or a decoded bag (from storage).
func callConfidence(rel *graph.GraphRelationship) float64 {
	if rel.Props == nil {
		return 0
	}
	if p, ok := rel.Props.(graph.CallProps); ok {
		return p.Confidence
	}
	if v, ok := rel.Props.Bag()["confidence"].(float64); ok {
		return v
	}
	return 0
}

// stepNumber extracts step_number from a STEP_IN_PROCESS edge.
func stepNumber(rel *graph.GraphRelationship) int {
	if rel.Props == nil {
		return 0
	}
	if p, ok := rel.Props.(graph.StepProps); ok {
		return p.StepNumber
	}
	switch v := rel.Props.Bag()["step_number"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func propString(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return "unknown"
}
