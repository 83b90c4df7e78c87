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
	"fmt"
	"log/slog"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

// JavaScriptParserOption configures a JavaScriptParser instance.
type JavaScriptParserOption func(*JavaScriptParser)

// WithJavaScriptMaxFileSize sets the maximum file size the parser accepts.
func WithJavaScriptMaxFileSize(bytes int64) JavaScriptParserOption {
	return func(p *JavaScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// JavaScriptParser implements the Parser interface for JavaScript and JSX.
//
// JavaScript has no type annotations, interfaces, or enums, so ParseResult
// carries only symbols, imports, heritage, and calls for these files.
type JavaScriptParser struct {
	maxFileSize int64
}

// NewJavaScriptParser creates a new JavaScriptParser with the given options.
func NewJavaScriptParser(opts ...JavaScriptParserOption) *JavaScriptParser {
	p := &JavaScriptParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "javascript".
func (p *JavaScriptParser) Language() string { return "javascript" }

// Extensions returns the file extensions this parser handles.
func (p *JavaScriptParser) Extensions() []string { return []string{".js", ".jsx", ".mjs", ".cjs"} }

// Parse extracts a ParseResult from JavaScript source.
func (p *JavaScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "javascript", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if err := validateContent(content, p.maxFileSize); err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, err
	}
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "javascript", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath: filePath,
		Language: "javascript",
		Hash:     hashContent(content),
	}

	root := tree.RootNode()
	if root == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		return result, nil
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
	}

	p.extractDefinitions(root, content, result, false)
	p.extractImports(root, content, result)
	p.extractCalls(root, content, result, 0)

	setParseSpanResult(span, len(result.Symbols), len(result.Errors))
	recordParseMetrics(ctx, "javascript", time.Since(start), len(result.Symbols), true)

	return result, nil
}

// extractDefinitions walks one statement level recording functions, classes,
// and arrow-function bindings.
func (p *JavaScriptParser) extractDefinitions(node *sitter.Node, content []byte, result *ParseResult, exported bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "export_statement":
			p.extractDefinitions(child, content, result, true)
		case "function_declaration":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil {
				result.Symbols = append(result.Symbols, ParsedSymbol{
					Name:       nodeText(nameNode, content),
					Kind:       graph.LabelFunction,
					StartLine:  startLine(child),
					EndLine:    endLine(child),
					Content:    nodeText(child, content),
					Signature:  firstLine(child, content),
					IsExported: exported,
				})
			}
		case "class_declaration":
			p.processClass(child, content, result, exported)
		case "lexical_declaration", "variable_declaration":
			p.processVariableFunctions(child, content, result, exported)
		}
	}
}

// processClass records a class symbol, its extends clause, and its methods.
func (p *JavaScriptParser) processClass(node *sitter.Node, content []byte, result *ParseResult, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)

	result.Symbols = append(result.Symbols, ParsedSymbol{
		Name:       name,
		Kind:       graph.LabelClass,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Content:    nodeText(node, content),
		Signature:  firstLine(node, content),
		IsExported: exported,
	})

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "class_heritage" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			gc := child.Child(j)
			switch gc.Type() {
			case "identifier", "member_expression":
				if parent := baseTypeName(nodeText(gc, content)); parent != "" {
					result.Heritage = append(result.Heritage, HeritageTuple{
						ChildName: name, Kind: HeritageExtends, ParentName: parent,
					})
				}
			}
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			child := body.Child(i)
			if child.Type() != "method_definition" {
				continue
			}
			mName := child.ChildByFieldName("name")
			if mName == nil {
				continue
			}
			methodName := nodeText(mName, content)
			result.Symbols = append(result.Symbols, ParsedSymbol{
				Name:       methodName,
				Kind:       graph.LabelMethod,
				StartLine:  startLine(child),
				EndLine:    endLine(child),
				Content:    nodeText(child, content),
				Signature:  firstLine(child, content),
				ClassName:  name,
				IsExported: !strings.HasPrefix(methodName, "#"),
			})
		}
	}
}

// processVariableFunctions records arrow-function bindings as functions.
func (p *JavaScriptParser) processVariableFunctions(node *sitter.Node, content []byte, result *ParseResult, exported bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		valueNode := child.ChildByFieldName("value")
		if nameNode == nil || valueNode == nil {
			continue
		}
		switch valueNode.Type() {
		case "arrow_function", "function", "function_expression":
			result.Symbols = append(result.Symbols, ParsedSymbol{
				Name:       nodeText(nameNode, content),
				Kind:       graph.LabelFunction,
				StartLine:  startLine(child),
				EndLine:    endLine(child),
				Content:    nodeText(child, content),
				Signature:  firstLine(child, content),
				IsExported: exported,
			})
		}
	}
}

// extractImports records ES imports and top-level require() bindings.
func (p *JavaScriptParser) extractImports(root *sitter.Node, content []byte, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "import_statement":
			p.processImport(child, content, result)
		case "lexical_declaration", "variable_declaration":
			p.processRequire(child, content, result)
		}
	}
}

// processImport handles ES import statements.
func (p *JavaScriptParser) processImport(node *sitter.Node, content []byte, result *ParseResult) {
	imp := ImportStatement{StartLine: startLine(node)}
	if src := node.ChildByFieldName("source"); src != nil {
		imp.ModulePath = strings.Trim(nodeText(src, content), `"'`)
	}
	if imp.ModulePath == "" {
		return
	}
	imp.IsRelative = strings.HasPrefix(imp.ModulePath, ".")

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "import_clause" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			gc := child.Child(j)
			switch gc.Type() {
			case "identifier":
				imp.Symbols = append(imp.Symbols, nodeText(gc, content))
			case "namespace_import":
				for k := 0; k < int(gc.ChildCount()); k++ {
					if gc.Child(k).Type() == "identifier" {
						imp.Alias = nodeText(gc.Child(k), content)
					}
				}
			case "named_imports":
				for k := 0; k < int(gc.ChildCount()); k++ {
					spec := gc.Child(k)
					if spec.Type() != "import_specifier" {
						continue
					}
					if nameNode := spec.ChildByFieldName("name"); nameNode != nil {
						imp.Symbols = append(imp.Symbols, nodeText(nameNode, content))
					}
				}
			}
		}
	}

	result.Imports = append(result.Imports, imp)
}

// processRequire handles "const x = require('mod')" bindings.
func (p *JavaScriptParser) processRequire(node *sitter.Node, content []byte, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "variable_declarator" {
			continue
		}
		nameNode := child.ChildByFieldName("name")
		valueNode := child.ChildByFieldName("value")
		if nameNode == nil || valueNode == nil || valueNode.Type() != "call_expression" {
			continue
		}
		fn := valueNode.ChildByFieldName("function")
		if fn == nil || nodeText(fn, content) != "require" {
			continue
		}
		args := valueNode.ChildByFieldName("arguments")
		if args == nil {
			continue
		}
		var modulePath string
		for j := 0; j < int(args.ChildCount()); j++ {
			if args.Child(j).Type() == "string" {
				modulePath = strings.Trim(nodeText(args.Child(j), content), `"'`)
				break
			}
		}
		if modulePath == "" {
			continue
		}
		result.Imports = append(result.Imports, ImportStatement{
			ModulePath: modulePath,
			Alias:      nodeText(nameNode, content),
			IsRelative: strings.HasPrefix(modulePath, "."),
			StartLine:  startLine(child),
		})
	}
}

// extractCalls walks the entire tree recording raw call expressions.
func (p *JavaScriptParser) extractCalls(node *sitter.Node, content []byte, result *ParseResult, depth int) {
	if node == nil || depth > MaxWalkDepth {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Type() == "call_expression" {
			p.processCall(child, content, result)
		}
		p.extractCalls(child, content, result, depth+1)
	}
}

// processCall splits a call_expression into name, receiver, and
// bare-identifier arguments.
func (p *JavaScriptParser) processCall(node *sitter.Node, content []byte, result *ParseResult) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}

	cs := CallSite{StartLine: startLine(node)}
	switch fn.Type() {
	case "identifier":
		cs.Name = nodeText(fn, content)
		if cs.Name == "require" {
			return
		}
	case "member_expression":
		prop := fn.ChildByFieldName("property")
		obj := fn.ChildByFieldName("object")
		if prop == nil {
			return
		}
		cs.Name = nodeText(prop, content)
		if obj != nil {
			switch obj.Type() {
			case "identifier":
				cs.Receiver = nodeText(obj, content)
			case "this":
				cs.Receiver = "this"
			default:
				cs.Name = nodeText(fn, content)
			}
		}
	default:
		return
	}

	if args := node.ChildByFieldName("arguments"); args != nil {
		for i := 0; i < int(args.ChildCount()); i++ {
			arg := args.Child(i)
			if arg.Type() == "identifier" {
				cs.Args = append(cs.Args, nodeText(arg, content))
			}
		}
	}

	result.Calls = append(result.Calls, cs)
}
