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
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

// TypeScriptParserOption configures a TypeScriptParser instance.
type TypeScriptParserOption func(*TypeScriptParser)

// WithTypeScriptMaxFileSize sets the maximum file size the parser accepts.
func WithTypeScriptMaxFileSize(bytes int64) TypeScriptParserOption {
	return func(p *TypeScriptParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// TypeScriptParser implements the Parser interface for TypeScript and TSX.
//
// Description:
//
//	Extracts functions (including arrow-function bindings), classes with
//	their methods and heritage clauses, interfaces, type aliases, enums,
//	imports, raw call expressions, and type annotations.
//
// Thread Safety:
//
//	Safe for concurrent use. Each Parse call creates its own tree-sitter
//	parser instance and selects the grammar by extension (.tsx vs .ts).
type TypeScriptParser struct {
	maxFileSize int64
}

// NewTypeScriptParser creates a new TypeScriptParser with the given options.
func NewTypeScriptParser(opts ...TypeScriptParserOption) *TypeScriptParser {
	p := &TypeScriptParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "typescript".
func (p *TypeScriptParser) Language() string { return "typescript" }

// Extensions returns the file extensions this parser handles.
func (p *TypeScriptParser) Extensions() []string { return []string{".ts", ".tsx", ".mts", ".cts"} }

// Parse extracts a ParseResult from TypeScript source.
func (p *TypeScriptParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "typescript", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if err := validateContent(content, p.maxFileSize); err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, err
	}
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	parser := sitter.NewParser()
	if strings.HasSuffix(strings.ToLower(filePath), ".tsx") {
		parser.SetLanguage(tsx.GetLanguage())
	} else {
		parser.SetLanguage(typescript.GetLanguage())
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "typescript", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath: filePath,
		Language: "typescript",
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

	p.extractDefinitions(root, content, result, false, nil)
	p.extractImports(root, content, result)
	p.extractCalls(root, content, result, 0)
	p.extractTypeRefs(root, content, result, 0)

	setParseSpanResult(span, len(result.Symbols), len(result.Errors))
	recordParseMetrics(ctx, "typescript", time.Since(start), len(result.Symbols), true)

	return result, nil
}

// extractDefinitions walks one statement level. exported marks statements
// wrapped in an export_statement; decorators carries leading decorator
// annotations.
func (p *TypeScriptParser) extractDefinitions(node *sitter.Node, content []byte, result *ParseResult, exported bool, decorators []string) {
	var pending []string // decorators seen at this level, attached to the next declaration
	pending = append(pending, decorators...)

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "decorator":
			pending = append(pending, cleanDecorator(nodeText(child, content)))
			continue
		case "export_statement":
			p.extractDefinitions(child, content, result, true, pending)
		case "function_declaration":
			p.addFunction(child, content, result, exported, pending)
		case "class_declaration", "abstract_class_declaration":
			p.processClass(child, content, result, exported, pending)
		case "interface_declaration":
			p.processInterface(child, content, result, exported)
		case "type_alias_declaration":
			p.addNamedSymbol(child, content, result, graph.LabelTypeAlias, exported)
		case "enum_declaration":
			p.addNamedSymbol(child, content, result, graph.LabelEnum, exported)
		case "lexical_declaration", "variable_declaration":
			p.processVariableFunctions(child, content, result, exported)
		}
		pending = nil
	}
}

// addFunction records a function_declaration symbol.
func (p *TypeScriptParser) addFunction(node *sitter.Node, content []byte, result *ParseResult, exported bool, decorators []string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	result.Symbols = append(result.Symbols, ParsedSymbol{
		Name:       nodeText(nameNode, content),
		Kind:       graph.LabelFunction,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Content:    nodeText(node, content),
		Signature:  firstLine(node, content),
		IsExported: exported,
		Decorators: decorators,
	})
}

// addNamedSymbol records a declaration identified by its "name" field.
func (p *TypeScriptParser) addNamedSymbol(node *sitter.Node, content []byte, result *ParseResult, kind graph.NodeLabel, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	result.Symbols = append(result.Symbols, ParsedSymbol{
		Name:       nodeText(nameNode, content),
		Kind:       kind,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Content:    nodeText(node, content),
		Signature:  firstLine(node, content),
		IsExported: exported,
	})
}

// processClass records a class symbol, its heritage clauses, and its methods.
func (p *TypeScriptParser) processClass(node *sitter.Node, content []byte, result *ParseResult, exported bool, decorators []string) {
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
		Decorators: decorators,
	})

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "class_heritage" {
			continue
		}
		for j := 0; j < int(child.ChildCount()); j++ {
			clause := child.Child(j)
			switch clause.Type() {
			case "extends_clause":
				for _, parent := range heritageNames(clause, content) {
					result.Heritage = append(result.Heritage, HeritageTuple{
						ChildName: name, Kind: HeritageExtends, ParentName: parent,
					})
				}
			case "implements_clause":
				for _, parent := range heritageNames(clause, content) {
					result.Heritage = append(result.Heritage, HeritageTuple{
						ChildName: name, Kind: HeritageImplements, ParentName: parent,
					})
				}
			}
		}
	}

	if body := node.ChildByFieldName("body"); body != nil {
		p.extractMethods(body, content, result, name)
	}
}

// processInterface records an interface symbol and its extends clause.
func (p *TypeScriptParser) processInterface(node *sitter.Node, content []byte, result *ParseResult, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)

	result.Symbols = append(result.Symbols, ParsedSymbol{
		Name:       name,
		Kind:       graph.LabelInterface,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Content:    nodeText(node, content),
		Signature:  firstLine(node, content),
		IsExported: exported,
	})

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "extends_type_clause" || child.Type() == "extends_clause" {
			for _, parent := range heritageNames(child, content) {
				result.Heritage = append(result.Heritage, HeritageTuple{
					ChildName: name, Kind: HeritageExtends, ParentName: parent,
				})
			}
		}
	}
}

// heritageNames collects base names from an extends/implements clause.
func heritageNames(clause *sitter.Node, content []byte) []string {
	var names []string
	for i := 0; i < int(clause.ChildCount()); i++ {
		child := clause.Child(i)
		switch child.Type() {
		case "identifier", "type_identifier", "member_expression", "nested_type_identifier", "generic_type":
			if name := baseTypeName(nodeText(child, content)); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// extractMethods records method symbols within a class body.
func (p *TypeScriptParser) extractMethods(body *sitter.Node, content []byte, result *ParseResult, className string) {
	var pending []string
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "decorator":
			pending = append(pending, cleanDecorator(nodeText(child, content)))
			continue
		case "method_definition":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				break
			}
			name := nodeText(nameNode, content)
			result.Symbols = append(result.Symbols, ParsedSymbol{
				Name:       name,
				Kind:       graph.LabelMethod,
				StartLine:  startLine(child),
				EndLine:    endLine(child),
				Content:    nodeText(child, content),
				Signature:  firstLine(child, content),
				ClassName:  className,
				IsExported: !isPrivateMember(child, content, name),
				Decorators: pending,
			})
		}
		pending = nil
	}
}

// isPrivateMember reports TS member privacy: an explicit "private" modifier
// or the #name syntax.
func isPrivateMember(node *sitter.Node, content []byte, name string) bool {
	if strings.HasPrefix(name, "#") {
		return true
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "accessibility_modifier" && nodeText(child, content) == "private" {
			return true
		}
	}
	return false
}

// processVariableFunctions records arrow-function and function-expression
// bindings (const f = () => ...) as function symbols.
func (p *TypeScriptParser) processVariableFunctions(node *sitter.Node, content []byte, result *ParseResult, exported bool) {
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

// extractImports records ES import statements at the top level.
func (p *TypeScriptParser) extractImports(root *sitter.Node, content []byte, result *ParseResult) {
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil || child.Type() != "import_statement" {
			continue
		}
		p.processImport(child, content, result)
	}
}

// processImport handles default, named, and namespace import clauses.
func (p *TypeScriptParser) processImport(node *sitter.Node, content []byte, result *ParseResult) {
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
				// Default import binds one local name.
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

// extractCalls walks the entire tree recording raw call expressions.
func (p *TypeScriptParser) extractCalls(node *sitter.Node, content []byte, result *ParseResult, depth int) {
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
func (p *TypeScriptParser) processCall(node *sitter.Node, content []byte, result *ParseResult) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}

	cs := CallSite{StartLine: startLine(node)}
	switch fn.Type() {
	case "identifier":
		cs.Name = nodeText(fn, content)
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

// extractTypeRefs records type annotations with their usage role.
func (p *TypeScriptParser) extractTypeRefs(node *sitter.Node, content []byte, result *ParseResult, depth int) {
	if node == nil || depth > MaxWalkDepth {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "required_parameter", "optional_parameter":
			p.addAnnotation(child, content, result, "parameter")
		case "public_field_definition", "property_signature":
			p.addAnnotation(child, content, result, "field")
		case "variable_declarator":
			p.addAnnotation(child, content, result, "variable")
		case "function_declaration", "method_definition", "arrow_function", "function_signature", "method_signature":
			if rt := child.ChildByFieldName("return_type"); rt != nil {
				p.addTypeRef(rt, content, result, "return")
			}
		}
		p.extractTypeRefs(child, content, result, depth+1)
	}
}

// addAnnotation records the type_annotation child of a declaration, if any.
func (p *TypeScriptParser) addAnnotation(node *sitter.Node, content []byte, result *ParseResult, role string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "type_annotation" {
			p.addTypeRef(child, content, result, role)
			return
		}
	}
}

// addTypeRef records a single annotation occurrence, skipping primitives.
func (p *TypeScriptParser) addTypeRef(node *sitter.Node, content []byte, result *ParseResult, role string) {
	text := strings.TrimPrefix(strings.TrimSpace(nodeText(node, content)), ":")
	name := baseTypeName(text)
	if name == "" || tsBuiltinTypes[name] {
		return
	}
	result.TypeRefs = append(result.TypeRefs, TypeRef{
		Name:      name,
		Role:      role,
		StartLine: startLine(node),
	})
}

// tsBuiltinTypes are annotation names that never map to user symbols.
var tsBuiltinTypes = map[string]bool{
	"string": true, "number": true, "boolean": true, "void": true,
	"any": true, "unknown": true, "never": true, "null": true,
	"undefined": true, "object": true, "symbol": true, "bigint": true,
	"Array": true, "Promise": true, "Record": true, "Map": true,
	"Set": true, "Partial": true, "Readonly": true, "Pick": true,
	"Omit": true, "Function": true, "Date": true, "Error": true,
}
