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
	"github.com/smacker/go-tree-sitter/python"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
)

// PythonParserOption configures a PythonParser instance.
type PythonParserOption func(*PythonParser)

// WithPythonMaxFileSize sets the maximum file size the parser will accept.
func WithPythonMaxFileSize(bytes int64) PythonParserOption {
	return func(p *PythonParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// PythonParser implements the Parser interface for Python source code.
//
// Description:
//
//	PythonParser uses tree-sitter to extract symbols, imports, raw call
//	expressions, type annotations, and class heritage from Python source.
//	It is error-tolerant: syntactically invalid files yield partial results.
//
// Thread Safety:
//
//	Safe for concurrent use. Each Parse call creates its own tree-sitter
//	parser instance.
type PythonParser struct {
	maxFileSize int64
}

// NewPythonParser creates a new PythonParser with the given options.
func NewPythonParser(opts ...PythonParserOption) *PythonParser {
	p := &PythonParser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "python".
func (p *PythonParser) Language() string { return "python" }

// Extensions returns the file extensions this parser handles.
func (p *PythonParser) Extensions() []string { return []string{".py", ".pyi"} }

// Base-class markers that shape a class's kind instead of its heritage.
var pythonEnumBases = map[string]bool{
	"Enum": true, "IntEnum": true, "StrEnum": true, "Flag": true, "IntFlag": true,
}

var pythonInterfaceBases = map[string]bool{
	"Protocol": true, "ABC": true,
}

// Parse extracts a ParseResult from Python source.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//   - content: Raw source bytes. Must be valid UTF-8.
//   - filePath: Repo-relative path with forward slashes.
//
// Outputs:
//   - *ParseResult: Extracted entities, possibly partial for invalid code.
//   - error: ErrFileTooLarge, ErrInvalidContent, or context errors.
func (p *PythonParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, "python", filePath, len(content))
	defer span.End()

	start := time.Now()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if err := validateContent(content, p.maxFileSize); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, err
	}
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		recordParseMetrics(ctx, "python", time.Since(start), 0, false)
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath: filePath,
		Language: "python",
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

	p.extractDefinitions(root, content, result, nil)
	p.extractImports(root, content, result, 0)
	p.extractCalls(root, content, result, 0)
	p.extractTypeRefs(root, content, result, "variable", 0)

	setParseSpanResult(span, len(result.Symbols), len(result.Errors))
	recordParseMetrics(ctx, "python", time.Since(start), len(result.Symbols), true)

	return result, nil
}

// extractDefinitions walks one statement level and materializes functions
// and classes. decorators carries annotations from an enclosing
// decorated_definition wrapper.
func (p *PythonParser) extractDefinitions(node *sitter.Node, content []byte, result *ParseResult, decorators []string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "function_definition":
			p.processFunction(child, content, result, "", decorators)
		case "class_definition":
			p.processClass(child, content, result, decorators)
		case "decorated_definition":
			decs, inner := p.splitDecorated(child, content)
			if inner != nil {
				switch inner.Type() {
				case "function_definition":
					p.processFunction(inner, content, result, "", decs)
				case "class_definition":
					p.processClass(inner, content, result, decs)
				}
			}
		case "type_alias_statement":
			p.processTypeAlias(child, content, result)
		case "if_statement":
			// Top-level guards (if TYPE_CHECKING:, if __name__ == ...)
			// still define symbols worth indexing.
			p.extractDefinitions(child, content, result, nil)
		case "block":
			p.extractDefinitions(child, content, result, nil)
		}
	}
}

// splitDecorated separates a decorated_definition into its decorator names
// and the wrapped definition node.
func (p *PythonParser) splitDecorated(node *sitter.Node, content []byte) ([]string, *sitter.Node) {
	var decs []string
	var inner *sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "decorator":
			decs = append(decs, cleanDecorator(nodeText(child, content)))
		case "function_definition", "class_definition":
			inner = child
		}
	}
	return decs, inner
}

// cleanDecorator strips the leading '@' and any call arguments:
// "@app.route('/x')" -> "app.route".
func cleanDecorator(text string) string {
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "@"))
	if idx := strings.IndexByte(text, '('); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// processFunction records a function (className empty) or method symbol.
func (p *PythonParser) processFunction(node *sitter.Node, content []byte, result *ParseResult, className string, decorators []string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)

	kind := graph.LabelFunction
	if className != "" {
		kind = graph.LabelMethod
	}

	result.Symbols = append(result.Symbols, ParsedSymbol{
		Name:       name,
		Kind:       kind,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Content:    nodeText(node, content),
		Signature:  firstLine(node, content),
		ClassName:  className,
		IsExported: pythonExported(name),
		Decorators: decorators,
	})
}

// processClass records a class, enum, or interface symbol plus its methods
// and heritage tuples.
func (p *PythonParser) processClass(node *sitter.Node, content []byte, result *ParseResult, decorators []string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, content)

	kind := graph.LabelClass
	var bases []string
	if args := node.ChildByFieldName("superclasses"); args != nil {
		for i := 0; i < int(args.ChildCount()); i++ {
			arg := args.Child(i)
			switch arg.Type() {
			case "identifier", "attribute", "subscript":
				base := baseTypeName(nodeText(arg, content))
				if base == "" {
					continue
				}
				switch {
				case pythonEnumBases[base]:
					kind = graph.LabelEnum
				case pythonInterfaceBases[base]:
					kind = graph.LabelInterface
				default:
					bases = append(bases, base)
				}
			}
		}
	}

	result.Symbols = append(result.Symbols, ParsedSymbol{
		Name:       name,
		Kind:       kind,
		StartLine:  startLine(node),
		EndLine:    endLine(node),
		Content:    nodeText(node, content),
		Signature:  firstLine(node, content),
		IsExported: pythonExported(name),
		Decorators: decorators,
	})

	// Python has a single inheritance syntax; the distinction between
	// extends and implements is resolved later against the parent's kind.
	for _, base := range bases {
		result.Heritage = append(result.Heritage, HeritageTuple{
			ChildName:  name,
			Kind:       HeritageExtends,
			ParentName: base,
		})
	}

	if body := node.ChildByFieldName("body"); body != nil {
		p.extractMethods(body, content, result, name)
	}
}

// extractMethods records method symbols within a class body.
func (p *PythonParser) extractMethods(body *sitter.Node, content []byte, result *ParseResult, className string) {
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		switch child.Type() {
		case "function_definition":
			p.processFunction(child, content, result, className, nil)
		case "decorated_definition":
			decs, inner := p.splitDecorated(child, content)
			if inner != nil && inner.Type() == "function_definition" {
				p.processFunction(inner, content, result, className, decs)
			}
		}
	}
}

// processTypeAlias records a PEP 695 "type X = ..." statement.
func (p *PythonParser) processTypeAlias(node *sitter.Node, content []byte, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "type" || child.Type() == "identifier" {
			name := baseTypeName(nodeText(child, content))
			if name == "" {
				return
			}
			result.Symbols = append(result.Symbols, ParsedSymbol{
				Name:       name,
				Kind:       graph.LabelTypeAlias,
				StartLine:  startLine(node),
				EndLine:    endLine(node),
				Content:    nodeText(node, content),
				Signature:  firstLine(node, content),
				IsExported: pythonExported(name),
			})
			return
		}
	}
}

// extractImports walks the entire tree so inline imports inside function
// bodies are captured; Python uses those to break circular dependencies and
// they must feed the import name map for call resolution.
func (p *PythonParser) extractImports(node *sitter.Node, content []byte, result *ParseResult, depth int) {
	if node == nil || depth > MaxWalkDepth {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "import_statement":
			p.processImport(child, content, result)
		case "import_from_statement":
			p.processImportFrom(child, content, result)
		default:
			p.extractImports(child, content, result, depth+1)
		}
	}
}

// processImport handles "import foo" and "import foo as bar".
func (p *PythonParser) processImport(node *sitter.Node, content []byte, result *ParseResult) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "dotted_name":
			result.Imports = append(result.Imports, ImportStatement{
				ModulePath: nodeText(child, content),
				StartLine:  startLine(node),
			})
		case "aliased_import":
			var path, alias string
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				switch gc.Type() {
				case "dotted_name":
					path = nodeText(gc, content)
				case "identifier":
					alias = nodeText(gc, content)
				}
			}
			if path != "" {
				result.Imports = append(result.Imports, ImportStatement{
					ModulePath: path,
					Alias:      alias,
					StartLine:  startLine(node),
				})
			}
		}
	}
}

// processImportFrom handles "from x import y" with relative prefixes,
// aliases, and wildcards.
func (p *PythonParser) processImportFrom(node *sitter.Node, content []byte, result *ParseResult) {
	var modulePath string
	var symbols []string
	var isRelative bool
	sawImport := false

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true
		case "relative_import":
			isRelative = true
			modulePath = nodeText(child, content)
		case "dotted_name":
			if sawImport {
				symbols = append(symbols, nodeText(child, content))
			} else {
				modulePath = nodeText(child, content)
			}
		case "aliased_import":
			// "from x import y as z" records the original name y.
			for j := 0; j < int(child.ChildCount()); j++ {
				gc := child.Child(j)
				if gc.Type() == "dotted_name" {
					symbols = append(symbols, nodeText(gc, content))
					break
				}
			}
		case "identifier":
			if sawImport {
				symbols = append(symbols, nodeText(child, content))
			}
		case "wildcard_import":
			symbols = append(symbols, "*")
		}
	}

	if modulePath == "" && !isRelative {
		return
	}
	if modulePath == "" {
		modulePath = "."
	}
	result.Imports = append(result.Imports, ImportStatement{
		ModulePath: modulePath,
		Symbols:    symbols,
		IsRelative: isRelative,
		StartLine:  startLine(node),
	})
}

// extractCalls walks the entire tree recording raw call expressions.
func (p *PythonParser) extractCalls(node *sitter.Node, content []byte, result *ParseResult, depth int) {
	if node == nil || depth > MaxWalkDepth {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Type() == "call" {
			p.processCall(child, content, result)
		}
		p.extractCalls(child, content, result, depth+1)
	}
}

// processCall splits a call expression into name, receiver, and
// bare-identifier arguments.
func (p *PythonParser) processCall(node *sitter.Node, content []byte, result *ParseResult) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}

	cs := CallSite{StartLine: startLine(node)}
	switch fn.Type() {
	case "identifier":
		cs.Name = nodeText(fn, content)
	case "attribute":
		attr := fn.ChildByFieldName("attribute")
		obj := fn.ChildByFieldName("object")
		if attr == nil {
			return
		}
		cs.Name = nodeText(attr, content)
		if obj != nil && obj.Type() == "identifier" {
			cs.Receiver = nodeText(obj, content)
		} else if obj != nil {
			// Chained receiver (a.b.c()); keep the full dotted name so
			// the blocklist can inspect the leaf.
			cs.Name = nodeText(fn, content)
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

// extractTypeRefs records type annotations from typed parameters, return
// types, and annotated assignments. role tracks the enclosing context.
func (p *PythonParser) extractTypeRefs(node *sitter.Node, content []byte, result *ParseResult, role string, depth int) {
	if node == nil || depth > MaxWalkDepth {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "typed_parameter", "typed_default_parameter":
			if tn := child.ChildByFieldName("type"); tn != nil {
				p.addTypeRef(tn, content, result, "parameter")
			}
		case "function_definition":
			if rt := child.ChildByFieldName("return_type"); rt != nil {
				p.addTypeRef(rt, content, result, "return")
			}
			p.extractTypeRefs(child, content, result, "variable", depth+1)
			continue
		case "class_definition":
			p.extractTypeRefs(child, content, result, "field", depth+1)
			continue
		case "assignment":
			if tn := child.ChildByFieldName("type"); tn != nil {
				p.addTypeRef(tn, content, result, role)
			}
		}
		p.extractTypeRefs(child, content, result, role, depth+1)
	}
}

// addTypeRef records a single annotation occurrence, skipping builtins that
// never resolve to graph nodes.
func (p *PythonParser) addTypeRef(node *sitter.Node, content []byte, result *ParseResult, role string) {
	name := baseTypeName(nodeText(node, content))
	if name == "" || pythonBuiltinTypes[name] {
		return
	}
	result.TypeRefs = append(result.TypeRefs, TypeRef{
		Name:      name,
		Role:      role,
		StartLine: startLine(node),
	})
}

// pythonBuiltinTypes are annotation names that never map to user symbols.
var pythonBuiltinTypes = map[string]bool{
	"int": true, "float": true, "str": true, "bool": true, "bytes": true,
	"None": true, "Any": true, "object": true, "dict": true, "list": true,
	"tuple": true, "set": true, "frozenset": true, "Optional": true,
	"Union": true, "List": true, "Dict": true, "Tuple": true, "Set": true,
	"Callable": true, "Iterator": true, "Iterable": true, "Sequence": true,
	"Mapping": true, "Type": true, "type": true,
}

// pythonExported reports Python visibility: a leading underscore marks a
// module-private name. Dunders are not exported; the dead-code exemptions
// treat them separately.
func pythonExported(name string) bool {
	return !strings.HasPrefix(name, "_")
}
