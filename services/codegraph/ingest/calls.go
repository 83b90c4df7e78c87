// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"log/slog"
	"strings"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/index"
)

// Names that never produce CALLS edges. These are language builtins, stdlib
// utilities, framework hooks, and common JS/TS globals whose definitions do
// not exist in the user's codebase. Filtering them before resolution
// prevents low-confidence global-fuzzy matches against short, common names.
// The only exception is a self/this receiver, where a same-named user method
// is being addressed explicitly.
var callBlocklist = map[string]bool{
	// Python builtins
	"print": true, "len": true, "range": true, "map": true, "filter": true,
	"sorted": true, "list": true, "dict": true, "set": true, "str": true,
	"int": true, "float": true, "bool": true, "type": true, "super": true,
	"isinstance": true, "issubclass": true, "hasattr": true, "getattr": true,
	"setattr": true, "open": true, "iter": true, "next": true, "zip": true,
	"enumerate": true, "any": true, "all": true, "min": true, "max": true,
	"sum": true, "abs": true, "round": true, "repr": true, "id": true,
	"hash": true, "dir": true, "vars": true, "input": true, "format": true,
	"tuple": true, "frozenset": true, "bytes": true, "bytearray": true,
	"memoryview": true, "object": true, "property": true, "classmethod": true,
	"staticmethod": true, "delattr": true, "callable": true, "compile": true,
	"eval": true, "exec": true, "globals": true, "locals": true,
	"breakpoint": true, "exit": true, "quit": true,
	// Python stdlib method names that collide with user-defined symbols
	"append": true, "extend": true, "update": true, "pop": true, "get": true,
	"items": true, "keys": true, "values": true, "split": true, "join": true,
	"strip": true, "replace": true, "startswith": true, "endswith": true,
	"lower": true, "upper": true, "encode": true, "decode": true,
	"read": true, "write": true, "close": true,
	// JS/TS built-in globals
	"console": true, "setTimeout": true, "setInterval": true,
	"clearTimeout": true, "clearInterval": true, "JSON": true, "Array": true,
	"Object": true, "Promise": true, "Math": true, "Date": true,
	"Error": true, "Symbol": true, "parseInt": true, "parseFloat": true,
	"isNaN": true, "isFinite": true, "encodeURIComponent": true,
	"decodeURIComponent": true, "fetch": true, "require": true,
	"exports": true, "module": true, "document": true, "window": true,
	"process": true, "Buffer": true, "URL": true,
	// JS/TS dotted method names extracted as bare call names
	"log": true, "error": true, "warn": true, "info": true, "debug": true,
	"parse": true, "stringify": true,
	"assign": true, "freeze": true,
	"isArray": true, "from": true, "of": true,
	"resolve": true, "reject": true, "race": true,
	"floor": true, "ceil": true, "random": true,
	// React hooks
	"useState": true, "useEffect": true, "useRef": true, "useCallback": true,
	"useMemo": true, "useContext": true, "useReducer": true,
	"useLayoutEffect": true, "useImperativeHandle": true,
	"useDebugValue": true, "useId": true, "useTransition": true,
	"useDeferredValue": true,
	// C# / .NET builtins and common BCL methods
	"Console": true, "WriteLine": true, "ReadLine": true, "Write": true,
	"ToString": true, "GetType": true, "Equals": true, "GetHashCode": true,
	"ReferenceEquals": true, "Convert": true, "String": true, "Int32": true,
	"Int64": true, "Double": true, "Boolean": true, "Decimal": true,
	"Guid": true, "DateTime": true, "TimeSpan": true, "Task": true,
	"Thread": true, "Dispose": true, "GC": true, "Environment": true,
	"Add": true, "Remove": true, "Contains": true, "Clear": true,
	"Count": true, "Select": true, "Where": true, "OrderBy": true,
	"GroupBy": true, "First": true, "FirstOrDefault": true, "ToList": true,
	"ToArray": true, "ToDictionary": true, "Any": true, "All": true,
	"Concat": true, "Skip": true, "Take": true, "Distinct": true,
	"ConfigureAwait": true, "GetAwaiter": true, "GetResult": true,
	"AddSingleton": true, "AddScoped": true, "AddTransient": true,
	"AddControllers": true, "AddSwaggerGen": true, "UseSwagger": true,
}

// isSelfReceiver reports whether the receiver token addresses the enclosing
// instance.
func isSelfReceiver(receiver string) bool {
	return receiver == "self" || receiver == "this"
}

// blocked reports whether a called name is excluded from resolution. The
// leaf segment of a dotted name is what collides with builtins.
func blocked(name string) bool {
	if callBlocklist[name] {
		return true
	}
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return callBlocklist[name[idx+1:]]
	}
	return false
}

// callResolver resolves raw call expressions against the graph.
type callResolver struct {
	g     *graph.KnowledgeGraph
	index *index.SymbolIndex
	seen  map[string]bool
}

func newCallResolver(g *graph.KnowledgeGraph) *callResolver {
	idx := index.NewSymbolIndex()
	for _, label := range callableLabels {
		for _, n := range g.NodesByLabel(label) {
			idx.Add(n)
		}
	}
	return &callResolver{g: g, index: idx, seen: make(map[string]bool)}
}

// resolve maps one call expression to (targetID, confidence), or ("", 0)
// when unresolved. Strict precedence, first match wins:
//
//  1. self/this receiver: a Method node with the call's name in the same
//     file, confidence 1.0. No match means unresolved — never fall through
//     to global search, which would spuriously match unrelated same-named
//     globals.
//  2. Any other explicit receiver: unresolved here. The receiver names an
//     object whose type is statically unknown; a name-only global match
//     would create self-loops when the called name equals a method in the
//     same class. Receiver edges are created separately by
//     resolveReceiverMethod.
//  3. Bare name, same-file definition: confidence 1.0.
//  4. Bare name imported into this file: confidence 1.0.
//  5. Bare name anywhere in the codebase: confidence 0.5, candidates
//     ordered by (path length, path, node id) and the first taken.
func (r *callResolver) resolve(name, receiver, filePath string) (string, float64) {
	if isSelfReceiver(receiver) {
		for _, n := range r.index.ByName(name) {
			if n.Label == graph.LabelMethod && n.FilePath == filePath {
				return n.ID, 1.0
			}
		}
		return "", 0
	}
	if receiver != "" {
		return "", 0
	}

	candidates := r.index.ByName(name)
	if len(candidates) == 0 {
		return "", 0
	}

	// Same-file exact match.
	for _, n := range candidates {
		if n.FilePath == filePath {
			return n.ID, 1.0
		}
	}

	// Import-resolved match.
	if target := r.resolveViaImports(name, filePath, candidates); target != "" {
		return target, 1.0
	}

	// Global fuzzy match with the documented proximity tie-break.
	ordered := append([]*graph.GraphNode(nil), candidates...)
	index.SortByProximity(ordered)
	return ordered[0].ID, 0.5
}

// resolveViaImports checks whether name was imported into filePath and
// returns the candidate defined in one of the imported files.
func (r *callResolver) resolveViaImports(name, filePath string, candidates []*graph.GraphNode) string {
	fileID := graph.GenerateID(graph.LabelFile, filePath)
	importRels := r.g.GetOutgoing(fileID, graph.RelImports)
	if len(importRels) == 0 {
		return ""
	}

	importedFiles := make(map[string]bool)
	for _, rel := range importRels {
		props, _ := rel.Props.(graph.ImportProps)
		// Whole-module and wildcard imports expose every name; symbol
		// imports expose only the listed names.
		exposed := len(props.Symbols) == 0
		for _, s := range props.Symbols {
			if s == "*" || s == name {
				exposed = true
				break
			}
		}
		if !exposed {
			continue
		}
		if target, err := r.g.GetNode(rel.Target); err == nil {
			importedFiles[target.FilePath] = true
		}
	}

	for _, n := range candidates {
		if importedFiles[n.FilePath] {
			return n.ID
		}
	}
	return ""
}

// resolveReceiverMethod resolves Receiver.method() to a Method node whose
// class name matches the receiver token, same-file candidates first, and
// creates a CALLS edge at confidence 0.8.
func (r *callResolver) resolveReceiverMethod(receiver, methodName, sourceID, filePath string) {
	var sameFile, global string
	for _, n := range r.index.ByName(methodName) {
		if n.Label != graph.LabelMethod || n.ClassName != receiver {
			continue
		}
		if n.FilePath == filePath {
			sameFile = n.ID
			break
		}
		if global == "" {
			global = n.ID
		}
	}

	target := sameFile
	if target == "" {
		target = global
	}
	if target != "" {
		r.addEdge(sourceID, target, 0.8)
	}
}

// addEdge creates a deduplicated CALLS relationship. First resolution wins
// the confidence value.
func (r *callResolver) addEdge(sourceID, targetID string, confidence float64) {
	relID := graph.RelationshipID(graph.RelCalls, sourceID, targetID)
	if r.seen[relID] {
		return
	}
	r.seen[relID] = true
	err := r.g.AddRelationship(&graph.GraphRelationship{
		ID:     relID,
		Type:   graph.RelCalls,
		Source: sourceID,
		Target: targetID,
		Props:  graph.CallProps{Confidence: confidence},
	})
	if err != nil {
		slog.Debug("skipping calls edge",
			slog.String("source", sourceID),
			slog.String("target", targetID),
			slog.String("error", err.Error()))
		return
	}
	countEdge("calls", string(graph.RelCalls))
}

// ProcessCalls resolves call expressions and creates CALLS edges.
//
// For each call expression: find the symbol containing the call by line
// span, resolve the call to a target, and connect them. Three heuristics
// run beyond the direct expression:
//
//   - Bare-identifier arguments are resolved as calls at 0.8 times their
//     resolved confidence — callback-passing idioms like map(transform, xs).
//   - Non-self receivers are themselves resolved (the receiver token may
//     name a class or imported symbol) and the receiver-typed method is
//     matched by class name at 0.8.
//   - Decorators are implicit calls: @rate_limited on a function is
//     equivalent to calling rate_limited(func). Dotted decorator names are
//     tried as their rightmost segment first, then as the full dotted name.
func ProcessCalls(parseData []FileParseData, g *graph.KnowledgeGraph) {
	r := newCallResolver(g)

	for _, fpd := range parseData {
		for _, call := range fpd.Result.Calls {
			if blocked(call.Name) && !isSelfReceiver(call.Receiver) {
				continue
			}

			containing := r.index.ContainingSymbol(fpd.FilePath, call.StartLine)
			if containing == nil {
				slog.Debug("no containing symbol for call",
					slog.String("name", call.Name),
					slog.Int("line", call.StartLine),
					slog.String("file", fpd.FilePath))
				continue
			}
			sourceID := containing.ID

			if targetID, conf := r.resolve(call.Name, call.Receiver, fpd.FilePath); targetID != "" {
				r.addEdge(sourceID, targetID, conf)
			} else {
				callsUnresolvedTotal.Inc()
			}

			// Callback arguments.
			for _, argName := range call.Args {
				if blocked(argName) {
					continue
				}
				if argID, argConf := r.resolve(argName, "", fpd.FilePath); argID != "" {
					r.addEdge(sourceID, argID, argConf*0.8)
				}
			}

			// Receiver: link to the receiver symbol and resolve the
			// method on it.
			if call.Receiver != "" && !isSelfReceiver(call.Receiver) {
				if recvID, recvConf := r.resolve(call.Receiver, "", fpd.FilePath); recvID != "" {
					r.addEdge(sourceID, recvID, recvConf)
				}
				r.resolveReceiverMethod(call.Receiver, call.Name, sourceID, fpd.FilePath)
			}
		}

		// Decorator-derived calls.
		for si := range fpd.Result.Symbols {
			sym := &fpd.Result.Symbols[si]
			if len(sym.Decorators) == 0 {
				continue
			}
			if sym.Kind != graph.LabelFunction && sym.Kind != graph.LabelMethod && sym.Kind != graph.LabelClass {
				continue
			}
			sourceID := symbolNodeID(fpd.FilePath, sym)

			for _, dec := range sym.Decorators {
				base := dec
				if idx := strings.LastIndexByte(dec, '.'); idx >= 0 {
					base = dec[idx+1:]
				}
				targetID, conf := r.resolve(base, "", fpd.FilePath)
				if targetID == "" && base != dec {
					targetID, conf = r.resolve(dec, "", fpd.FilePath)
				}
				if targetID != "" {
					r.addEdge(sourceID, targetID, conf)
				}
			}
		}
	}
}
