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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/lang"
)

// buildGraph runs the file-local phases up to and including call tracing
// over in-memory fixtures.
func buildGraph(t *testing.T, files []FileEntry) *graph.KnowledgeGraph {
	t.Helper()
	g := graph.NewKnowledgeGraph()
	require.NoError(t, ProcessStructure(files, g))
	parseData, err := ProcessParsing(context.Background(), files, lang.NewDefaultRegistry(), g)
	require.NoError(t, err)
	ProcessImports(parseData, g)
	ProcessCalls(parseData, g)
	return g
}

// findCall returns the CALLS edge between two node ids, or nil.
func findCall(g *graph.KnowledgeGraph, sourceID, targetID string) *graph.GraphRelationship {
	for _, rel := range g.GetOutgoing(sourceID, graph.RelCalls) {
		if rel.Target == targetID {
			return rel
		}
	}
	return nil
}

func confidence(t *testing.T, rel *graph.GraphRelationship) float64 {
	t.Helper()
	require.NotNil(t, rel)
	props, ok := rel.Props.(graph.CallProps)
	require.True(t, ok)
	return props.Confidence
}

func TestProcessCallsSameFile(t *testing.T) {
	g := buildGraph(t, []FileEntry{{
		Path:     "app/util.py",
		Language: "python",
		Content: "def transform(value):\n" +
			"    return value\n" +
			"\n" +
			"\n" +
			"def helper():\n" +
			"    transform(1)\n" +
			"    transform(2)\n",
	}})

	helper := graph.GenerateID(graph.LabelFunction, "app/util.py", "helper")
	transform := graph.GenerateID(graph.LabelFunction, "app/util.py", "transform")

	rel := findCall(g, helper, transform)
	assert.Equal(t, 1.0, confidence(t, rel))

	// Repeated calls to the same target collapse into one edge.
	assert.Len(t, g.GetOutgoing(helper, graph.RelCalls), 1)
}

func TestProcessCallsImportResolved(t *testing.T) {
	g := buildGraph(t, []FileEntry{
		{
			Path:     "app/util.py",
			Language: "python",
			Content:  "def transform(value):\n    return value\n",
		},
		{
			Path:     "app/api.py",
			Language: "python",
			Content: "from app.util import transform\n" +
				"\n" +
				"\n" +
				"def serve():\n" +
				"    transform(2)\n",
		},
	})

	serve := graph.GenerateID(graph.LabelFunction, "app/api.py", "serve")
	transform := graph.GenerateID(graph.LabelFunction, "app/util.py", "transform")
	assert.Equal(t, 1.0, confidence(t, findCall(g, serve, transform)))
}

func TestProcessCallsGlobalFallback(t *testing.T) {
	g := buildGraph(t, []FileEntry{
		{
			Path:     "lib/shared.py",
			Language: "python",
			Content:  "def shared_helper():\n    pass\n",
		},
		{
			Path:     "app/deep/nested/caller.py",
			Language: "python",
			Content:  "def caller():\n    shared_helper()\n",
		},
	})

	caller := graph.GenerateID(graph.LabelFunction, "app/deep/nested/caller.py", "caller")
	shared := graph.GenerateID(graph.LabelFunction, "lib/shared.py", "shared_helper")
	assert.Equal(t, 0.5, confidence(t, findCall(g, caller, shared)))
}

func TestProcessCallsSelfReceiver(t *testing.T) {
	g := buildGraph(t, []FileEntry{
		{
			Path:     "app/service.py",
			Language: "python",
			Content: "class Service:\n" +
				"    def start(self):\n" +
				"        self.configure()\n" +
				"        self.missing()\n" +
				"\n" +
				"    def configure(self):\n" +
				"        pass\n",
		},
		{
			Path:     "app/other.py",
			Language: "python",
			Content:  "def missing():\n    pass\n",
		},
	})

	start := graph.GenerateID(graph.LabelMethod, "app/service.py", "Service.start")
	configure := graph.GenerateID(graph.LabelMethod, "app/service.py", "Service.configure")
	assert.Equal(t, 1.0, confidence(t, findCall(g, start, configure)))

	// self.missing() must not fall through to the global function of the
	// same name in another file.
	otherMissing := graph.GenerateID(graph.LabelFunction, "app/other.py", "missing")
	assert.Nil(t, findCall(g, start, otherMissing))
}

func TestProcessCallsBlocklist(t *testing.T) {
	g := buildGraph(t, []FileEntry{{
		Path:     "app/cache.py",
		Language: "python",
		Content: "class Cache:\n" +
			"    def fetch(self):\n" +
			"        print(self)\n" +
			"        self.get()\n" +
			"\n" +
			"    def get(self):\n" +
			"        pass\n",
	}})

	fetch := graph.GenerateID(graph.LabelMethod, "app/cache.py", "Cache.fetch")
	get := graph.GenerateID(graph.LabelMethod, "app/cache.py", "Cache.get")

	// "get" is blocklisted but a self receiver bypasses the blocklist.
	assert.Equal(t, 1.0, confidence(t, findCall(g, fetch, get)))

	// print never produces an edge; only the self.get edge exists.
	assert.Len(t, g.GetOutgoing(fetch, graph.RelCalls), 1)
}

func TestProcessCallsExplicitReceiver(t *testing.T) {
	g := buildGraph(t, []FileEntry{{
		Path:     "app/client.py",
		Language: "python",
		Content: "class Client:\n" +
			"    def send(self):\n" +
			"        pass\n" +
			"\n" +
			"\n" +
			"def run():\n" +
			"    Client.send()\n",
	}})

	run := graph.GenerateID(graph.LabelFunction, "app/client.py", "run")
	client := graph.GenerateID(graph.LabelClass, "app/client.py", "Client")
	send := graph.GenerateID(graph.LabelMethod, "app/client.py", "Client.send")

	// The receiver token resolves at full confidence, the method on the
	// receiver's class at 0.8.
	assert.Equal(t, 1.0, confidence(t, findCall(g, run, client)))
	assert.Equal(t, 0.8, confidence(t, findCall(g, run, send)))
}

func TestProcessCallsCallbackArgs(t *testing.T) {
	g := buildGraph(t, []FileEntry{{
		Path:     "app/events.py",
		Language: "python",
		Content: "def callback():\n" +
			"    pass\n" +
			"\n" +
			"\n" +
			"def trigger():\n" +
			"    schedule(callback)\n",
	}})

	trigger := graph.GenerateID(graph.LabelFunction, "app/events.py", "trigger")
	callback := graph.GenerateID(graph.LabelFunction, "app/events.py", "callback")

	// schedule() has no definition; the callback argument resolves at a
	// 0.8 discount off its same-file confidence.
	assert.Equal(t, 0.8, confidence(t, findCall(g, trigger, callback)))
	assert.Len(t, g.GetOutgoing(trigger, graph.RelCalls), 1)
}

func TestProcessCallsDecorator(t *testing.T) {
	g := buildGraph(t, []FileEntry{{
		Path:     "app/limits.py",
		Language: "python",
		Content: "def rate_limited(fn):\n" +
			"    return fn\n" +
			"\n" +
			"\n" +
			"@rate_limited\n" +
			"def endpoint():\n" +
			"    pass\n",
	}})

	endpoint := graph.GenerateID(graph.LabelFunction, "app/limits.py", "endpoint")
	rateLimited := graph.GenerateID(graph.LabelFunction, "app/limits.py", "rate_limited")
	assert.Equal(t, 1.0, confidence(t, findCall(g, endpoint, rateLimited)))
}

func TestProcessCallsModuleLevelSkipped(t *testing.T) {
	g := buildGraph(t, []FileEntry{{
		Path:     "app/boot.py",
		Language: "python",
		Content: "def setup():\n" +
			"    pass\n" +
			"\n" +
			"\n" +
			"setup()\n",
	}})

	// A module-level call has no containing symbol, so no edge is created.
	setup := graph.GenerateID(graph.LabelFunction, "app/boot.py", "setup")
	assert.False(t, g.HasIncoming(setup, graph.RelCalls))
}
