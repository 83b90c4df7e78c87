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
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/codegraph/services/codegraph/gitlog"
	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/lang"
	"github.com/AleutianAI/codegraph/services/codegraph/walker"
)

// Storage is the persistence surface the pipeline writes to. The pipeline
// only ever appends or replaces-by-file; queries live behind the storage
// package's own API.
type Storage interface {
	BulkLoad(ctx context.Context, g *graph.KnowledgeGraph) error
	AddNodes(ctx context.Context, nodes []*graph.GraphNode) error
	AddRelationships(ctx context.Context, rels []*graph.GraphRelationship) error
	RemoveNodesByFile(ctx context.Context, filePath string) (int, error)
	RebuildFTSIndexes(ctx context.Context) error
}

// ProgressFunc receives (phase name, fraction in [0,1]) updates. Every phase
// reports at least 0.0 on entry and 1.0 on completion.
type ProgressFunc func(phase string, fraction float64)

// PipelineResult summarizes one pipeline run.
type PipelineResult struct {
	Files           int      `json:"files"`
	Symbols         int      `json:"symbols"`
	Relationships   int      `json:"relationships"`
	Clusters        int      `json:"clusters"`
	Processes       int      `json:"processes"`
	DeadCode        int      `json:"dead_code"`
	CoupledPairs    int      `json:"coupled_pairs"`
	DurationSeconds float64  `json:"duration_seconds"`
	Incremental     bool     `json:"incremental"`
	ChangedFiles    []string `json:"changed_files,omitempty"`
}

// Pipeline drives the ingestion phases in order over one repository. A
// Pipeline instance is not safe for concurrent runs; each run exclusively
// owns the graph it builds.
type Pipeline struct {
	registry *walkerRegistry
	storage  Storage
	miner    *gitlog.Miner
	progress ProgressFunc
	logger   *slog.Logger
}

// walkerRegistry pairs the parser registry with the file walker built from
// its extensions, so the two never disagree on which files are code.
type walkerRegistry struct {
	parsers *lang.Registry
	walk    *walker.Walker
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithStorage sets the persistence backend. Without one, the pipeline runs
// in-memory only and skips the load phase.
func WithStorage(s Storage) PipelineOption {
	return func(p *Pipeline) { p.storage = s }
}

// WithProgress sets the progress sink.
func WithProgress(fn ProgressFunc) PipelineOption {
	return func(p *Pipeline) { p.progress = fn }
}

// WithPipelineLogger sets the structured logger.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithGitMiner overrides the git history miner, mainly for tests.
func WithGitMiner(m *gitlog.Miner) PipelineOption {
	return func(p *Pipeline) { p.miner = m }
}

// WithMaxFileSize skips source files larger than the given size during the
// walk phase. Zero disables the check.
func WithMaxFileSize(bytes int64) PipelineOption {
	return func(p *Pipeline) {
		p.registry.walk = walker.New(
			walker.WithExtensions(p.registry.parsers.Extensions()),
			walker.WithMaxFileSize(bytes),
		)
	}
}

// NewPipeline builds a pipeline around a parser registry.
func NewPipeline(registry *lang.Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry: &walkerRegistry{
			parsers: registry,
			walk:    walker.New(walker.WithExtensions(registry.Extensions())),
		},
		miner:    gitlog.NewMiner(),
		progress: func(string, float64) {},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// phase wraps one pipeline phase with progress reporting, a trace span, and
// a duration metric.
func (p *Pipeline) phase(ctx context.Context, name, metricKey string, fn func(ctx context.Context) error) error {
	p.progress(name, 0.0)
	ctx, span := tracer.Start(ctx, "ingest."+metricKey)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	observePhase(metricKey, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%s: %w", metricKey, err)
	}
	p.progress(name, 1.0)
	return nil
}

// Run executes a full index of the repository at repoPath and returns the
// run summary. The graph is built in memory, enriched phase by phase, and
// bulk-loaded into storage at the end; on any phase error the storage
// contents are left untouched.
func (p *Pipeline) Run(ctx context.Context, repoPath string) (*PipelineResult, error) {
	runID := uuid.NewString()
	logger := p.logger.With(slog.String("run_id", runID), slog.String("repo", repoPath))

	ctx, span := tracer.Start(ctx, "ingest.run")
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.String("repo.path", repoPath),
	)
	defer span.End()

	start := time.Now()
	result, err := p.run(ctx, repoPath, logger)
	if err != nil {
		span.RecordError(err)
		pipelineRunsTotal.WithLabelValues("full", "error").Inc()
		return nil, err
	}

	result.DurationSeconds = time.Since(start).Seconds()
	pipelineRunsTotal.WithLabelValues("full", "ok").Inc()
	deadSymbolsLast.Set(float64(result.DeadCode))

	logger.Info("pipeline complete",
		slog.Int("files", result.Files),
		slog.Int("symbols", result.Symbols),
		slog.Int("relationships", result.Relationships),
		slog.Int("dead_code", result.DeadCode),
		slog.Float64("duration_seconds", result.DurationSeconds))
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, repoPath string, logger *slog.Logger) (*PipelineResult, error) {
	g := graph.NewKnowledgeGraph(graph.WithLogger(logger))
	result := &PipelineResult{}

	var files []FileEntry
	err := p.phase(ctx, "Walking files", "walk", func(ctx context.Context) error {
		infos, err := p.registry.walk.Walk(ctx, repoPath)
		if err != nil {
			return err
		}
		files, err = p.loadFiles(infos, logger)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.Files = len(files)

	err = p.phase(ctx, "Processing structure", "structure", func(ctx context.Context) error {
		return ProcessStructure(files, g)
	})
	if err != nil {
		return nil, err
	}

	var parseData []FileParseData
	err = p.phase(ctx, "Parsing code", "parse", func(ctx context.Context) error {
		var err error
		parseData, err = ProcessParsing(ctx, files, p.registry.parsers, g)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.phase(ctx, "Resolving imports", "imports", func(ctx context.Context) error {
		ProcessImports(parseData, g)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.phase(ctx, "Tracing calls", "calls", func(ctx context.Context) error {
		ProcessCalls(parseData, g)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.phase(ctx, "Extracting heritage", "heritage", func(ctx context.Context) error {
		ProcessHeritage(parseData, g)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.phase(ctx, "Analyzing types", "types", func(ctx context.Context) error {
		ProcessTypeRefs(parseData, g)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.phase(ctx, "Detecting communities", "communities", func(ctx context.Context) error {
		var err error
		result.Clusters, err = ProcessCommunities(g)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.phase(ctx, "Detecting execution flows", "processes", func(ctx context.Context) error {
		var err error
		result.Processes, err = ProcessFlows(g)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.phase(ctx, "Finding dead code", "dead_code", func(ctx context.Context) error {
		result.DeadCode = ProcessDeadCode(g)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.phase(ctx, "Analyzing git history", "coupling", func(ctx context.Context) error {
		var err error
		result.CoupledPairs, err = ProcessCoupling(ctx, p.miner, repoPath, g)
		return err
	})
	if err != nil {
		return nil, err
	}

	if p.storage != nil {
		err = p.phase(ctx, "Loading to storage", "load", func(ctx context.Context) error {
			if err := p.storage.BulkLoad(ctx, g); err != nil {
				return err
			}
			return p.storage.RebuildFTSIndexes(ctx)
		})
		if err != nil {
			return nil, err
		}
	}

	result.Symbols = countSymbols(g)
	result.Relationships = g.RelationshipCount()
	return result, nil
}

// loadFiles reads walked files into memory with their detected language.
// Unreadable files are logged and skipped.
func (p *Pipeline) loadFiles(infos []walker.FileInfo, logger *slog.Logger) ([]FileEntry, error) {
	files := make([]FileEntry, 0, len(infos))
	for _, info := range infos {
		content, err := os.ReadFile(info.AbsPath)
		if err != nil {
			logger.Warn("unreadable file, skipping",
				slog.String("file", info.Path),
				slog.String("error", err.Error()))
			continue
		}
		language := ""
		if parser, err := p.registry.parsers.ForFile(info.Path); err == nil {
			language = parser.Language()
		}
		files = append(files, FileEntry{
			Path:     info.Path,
			Content:  string(content),
			Language: language,
		})
	}
	return files, nil
}

// countSymbols counts non-structural, non-synthetic nodes.
func countSymbols(g *graph.KnowledgeGraph) int {
	counts := g.CountByLabel()
	total := 0
	for _, label := range graph.SymbolLabels {
		total += counts[label]
	}
	return total
}

// ReindexFiles re-runs the file-local phases for a changed subset of files.
//
// Existing nodes for each file are deleted from storage first, then a fresh
// partial graph is built (structure, parse, imports, calls, heritage, types)
// and appended. Global phases — communities, flows, dead code, coupling —
// are intentionally not re-run here; they read cross-file state and the
// caller decides when a batch of incremental updates warrants recomputing
// them. Returns the partial graph so callers can run those phases or
// inspect the delta.
func (p *Pipeline) ReindexFiles(ctx context.Context, repoPath string, changed []string) (*graph.KnowledgeGraph, *PipelineResult, error) {
	runID := uuid.NewString()
	logger := p.logger.With(slog.String("run_id", runID), slog.String("repo", repoPath))

	ctx, span := tracer.Start(ctx, "ingest.reindex")
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.Int("files.changed", len(changed)),
	)
	defer span.End()

	start := time.Now()
	g, result, err := p.reindex(ctx, repoPath, changed, logger)
	if err != nil {
		span.RecordError(err)
		pipelineRunsTotal.WithLabelValues("incremental", "error").Inc()
		return nil, nil, err
	}
	result.DurationSeconds = time.Since(start).Seconds()
	pipelineRunsTotal.WithLabelValues("incremental", "ok").Inc()

	logger.Info("incremental reindex complete",
		slog.Int("files", len(changed)),
		slog.Int("symbols", result.Symbols),
		slog.Float64("duration_seconds", result.DurationSeconds))
	return g, result, nil
}

func (p *Pipeline) reindex(ctx context.Context, repoPath string, changed []string, logger *slog.Logger) (*graph.KnowledgeGraph, *PipelineResult, error) {
	if p.storage == nil {
		return nil, nil, fmt.Errorf("incremental reindex requires a storage backend")
	}

	for _, filePath := range changed {
		removed, err := p.storage.RemoveNodesByFile(ctx, filePath)
		if err != nil {
			return nil, nil, fmt.Errorf("removing stale nodes for %s: %w", filePath, err)
		}
		logger.Debug("removed stale nodes",
			slog.String("file", filePath),
			slog.Int("count", removed))
	}

	files := make([]FileEntry, 0, len(changed))
	for _, filePath := range changed {
		content, err := os.ReadFile(repoPath + "/" + filePath)
		if err != nil {
			// Deleted file: the removal above is the whole update.
			logger.Debug("changed file no longer readable",
				slog.String("file", filePath),
				slog.String("error", err.Error()))
			continue
		}
		language := ""
		if parser, err := p.registry.parsers.ForFile(filePath); err == nil {
			language = parser.Language()
		}
		files = append(files, FileEntry{Path: filePath, Content: string(content), Language: language})
	}

	g := graph.NewKnowledgeGraph(graph.WithLogger(logger))
	if err := ProcessStructure(files, g); err != nil {
		return nil, nil, err
	}
	parseData, err := ProcessParsing(ctx, files, p.registry.parsers, g)
	if err != nil {
		return nil, nil, err
	}
	ProcessImports(parseData, g)
	ProcessCalls(parseData, g)
	ProcessHeritage(parseData, g)
	ProcessTypeRefs(parseData, g)

	if err := p.storage.AddNodes(ctx, g.Nodes()); err != nil {
		return nil, nil, err
	}
	if err := p.storage.AddRelationships(ctx, g.Relationships()); err != nil {
		return nil, nil, err
	}
	if err := p.storage.RebuildFTSIndexes(ctx); err != nil {
		return nil, nil, err
	}

	result := &PipelineResult{
		Files:         len(files),
		Symbols:       countSymbols(g),
		Relationships: g.RelationshipCount(),
		Incremental:   true,
		ChangedFiles:  changed,
	}
	return g, result, nil
}
