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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// Package-level tracer for pipeline phases.
var tracer = otel.Tracer("codegraph.ingest")

// =============================================================================
// Prometheus Metrics for Ingestion
// =============================================================================

var (
	// phaseDurationSeconds measures per-phase latency.
	// Labels: phase (structure, parse, imports, calls, ...)
	phaseDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "codegraph",
		Subsystem: "ingest",
		Name:      "phase_duration_seconds",
		Help:      "Duration of each ingestion phase",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"phase"})

	// edgesCreatedTotal counts relationships created by phase and type.
	// Labels: phase, rel_type
	edgesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codegraph",
		Subsystem: "ingest",
		Name:      "edges_created_total",
		Help:      "Relationships created by phase and relationship type",
	}, []string{"phase", "rel_type"})

	// callsUnresolvedTotal counts call expressions no strategy could resolve.
	callsUnresolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codegraph",
		Subsystem: "ingest",
		Name:      "calls_unresolved_total",
		Help:      "Call expressions that resolved to no target",
	})

	// pipelineRunsTotal counts pipeline runs by mode and outcome.
	// Labels: mode (full, incremental), status (ok, error)
	pipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codegraph",
		Subsystem: "ingest",
		Name:      "pipeline_runs_total",
		Help:      "Pipeline runs by mode and outcome",
	}, []string{"mode", "status"})

	// deadSymbolsLast records the dead-symbol count from the latest run.
	deadSymbolsLast = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "codegraph",
		Subsystem: "ingest",
		Name:      "dead_symbols_last",
		Help:      "Symbols flagged dead in the most recent pipeline run",
	})
)

// observePhase records a completed phase's duration.
func observePhase(phase string, seconds float64) {
	phaseDurationSeconds.WithLabelValues(phase).Observe(seconds)
}

// countEdge records one created relationship.
func countEdge(phase string, relType string) {
	edgesCreatedTotal.WithLabelValues(phase, relType).Inc()
}
