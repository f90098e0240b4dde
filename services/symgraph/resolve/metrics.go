// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("cursorcrawl.resolve")
	meter  = otel.Meter("cursorcrawl.resolve")
)

var (
	resolveLatency metric.Float64Histogram
	edgesAdded     metric.Int64Counter
	fileFailures   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		resolveLatency, err = meter.Float64Histogram(
			"symgraph_resolve_duration_seconds",
			metric.WithDescription("Duration of whole-project dependency resolution"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesAdded, err = meter.Int64Counter(
			"symgraph_edges_added_total",
			metric.WithDescription("Dependency edges added by resolution"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fileFailures, err = meter.Int64Counter(
			"symgraph_resolve_file_failures_total",
			metric.WithDescription("Files skipped during resolution"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordResolveMetrics(ctx context.Context, duration time.Duration, stats Stats) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("context_reused", stats.ContextReused))
	resolveLatency.Record(ctx, duration.Seconds(), attrs)
	edgesAdded.Add(ctx, int64(stats.EdgesAdded))
	if stats.FileErrors > 0 {
		fileFailures.Add(ctx, int64(stats.FileErrors))
	}
}

func startResolveSpan(ctx context.Context, indexedFiles, projectFiles int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Resolver.Resolve",
		trace.WithAttributes(
			attribute.Int("symgraph.indexed_files", indexedFiles),
			attribute.Int("symgraph.project_files", projectFiles),
		),
	)
}

func setResolveSpanResult(span trace.Span, stats Stats) {
	span.SetAttributes(
		attribute.Int("symgraph.edges_added", stats.EdgesAdded),
		attribute.Int("symgraph.file_errors", stats.FileErrors),
		attribute.Int("symgraph.facts_reused", stats.FactsReused),
		attribute.Bool("symgraph.context_reused", stats.ContextReused),
	)
}
