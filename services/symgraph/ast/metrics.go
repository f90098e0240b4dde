// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for extraction.
var (
	tracer = otel.Tracer("cursorcrawl.ast")
	meter  = otel.Meter("cursorcrawl.ast")
)

var (
	extractLatency   metric.Float64Histogram
	extractTotal     metric.Int64Counter
	symbolsExtracted metric.Int64Histogram
	nodeErrors       metric.Int64Counter
	filesSkipped     metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		extractLatency, err = meter.Float64Histogram(
			"symgraph_extract_duration_seconds",
			metric.WithDescription("Duration of symbol extraction per file"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		extractTotal, err = meter.Int64Counter(
			"symgraph_extract_total",
			metric.WithDescription("Total number of files extracted"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		symbolsExtracted, err = meter.Int64Histogram(
			"symgraph_symbols_extracted",
			metric.WithDescription("Number of declarations extracted per file"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		nodeErrors, err = meter.Int64Counter(
			"symgraph_node_errors_total",
			metric.WithDescription("Declaration nodes skipped because they could not be extracted"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		filesSkipped, err = meter.Int64Counter(
			"symgraph_files_skipped_total",
			metric.WithDescription("Files skipped by extraction, by reason"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordExtractMetrics records metrics for one extraction.
func recordExtractMetrics(ctx context.Context, lang Language, duration time.Duration, symbolCount, errorCount int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("language", string(lang)),
		attribute.Bool("success", success),
	)
	extractLatency.Record(ctx, duration.Seconds(), attrs)
	extractTotal.Add(ctx, 1, attrs)

	if success {
		symbolsExtracted.Record(ctx, int64(symbolCount),
			metric.WithAttributes(attribute.String("language", string(lang))),
		)
	}
	if errorCount > 0 {
		nodeErrors.Add(ctx, int64(errorCount),
			metric.WithAttributes(attribute.String("language", string(lang))),
		)
	}
}

// recordSkip counts a file skipped for reason.
func recordSkip(ctx context.Context, reason string) {
	if err := initMetrics(); err != nil {
		return
	}
	filesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// startExtractSpan creates a span for an extraction. The caller must End it.
func startExtractSpan(ctx context.Context, filePath string, contentSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Extractor.Extract",
		trace.WithAttributes(
			attribute.String("symgraph.file", filePath),
			attribute.Int("symgraph.content_size", contentSize),
		),
	)
}

func setExtractSpanResult(span trace.Span, symbolCount, useSiteCount, errorCount int) {
	span.SetAttributes(
		attribute.Int("symgraph.symbol_count", symbolCount),
		attribute.Int("symgraph.use_site_count", useSiteCount),
		attribute.Int("symgraph.node_error_count", errorCount),
	)
}
