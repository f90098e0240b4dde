// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrator

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
	tracer = otel.Tracer("cursorcrawl.orchestrator")
	meter  = otel.Meter("cursorcrawl.orchestrator")
)

var (
	runLatency   metric.Float64Histogram
	runTotal     metric.Int64Counter
	indexSymbols metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"symgraph_index_run_duration_seconds",
			metric.WithDescription("Duration of index builds and updates"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"symgraph_index_runs_total",
			metric.WithDescription("Index builds and updates by operation and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		indexSymbols, err = meter.Int64Histogram(
			"symgraph_index_symbols",
			metric.WithDescription("Number of symbols in the index after a run"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordRunMetrics(ctx context.Context, op string, duration time.Duration, symbols int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", success),
	)
	runLatency.Record(ctx, duration.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)
	if success {
		indexSymbols.Record(ctx, int64(symbols), metric.WithAttributes(attribute.String("op", op)))
	}
}

func startRunSpan(ctx context.Context, op, runID string, fileCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Indexer."+op,
		trace.WithAttributes(
			attribute.String("symgraph.run_id", runID),
			attribute.Int("symgraph.file_count", fileCount),
		),
	)
}
