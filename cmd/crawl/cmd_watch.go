// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spginebaugh/cursor-crawl/services/symgraph/api"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/discover"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/index"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/orchestrator"
	"github.com/spginebaugh/cursor-crawl/services/symgraph/telemetry"
)

// shutdownTimeout bounds the HTTP server's graceful shutdown.
const shutdownTimeout = 5 * time.Second

// startWatching loads the index (building it when none exists) and starts a
// watcher that applies every debounced change to the returned holder.
func (a *app) startWatching(ctx context.Context) (*orchestrator.IndexHolder, *orchestrator.FileWatcher, error) {
	log := a.logger.Slog()

	ix, err := a.newIndexer()
	if err != nil {
		return nil, nil, err
	}

	idx, err := ix.Load(ctx)
	if errors.Is(err, index.ErrIndexNotFound) {
		log.Info("no index found, building")
		files, ferr := a.files(ctx)
		if ferr != nil {
			return nil, nil, ferr
		}
		idx, err = ix.Build(ctx, files)
	}
	if err != nil {
		return nil, nil, err
	}
	holder := orchestrator.NewIndexHolder(idx)

	opts := orchestrator.DefaultFileWatcherOptions()
	opts.DebounceWindow = a.cfg.Watch.Debounce
	opts.Logger = log
	list := orchestrator.FileLister(discover.Lister(a.root, a.discoverOptions()...))

	w, err := orchestrator.NewFileWatcher(a.root, orchestrator.UpdateHandler(ctx, ix, holder, list, log), &opts)
	if err != nil {
		return nil, nil, err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return nil, nil, err
	}

	log.Info("watching project",
		slog.String("root", a.root),
		slog.Int("symbols", idx.Len()),
		slog.Duration("debounce", opts.DebounceWindow))
	return holder, w, nil
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the index up to date as files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, w, err := a.startWatching(ctx)
			if err != nil {
				return err
			}
			<-ctx.Done()
			w.Stop()
			a.logger.Info("watcher stopped")
			return nil
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live index over HTTP",
		Long: `Watch the project and serve the current index under /v1/symgraph.
Metrics are exposed on /metrics when the prometheus exporter is selected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			tcfg := telemetry.DefaultConfig()
			tcfg.TraceExporter = a.cfg.Telemetry.Traces
			tcfg.MetricExporter = a.cfg.Telemetry.Metrics
			tcfg.OTLPEndpoint = a.cfg.Telemetry.OTLPEndpoint
			shutdown, err := telemetry.Init(ctx, tcfg)
			if err != nil {
				return fmt.Errorf("initializing telemetry: %w", err)
			}
			a.closers = append(a.closers, func() error {
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return shutdown(sctx)
			})

			holder, w, err := a.startWatching(ctx)
			if err != nil {
				return err
			}
			defer w.Stop()

			handlers := api.NewHandlers(holder, a.logger.Slog())
			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewRouter(handlers, tcfg.ServiceName, telemetry.MetricsHandler()),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("serving index", slog.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				return fmt.Errorf("shutting down server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}
