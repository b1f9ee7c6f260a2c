// Command serve exposes an index over an HTTP JSON API.
//
// Endpoints:
//
//	POST   /index      index a document: {"id": "...", "fields": {...}}
//	POST   /query      run a query: {"query": "...", "limit": 10}
//	GET    /docs/{id}  fetch a stored document
//	DELETE /docs/{id}  delete a document
//	POST   /flush      flush buffered documents to a segment
//	GET    /stats      segment and document counts
//	GET    /healthz    liveness check
//	GET    /metrics    Prometheus metrics, when enabled
//
// Configuration comes from an optional YAML file plus SIFT_* environment
// variable overrides. Buffered documents are flushed on graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"sift/internal/config"
	"sift/internal/index"
	"sift/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Logging.Setup()

	indexCfg, err := cfg.Index.Build()
	if err != nil {
		slog.Error("invalid index settings", "error", err)
		os.Exit(1)
	}

	idx, err := index.New(indexCfg)
	if err != nil {
		slog.Error("failed to open index", "dir", indexCfg.Dir, "error", err)
		os.Exit(1)
	}
	slog.Info("index opened", "dir", indexCfg.Dir, "segments", idx.NumSegments())

	srv := server.New(idx, cfg.Metrics)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		idx.Close()
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	if err := idx.Flush(); err != nil {
		slog.Error("final flush failed", "error", err)
	}
	if err := idx.Close(); err != nil {
		slog.Error("closing index failed", "error", err)
	}
	slog.Info("server stopped")
}
