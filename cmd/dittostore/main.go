// Command dittostore runs the multi-tenant content store: metadata
// catalog, byte store, WAL-backed recovery, quota eviction, TTL reaping,
// sandboxed command execution, and the HTTP API that fronts all of it.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dittostore/dittostore/internal/bytestore"
	"github.com/dittostore/dittostore/internal/catalog"
	"github.com/dittostore/dittostore/internal/config"
	"github.com/dittostore/dittostore/internal/fileservice"
	"github.com/dittostore/dittostore/internal/httpapi"
	"github.com/dittostore/dittostore/internal/logger"
	"github.com/dittostore/dittostore/internal/metrics"
	"github.com/dittostore/dittostore/internal/quota"
	"github.com/dittostore/dittostore/internal/recovery"
	"github.com/dittostore/dittostore/internal/reposvc"
	"github.com/dittostore/dittostore/internal/sandbox"
	"github.com/dittostore/dittostore/internal/snapshotwriter"
	"github.com/dittostore/dittostore/internal/ttlreaper"
	"github.com/dittostore/dittostore/internal/wal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Format: "text", Output: "stdout"}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	metadataDir := filepath.Join(cfg.DataDir, "metadata")
	snapshotPath := filepath.Join(metadataDir, "snapshot.bin")
	walPath := filepath.Join(metadataDir, "wal", "current.wal")

	store, err := bytestore.New(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to initialize byte store: %v", err)
	}

	cat := catalog.New()
	if err := recovery.Run(cat, store, snapshotPath, walPath); err != nil {
		log.Fatalf("recovery failed: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(walPath), 0755); err != nil {
		log.Fatalf("failed to create WAL directory: %v", err)
	}
	w, err := wal.Open(walPath)
	if err != nil {
		log.Fatalf("failed to open WAL: %v", err)
	}
	defer w.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.New(registry)
	w.SetMetrics(m)

	files := fileservice.New(cat, store, w, cfg.MaxUploadSize)
	repos := reposvc.New(cat, store, w, cfg.DefaultMaxRepoSize)
	quotaEngine := quota.New(cat, files, 0)
	quotaEngine.SetMetrics(m)
	files.SetEvictor(quotaEngine)
	reaper := ttlreaper.New(cat, files, cfg.TTLSweepInterval())
	reaper.SetMetrics(m)
	runner := sandbox.NewRunner(cfg.MaxConcurrentCommands, cfg.CommandTimeout(), cfg.CommandMaxOutputBytes)
	runner.SetMetrics(m)
	snapWriter := snapshotwriter.New(cat, w, snapshotPath, cfg.SnapshotInterval(), m)

	status := httpapi.StatusSources{
		WAL:            w,
		Snapshots:      snapWriter,
		TTLSweeps:      reaper,
		EvictionSweeps: quotaEngine,
	}
	apiRouter := httpapi.NewRouter(cfg.APIKey, cfg.CORSAllowedOrigins, files, repos, runner, store, m, int64(cfg.MaxUploadSize), status)

	root := http.NewServeMux()
	root.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	root.Handle("/", apiRouter)

	srv := httpapi.NewServer(cfg.Host, cfg.Port, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// errgroup supervises the background loops and the HTTP server as one
	// unit: any one of them returning an error cancels ctx, which unwinds
	// the rest.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		quotaEngine.RunMonitor(gctx)
		return nil
	})
	g.Go(func() error {
		reaper.Run(gctx)
		return nil
	})
	g.Go(func() error {
		snapWriter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.Start(gctx)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("dittostore started", "addr", srv.Addr(), "data_dir", cfg.DataDir)

	<-sigCh
	signal.Stop(sigCh)
	logger.Info("shutdown signal received")
	cancel()

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", "error", err.Error())
		os.Exit(1)
	}

	logger.Info("dittostore stopped")
}
