// Package snapshotwriter periodically flattens the live catalog into a
// snapshot file and truncates the WAL once the snapshot is durable
// (spec.md §4.11).
package snapshotwriter

import (
	"context"
	"sync"
	"time"

	"github.com/dittostore/dittostore/internal/catalog"
	"github.com/dittostore/dittostore/internal/logger"
	"github.com/dittostore/dittostore/internal/metrics"
	"github.com/dittostore/dittostore/internal/snapshot"
	"github.com/dittostore/dittostore/internal/wal"
)

// Writer owns the periodic snapshot-then-truncate cycle.
type Writer struct {
	cat      *catalog.Catalog
	wal      *wal.WAL
	path     string
	interval time.Duration
	metrics  *metrics.Metrics

	mu          sync.Mutex
	lastWriteAt time.Time
}

// New constructs a Writer. interval falls back to 300s when non-positive.
func New(cat *catalog.Catalog, w *wal.WAL, snapshotPath string, interval time.Duration, m *metrics.Metrics) *Writer {
	if interval <= 0 {
		interval = 300 * time.Second
	}
	return &Writer{cat: cat, wal: w, path: snapshotPath, interval: interval, metrics: m}
}

// Run ticks every interval, writing a snapshot and truncating the WAL on
// success, until ctx is cancelled. It writes one final snapshot before
// returning so a clean shutdown never loses durable state unnecessarily.
func (w *Writer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.writeOnce()
			return
		case <-ticker.C:
			w.writeOnce()
		}
	}
}

func (w *Writer) writeOnce() {
	snap := w.build()
	if err := snapshot.Write(w.path, snap); err != nil {
		logger.Error("snapshot write failed, WAL retained", "path", w.path, "error", err.Error())
		return
	}
	w.metrics.ObserveSnapshotWrite()

	w.mu.Lock()
	w.lastWriteAt = time.Now().UTC()
	w.mu.Unlock()

	if err := w.wal.Truncate(); err != nil {
		logger.Error("wal truncate after snapshot failed", "error", err.Error())
	}
}

// LastWriteAt returns the time of the last successful snapshot write, or
// the zero Time if none has happened yet.
func (w *Writer) LastWriteAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastWriteAt
}

func (w *Writer) build() snapshot.Snapshot {
	var repos []snapshot.Repo
	var fileTotal int
	w.cat.RangeRepos(func(r catalog.Repo) bool {
		var files []snapshot.File
		w.cat.RangeFiles(r.ID, func(f catalog.File) bool {
			files = append(files, snapshot.File{
				Path:        f.Path,
				SizeBytes:   f.SizeBytes,
				ETag:        f.ETag,
				ContentType: f.ContentType,
				CreatedAt:   f.CreatedAt,
				UpdatedAt:   f.UpdatedAt,
				ExpiresAt:   f.ExpiresAt,
			})
			return true
		})
		fileTotal += len(files)

		repos = append(repos, snapshot.Repo{
			ID:               r.ID,
			Name:             r.Name,
			MaxSizeBytes:     r.MaxSizeBytes,
			CurrentSizeBytes: r.CurrentSizeBytes,
			FileCount:        r.FileCount,
			DefaultTTLSecs:   r.DefaultTTLSecs,
			Tags:             r.Tags,
			CreatedAt:        r.CreatedAt,
			UpdatedAt:        r.UpdatedAt,
			Files:            files,
		})
		return true
	})

	w.metrics.SetCatalogSize(len(repos), fileTotal)
	return snapshot.Snapshot{Repos: repos}
}
