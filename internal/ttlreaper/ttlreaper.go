// Package ttlreaper runs a periodic sweep deleting files past their
// expiry timestamp.
package ttlreaper

import (
	"context"
	"sync"
	"time"

	"github.com/dittostore/dittostore/internal/catalog"
	"github.com/dittostore/dittostore/internal/logger"
	"github.com/dittostore/dittostore/internal/metrics"
)

// Deleter removes a file through the file service's delete path.
type Deleter interface {
	Delete(repoID, path string) error
}

// Reaper sweeps expired files on a wall-clock timer.
type Reaper struct {
	cat      *catalog.Catalog
	deleter  Deleter
	interval time.Duration
	metrics  *metrics.Metrics

	mu        sync.Mutex
	lastSweep time.Time
}

// New constructs a Reaper. interval defaults to 60s if non-positive.
func New(cat *catalog.Catalog, deleter Deleter, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Reaper{cat: cat, deleter: deleter, interval: interval}
}

// SetMetrics attaches a metrics sink for reap-count observations. Optional;
// a nil sink is safe since every Metrics method no-ops on a nil receiver.
func (r *Reaper) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Run loops until ctx is cancelled, sweeping every tick.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepOnce()
		}
	}
}

// LastSweepAt returns the start time of the most recent sweep, or the zero
// Time if the reaper has not swept yet.
func (r *Reaper) LastSweepAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSweep
}

func (r *Reaper) sweepOnce() {
	now := time.Now().UTC()

	r.mu.Lock()
	r.lastSweep = now
	r.mu.Unlock()

	var repoIDs []string
	r.cat.RangeRepos(func(repo catalog.Repo) bool {
		repoIDs = append(repoIDs, repo.ID)
		return true
	})

	for _, repoID := range repoIDs {
		var expired []string
		r.cat.RangeFiles(repoID, func(f catalog.File) bool {
			if f.ExpiresAt != nil && !f.ExpiresAt.After(now) {
				expired = append(expired, f.Path)
			}
			return true
		})

		reaped := 0
		for _, path := range expired {
			if _, ok := r.cat.GetFile(repoID, path); !ok {
				continue
			}
			if err := r.deleter.Delete(repoID, path); err != nil {
				logger.Warn("ttl reaper delete failed", "repo_id", repoID, "path", path, "error", err.Error())
				continue
			}
			reaped++
		}
		if reaped > 0 {
			logger.Info("ttl sweep reaped expired files", logger.RepoID(repoID), logger.Reaped(reaped))
		}
		r.metrics.ObserveTTLReap(reaped)
	}
}
