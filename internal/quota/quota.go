// Package quota implements the eviction engine: per-repository byte
// ceilings enforced by score-based victim selection, both on admission
// pressure and on a periodic background sweep.
package quota

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dittostore/dittostore/internal/catalog"
	"github.com/dittostore/dittostore/internal/logger"
	"github.com/dittostore/dittostore/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Deleter removes a file through the same path as an explicit delete, so
// WAL and byte-store accounting stay consistent. fileservice.Service
// implements this.
type Deleter interface {
	Delete(repoID, path string) error
}

// Engine enforces quota via scored eviction.
type Engine struct {
	cat      *catalog.Catalog
	deleter  Deleter
	interval time.Duration
	metrics  *metrics.Metrics
	sf       singleflight.Group

	mu        sync.Mutex
	lastSweep time.Time
}

// New constructs an Engine. interval governs the background monitor loop.
func New(cat *catalog.Catalog, deleter Deleter, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 300 * time.Second
	}
	return &Engine{cat: cat, deleter: deleter, interval: interval}
}

// SetMetrics attaches a metrics sink for eviction observations. Optional;
// a nil sink is safe since every Metrics method no-ops on a nil receiver.
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

type candidate struct {
	path  string
	size  uint64
	score float64
}

// score returns access_count / age_seconds; lower is evicted first.
func score(f catalog.File, now time.Time) float64 {
	age := now.Sub(f.CreatedAt).Seconds()
	if age < 1 {
		age = 1
	}
	return float64(f.AccessCount) / age
}

// EvictBytes frees at least needed bytes from repoID by deleting the
// lowest-scored files first. Scores are computed once from a point-in-time
// snapshot and never recomputed mid-loop (spec.md §9); entries already
// removed between scoring and deletion are skipped.
//
// Concurrent callers for the same repoID (e.g. two uploads hitting quota
// pressure at once) collapse onto a single eviction pass via singleflight;
// every caller observes the bytes that one pass actually freed, which may
// be less than the specific `needed` a later-joining caller asked for if
// its need exceeded the first caller's.
func (e *Engine) EvictBytes(repoID string, needed uint64) (uint64, error) {
	v, err, _ := e.sf.Do(repoID, func() (any, error) {
		return e.evictBytes(repoID, needed)
	})
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

func (e *Engine) evictBytes(repoID string, needed uint64) (uint64, error) {
	now := time.Now().UTC()

	var candidates []candidate
	e.cat.RangeFiles(repoID, func(f catalog.File) bool {
		candidates = append(candidates, candidate{path: f.Path, size: f.SizeBytes, score: score(f, now)})
		return true
	})

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].path < candidates[j].path
	})

	var freed uint64
	for _, c := range candidates {
		if freed >= needed {
			break
		}
		if _, ok := e.cat.GetFile(repoID, c.path); !ok {
			continue
		}
		if err := e.deleter.Delete(repoID, c.path); err != nil {
			logger.Warn("eviction delete failed", "repo_id", repoID, "path", c.path, "error", err.Error())
			continue
		}
		freed += c.size
		e.metrics.ObserveEviction(c.size)
	}

	return freed, nil
}

// RunMonitor runs the background sweep until ctx is cancelled, checking
// every repository whose current size exceeds its ceiling.
func (e *Engine) RunMonitor(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweepOnce()
		}
	}
}

// LastSweepAt returns the start time of the most recent background sweep,
// or the zero Time if the engine has not swept yet. Inline admission-pressure
// evictions (EvictBytes called directly from an upload) do not count as a
// sweep.
func (e *Engine) LastSweepAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSweep
}

func (e *Engine) sweepOnce() {
	e.mu.Lock()
	e.lastSweep = time.Now().UTC()
	e.mu.Unlock()

	var overLimit []catalog.Repo
	e.cat.RangeRepos(func(r catalog.Repo) bool {
		if r.CurrentSizeBytes > r.MaxSizeBytes {
			overLimit = append(overLimit, r)
		}
		return true
	})

	for _, r := range overLimit {
		needed := r.CurrentSizeBytes - r.MaxSizeBytes
		freed, err := e.EvictBytes(r.ID, needed)
		if err != nil {
			logger.Warn("eviction sweep failed", "repo_id", r.ID, "error", err.Error())
			continue
		}
		if freed > 0 {
			logger.Info("eviction sweep freed bytes", logger.RepoID(r.ID), logger.Bytes(freed), logger.Evicted(1))
		}
	}
}
