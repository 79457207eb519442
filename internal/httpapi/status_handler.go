package httpapi

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/dittostore/dittostore/internal/logger"
)

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		logger.Warn("failed to encode health response", "error", err.Error())
	}
}

type statusResponse struct {
	Repos                   int     `json:"repos"`
	Files                   uint64  `json:"files"`
	BytesStoredTotal        uint64  `json:"bytes_stored_total"`
	UptimeSecs              int64   `json:"uptime_seconds"`
	WALEntriesSinceSnapshot int     `json:"wal_entries_since_snapshot"`
	LastSnapshotAt          *string `json:"last_snapshot_at"`
	LastTTLSweepAt          *string `json:"last_ttl_sweep_at"`
	LastEvictionSweepAt     *string `json:"last_eviction_sweep_at"`
	Goroutines              int     `json:"goroutines"`
}

func (a *api) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := a.repos.Stats()

	resp := statusResponse{
		Repos:            stats.RepoCount,
		Files:            stats.FileCount,
		BytesStoredTotal: stats.BytesStored,
		UptimeSecs:       int64(time.Since(a.started).Seconds()),
		Goroutines:       runtime.NumGoroutine(),
	}

	if a.status.WAL != nil {
		resp.WALEntriesSinceSnapshot = a.status.WAL.EntriesSinceSnapshot()
	}
	if a.status.Snapshots != nil {
		resp.LastSnapshotAt = formatSweepTime(a.status.Snapshots.LastWriteAt())
	}
	if a.status.TTLSweeps != nil {
		resp.LastTTLSweepAt = formatSweepTime(a.status.TTLSweeps.LastSweepAt())
	}
	if a.status.EvictionSweeps != nil {
		resp.LastEvictionSweepAt = formatSweepTime(a.status.EvictionSweeps.LastSweepAt())
	}

	WriteJSON(w, http.StatusOK, resp)
}

// formatSweepTime returns nil for the zero Time (nothing has run yet)
// rather than formatting the Go zero value as a timestamp.
func formatSweepTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(rfc3339)
	return &s
}
