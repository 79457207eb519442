// Package snapshot implements the versioned, atomically-replaced JSON
// dump of the whole metadata catalog used to bound WAL replay at startup.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/dittostore/dittostore/internal/logger"
)

// Version is the only snapshot format this package writes or accepts on
// read; a mismatched version is treated as absent, never upgraded.
const Version = 1

// File mirrors a catalog.File record in a form stable for serialization.
type File struct {
	Path        string     `json:"path"`
	SizeBytes   uint64     `json:"size_bytes"`
	ETag        string     `json:"etag"`
	ContentType string     `json:"content_type"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Repo mirrors a catalog.Repo record plus its file index.
type Repo struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	MaxSizeBytes     uint64            `json:"max_size_bytes"`
	CurrentSizeBytes uint64            `json:"current_size_bytes"`
	FileCount        uint64            `json:"file_count"`
	DefaultTTLSecs   *int64            `json:"default_ttl_secs,omitempty"`
	Tags             map[string]string `json:"tags"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Files            []File            `json:"files"`
}

// Snapshot is the whole-catalog bundle written to disk.
type Snapshot struct {
	Version int    `json:"version"`
	Repos   []Repo `json:"repos"`
}

// Write serializes snap to <path>.tmp then renames over path, so readers
// never observe a partially written file (spec.md I6).
func Write(path string, snap Snapshot) error {
	snap.Version = Version

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Read loads the snapshot at path. A missing file, a version mismatch, or
// a deserialization failure all resolve to (Snapshot{}, false, nil): the
// caller proceeds as if no snapshot existed.
func Read(path string) (Snapshot, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("snapshot deserialize failed, treating as absent", "path", path, "error", err.Error())
		return Snapshot{}, false, nil
	}
	if snap.Version != Version {
		logger.Warn("snapshot version mismatch, treating as absent", "path", path, "got_version", snap.Version, "want_version", Version)
		return Snapshot{}, false, nil
	}

	return snap, true, nil
}
