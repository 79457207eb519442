package httpapi

import (
	"context"
	"time"

	"github.com/dittostore/dittostore/internal/catalog"
	"github.com/dittostore/dittostore/internal/fileservice"
	"github.com/dittostore/dittostore/internal/reposvc"
	"github.com/dittostore/dittostore/internal/sandbox"
)

// FileService is the subset of fileservice.Service the HTTP layer calls.
// Declaring it here (rather than depending on the concrete type directly)
// lets handler tests substitute a stub.
type FileService interface {
	Upload(repoID, rawPath string, data []byte, ttlOverride *int64) (catalog.File, error)
	Download(repoID, rawPath string) (catalog.File, string, error)
	Head(repoID, rawPath string) (catalog.File, error)
	Delete(repoID, rawPath string) error
	List(repoID, prefix string, recursive bool, page, perPage int) (fileservice.ListPage, error)
	Move(repoID, sourceRaw, destRaw string) (catalog.File, error)
	Copy(repoID, sourceRaw, destRaw string) (catalog.File, error)
}

// RepoService is the subset of reposvc.Service the HTTP layer calls.
type RepoService interface {
	Create(req reposvc.CreateRequest) (catalog.Repo, error)
	List(page, perPage int, by reposvc.Sort) reposvc.ListPage
	Get(id string) (catalog.Repo, error)
	Update(id string, patch reposvc.UpdatePatch) (catalog.Repo, error)
	Delete(id string) error
	Stats() reposvc.Stats
}

// WALStats is the subset of *wal.WAL the status endpoint reports.
type WALStats interface {
	EntriesSinceSnapshot() int
}

// SnapshotStats is the subset of *snapshotwriter.Writer the status
// endpoint reports.
type SnapshotStats interface {
	LastWriteAt() time.Time
}

// SweepStats is satisfied by both *ttlreaper.Reaper and *quota.Engine.
type SweepStats interface {
	LastSweepAt() time.Time
}

// StatusSources bundles the background-state accessors /status reports.
// Each field is optional; a nil field reports as the zero value.
type StatusSources struct {
	WAL            WALStats
	Snapshots      SnapshotStats
	TTLSweeps      SweepStats
	EvictionSweeps SweepStats
}

// SandboxRunner is the subset of sandbox.Runner the HTTP layer calls.
type SandboxRunner interface {
	Run(ctx context.Context, command string, args []string, workingDir string, timeout time.Duration, outputCap int) (sandbox.Result, error)
}

// ArchiveStore is the subset of bytestore.Store the archive endpoint reads
// from directly, bypassing the catalog since archiving is a bulk read of
// bytes already known to exist on disk.
type ArchiveStore interface {
	Path(repoID, path string) string
	ListPaths(repoID string) ([]string, error)
}
