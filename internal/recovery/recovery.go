// Package recovery implements the startup sequence of spec.md §4.5: load
// the snapshot, replay the WAL, then reconcile the resulting catalog
// against the byte store's actual file tree before traffic is accepted.
package recovery

import (
	"fmt"

	"github.com/dittostore/dittostore/internal/bytestore"
	"github.com/dittostore/dittostore/internal/catalog"
	"github.com/dittostore/dittostore/internal/logger"
	"github.com/dittostore/dittostore/internal/snapshot"
	"github.com/dittostore/dittostore/internal/wal"
	"github.com/dittostore/dittostore/internal/walrecord"
)

// Run loads the snapshot (if any), replays the WAL on top of it, and
// reconciles the result against the byte store, populating cat.
func Run(cat *catalog.Catalog, store *bytestore.Store, snapshotPath, walPath string) error {
	snap, ok, err := snapshot.Read(snapshotPath)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if ok {
		loadSnapshot(cat, snap)
		logger.Info("loaded snapshot", "repos", len(snap.Repos))
	}

	records, err := wal.ReadAll(walPath)
	if err != nil {
		return fmt.Errorf("read wal: %w", err)
	}
	for _, rec := range records {
		replay(cat, rec)
	}
	if len(records) > 0 {
		logger.Info("replayed wal entries", "count", len(records))
	}

	reconcile(cat, store)
	return nil
}

func loadSnapshot(cat *catalog.Catalog, snap snapshot.Snapshot) {
	for _, r := range snap.Repos {
		cat.PutRepo(catalog.Repo{
			ID:               r.ID,
			Name:             r.Name,
			MaxSizeBytes:     r.MaxSizeBytes,
			CurrentSizeBytes: r.CurrentSizeBytes,
			FileCount:        r.FileCount,
			DefaultTTLSecs:   r.DefaultTTLSecs,
			Tags:             r.Tags,
			CreatedAt:        r.CreatedAt,
			UpdatedAt:        r.UpdatedAt,
		})
		for _, f := range r.Files {
			cat.PutFile(catalog.File{
				RepoID:      r.ID,
				Path:        f.Path,
				SizeBytes:   f.SizeBytes,
				ETag:        f.ETag,
				ContentType: f.ContentType,
				CreatedAt:   f.CreatedAt,
				UpdatedAt:   f.UpdatedAt,
				ExpiresAt:   f.ExpiresAt,
			})
		}
	}
}

// replay applies a single WAL record to the catalog exactly as the live
// mutation paths would, per spec.md §4.5 step 4.
func replay(cat *catalog.Catalog, rec walrecord.Record) {
	switch rec.Kind {
	case walrecord.KindRepoCreated:
		cat.PutRepo(catalog.Repo{
			ID:             rec.RepoID,
			Name:           rec.Name,
			MaxSizeBytes:   rec.MaxSizeBytes,
			DefaultTTLSecs: optionalTTLValue(rec.DefaultTTL),
			Tags:           map[string]string{},
			CreatedAt:      rec.Timestamp,
			UpdatedAt:      rec.Timestamp,
		})

	case walrecord.KindRepoUpdated:
		cat.MutateRepo(rec.RepoID, func(r *catalog.Repo) {
			if rec.NamePresent {
				r.Name = rec.Name
			}
			if rec.MaxSizePresent {
				r.MaxSizeBytes = rec.MaxSizeBytes
			}
			if rec.DefaultTTL.Set {
				if rec.DefaultTTL.Clear {
					r.DefaultTTLSecs = nil
				} else {
					v := rec.DefaultTTL.Value
					r.DefaultTTLSecs = &v
				}
			}
			if rec.TagsPresent {
				r.Tags = rec.Tags
			}
			r.UpdatedAt = rec.Timestamp
		})

	case walrecord.KindRepoDeleted:
		cat.DeleteRepo(rec.RepoID)

	case walrecord.KindRepoSizeChanged:
		cat.MutateRepo(rec.RepoID, func(r *catalog.Repo) {
			r.CurrentSizeBytes = rec.CurrentSizeBytes
			r.FileCount = rec.FileCount
		})

	case walrecord.KindFileCreated:
		if _, ok := cat.GetRepo(rec.RepoID); !ok {
			return
		}
		existing, existed := cat.GetFile(rec.RepoID, rec.Path)
		cat.PutFile(catalog.File{
			RepoID:      rec.RepoID,
			Path:        rec.Path,
			SizeBytes:   rec.SizeBytes,
			ETag:        rec.ETag,
			ContentType: rec.ContentType,
			CreatedAt:   rec.Timestamp,
			UpdatedAt:   rec.Timestamp,
			ExpiresAt:   rec.ExpiresAt,
		})
		cat.MutateRepo(rec.RepoID, func(r *catalog.Repo) {
			existingSize := uint64(0)
			if existed {
				existingSize = existing.SizeBytes
			} else {
				r.FileCount++
			}
			r.CurrentSizeBytes = r.CurrentSizeBytes - existingSize + rec.SizeBytes
		})

	case walrecord.KindFileDeleted:
		file, ok := cat.GetFile(rec.RepoID, rec.Path)
		if !ok {
			return
		}
		cat.DeleteFile(rec.RepoID, rec.Path)
		cat.MutateRepo(rec.RepoID, func(r *catalog.Repo) {
			if r.CurrentSizeBytes >= file.SizeBytes {
				r.CurrentSizeBytes -= file.SizeBytes
			} else {
				r.CurrentSizeBytes = 0
			}
			if r.FileCount > 0 {
				r.FileCount--
			}
		})

	case walrecord.KindFileMoved:
		cat.RenameFile(rec.RepoID, rec.Path, rec.NewPath, rec.Timestamp)
	}
}

func optionalTTLValue(t walrecord.OptionalTTL) *int64 {
	if !t.Set || t.Clear {
		return nil
	}
	v := t.Value
	return &v
}

// reconcile drops catalog entries with no corresponding on-disk bytes and
// recomputes each repository's size/count from the survivors, per spec.md
// §4.5 step 5 and invariants I1-I3.
func reconcile(cat *catalog.Catalog, store *bytestore.Store) {
	var repoIDs []string
	cat.RangeRepos(func(r catalog.Repo) bool {
		repoIDs = append(repoIDs, r.ID)
		return true
	})

	for _, repoID := range repoIDs {
		if exists, err := store.Exists(repoID, ""); err != nil {
			logger.Warn("reconciliation: failed to stat repo directory", "repo_id", repoID, "error", err.Error())
			continue
		} else if !exists {
			logger.Warn("reconciliation: repo directory missing, dropping record", "repo_id", repoID)
			cat.DeleteRepo(repoID)
			continue
		}

		paths, err := store.ListPaths(repoID)
		if err != nil {
			logger.Warn("reconciliation: failed to list repo bytes", "repo_id", repoID, "error", err.Error())
			continue
		}

		onDisk := make(map[string]struct{}, len(paths))
		for _, p := range paths {
			onDisk[p] = struct{}{}
		}

		var orphans []string
		cat.RangeFiles(repoID, func(f catalog.File) bool {
			if _, ok := onDisk[f.Path]; !ok {
				orphans = append(orphans, f.Path)
			}
			return true
		})
		for _, p := range orphans {
			logger.Warn("reconciliation: dropping orphan metadata", "repo_id", repoID, "path", p)
			cat.DeleteFile(repoID, p)
		}

		var totalSize uint64
		var count uint64
		cat.RangeFiles(repoID, func(f catalog.File) bool {
			totalSize += f.SizeBytes
			count++
			return true
		})
		cat.MutateRepo(repoID, func(r *catalog.Repo) {
			r.CurrentSizeBytes = totalSize
			r.FileCount = count
		})
	}
}
