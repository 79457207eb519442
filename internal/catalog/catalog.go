// Package catalog is the in-memory index of repositories and files: the
// single source of truth at runtime. It exposes point lookups, point
// mutations, and full iteration snapshots only — no range scans or
// secondary indexes, per spec.md §4.2.
package catalog

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Repo is a repository record.
type Repo struct {
	ID               string
	Name             string
	MaxSizeBytes     uint64
	CurrentSizeBytes uint64
	FileCount        uint64
	DefaultTTLSecs   *int64
	Tags             map[string]string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastAccessedAt   time.Time
}

// Clone returns a deep-enough copy safe to hand to callers outside the lock.
func (r Repo) Clone() Repo {
	clone := r
	if r.DefaultTTLSecs != nil {
		v := *r.DefaultTTLSecs
		clone.DefaultTTLSecs = &v
	}
	clone.Tags = make(map[string]string, len(r.Tags))
	for k, v := range r.Tags {
		clone.Tags[k] = v
	}
	return clone
}

// File is a file record, keyed by (repo id, normalized path).
type File struct {
	RepoID      string
	Path        string
	SizeBytes   uint64
	ETag        string
	ContentType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastAccessedAt time.Time
	AccessCount uint64
	ExpiresAt   *time.Time
}

func (f File) Clone() File {
	clone := f
	if f.ExpiresAt != nil {
		v := *f.ExpiresAt
		clone.ExpiresAt = &v
	}
	return clone
}

// fileIndex is the per-repository path -> file map.
type fileIndex = *xsync.MapOf[string, *File]

// Catalog holds the repo map and, per repository, a file index. Both maps
// use xsync's lock-free, per-bucket-locked map so a write to one repository
// or one file never blocks reads or writes on another key.
type Catalog struct {
	repos *xsync.MapOf[string, *Repo]
	files *xsync.MapOf[string, fileIndex]
}

// New returns an empty Catalog.
func New() *Catalog {
	return &Catalog{
		repos: xsync.NewMapOf[string, *Repo](),
		files: xsync.NewMapOf[string, fileIndex](),
	}
}

// PutRepo inserts or replaces a repository record and ensures its file
// index exists.
func (c *Catalog) PutRepo(r Repo) {
	stored := r
	c.repos.Store(r.ID, &stored)
	c.files.LoadOrStore(r.ID, xsync.NewMapOf[string, *File]())
}

// GetRepo returns a copy of the repository record, or false if absent.
func (c *Catalog) GetRepo(id string) (Repo, bool) {
	r, ok := c.repos.Load(id)
	if !ok {
		return Repo{}, false
	}
	return r.Clone(), true
}

// MutateRepo atomically applies fn to the stored repository record under
// the map's per-key lock, so two concurrent mutations of the same repo
// (e.g. two uploads updating CurrentSizeBytes) never clobber each other.
// fn may mutate r in place; the result replaces the stored record. Returns
// false if the repository does not exist.
func (c *Catalog) MutateRepo(id string, fn func(r *Repo)) bool {
	_, ok := c.repos.Compute(id, func(oldValue *Repo, loaded bool) (*Repo, bool) {
		if !loaded {
			return nil, true
		}
		clone := oldValue.Clone()
		fn(&clone)
		return &clone, false
	})
	return ok
}

// DeleteRepo removes the repository and its entire file index.
func (c *Catalog) DeleteRepo(id string) {
	c.repos.Delete(id)
	c.files.Delete(id)
}

// RangeRepos iterates a point-in-time snapshot of all repositories. fn
// receives copies; mutating them has no effect on the catalog.
func (c *Catalog) RangeRepos(fn func(r Repo) bool) {
	c.repos.Range(func(id string, r *Repo) bool {
		return fn(r.Clone())
	})
}

// PutFile inserts or replaces a file record in its repository's index.
func (c *Catalog) PutFile(f File) {
	idx, ok := c.files.Load(f.RepoID)
	if !ok {
		idx, _ = c.files.LoadOrStore(f.RepoID, xsync.NewMapOf[string, *File]())
	}
	stored := f
	idx.Store(f.Path, &stored)
}

// GetFile returns a copy of the file record, or false if absent.
func (c *Catalog) GetFile(repoID, path string) (File, bool) {
	idx, ok := c.files.Load(repoID)
	if !ok {
		return File{}, false
	}
	f, ok := idx.Load(path)
	if !ok {
		return File{}, false
	}
	return f.Clone(), true
}

// MutateFile atomically applies fn to the stored file record under the
// index's per-key lock, so concurrent mutations of the same file (access
// count bumps, size updates) never clobber each other.
func (c *Catalog) MutateFile(repoID, path string, fn func(f *File)) bool {
	idx, ok := c.files.Load(repoID)
	if !ok {
		return false
	}
	_, ok = idx.Compute(path, func(oldValue *File, loaded bool) (*File, bool) {
		if !loaded {
			return nil, true
		}
		clone := oldValue.Clone()
		fn(&clone)
		return &clone, false
	})
	return ok
}

// DeleteFile removes a file record from its repository's index.
func (c *Catalog) DeleteFile(repoID, path string) {
	if idx, ok := c.files.Load(repoID); ok {
		idx.Delete(path)
	}
}

// RenameFile moves a file record from oldPath to newPath within the same
// repository's index, preserving everything but Path and UpdatedAt.
func (c *Catalog) RenameFile(repoID, oldPath, newPath string, updatedAt time.Time) bool {
	idx, ok := c.files.Load(repoID)
	if !ok {
		return false
	}
	f, ok := idx.Load(oldPath)
	if !ok {
		return false
	}
	clone := f.Clone()
	clone.Path = newPath
	clone.UpdatedAt = updatedAt
	idx.Delete(oldPath)
	idx.Store(newPath, &clone)
	return true
}

// RangeFiles iterates a point-in-time snapshot of a repository's files.
func (c *Catalog) RangeFiles(repoID string, fn func(f File) bool) {
	idx, ok := c.files.Load(repoID)
	if !ok {
		return
	}
	idx.Range(func(_ string, f *File) bool {
		return fn(f.Clone())
	})
}

// FileCount returns the number of files indexed for repoID.
func (c *Catalog) FileCount(repoID string) int {
	idx, ok := c.files.Load(repoID)
	if !ok {
		return 0
	}
	return idx.Size()
}
