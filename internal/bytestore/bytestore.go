// Package bytestore is the filesystem-backed store for file contents,
// rooted at <data_root>/repos/<repo id>/files/<path>.
package bytestore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dittostore/dittostore/internal/catalogerr"
	"github.com/dittostore/dittostore/internal/pathvalidator"
)

// Store is a filesystem-backed byte store scoped under a data root.
type Store struct {
	mu       sync.RWMutex
	dataRoot string
	closed   bool
}

// New creates a byte store rooted at dataRoot, creating it if necessary.
func New(dataRoot string) (*Store, error) {
	if dataRoot == "" {
		return nil, fmt.Errorf("bytestore: data root is required")
	}
	if err := os.MkdirAll(dataRoot, 0755); err != nil {
		return nil, err
	}
	return &Store{dataRoot: dataRoot}, nil
}

// repoRoot returns the files root for a single repository.
func (s *Store) repoRoot(repoID string) string {
	return filepath.Join(s.dataRoot, "repos", repoID, "files")
}

// filePath returns the on-disk path for a (repoID, path) pair. path is
// assumed already validated and normalized (forward-slash, no "..") by
// pathvalidator.Validate at the HTTP boundary; WithinRoot is a second,
// defense-in-depth check at this single join site. If the joined path
// somehow escapes the repository's files root, filePath falls back to the
// root itself so callers never read or write outside it.
func (s *Store) filePath(repoID, path string) string {
	root := s.repoRoot(repoID)
	joined := filepath.Join(root, filepath.FromSlash(path))
	if !pathvalidator.WithinRoot(root, joined) {
		return root
	}
	return joined
}

// Path returns the on-disk path for (repoID, path), for callers that need
// to stream or stat the file directly (e.g. the HTTP download handler).
func (s *Store) Path(repoID, path string) string {
	return s.filePath(repoID, path)
}

// Exists reports whether bytes are present at (repoID, path).
func (s *Store) Exists(repoID, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, catalogerr.ErrInternal
	}

	_, err := os.Stat(s.filePath(repoID, path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Open returns an *os.File positioned at the start of (repoID, path), for
// streaming reads. The caller owns the returned file and must close it.
func (s *Store) Open(repoID, path string) (*os.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, catalogerr.ErrInternal
	}

	f, err := os.Open(s.filePath(repoID, path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, catalogerr.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Write atomically writes data for (repoID, path) via a tmp-file-then-rename.
func (s *Store) Write(repoID, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return catalogerr.ErrInternal
	}

	dst := s.filePath(repoID, path)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Read returns the full contents at (repoID, path).
func (s *Store) Read(repoID, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, catalogerr.ErrInternal
	}

	data, err := os.ReadFile(s.filePath(repoID, path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, catalogerr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Delete removes the file at (repoID, path), then prunes now-empty parent
// directories up to the repository's files root.
func (s *Store) Delete(repoID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return catalogerr.ErrInternal
	}

	target := s.filePath(repoID, path)
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.cleanEmptyDirs(filepath.Dir(target), s.repoRoot(repoID))
	return nil
}

// cleanEmptyDirs removes empty directories from dir upward, stopping at
// (and never removing) root.
func (s *Store) cleanEmptyDirs(dir, root string) {
	for dir != root && strings.HasPrefix(dir, root) {
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
}

// Move relocates bytes from oldPath to newPath within the same repository,
// atomically where the underlying filesystem supports rename.
func (s *Store) Move(repoID, oldPath, newPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return catalogerr.ErrInternal
	}

	src := s.filePath(repoID, oldPath)
	dst := s.filePath(repoID, newPath)

	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return catalogerr.ErrNotFound
		}
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return err
	}
	s.cleanEmptyDirs(filepath.Dir(src), s.repoRoot(repoID))
	return nil
}

// Copy duplicates bytes from srcPath to dstPath within the same repository.
func (s *Store) Copy(repoID, srcPath, dstPath string) error {
	s.mu.RLock()
	data, err := os.ReadFile(s.filePath(repoID, srcPath))
	s.mu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return catalogerr.ErrNotFound
		}
		return err
	}
	return s.Write(repoID, dstPath, data)
}

// DeleteRepo removes an entire repository's byte tree.
func (s *Store) DeleteRepo(repoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return catalogerr.ErrInternal
	}
	root := filepath.Join(s.dataRoot, "repos", repoID)
	if err := os.RemoveAll(root); err != nil {
		return err
	}
	return nil
}

// ListPaths walks a repository's files tree, returning slash-separated
// paths relative to the repository's files root. Used by the recovery
// coordinator to reconcile on-disk state against the catalog.
func (s *Store) ListPaths(repoID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, catalogerr.ErrInternal
	}

	root := s.repoRoot(repoID)
	var paths []string

	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return paths, nil
		}
		return nil, err
	}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

// Close marks the store unusable for further operations.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
