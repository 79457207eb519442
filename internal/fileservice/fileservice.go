// Package fileservice coordinates the metadata catalog, byte store, and
// WAL for every per-file operation: upload, download, head, delete, list,
// move, copy.
package fileservice

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dittostore/dittostore/internal/bytestore"
	"github.com/dittostore/dittostore/internal/catalog"
	"github.com/dittostore/dittostore/internal/catalogerr"
	"github.com/dittostore/dittostore/internal/logger"
	"github.com/dittostore/dittostore/internal/pathvalidator"
	"github.com/dittostore/dittostore/internal/wal"
	"github.com/dittostore/dittostore/internal/walrecord"
)

// Evictor frees bytes from a repository, deleting files through the same
// path as an explicit delete so WAL and accounting stay consistent. The
// quota engine implements this; it is injected after construction to break
// the import cycle between fileservice and quota.
type Evictor interface {
	EvictBytes(repoID string, needed uint64) (freed uint64, err error)
}

// Service implements the file operations of spec.md §4.6.
type Service struct {
	cat           *catalog.Catalog
	store         *bytestore.Store
	wal           *wal.WAL
	maxUploadSize uint64
	evictor       Evictor
}

// New constructs a Service. SetEvictor must be called before Upload is
// exercised under quota pressure; until then eviction is a no-op.
func New(cat *catalog.Catalog, store *bytestore.Store, w *wal.WAL, maxUploadSize uint64) *Service {
	return &Service{cat: cat, store: store, wal: w, maxUploadSize: maxUploadSize}
}

// SetEvictor wires the quota engine in after both are constructed.
func (s *Service) SetEvictor(e Evictor) {
	s.evictor = e
}

// ListPage is a paginated slice of file records.
type ListPage struct {
	Files []catalog.File
	Total int
}

// Upload creates or replaces the file at (repoID, rawPath).
func (s *Service) Upload(repoID, rawPath string, data []byte, ttlOverride *int64) (catalog.File, error) {
	p, err := pathvalidator.Validate(rawPath)
	if err != nil {
		return catalog.File{}, err
	}

	repo, ok := s.cat.GetRepo(repoID)
	if !ok {
		return catalog.File{}, fmt.Errorf("repo %s: %w", repoID, catalogerr.ErrNotFound)
	}

	if uint64(len(data)) > s.maxUploadSize {
		return catalog.File{}, fmt.Errorf("upload exceeds max upload size: %w", catalogerr.ErrPayloadTooLarge)
	}

	existing, existed := s.cat.GetFile(repoID, p)
	existingSize := uint64(0)
	if existed {
		existingSize = existing.SizeBytes
	}

	projected := repo.CurrentSizeBytes - existingSize + uint64(len(data))
	if projected > repo.MaxSizeBytes {
		needed := projected - repo.MaxSizeBytes
		var freed uint64
		if s.evictor != nil {
			freed, err = s.evictor.EvictBytes(repoID, needed)
			if err != nil {
				return catalog.File{}, err
			}
		}
		if freed < needed {
			return catalog.File{}, fmt.Errorf("repo %s at capacity: %w", repoID, catalogerr.ErrPayloadTooLarge)
		}
		repo, _ = s.cat.GetRepo(repoID)
	}

	sum := sha256.Sum256(data)
	etag := hex.EncodeToString(sum[:])
	contentType := guessContentType(p)

	if err := s.store.Write(repoID, p, data); err != nil {
		return catalog.File{}, fmt.Errorf("write bytes: %w", catalogerr.ErrInternal)
	}

	now := time.Now().UTC()
	var expiresAt *time.Time
	switch {
	case ttlOverride != nil:
		t := now.Add(time.Duration(*ttlOverride) * time.Second)
		expiresAt = &t
	case repo.DefaultTTLSecs != nil:
		t := now.Add(time.Duration(*repo.DefaultTTLSecs) * time.Second)
		expiresAt = &t
	}

	rec := walrecord.Record{
		Kind:        walrecord.KindFileCreated,
		RepoID:      repoID,
		Path:        p,
		SizeBytes:   uint64(len(data)),
		ContentType: contentType,
		ETag:        etag,
		ExpiresAt:   expiresAt,
		Timestamp:   now,
	}
	if err := s.wal.Append(rec); err != nil {
		return catalog.File{}, fmt.Errorf("wal append: %w", catalogerr.ErrInternal)
	}

	file := catalog.File{
		RepoID:      repoID,
		Path:        p,
		SizeBytes:   uint64(len(data)),
		ETag:        etag,
		ContentType: contentType,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   expiresAt,
	}
	if existed {
		file.CreatedAt = existing.CreatedAt
		file.AccessCount = existing.AccessCount
	}
	s.cat.PutFile(file)

	s.cat.MutateRepo(repoID, func(r *catalog.Repo) {
		r.CurrentSizeBytes = r.CurrentSizeBytes - existingSize + uint64(len(data))
		if !existed {
			r.FileCount++
		}
		r.UpdatedAt = now
	})

	return file, nil
}

// Download returns the file record and its on-disk path for streaming,
// bumping access stats.
func (s *Service) Download(repoID, rawPath string) (catalog.File, string, error) {
	p, err := pathvalidator.Validate(rawPath)
	if err != nil {
		return catalog.File{}, "", err
	}
	if _, ok := s.cat.GetRepo(repoID); !ok {
		return catalog.File{}, "", fmt.Errorf("repo %s: %w", repoID, catalogerr.ErrNotFound)
	}

	if _, ok := s.cat.GetFile(repoID, p); !ok {
		return catalog.File{}, "", fmt.Errorf("file %s: %w", p, catalogerr.ErrNotFound)
	}

	now := time.Now().UTC()
	s.cat.MutateFile(repoID, p, func(f *catalog.File) {
		f.LastAccessedAt = now
		f.AccessCount++
	})

	exists, err := s.store.Exists(repoID, p)
	if err != nil {
		return catalog.File{}, "", err
	}
	if !exists {
		return catalog.File{}, "", fmt.Errorf("file %s: %w", p, catalogerr.ErrNotFound)
	}

	file, _ := s.cat.GetFile(repoID, p)
	return file, s.store.Path(repoID, p), nil
}

// Head returns the file record without touching access stats or the byte
// store.
func (s *Service) Head(repoID, rawPath string) (catalog.File, error) {
	p, err := pathvalidator.Validate(rawPath)
	if err != nil {
		return catalog.File{}, err
	}
	if _, ok := s.cat.GetRepo(repoID); !ok {
		return catalog.File{}, fmt.Errorf("repo %s: %w", repoID, catalogerr.ErrNotFound)
	}
	file, ok := s.cat.GetFile(repoID, p)
	if !ok {
		return catalog.File{}, fmt.Errorf("file %s: %w", p, catalogerr.ErrNotFound)
	}
	return file, nil
}

// Delete removes a file's metadata and bytes.
func (s *Service) Delete(repoID, rawPath string) error {
	p, err := pathvalidator.Validate(rawPath)
	if err != nil {
		return err
	}
	if _, ok := s.cat.GetRepo(repoID); !ok {
		return fmt.Errorf("repo %s: %w", repoID, catalogerr.ErrNotFound)
	}
	file, ok := s.cat.GetFile(repoID, p)
	if !ok {
		return fmt.Errorf("file %s: %w", p, catalogerr.ErrNotFound)
	}

	rec := walrecord.Record{
		Kind:      walrecord.KindFileDeleted,
		RepoID:    repoID,
		Path:      p,
		Timestamp: time.Now().UTC(),
	}
	if err := s.wal.Append(rec); err != nil {
		return fmt.Errorf("wal append: %w", catalogerr.ErrInternal)
	}

	s.cat.DeleteFile(repoID, p)
	s.cat.MutateRepo(repoID, func(r *catalog.Repo) {
		if r.CurrentSizeBytes >= file.SizeBytes {
			r.CurrentSizeBytes -= file.SizeBytes
		} else {
			r.CurrentSizeBytes = 0
		}
		if r.FileCount > 0 {
			r.FileCount--
		}
		r.UpdatedAt = time.Now().UTC()
	})

	if err := s.store.Delete(repoID, p); err != nil {
		logger.Warn("failed to remove bytes after catalog delete", "repo_id", repoID, "path", p, "error", err.Error())
	}
	return nil
}

// List returns a page of file records under prefix.
func (s *Service) List(repoID, prefix string, recursive bool, page, perPage int) (ListPage, error) {
	if _, ok := s.cat.GetRepo(repoID); !ok {
		return ListPage{}, fmt.Errorf("repo %s: %w", repoID, catalogerr.ErrNotFound)
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 1000 {
		perPage = 100
	}

	var matched []catalog.File
	s.cat.RangeFiles(repoID, func(f catalog.File) bool {
		if prefix != "" && !strings.HasPrefix(f.Path, prefix) {
			return true
		}
		if !recursive {
			rest := strings.TrimPrefix(f.Path, prefix)
			rest = strings.TrimPrefix(rest, "/")
			if strings.Contains(rest, "/") {
				return true
			}
		}
		matched = append(matched, f)
		return true
	})

	sort.Slice(matched, func(i, j int) bool { return matched[i].Path < matched[j].Path })

	total := len(matched)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	return ListPage{Files: matched[start:end], Total: total}, nil
}

// Move renames a file within a repository.
func (s *Service) Move(repoID, sourceRaw, destRaw string) (catalog.File, error) {
	source, err := pathvalidator.Validate(sourceRaw)
	if err != nil {
		return catalog.File{}, err
	}
	dest, err := pathvalidator.Validate(destRaw)
	if err != nil {
		return catalog.File{}, err
	}
	if _, ok := s.cat.GetRepo(repoID); !ok {
		return catalog.File{}, fmt.Errorf("repo %s: %w", repoID, catalogerr.ErrNotFound)
	}
	if _, ok := s.cat.GetFile(repoID, source); !ok {
		return catalog.File{}, fmt.Errorf("file %s: %w", source, catalogerr.ErrNotFound)
	}
	if _, ok := s.cat.GetFile(repoID, dest); ok {
		return catalog.File{}, fmt.Errorf("destination %s: %w", dest, catalogerr.ErrConflict)
	}

	now := time.Now().UTC()
	rec := walrecord.Record{
		Kind:      walrecord.KindFileMoved,
		RepoID:    repoID,
		Path:      source,
		NewPath:   dest,
		Timestamp: now,
	}
	if err := s.wal.Append(rec); err != nil {
		return catalog.File{}, fmt.Errorf("wal append: %w", catalogerr.ErrInternal)
	}

	if err := s.store.Move(repoID, source, dest); err != nil {
		return catalog.File{}, fmt.Errorf("move bytes: %w", catalogerr.ErrInternal)
	}

	s.cat.RenameFile(repoID, source, dest, now)
	file, _ := s.cat.GetFile(repoID, dest)
	return file, nil
}

// Copy duplicates a file within a repository. Unlike Upload, Copy never
// triggers eviction (spec.md §4.6, §9 Open Questions).
func (s *Service) Copy(repoID, sourceRaw, destRaw string) (catalog.File, error) {
	source, err := pathvalidator.Validate(sourceRaw)
	if err != nil {
		return catalog.File{}, err
	}
	dest, err := pathvalidator.Validate(destRaw)
	if err != nil {
		return catalog.File{}, err
	}
	repo, ok := s.cat.GetRepo(repoID)
	if !ok {
		return catalog.File{}, fmt.Errorf("repo %s: %w", repoID, catalogerr.ErrNotFound)
	}
	src, ok := s.cat.GetFile(repoID, source)
	if !ok {
		return catalog.File{}, fmt.Errorf("file %s: %w", source, catalogerr.ErrNotFound)
	}
	if _, ok := s.cat.GetFile(repoID, dest); ok {
		return catalog.File{}, fmt.Errorf("destination %s: %w", dest, catalogerr.ErrConflict)
	}
	if repo.CurrentSizeBytes+src.SizeBytes > repo.MaxSizeBytes {
		return catalog.File{}, fmt.Errorf("repo %s at capacity: %w", repoID, catalogerr.ErrPayloadTooLarge)
	}

	if err := s.store.Copy(repoID, source, dest); err != nil {
		return catalog.File{}, fmt.Errorf("copy bytes: %w", catalogerr.ErrInternal)
	}

	now := time.Now().UTC()
	rec := walrecord.Record{
		Kind:        walrecord.KindFileCreated,
		RepoID:      repoID,
		Path:        dest,
		SizeBytes:   src.SizeBytes,
		ContentType: src.ContentType,
		ETag:        src.ETag,
		ExpiresAt:   src.ExpiresAt,
		Timestamp:   now,
	}
	if err := s.wal.Append(rec); err != nil {
		return catalog.File{}, fmt.Errorf("wal append: %w", catalogerr.ErrInternal)
	}

	file := catalog.File{
		RepoID:      repoID,
		Path:        dest,
		SizeBytes:   src.SizeBytes,
		ETag:        src.ETag,
		ContentType: src.ContentType,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   src.ExpiresAt,
	}
	s.cat.PutFile(file)

	s.cat.MutateRepo(repoID, func(r *catalog.Repo) {
		r.CurrentSizeBytes += src.SizeBytes
		r.FileCount++
		r.UpdatedAt = now
	})

	return file, nil
}

func guessContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}
	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
