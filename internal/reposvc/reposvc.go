// Package reposvc implements repository lifecycle: create, list, get,
// update, delete.
package reposvc

import (
	"fmt"
	"sort"
	"time"

	"github.com/dittostore/dittostore/internal/bytestore"
	"github.com/dittostore/dittostore/internal/catalog"
	"github.com/dittostore/dittostore/internal/catalogerr"
	"github.com/dittostore/dittostore/internal/wal"
	"github.com/dittostore/dittostore/internal/walrecord"
	"github.com/google/uuid"
)

// Service implements repository lifecycle operations.
type Service struct {
	cat            *catalog.Catalog
	store          *bytestore.Store
	wal            *wal.WAL
	defaultMaxSize uint64
}

// New constructs a Service.
func New(cat *catalog.Catalog, store *bytestore.Store, w *wal.WAL, defaultMaxSize uint64) *Service {
	return &Service{cat: cat, store: store, wal: w, defaultMaxSize: defaultMaxSize}
}

// CreateRequest is the client-supplied payload for Create.
type CreateRequest struct {
	Name           string
	MaxSizeBytes   *uint64
	DefaultTTLSecs *int64
}

// Create generates a fresh id and persists an empty repository.
func (s *Service) Create(req CreateRequest) (catalog.Repo, error) {
	if req.Name == "" {
		return catalog.Repo{}, fmt.Errorf("name is required: %w", catalogerr.ErrBadRequest)
	}

	maxSize := s.defaultMaxSize
	if req.MaxSizeBytes != nil {
		maxSize = *req.MaxSizeBytes
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	rec := walrecord.Record{
		Kind:           walrecord.KindRepoCreated,
		RepoID:         id,
		Name:           req.Name,
		MaxSizeBytes:   maxSize,
		NamePresent:    true,
		MaxSizePresent: true,
		Timestamp:      now,
	}
	if req.DefaultTTLSecs != nil {
		rec.DefaultTTL = walrecord.OptionalTTL{Set: true, Value: *req.DefaultTTLSecs}
	}
	if err := s.wal.Append(rec); err != nil {
		return catalog.Repo{}, fmt.Errorf("wal append: %w", catalogerr.ErrInternal)
	}

	if err := s.store.Write(id, ".keep", nil); err != nil {
		return catalog.Repo{}, fmt.Errorf("create repo directory: %w", catalogerr.ErrInternal)
	}
	_ = s.store.Delete(id, ".keep")

	repo := catalog.Repo{
		ID:             id,
		Name:           req.Name,
		MaxSizeBytes:   maxSize,
		DefaultTTLSecs: req.DefaultTTLSecs,
		Tags:           map[string]string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.cat.PutRepo(repo)

	return repo, nil
}

// Sort selects the ordering for List.
type Sort string

const (
	SortNameAsc        Sort = "name"
	SortCreatedDesc    Sort = "created_at"
	SortCurrentSizeDesc Sort = "current_size_bytes"
)

// ListPage is a paginated slice of repository records.
type ListPage struct {
	Repos []catalog.Repo
	Total int
}

// List snapshots the repo map, sorts, and paginates. Repo listing defaults
// to a smaller page than file listing (20 vs 100) and accepts at most 100;
// a per-page value outside 1..100 falls back to 20, per the Rust original's
// repos.rs pagination.
func (s *Service) List(page, perPage int, by Sort) ListPage {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var repos []catalog.Repo
	s.cat.RangeRepos(func(r catalog.Repo) bool {
		repos = append(repos, r)
		return true
	})

	switch by {
	case SortNameAsc:
		sort.Slice(repos, func(i, j int) bool { return repos[i].Name < repos[j].Name })
	case SortCurrentSizeDesc:
		sort.Slice(repos, func(i, j int) bool { return repos[i].CurrentSizeBytes > repos[j].CurrentSizeBytes })
	default:
		sort.Slice(repos, func(i, j int) bool { return repos[i].CreatedAt.After(repos[j].CreatedAt) })
	}

	total := len(repos)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	return ListPage{Repos: repos[start:end], Total: total}
}

// Stats aggregates across every repository regardless of List's page
// cap, for the status endpoint's global counters.
type Stats struct {
	RepoCount   int
	FileCount   uint64
	BytesStored uint64
}

// Stats ranges the full catalog once and sums repo/file/byte totals.
func (s *Service) Stats() Stats {
	var st Stats
	s.cat.RangeRepos(func(r catalog.Repo) bool {
		st.RepoCount++
		st.FileCount += r.FileCount
		st.BytesStored += r.CurrentSizeBytes
		return true
	})
	return st
}

// Get returns a copy with last_accessed_at bumped in memory only (not
// persisted, per spec.md §4.7).
func (s *Service) Get(id string) (catalog.Repo, error) {
	r, ok := s.cat.GetRepo(id)
	if !ok {
		return catalog.Repo{}, fmt.Errorf("repo %s: %w", id, catalogerr.ErrNotFound)
	}
	r.LastAccessedAt = time.Now().UTC()
	return r, nil
}

// UpdatePatch carries present-only fields; DefaultTTLSecs is a
// nested-optional distinguishing absent/clear/set.
type UpdatePatch struct {
	Name           *string
	MaxSizeBytes   *uint64
	DefaultTTL     walrecord.OptionalTTL
	Tags           map[string]string
	TagsPresent    bool
}

// Update applies a patch. The WAL entry is written even for an empty patch,
// since replay of RepoUpdated is idempotent (spec.md §9 Open Questions).
func (s *Service) Update(id string, patch UpdatePatch) (catalog.Repo, error) {
	if _, ok := s.cat.GetRepo(id); !ok {
		return catalog.Repo{}, fmt.Errorf("repo %s: %w", id, catalogerr.ErrNotFound)
	}

	now := time.Now().UTC()
	rec := walrecord.Record{
		Kind:           walrecord.KindRepoUpdated,
		RepoID:         id,
		DefaultTTL:     patch.DefaultTTL,
		Tags:           patch.Tags,
		NamePresent:    patch.Name != nil,
		MaxSizePresent: patch.MaxSizeBytes != nil,
		TagsPresent:    patch.TagsPresent,
		Timestamp:      now,
	}
	if patch.Name != nil {
		rec.Name = *patch.Name
	}
	if patch.MaxSizeBytes != nil {
		rec.MaxSizeBytes = *patch.MaxSizeBytes
	}
	if err := s.wal.Append(rec); err != nil {
		return catalog.Repo{}, fmt.Errorf("wal append: %w", catalogerr.ErrInternal)
	}

	s.cat.MutateRepo(id, func(r *catalog.Repo) {
		applyUpdate(r, patch, now)
	})

	r, _ := s.cat.GetRepo(id)
	return r, nil
}

func applyUpdate(r *catalog.Repo, patch UpdatePatch, now time.Time) {
	if patch.Name != nil {
		r.Name = *patch.Name
	}
	if patch.MaxSizeBytes != nil {
		r.MaxSizeBytes = *patch.MaxSizeBytes
	}
	if patch.DefaultTTL.Set {
		if patch.DefaultTTL.Clear {
			r.DefaultTTLSecs = nil
		} else {
			v := patch.DefaultTTL.Value
			r.DefaultTTLSecs = &v
		}
	}
	if patch.TagsPresent {
		r.Tags = patch.Tags
	}
	r.UpdatedAt = now
}

// Delete removes a repository, cascading its file index and on-disk tree.
func (s *Service) Delete(id string) error {
	if _, ok := s.cat.GetRepo(id); !ok {
		return fmt.Errorf("repo %s: %w", id, catalogerr.ErrNotFound)
	}

	rec := walrecord.Record{
		Kind:      walrecord.KindRepoDeleted,
		RepoID:    id,
		Timestamp: time.Now().UTC(),
	}
	if err := s.wal.Append(rec); err != nil {
		return fmt.Errorf("wal append: %w", catalogerr.ErrInternal)
	}

	s.cat.DeleteRepo(id)

	if err := s.store.DeleteRepo(id); err != nil {
		return fmt.Errorf("remove repo tree: %w", catalogerr.ErrInternal)
	}
	return nil
}
