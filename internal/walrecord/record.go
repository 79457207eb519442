// Package walrecord defines the tagged WAL entry variants that every
// durable metadata mutation serializes to.
package walrecord

import "time"

// Kind tags which variant a Record carries.
type Kind string

const (
	KindRepoCreated     Kind = "repo_created"
	KindRepoUpdated     Kind = "repo_updated"
	KindRepoDeleted     Kind = "repo_deleted"
	KindRepoSizeChanged Kind = "repo_size_changed"
	KindFileCreated     Kind = "file_created"
	KindFileDeleted     Kind = "file_deleted"
	KindFileMoved       Kind = "file_moved"
)

// OptionalTTL distinguishes "field absent" (Set=false) from "field present
// and null" (Set=true, Clear=true) from "field present with a value"
// (Set=true, Clear=false, Value=v), per spec.md §9's patch-semantics note.
type OptionalTTL struct {
	Set   bool
	Clear bool
	Value int64
}

// Record is a single WAL entry. Exactly one Kind-matching field group is
// populated; the rest are zero. A flat struct (rather than an interface
// per variant) keeps JSON encode/decode symmetric and trivial to replay.
type Record struct {
	Kind Kind `json:"kind"`

	RepoID string `json:"repo_id"`

	// RepoCreated / RepoUpdated
	Name             string      `json:"name,omitempty"`
	MaxSizeBytes     uint64      `json:"max_size_bytes,omitempty"`
	DefaultTTL       OptionalTTL `json:"default_ttl,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
	NamePresent      bool        `json:"name_present,omitempty"`
	MaxSizePresent   bool        `json:"max_size_present,omitempty"`
	TagsPresent      bool        `json:"tags_present,omitempty"`

	// RepoSizeChanged
	CurrentSizeBytes uint64 `json:"current_size_bytes,omitempty"`
	FileCount        uint64 `json:"file_count,omitempty"`

	// FileCreated / FileDeleted / FileMoved
	Path        string `json:"path,omitempty"`
	NewPath     string `json:"new_path,omitempty"`
	SizeBytes   uint64 `json:"size_bytes,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	ETag        string `json:"etag,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
