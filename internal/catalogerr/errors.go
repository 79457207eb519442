// Package catalogerr defines the sentinel error taxonomy shared by the
// catalog, byte store, quota engine, and sandbox, and maps it to HTTP
// status codes at the API boundary.
package catalogerr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Core packages return these directly or wrapped with
// fmt.Errorf("%w", ...); handlers resolve the HTTP status with errors.Is.
var (
	// ErrNotFound maps to HTTP 404.
	ErrNotFound = errors.New("not found")

	// ErrConflict maps to HTTP 409 (e.g. move/copy destination exists).
	ErrConflict = errors.New("conflict")

	// ErrBadRequest maps to HTTP 400 (validation failures).
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized maps to HTTP 401 (missing/invalid API key).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden maps to HTTP 403 (sandbox whitelist/arg filter rejection).
	ErrForbidden = errors.New("forbidden")

	// ErrPayloadTooLarge maps to HTTP 413 (quota exceeded after eviction attempt).
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrInternal maps to HTTP 500 (WAL/snapshot/filesystem write failure).
	ErrInternal = errors.New("internal error")
)

// Status returns the HTTP status code for err, defaulting to 500 when err
// does not wrap any of the sentinels above.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrConflict):
		return 409
	case errors.Is(err, ErrBadRequest):
		return 400
	case errors.Is(err, ErrUnauthorized):
		return 401
	case errors.Is(err, ErrForbidden):
		return 403
	case errors.Is(err, ErrPayloadTooLarge):
		return 413
	default:
		return 500
	}
}

// CatalogError wraps a sentinel with operational context (what operation,
// which repo/path) while preserving errors.Is/As against the sentinel.
type CatalogError struct {
	Op     string // "upload", "download", "move", "copy", "delete", "exec", ...
	RepoID string
	Path   string
	Err    error
}

func (e *CatalogError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (repo=%s, path=%s)", e.Op, e.Err, e.RepoID, e.Path)
	}
	return fmt.Sprintf("%s: %s (repo=%s)", e.Op, e.Err, e.RepoID)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// Wrap builds a CatalogError, attaching operation/repo/path context to err.
func Wrap(op, repoID, path string, err error) error {
	if err == nil {
		return nil
	}
	return &CatalogError{Op: op, RepoID: repoID, Path: path, Err: err}
}
