// Package pathvalidator normalizes untrusted repository-relative paths
// supplied by clients: it rejects traversal and null bytes and strips a
// leading root, so absolute paths become relative.
package pathvalidator

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dittostore/dittostore/internal/catalogerr"
)

// Validate normalizes raw into a canonical repository-relative path:
// forward slashes, no "." segments, no ".." segments, no leading root,
// no null bytes, non-empty. It is idempotent: Validate(Validate(p)) == Validate(p)
// for any p that already passed.
func Validate(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty path", catalogerr.ErrBadRequest)
	}
	if strings.ContainsRune(raw, 0) {
		return "", fmt.Errorf("%w: path contains null byte", catalogerr.ErrBadRequest)
	}

	normalized := strings.ReplaceAll(raw, "\\", "/")
	segments := strings.Split(normalized, "/")

	kept := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", fmt.Errorf("%w: path traversal not allowed", catalogerr.ErrBadRequest)
		}
		if strings.ContainsRune(seg, 0) {
			return "", fmt.Errorf("%w: path contains null byte", catalogerr.ErrBadRequest)
		}
		kept = append(kept, seg)
	}

	if len(kept) == 0 {
		return "", fmt.Errorf("%w: empty path after normalization", catalogerr.ErrBadRequest)
	}

	return strings.Join(kept, "/"), nil
}

// WithinRoot reports whether the resolved absolute path resolvedPath lies
// within root, as a defense-in-depth check at filesystem join sites. It
// compares cleaned absolute forms and falls back to a prefix match if
// either path cannot be made absolute.
func WithinRoot(root, resolvedPath string) bool {
	absRoot, errRoot := filepath.Abs(root)
	absPath, errPath := filepath.Abs(resolvedPath)
	if errRoot != nil || errPath != nil {
		return strings.HasPrefix(resolvedPath, root)
	}

	absRoot = filepath.Clean(absRoot)
	absPath = filepath.Clean(absPath)

	if absPath == absRoot {
		return true
	}
	return strings.HasPrefix(absPath, absRoot+string(filepath.Separator))
}
