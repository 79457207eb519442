package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Request Identification
	// ========================================================================
	KeyRequestID = "request_id" // chi request id
	KeyRepoID    = "repo_id"    // Repository id
	KeyClientIP  = "client_ip"  // Client IP address

	// ========================================================================
	// Catalog / File Operations
	// ========================================================================
	KeyPath     = "path"      // Repository-relative path
	KeyOldPath  = "old_path"  // Source path for move/copy operations
	KeyNewPath  = "new_path"  // Destination path for move/copy operations
	KeyBytes    = "bytes"     // Byte count (file size, bytes freed, bytes stored)
	KeyCount    = "count"     // Item count (files evicted, WAL entries replayed)
	KeyTTL      = "ttl"       // Time-to-live, seconds
	KeyOperation = "operation" // Sub-operation or WAL entry kind

	// ========================================================================
	// Sandbox
	// ========================================================================
	KeyCommand   = "command"   // Whitelisted command name
	KeyArgs      = "args"      // Command arguments (joined)
	KeyExitCode  = "exit_code" // Process exit code
	KeyTruncated = "truncated" // Output truncation indicator

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric error code
	KeyStatus     = "status"      // HTTP status code

	// ========================================================================
	// Background Loops
	// ========================================================================
	KeyEvicted = "evicted" // Number of entries evicted
	KeyReaped  = "reaped"  // Number of entries TTL-reaped
)

// Path returns a slog.Attr for a repository-relative path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// OldPath returns a slog.Attr for source path in move/copy operations
func OldPath(p string) slog.Attr {
	return slog.String(KeyOldPath, p)
}

// NewPath returns a slog.Attr for destination path in move/copy operations
func NewPath(p string) slog.Attr {
	return slog.String(KeyNewPath, p)
}

// Bytes returns a slog.Attr for a byte count
func Bytes(n uint64) slog.Attr {
	return slog.Uint64(KeyBytes, n)
}

// Count returns a slog.Attr for an item count
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// RepoID returns a slog.Attr for a repository id
func RepoID(id string) slog.Attr {
	return slog.String(KeyRepoID, id)
}

// RequestID returns a slog.Attr for a request id
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// ClientIP returns a slog.Attr for client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Operation returns a slog.Attr for a sub-operation or WAL entry kind
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Command returns a slog.Attr for a whitelisted command name
func Command(cmd string) slog.Attr {
	return slog.String(KeyCommand, cmd)
}

// ExitCode returns a slog.Attr for a process exit code
func ExitCode(code int) slog.Attr {
	return slog.Int(KeyExitCode, code)
}

// Truncated returns a slog.Attr for output truncation indicator
func Truncated(t bool) slog.Attr {
	return slog.Bool(KeyTruncated, t)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Status returns a slog.Attr for an HTTP status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// Evicted returns a slog.Attr for number of entries evicted
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// Reaped returns a slog.Attr for number of entries TTL-reaped
func Reaped(n int) slog.Attr {
	return slog.Int(KeyReaped, n)
}
