// Package wal implements the append-only write-ahead log of metadata
// mutations: a single file of length-prefixed, JSON-encoded records.
//
// Format: each record is framed as a 4-byte little-endian unsigned length
// followed by that many bytes of JSON. fsync is not mandated; the reader
// tolerates a torn tail by stopping at the last complete entry.
package wal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dittostore/dittostore/internal/logger"
	"github.com/dittostore/dittostore/internal/metrics"
	"github.com/dittostore/dittostore/internal/walrecord"
)

// WAL is a single-writer, append-only log of walrecord.Record entries.
type WAL struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	entries int
	metrics *metrics.Metrics
}

// SetMetrics attaches a metrics sink for append observations. Optional; a
// nil sink is safe since every Metrics method no-ops on a nil receiver.
func (w *WAL) SetMetrics(m *metrics.Metrics) {
	w.metrics = m
}

// Open opens (creating if absent) the WAL file at path for appending. Any
// records already in the file (from before a restart) are counted so
// EntriesSinceSnapshot reports accurately from the start.
func Open(path string) (*WAL, error) {
	existing, err := ReadAll(path)
	if err != nil {
		return nil, fmt.Errorf("count existing wal entries: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open wal %q: %w", path, err)
	}
	return &WAL{path: path, file: f, entries: len(existing)}, nil
}

// Append serializes rec, frames it, writes it, and fsyncs the file before
// returning (a failed fsync is logged, not returned). Per spec.md's (I5) invariant, callers must not
// make the mutation visible to other requests until Append returns nil.
func (w *WAL) Append(rec walrecord.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode wal record: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	if _, err := w.file.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write wal length: %w", err)
	}
	if _, err := w.file.Write(payload); err != nil {
		return fmt.Errorf("write wal payload: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		logger.Warn("wal sync failed", "path", w.path, "error", err.Error())
	}
	w.entries++
	w.metrics.ObserveWALAppend()
	return nil
}

// EntriesSinceSnapshot returns the number of records appended since the
// last successful Truncate (i.e. since the last snapshot).
func (w *WAL) EntriesSinceSnapshot() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entries
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Path returns the WAL's file path.
func (w *WAL) Path() string {
	return w.path
}

// Truncate replaces the current WAL file with an empty one, atomically,
// as the only supported compaction step after a successful snapshot.
func (w *WAL) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close wal before truncate: %w", err)
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, nil, 0644); err != nil {
		return fmt.Errorf("stage empty wal: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("rename empty wal: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("reopen wal after truncate: %w", err)
	}
	w.file = f
	w.entries = 0
	return nil
}

// ReadAll reads every record from the WAL file at path in order, tolerating
// a torn tail: a short length prefix or a deserialization failure stops
// reading and returns everything parsed so far, with no error.
func ReadAll(path string) ([]walrecord.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open wal %q: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var records []walrecord.Record

	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			break
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])

		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			break
		}

		var rec walrecord.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			break
		}
		records = append(records, rec)
	}

	return records, nil
}
