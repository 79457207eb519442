package snapshotwriter

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dittostore/dittostore/internal/catalog"
	"github.com/dittostore/dittostore/internal/snapshot"
	"github.com/dittostore/dittostore/internal/wal"
	"github.com/dittostore/dittostore/internal/walrecord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWritesSnapshotAndTruncatesOnCancel(t *testing.T) {
	dir := t.TempDir()
	cat := catalog.New()
	cat.PutRepo(catalog.Repo{ID: "r1", Name: "repo", MaxSizeBytes: 100, CurrentSizeBytes: 5, FileCount: 1})
	cat.PutFile(catalog.File{RepoID: "r1", Path: "a.txt", SizeBytes: 5})

	walPath := filepath.Join(dir, "current.wal")
	w, err := wal.Open(walPath)
	require.NoError(t, err)
	require.NoError(t, w.Append(walrecord.Record{Kind: walrecord.KindFileCreated, RepoID: "r1", Path: "a.txt", SizeBytes: 5, Timestamp: time.Now().UTC()}))

	snapPath := filepath.Join(dir, "snapshot.bin")
	writer := New(cat, w, snapPath, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		writer.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	snap, ok, err := snapshot.Read(snapPath)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, snap.Repos, 1)
	assert.Equal(t, "r1", snap.Repos[0].ID)
	assert.Len(t, snap.Repos[0].Files, 1)

	records, err := wal.ReadAll(walPath)
	require.NoError(t, err)
	assert.Empty(t, records)
}
