package quota

import (
	"testing"
	"time"

	"github.com/dittostore/dittostore/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDeleter struct {
	deleted []string
	err     error
}

func (d *recordingDeleter) Delete(repoID, path string) error {
	if d.err != nil {
		return d.err
	}
	d.deleted = append(d.deleted, path)
	return nil
}

func TestEvictBytesPrefersLowestScore(t *testing.T) {
	cat := catalog.New()
	cat.PutRepo(catalog.Repo{ID: "r1", MaxSizeBytes: 100})

	now := time.Now().UTC()
	cat.PutFile(catalog.File{RepoID: "r1", Path: "hot.txt", SizeBytes: 5, AccessCount: 100, CreatedAt: now.Add(-10 * time.Second)})
	cat.PutFile(catalog.File{RepoID: "r1", Path: "cold.txt", SizeBytes: 5, AccessCount: 1, CreatedAt: now.Add(-1000 * time.Second)})

	deleter := &recordingDeleter{}
	e := New(cat, deleter, time.Minute)

	freed, err := e.EvictBytes("r1", 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), freed)
	require.Len(t, deleter.deleted, 1)
	assert.Equal(t, "cold.txt", deleter.deleted[0])
}

func TestEvictBytesStopsOnceTargetReached(t *testing.T) {
	cat := catalog.New()
	cat.PutRepo(catalog.Repo{ID: "r1", MaxSizeBytes: 100})

	now := time.Now().UTC()
	cat.PutFile(catalog.File{RepoID: "r1", Path: "a.txt", SizeBytes: 5, AccessCount: 1, CreatedAt: now})
	cat.PutFile(catalog.File{RepoID: "r1", Path: "b.txt", SizeBytes: 5, AccessCount: 2, CreatedAt: now})
	cat.PutFile(catalog.File{RepoID: "r1", Path: "c.txt", SizeBytes: 5, AccessCount: 3, CreatedAt: now})

	deleter := &recordingDeleter{}
	e := New(cat, deleter, time.Minute)

	freed, err := e.EvictBytes("r1", 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), freed)
	assert.Len(t, deleter.deleted, 1)
}

func TestEvictBytesSkipsAlreadyRemoved(t *testing.T) {
	cat := catalog.New()
	cat.PutRepo(catalog.Repo{ID: "r1", MaxSizeBytes: 100})

	now := time.Now().UTC()
	cat.PutFile(catalog.File{RepoID: "r1", Path: "a.txt", SizeBytes: 5, AccessCount: 1, CreatedAt: now})
	cat.DeleteFile("r1", "a.txt")

	deleter := &recordingDeleter{}
	e := New(cat, deleter, time.Minute)

	freed, err := e.EvictBytes("r1", 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), freed)
	assert.Empty(t, deleter.deleted)
}

func TestEvictBytesExhaustsListWhenInsufficient(t *testing.T) {
	cat := catalog.New()
	cat.PutRepo(catalog.Repo{ID: "r1", MaxSizeBytes: 100})
	cat.PutFile(catalog.File{RepoID: "r1", Path: "a.txt", SizeBytes: 3, AccessCount: 1, CreatedAt: time.Now()})

	deleter := &recordingDeleter{}
	e := New(cat, deleter, time.Minute)

	freed, err := e.EvictBytes("r1", 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), freed)
}
