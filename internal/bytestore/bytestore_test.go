package bytestore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dittostore/dittostore/internal/catalogerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestWriteReadDelete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Write("r1", "a/b.txt", []byte("hello")))

	data, err := s.Read("r1", "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, s.Delete("r1", "a/b.txt"))

	_, err = s.Read("r1", "a/b.txt")
	require.True(t, errors.Is(err, catalogerr.ErrNotFound))
}

func TestDeletePrunesEmptyDirs(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write("r1", "a/b/c.txt", []byte("x")))

	require.NoError(t, s.Delete("r1", "a/b/c.txt"))

	_, err := os.Stat(filepath.Join(s.repoRoot("r1"), "a"))
	assert.True(t, os.IsNotExist(err))
}

func TestMove(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write("r1", "old.txt", []byte("v")))

	require.NoError(t, s.Move("r1", "old.txt", "new/new.txt"))

	_, err := s.Read("r1", "old.txt")
	require.True(t, errors.Is(err, catalogerr.ErrNotFound))

	data, err := s.Read("r1", "new/new.txt")
	require.NoError(t, err)
	assert.Equal(t, "v", string(data))
}

func TestMoveMissingSource(t *testing.T) {
	s := newTestStore(t)
	err := s.Move("r1", "absent.txt", "new.txt")
	require.True(t, errors.Is(err, catalogerr.ErrNotFound))
}

func TestCopy(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write("r1", "src.txt", []byte("copyme")))

	require.NoError(t, s.Copy("r1", "src.txt", "dst.txt"))

	data, err := s.Read("r1", "dst.txt")
	require.NoError(t, err)
	assert.Equal(t, "copyme", string(data))

	// source untouched
	data, err = s.Read("r1", "src.txt")
	require.NoError(t, err)
	assert.Equal(t, "copyme", string(data))
}

func TestDeleteRepoRemovesTree(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write("r1", "a.txt", []byte("x")))
	require.NoError(t, s.Write("r1", "b/c.txt", []byte("y")))

	require.NoError(t, s.DeleteRepo("r1"))

	paths, err := s.ListPaths("r1")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestListPathsSortedAndSkipsTmp(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write("r1", "b.txt", []byte("1")))
	require.NoError(t, s.Write("r1", "a.txt", []byte("2")))

	// A leftover .tmp file should never be reported.
	leftover := filepath.Join(s.repoRoot("r1"), "c.txt.tmp")
	require.NoError(t, os.WriteFile(leftover, []byte("x"), 0644))

	paths, err := s.ListPaths("r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, paths)
}

func TestListPathsUnknownRepo(t *testing.T) {
	s := newTestStore(t)
	paths, err := s.ListPaths("nope")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestOperationsAfterCloseFail(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	err := s.Write("r1", "a.txt", []byte("x"))
	assert.Error(t, err)
}
