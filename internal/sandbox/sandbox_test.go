package sandbox

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dittostore/dittostore/internal/catalogerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

func TestIsAllowed(t *testing.T) {
	assert.True(t, IsAllowed("ls"))
	assert.True(t, IsAllowed("grep"))
	assert.False(t, IsAllowed("rm"))
	assert.False(t, IsAllowed("bash"))
}

func TestValidateArgsRejectsTraversalAndMetacharacters(t *testing.T) {
	require.Error(t, ValidateArgs([]string{"../etc/passwd"}))
	require.Error(t, ValidateArgs([]string{"foo;rm -rf /"}))
	require.Error(t, ValidateArgs([]string{"$(whoami)"}))
	require.NoError(t, ValidateArgs([]string{"-l", "-a", "file.txt"}))
}

func TestRunRejectsDisallowedCommand(t *testing.T) {
	r := NewRunner(1, time.Second, 1024)
	_, err := r.Run(context.Background(), "rm", []string{"-rf", "/"}, t.TempDir(), 0, 0)
	require.True(t, errors.Is(err, catalogerr.ErrForbidden))
}

func TestRunSucceedsWithLs(t *testing.T) {
	r := NewRunner(1, time.Second, 1024)
	res, err := r.Run(context.Background(), "ls", []string{}, t.TempDir(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunTruncatesOversizedOutput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(dir+"/fixture.txt", "hello world"))

	r := NewRunner(1, time.Second, 2)
	res, err := r.Run(context.Background(), "cat", []string{"fixture.txt"}, dir, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, res.Truncated)
	assert.Len(t, res.Stdout, 2)
}

func TestRunTimesOut(t *testing.T) {
	// "tail -f /dev/null" never exits on its own, so a short timeout
	// is guaranteed to fire rather than racing the command's own runtime.
	dir := t.TempDir()
	r := NewRunner(1, 30*time.Millisecond, 1024)
	res, err := r.Run(context.Background(), "tail", []string{"-f", "/dev/null"}, dir, 30*time.Millisecond, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, res.ExitCode)
	assert.Equal(t, "Command timed out", res.Stderr)
}

func TestConcurrencyGateBlocksSecondAcquireUntilReleased(t *testing.T) {
	r := NewRunner(1, time.Second, 1024)
	require.NoError(t, r.sem.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Run(ctx, "ls", []string{}, t.TempDir(), 0, 0)
	assert.Error(t, err)

	r.sem.Release(1)
}
