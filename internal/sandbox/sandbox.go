// Package sandbox executes a whitelisted set of read-only commands
// against a repository's files root, bounded by timeout, output size, and
// concurrency.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dittostore/dittostore/internal/catalogerr"
	"github.com/dittostore/dittostore/internal/metrics"
	"golang.org/x/sync/semaphore"
)

// allowedCommands is the fixed whitelist; nothing outside this set may run.
var allowedCommands = map[string]struct{}{
	"rg": {}, "grep": {}, "head": {}, "tail": {}, "cat": {}, "wc": {}, "find": {},
	"ls": {}, "sort": {}, "uniq": {}, "sed": {}, "awk": {}, "tr": {}, "cut": {},
	"diff": {}, "file": {}, "stat": {}, "du": {}, "tree": {},
}

var shellMetacharacters = []string{"|", ";", "`", "$", "&", "\n", "\r"}

// IsAllowed reports whether command is in the fixed whitelist.
func IsAllowed(command string) bool {
	_, ok := allowedCommands[command]
	return ok
}

// ValidateArgs rejects arguments that could enable shell injection or path
// traversal (spec.md §4.10).
func ValidateArgs(args []string) error {
	for _, arg := range args {
		if strings.Contains(arg, "..") {
			return fmt.Errorf("path traversal in arguments not allowed: %w", catalogerr.ErrForbidden)
		}
		for _, ch := range shellMetacharacters {
			if strings.Contains(arg, ch) {
				return fmt.Errorf("shell metacharacter %q not allowed in arguments: %w", ch, catalogerr.ErrForbidden)
			}
		}
		if strings.Contains(arg, "$(") {
			return fmt.Errorf("command substitution not allowed in arguments: %w", catalogerr.ErrForbidden)
		}
	}
	return nil
}

// Result is the outcome of a sandboxed command execution.
type Result struct {
	ExitCode   int
	Stdout     string
	Stderr     string
	DurationMs int64
	Truncated  bool
}

// Runner executes whitelisted commands under a concurrency gate.
type Runner struct {
	sem            *semaphore.Weighted
	defaultTimeout time.Duration
	maxOutputBytes int
	metrics        *metrics.Metrics
}

// SetMetrics attaches a metrics sink for in-flight gauge observations.
// Optional; a nil sink is safe since every Metrics method no-ops on a nil
// receiver.
func (r *Runner) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// capWriter caps how much of a command's output is retained in memory,
// discarding bytes past the limit as they arrive rather than buffering the
// full stream and slicing it afterward.
type capWriter struct {
	limit     int
	buf       bytes.Buffer
	truncated bool
}

func (c *capWriter) Write(p []byte) (int, error) {
	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		c.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		c.buf.Write(p[:remaining])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

// NewRunner constructs a Runner. maxConcurrent, defaultTimeout and
// maxOutputBytes fall back to spec.md §4.10's defaults when non-positive.
func NewRunner(maxConcurrent int, defaultTimeout time.Duration, maxOutputBytes int) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	if maxOutputBytes <= 0 {
		maxOutputBytes = 10 * 1024 * 1024
	}
	return &Runner{
		sem:            semaphore.NewWeighted(int64(maxConcurrent)),
		defaultTimeout: defaultTimeout,
		maxOutputBytes: maxOutputBytes,
	}
}

// Run validates and executes command with args, working directory pinned
// to workingDir, subject to timeout and output-size caps. A zero timeout
// or outputCap uses the runner's defaults.
func (r *Runner) Run(ctx context.Context, command string, args []string, workingDir string, timeout time.Duration, outputCap int) (Result, error) {
	if !IsAllowed(command) {
		return Result{}, fmt.Errorf("command %q is not permitted: %w", command, catalogerr.ErrForbidden)
	}
	if err := ValidateArgs(args); err != nil {
		return Result{}, err
	}

	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	if outputCap <= 0 {
		outputCap = r.maxOutputBytes
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("sandbox shutting down: %w", catalogerr.ErrInternal)
	}
	r.metrics.IncSandboxInFlight()
	defer r.metrics.DecSandboxInFlight()
	defer r.sem.Release(1)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.Dir = workingDir
	cmd.Env = []string{
		"PATH=/usr/bin:/bin:/usr/local/bin",
		"HOME=/tmp",
		"LC_ALL=C.UTF-8",
	}
	cmd.Stdin = nil

	stdout := &capWriter{limit: outputCap}
	stderr := &capWriter{limit: outputCap}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start).Milliseconds()

	if runCtx.Err() == context.DeadlineExceeded {
		return Result{
			ExitCode:   -1,
			Stdout:     "",
			Stderr:     "Command timed out",
			DurationMs: duration,
		}, nil
	}

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			if exitCode < 0 {
				exitCode = -1
			}
		} else {
			return Result{}, fmt.Errorf("spawn command: %w", catalogerr.ErrInternal)
		}
	}

	return Result{
		ExitCode:   exitCode,
		Stdout:     stdout.buf.String(),
		Stderr:     stderr.buf.String(),
		DurationMs: duration,
		Truncated:  stdout.truncated || stderr.truncated,
	}, nil
}
