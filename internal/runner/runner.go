// Package runner executes external tool binaries with captured output,
// optional timeouts, and output size limits.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Runner executes commands and captures their output.
type Runner struct {
	Timeout   time.Duration // zero: no timeout beyond the caller's context
	MaxOutput int           // bytes per stream; zero: unlimited
}

// Options are handed to the child process unchanged.
type Options struct {
	Dir   string    // working directory; empty inherits the parent's
	Env   []string  // nil inherits the parent's environment
	Stdin io.Reader // nil connects the null device
}

// Run executes argv and blocks until the process exits. The first element
// is the binary path (or a name resolved via PATH).
//
// A process that ran and exited non-zero is not an error: its status is
// reported in Result.ExitCode. Failing to start the process is returned
// as a *SpawnError.
func (r *Runner) Run(ctx context.Context, argv []string, opts Options) (*Result, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	runID := uuid.New().String()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.Stdin = opts.Stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitWriter{buf: &stdout, limit: r.MaxOutput}
	cmd.Stderr = &limitWriter{buf: &stderr, limit: r.MaxOutput}

	runErr := cmd.Run()

	truncated := r.MaxOutput > 0 && (stdout.Len() >= r.MaxOutput || stderr.Len() >= r.MaxOutput)

	exitCode := 0
	if runErr != nil && ctx.Err() != nil {
		// Killed by timeout or cancellation; the exit status is meaningless.
		return nil, fmt.Errorf("executing %s: %w", argv[0], ctx.Err())
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, &SpawnError{Argv0: argv[0], Err: runErr}
		}
	}

	return &Result{
		RunID:     runID,
		ExitCode:  exitCode,
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		Truncated: truncated,
	}, nil
}

// SplitLines trims out, splits it on newlines and drops empty lines.
// Order is preserved.
func SplitLines(out []byte) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// limitWriter writes up to limit bytes to buf, then silently discards the rest.
// A zero limit disables the cap.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	if w.limit <= 0 {
		return w.buf.Write(p)
	}
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Report all bytes as consumed to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}
