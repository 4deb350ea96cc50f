// Package launcher runs a bundled buildtools binary as a direct
// pass-through: the child shares the caller's stdio and its exit code
// becomes the caller's.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/deixis/bzlshim/internal/logging"
	"github.com/deixis/bzlshim/internal/platform"
	"github.com/deixis/bzlshim/internal/runner"
)

// EnvBinDir overrides the directory bundled binaries are looked up in.
const EnvBinDir = "BZLSHIM_BIN_DIR"

// DefaultGrace is how long a child may take to exit after a forwarded
// signal before it is killed.
const DefaultGrace = 5 * time.Second

// Launcher runs a child process with inherited stdio.
type Launcher struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Grace  time.Duration
	Logger zerolog.Logger
}

// Run starts binary with args and blocks until it exits.
//
// The first signal received on sigs is forwarded to the child as a
// terminate request; later signals are ignored. If the child has not
// exited after Grace it is killed. After a forwarded signal the returned
// code is 128+signo, otherwise it is the child's own exit code.
// Cancelling ctx behaves like a forwarded SIGTERM.
//
// A child that could not be started yields code 1 and a *runner.SpawnError.
func (l *Launcher) Run(ctx context.Context, binary string, args []string, sigs <-chan os.Signal) (int, error) {
	cmd := exec.Command(binary, args...)
	cmd.Stdin = l.Stdin
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr

	if err := cmd.Start(); err != nil {
		return 1, &runner.SpawnError{Argv0: binary, Err: err}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	grace := l.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}

	var (
		forwarded os.Signal
		killC     <-chan time.Time
		ctxDone   = ctx.Done()
	)
	forward := func(sig os.Signal) {
		if forwarded != nil {
			return
		}
		forwarded = sig
		l.Logger.Debug().Str("signal", sig.String()).Int("pid", cmd.Process.Pid).Msg("forwarding signal")
		if err := terminate(cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
			l.Logger.Warn().Err(err).Msg("terminating child")
		}
		killC = time.After(grace)
	}

	for {
		select {
		case err := <-done:
			if forwarded != nil {
				return signalExitCode(forwarded), nil
			}
			return exitCode(err)
		case sig := <-sigs:
			forward(sig)
		case <-ctxDone:
			ctxDone = nil
			forward(syscall.SIGTERM)
		case <-killC:
			killC = nil
			l.Logger.Warn().Dur("grace", grace).Msg("child did not exit, killing")
			_ = cmd.Process.Kill()
		}
	}
}

// Main resolves the bundled binary for tool on the host platform and
// runs it with args, forwarding SIGINT and SIGTERM. It returns the code
// the caller should pass to os.Exit. No retries are attempted.
func Main(tool string, args []string) int {
	logger := logging.New("", os.Stderr)

	dir, err := BinDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	binary, err := platform.Host(dir).Binary(tool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	l := &Launcher{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Grace:  DefaultGrace,
		Logger: logger,
	}
	code, err := l.Run(context.Background(), binary, args, sigs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
	}
	return code
}

// BinDir returns the directory holding the bundled binaries: $BZLSHIM_BIN_DIR
// when set, otherwise the directory of the running executable.
func BinDir() (string, error) {
	if dir := os.Getenv(EnvBinDir); dir != "" {
		return dir, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, nil
		}
		// Terminated by a signal we did not forward.
		return 1, nil
	}
	return 1, err
}

func signalExitCode(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return 128 + int(s)
	}
	return 1
}
