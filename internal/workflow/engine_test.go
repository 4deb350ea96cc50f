package workflow

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/deixis/bzlshim/internal/config"
	"github.com/deixis/bzlshim/internal/platform"
	"github.com/deixis/bzlshim/internal/runner"
)

// fakeCall records one invocation of fakeRunner.
type fakeCall struct {
	Argv  []string
	Opts  runner.Options
	Stdin string
}

// fakeRunner is a test double for CommandRunner. Handle receives the
// arguments after the binary and the data sent on stdin.
type fakeRunner struct {
	Calls  []fakeCall
	Handle func(args []string, stdin string) (*runner.Result, error)
}

func (f *fakeRunner) Run(_ context.Context, argv []string, opts runner.Options) (*runner.Result, error) {
	var stdin string
	if opts.Stdin != nil {
		data, err := io.ReadAll(opts.Stdin)
		if err != nil {
			return nil, err
		}
		stdin = string(data)
	}
	f.Calls = append(f.Calls, fakeCall{Argv: argv, Opts: opts, Stdin: stdin})
	if f.Handle == nil {
		return &runner.Result{ExitCode: 0}, nil
	}
	return f.Handle(argv[1:], stdin)
}

// bundle creates placeholder bundled binaries for the host platform.
func bundle(t *testing.T) *platform.Resolver {
	t.Helper()
	res := platform.Host(t.TempDir())
	for _, tool := range []string{platform.Buildozer, platform.Buildifier} {
		p, err := res.Binary(tool)
		if err != nil {
			t.Skipf("host platform has no bundled binaries: %v", err)
		}
		if err := os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return res
}

func newEngine(t *testing.T, fr *fakeRunner) *Engine {
	t.Helper()
	return &Engine{
		Config:    &config.Config{},
		Runner:    fr,
		Resolver:  bundle(t),
		Workspace: "/project",
		RepoRoot:  "/project",
	}
}

func TestResolveTool_Bundled(t *testing.T) {
	e := newEngine(t, &fakeRunner{})
	got, err := e.ResolveTool(platform.Buildozer)
	if err != nil {
		t.Fatalf("ResolveTool: %v", err)
	}
	want, _ := e.Resolver.Binary(platform.Buildozer)
	if got != want {
		t.Errorf("ResolveTool = %q, want %q", got, want)
	}
}

func TestResolveTool_PathFallback(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in")
	}
	bin := t.TempDir()
	path := filepath.Join(bin, platform.Buildozer)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", bin)

	e := &Engine{Resolver: platform.Host(t.TempDir())}
	got, err := e.ResolveTool(platform.Buildozer)
	if err != nil {
		t.Fatalf("ResolveTool: %v", err)
	}
	if got != path {
		t.Errorf("ResolveTool = %q, want %q", got, path)
	}
}

func TestResolveTool_Unavailable(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	e := &Engine{Resolver: platform.Host(t.TempDir())}
	searched, err := e.Resolver.Binary(platform.Buildifier)
	if err != nil {
		t.Skipf("host platform has no bundled binaries: %v", err)
	}

	_, err = e.ResolveTool(platform.Buildifier)
	var unavail ErrToolUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("error = %v, want ErrToolUnavailable", err)
	}
	if unavail.Searched != searched {
		t.Errorf("Searched = %q, want %q", unavail.Searched, searched)
	}
	if !strings.Contains(err.Error(), installURL) {
		t.Errorf("error message missing install URL: %s", err)
	}
	if !IsUnavailable(err) {
		t.Error("IsUnavailable = false, want true")
	}
}

func TestResolveTool_UnsupportedPlatform(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	e := &Engine{Resolver: &platform.Resolver{Dir: t.TempDir(), OS: "windows", Arch: "arm64"}}

	_, err := e.ResolveTool(platform.Buildozer)
	if !errors.Is(err, platform.ErrUnsupportedPlatform) {
		t.Fatalf("error = %v, want ErrUnsupportedPlatform", err)
	}
	if !IsUnavailable(err) {
		t.Error("IsUnavailable = false, want true")
	}
}

func TestResolveFiles_Empty(t *testing.T) {
	e := &Engine{Workspace: "/project", RepoRoot: "/project"}
	got := e.ResolveFiles(nil)
	if strings.Join(got, " ") != "-r ." {
		t.Errorf("ResolveFiles(nil) = %v, want [-r .]", got)
	}
}

func TestResolveFiles_Relative(t *testing.T) {
	e := &Engine{Workspace: "/project", RepoRoot: "/project"}
	got := e.ResolveFiles([]string{"pkg/foo/BUILD"})
	if len(got) != 1 || got[0] != "pkg/foo/BUILD" {
		t.Errorf("ResolveFiles(pkg/foo/BUILD) = %v, want [pkg/foo/BUILD]", got)
	}
}

func TestResolveFiles_AbsoluteInsideRepoRoot(t *testing.T) {
	e := &Engine{Workspace: "/project/pkg", RepoRoot: "/project"}
	got := e.ResolveFiles([]string{"/project/pkg/foo/BUILD", "/project/defs.bzl"})
	want := []string{
		filepath.Join("foo", "BUILD"),
		filepath.Join("..", "defs.bzl"),
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("ResolveFiles = %v, want %v", got, want)
	}
}

func TestResolveFiles_AbsoluteOutsideRepoRoot(t *testing.T) {
	e := &Engine{Workspace: "/project", RepoRoot: "/project"}
	got := e.ResolveFiles([]string{"/other/BUILD"})
	if strings.Join(got, " ") != "-r ." {
		t.Errorf("ResolveFiles(outside) = %v, want [-r .]", got)
	}
}

func TestErrToolTooOld(t *testing.T) {
	err := ErrToolTooOld{Name: "buildifier", Have: "5.1.0", Want: "6.0.0"}
	msg := err.Error()
	for _, want := range []string{"buildifier 5.1.0", "6.0.0", installURL} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
}
