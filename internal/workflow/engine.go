// Package workflow provides the core execution engine for bzlshim's
// edit, check and fix operations. It is consumed by both the MCP server
// and the CLI commands.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/deixis/bzlshim/internal/config"
	"github.com/deixis/bzlshim/internal/platform"
	"github.com/deixis/bzlshim/internal/runner"
)

// CommandRunner executes commands.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, opts runner.Options) (*runner.Result, error)
}

// Engine holds shared dependencies for all workflow operations.
type Engine struct {
	Config    *config.Config
	Runner    CommandRunner
	Resolver  *platform.Resolver // bundled binaries; nil means PATH only
	Workspace string             // cwd: tools run from here
	RepoRoot  string             // directory containing MODULE.bazel or WORKSPACE
}

// ResolveTool returns the path of the binary to run for tool. It prefers
// the bundled binary for the host platform and falls back to
// exec.LookPath on the system PATH.
//
// When neither exists, an unsupported platform is reported as such;
// otherwise an ErrToolUnavailable with install instructions is returned.
func (e *Engine) ResolveTool(tool string) (string, error) {
	var (
		bundled string
		platErr error
	)
	if e.Resolver != nil {
		bundled, platErr = e.Resolver.Binary(tool)
		if platErr == nil && isFile(bundled) {
			return bundled, nil
		}
	}

	if path, err := exec.LookPath(tool); err == nil {
		return path, nil
	}

	if platErr != nil {
		return "", platErr
	}
	return "", ErrToolUnavailable{Name: tool, Searched: bundled}
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// ResolveFiles normalises file arguments for buildifier, which runs from
// the workspace. Absolute paths inside the repository root are made
// relative to the workspace; paths outside it are dropped. When the list
// is empty it defaults to a recursive walk of the workspace.
func (e *Engine) ResolveFiles(files []string) []string {
	if len(files) == 0 {
		return []string{"-r", "."}
	}

	root := e.RepoRoot
	if root == "" {
		root = e.Workspace
	}

	resolved := make([]string, 0, len(files))
	for _, f := range files {
		if !filepath.IsAbs(f) {
			resolved = append(resolved, f)
			continue
		}
		if rel, err := filepath.Rel(root, f); err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if rel, err := filepath.Rel(e.Workspace, f); err == nil && e.Workspace != "" {
			f = rel
		}
		resolved = append(resolved, f)
	}

	if len(resolved) == 0 {
		return []string{"-r", "."}
	}
	return resolved
}

func (e *Engine) config() *config.Config {
	if e.Config == nil {
		return &config.Config{}
	}
	return e.Config
}

// installURL is where release binaries of the buildtools are published.
const installURL = "https://github.com/bazelbuild/buildtools/releases"

// ErrToolUnavailable is returned when a required tool is neither bundled
// nor on PATH. It includes actionable install instructions.
type ErrToolUnavailable struct {
	Name     string
	Searched string // bundled path that was checked, if any
}

func (e ErrToolUnavailable) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is required but not installed.\n", e.Name)
	fmt.Fprintf(&b, "\nInstall: download %s from %s", e.Name, installURL)
	if e.Searched != "" {
		fmt.Fprintf(&b, "\n  and place it at %s, or anywhere on PATH.", e.Searched)
	} else {
		fmt.Fprintf(&b, "\n  and place it on PATH.")
	}
	return b.String()
}

// ErrToolTooOld is returned when a tool is older than the configured
// minimum version.
type ErrToolTooOld struct {
	Name string
	Have string
	Want string
}

func (e ErrToolTooOld) Error() string {
	return fmt.Sprintf("%s %s is older than the required minimum %s.\n\nInstall a newer release from %s", e.Name, e.Have, e.Want, installURL)
}

// IsUnavailable reports whether err means a tool could not be found or
// cannot run on this host.
func IsUnavailable(err error) bool {
	var unavail ErrToolUnavailable
	return errors.As(err, &unavail) || errors.Is(err, platform.ErrUnsupportedPlatform)
}

// recorder wraps a CommandRunner and keeps the last result it returned.
type recorder struct {
	CommandRunner
	last *runner.Result
}

func (r *recorder) Run(ctx context.Context, argv []string, opts runner.Options) (*runner.Result, error) {
	res, err := r.CommandRunner.Run(ctx, argv, opts)
	if res != nil {
		r.last = res
	}
	return res, err
}
