// Package buildifier runs the buildifier binary to format and lint
// Bazel files.
package buildifier

import (
	"bytes"
	"context"
	"strings"

	"github.com/deixis/bzlshim/internal/logging"
	"github.com/deixis/bzlshim/internal/runner"
)

// Exit codes of buildifier.
const (
	ExitSuccess     = 0 // everything went well
	ExitSyntaxError = 1 // syntax errors in input
	ExitUsage       = 2 // invoked incorrectly
	ExitRuntime     = 3 // file I/O problems or internal bugs
	ExitCheckFailed = 4 // check mode failed (reformat or lint needed)
)

// CommandRunner executes commands.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, opts runner.Options) (*runner.Result, error)
}

// Client runs one buildifier binary.
type Client struct {
	Binary string
	Runner CommandRunner
	Flags  []string // default flags placed before per-call flags
	Dir    string   // working directory for file arguments
}

// FormatOptions control Format.
type FormatOptions struct {
	// Path is reported in messages and used to infer the file type.
	Path string
	// Type is one of auto, build, bzl, workspace, module, default.
	Type string
}

// Format pipes content through buildifier and returns the formatted result.
func (c *Client) Format(ctx context.Context, content []byte, opts FormatOptions) ([]byte, error) {
	var flags []string
	if opts.Type != "" {
		flags = append(flags, "--type="+opts.Type)
	}
	if opts.Path != "" {
		flags = append(flags, "--path="+opts.Path)
	}

	res, err := c.run(ctx, flags, nil, bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	if err := (runner.Policy{}).Check("buildifier", res); err != nil {
		return nil, err
	}
	return res.Stdout, nil
}

// CheckOptions control Check.
type CheckOptions struct {
	Lint     bool   // also run the linter (--lint=warn)
	Warnings string // --warnings value, e.g. "all" or "-module-docstring"
}

// Check reports formatting and lint problems in files without modifying
// them. Findings are not an error: callers inspect the returned
// Diagnostics.
func (c *Client) Check(ctx context.Context, files []string, opts CheckOptions) (*Diagnostics, error) {
	flags := []string{"--mode=check", "--format=json"}
	if opts.Lint {
		flags = append(flags, "--lint=warn")
		if opts.Warnings != "" {
			flags = append(flags, "--warnings="+opts.Warnings)
		}
	}

	res, err := c.run(ctx, flags, files, nil)
	if err != nil {
		return nil, err
	}

	policy := runner.Policy{SuccessCodes: []int{ExitSuccess, ExitCheckFailed}}
	if res.ExitCode == ExitSyntaxError {
		// Unparsable files are still reported in the JSON document.
		if d, perr := ParseDiagnostics(res.Stdout); perr == nil {
			return d, nil
		}
	}
	if err := policy.Check("buildifier", res); err != nil {
		return nil, err
	}
	return ParseDiagnostics(res.Stdout)
}

// Fix rewrites files in place, applying formatting and automatic lint
// fixes. It returns buildifier's non-empty stderr lines (one per fixed
// file when running verbosely).
func (c *Client) Fix(ctx context.Context, files []string, warnings string) ([]string, error) {
	flags := []string{"--mode=fix", "--lint=fix", "-v"}
	if warnings != "" {
		flags = append(flags, "--warnings="+warnings)
	}
	res, err := c.run(ctx, flags, files, nil)
	if err != nil {
		return nil, err
	}
	if err := (runner.Policy{}).Check("buildifier", res); err != nil {
		return nil, err
	}
	return runner.SplitLines(res.Stderr), nil
}

// Version returns the raw output of "buildifier --version".
func (c *Client) Version(ctx context.Context) (string, error) {
	res, err := c.run(ctx, []string{"--version"}, nil, nil)
	if err != nil {
		return "", err
	}
	if err := (runner.Policy{}).Check("buildifier", res); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

func (c *Client) run(ctx context.Context, flags, files []string, stdin *bytes.Reader) (*runner.Result, error) {
	argv := make([]string, 0, 1+len(c.Flags)+len(flags)+len(files))
	argv = append(argv, c.Binary)
	argv = append(argv, c.Flags...)
	argv = append(argv, flags...)
	argv = append(argv, files...)

	log := logging.FromContext(ctx)
	log.Debug().Strs("argv", argv).Msg("running buildifier")

	opts := runner.Options{Dir: c.Dir}
	if stdin != nil {
		opts.Stdin = stdin
	}
	return c.Runner.Run(ctx, argv, opts)
}
