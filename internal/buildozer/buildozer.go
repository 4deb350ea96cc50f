package buildozer

import (
	"context"
	"errors"
	"strings"

	"github.com/deixis/bzlshim/internal/logging"
	"github.com/deixis/bzlshim/internal/runner"
)

// Exit codes of buildozer.
// See https://github.com/bazelbuild/buildtools/tree/master/buildozer#error-code
const (
	ExitSuccess       = 0 // success, changes were made
	ExitUsage         = 1 // usage error
	ExitCommandFailed = 2 // at least one command failed
	ExitNoChanges     = 3 // success, no changes were made
)

// DefaultSuccessCodes are the exit codes treated as success.
var DefaultSuccessCodes = []int{ExitSuccess, ExitNoChanges}

// stdinFlags tell buildozer to read the command file from standard input.
var stdinFlags = []string{"-f", "-"}

// CommandRunner executes commands.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, opts runner.Options) (*runner.Result, error)
}

// Client runs command batches against one buildozer binary.
type Client struct {
	Binary string
	Runner CommandRunner
	Flags  []string      // default flags placed before per-call flags
	Policy runner.Policy // zero value uses DefaultSuccessCodes
}

// Run runs buildozer with the given batches and returns its standard
// output split into non-empty lines.
func (c *Client) Run(ctx context.Context, batches ...Batch) ([]string, error) {
	return c.RunWithOptions(ctx, batches, runner.Options{}, nil)
}

// RunWithOptions runs buildozer with the given batches. opts are passed to
// the child process unchanged; flags are placed before "-f -" so they can
// override the defaults.
//
// It blocks until buildozer exits. A status outside the success codes is
// returned as a *runner.ToolError carrying buildozer's stderr; a process
// that could not be started is returned as a *runner.SpawnError. Output
// cut off by the runner's size cap yields runner.ErrOutputTruncated
// instead of a partial line list.
func (c *Client) RunWithOptions(ctx context.Context, batches []Batch, opts runner.Options, flags []string) ([]string, error) {
	input, err := Encode(batches...)
	if err != nil {
		return nil, err
	}

	argv := c.argv(flags)
	opts.Stdin = strings.NewReader(input)

	log := logging.FromContext(ctx)
	log.Debug().Strs("argv", argv).Int("batches", len(batches)).Msg("running buildozer")

	res, err := c.Runner.Run(ctx, argv, opts)
	if err != nil {
		return nil, err
	}

	if err := c.policy().Check("buildozer", res); err != nil {
		var te *runner.ToolError
		if errors.As(err, &te) {
			log.Error().Int("status", te.Status).Str("stderr", te.Stderr).Msg("buildozer failed")
		}
		return nil, err
	}
	return runner.SplitLines(res.Stdout), nil
}

// Print runs "print <attrs...>" on targets and returns one line per target.
func (c *Client) Print(ctx context.Context, targets []string, attrs ...string) ([]string, error) {
	if len(attrs) == 0 {
		return nil, errors.New("print: no attributes")
	}
	return c.Run(ctx, Batch{
		Commands: []string{"print " + strings.Join(attrs, " ")},
		Targets:  targets,
	})
}

// Args returns the argv suffix (after the binary) used for a call with
// the given per-call flags.
func (c *Client) Args(flags []string) []string {
	return c.argv(flags)[1:]
}

func (c *Client) argv(flags []string) []string {
	argv := make([]string, 0, 1+len(c.Flags)+len(flags)+len(stdinFlags))
	argv = append(argv, c.Binary)
	argv = append(argv, c.Flags...)
	argv = append(argv, flags...)
	return append(argv, stdinFlags...)
}

func (c *Client) policy() runner.Policy {
	if len(c.Policy.SuccessCodes) == 0 {
		return runner.Policy{SuccessCodes: DefaultSuccessCodes}
	}
	return c.Policy
}
