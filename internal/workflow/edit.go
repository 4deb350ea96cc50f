package workflow

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/deixis/bzlshim/internal/buildozer"
	"github.com/deixis/bzlshim/internal/platform"
	"github.com/deixis/bzlshim/internal/report"
	"github.com/deixis/bzlshim/internal/runner"
)

// EditResult holds the outcome of a buildozer run.
type EditResult struct {
	RunResult *report.RunResult
	Lines     []string // non-empty stdout lines
	Changed   bool     // buildozer exited 0 rather than "no changes"
}

// Edit runs one buildozer invocation for batches. flags are appended
// after the configured default flags.
//
// A status outside the configured success codes is returned as a
// *runner.ToolError together with a result describing the failed run.
func (e *Engine) Edit(ctx context.Context, batches []buildozer.Batch, flags []string) (*EditResult, error) {
	input, err := buildozer.Encode(batches...)
	if err != nil {
		return nil, err
	}

	bin, err := e.ResolveTool(platform.Buildozer)
	if err != nil {
		return nil, err
	}

	rec := &recorder{CommandRunner: e.Runner}
	cfg := e.config()
	client := &buildozer.Client{
		Binary: bin,
		Runner: rec,
		Flags:  cfg.Buildozer.Flags,
		Policy: runner.Policy{SuccessCodes: cfg.Buildozer.SuccessCodes},
	}

	rr := &report.RunResult{
		ID:    uuid.New().String(),
		Kind:  report.Edit,
		Tool:  platform.Buildozer,
		Args:  client.Args(flags),
		Input: input,
	}

	lines, runErr := client.RunWithOptions(ctx, batches, runner.Options{Dir: e.Workspace}, flags)
	if rec.last != nil {
		rr.ExitCode = rec.last.ExitCode
		rr.Stderr = string(rec.last.Stderr)
	}
	if runErr != nil {
		var te *runner.ToolError
		if errors.As(runErr, &te) {
			return &EditResult{RunResult: rr}, runErr
		}
		return nil, runErr
	}

	rr.Output = lines
	return &EditResult{
		RunResult: rr,
		Lines:     lines,
		Changed:   rr.ExitCode == buildozer.ExitSuccess,
	}, nil
}
