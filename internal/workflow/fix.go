package workflow

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/deixis/bzlshim/internal/platform"
	"github.com/deixis/bzlshim/internal/report"
)

// FixResult holds the outcome of a fix run.
type FixResult struct {
	RunResult *report.RunResult
	Fixed     []string // files buildifier rewrote
}

// Fix reformats files in place and applies automatic lint fixes.
func (e *Engine) Fix(ctx context.Context, files []string) (*FixResult, error) {
	client, err := e.buildifier(ctx)
	if err != nil {
		return nil, err
	}

	args := e.ResolveFiles(files)
	lines, err := client.Fix(ctx, args, e.config().Buildifier.Warnings)
	if err != nil {
		return nil, err
	}

	var fixed []string
	for _, line := range lines {
		if f, ok := strings.CutPrefix(line, "fixed "); ok {
			fixed = append(fixed, f)
		}
	}

	rr := &report.RunResult{
		ID:         uuid.New().String(),
		Kind:       report.Fix,
		Tool:       platform.Buildifier,
		Args:       args,
		FixedFiles: fixed,
	}
	return &FixResult{RunResult: rr, Fixed: fixed}, nil
}
