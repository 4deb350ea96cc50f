package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/deixis/bzlshim/internal/buildifier"
	"github.com/deixis/bzlshim/internal/platform"
	"github.com/deixis/bzlshim/internal/report"
)

// CheckResult holds the full outcome of a check run.
type CheckResult struct {
	RunResult *report.RunResult
	Steps     []StepResult
	FailedIdx int // -1 if all passed
}

// StepResult holds the outcome of a single check step.
type StepResult struct {
	Name   string
	Status string // pass, fail, skipped
	Output string // summary from the underlying tool (only on failure)
}

// Check runs the configured check steps (format, lint) in sequence,
// stopping on first failure. Files are never modified.
func (e *Engine) Check(ctx context.Context, files []string) (*CheckResult, error) {
	client, err := e.buildifier(ctx)
	if err != nil {
		return nil, err
	}

	cfg := e.config()
	args := e.ResolveFiles(files)
	rr := &report.RunResult{
		ID:   uuid.New().String(),
		Kind: report.Check,
		Tool: platform.Buildifier,
		Args: args,
	}

	steps := cfg.CheckSteps()
	results := make([]StepResult, len(steps))
	for i, step := range steps {
		results[i] = StepResult{Name: step, Status: "skipped"}
	}

	failedIdx := -1
	for i, step := range steps {
		var (
			diag *buildifier.Diagnostics
			err  error
		)
		switch step {
		case "format":
			diag, err = client.Check(ctx, args, buildifier.CheckOptions{})
		case "lint":
			diag, err = client.Check(ctx, args, buildifier.CheckOptions{
				Lint:     true,
				Warnings: cfg.Buildifier.Warnings,
			})
		default:
			err = fmt.Errorf("unknown step: %s", step)
		}

		switch {
		case err != nil:
			results[i] = StepResult{Name: step, Status: "fail", Output: err.Error()}
			failedIdx = i
		case step == "format":
			rr.InvalidFiles = diag.Invalid()
			for _, f := range diag.Unformatted() {
				rr.FormatIssues = append(rr.FormatIssues, report.FormatIssue{
					File:    f,
					Message: fmt.Sprintf("file not formatted: %s", f),
				})
			}
			if len(rr.InvalidFiles) > 0 || len(rr.FormatIssues) > 0 {
				results[i] = StepResult{Name: step, Status: "fail", Output: formatSummary(rr)}
				failedIdx = i
			} else {
				results[i] = StepResult{Name: step, Status: "pass"}
			}
		default:
			rr.InvalidFiles = diag.Invalid()
			rr.LintFindings = lintFindings(diag)
			if len(rr.InvalidFiles) > 0 || len(rr.LintFindings) > 0 {
				results[i] = StepResult{Name: step, Status: "fail", Output: lintSummary(rr)}
				failedIdx = i
			} else {
				results[i] = StepResult{Name: step, Status: "pass"}
			}
		}

		if failedIdx >= 0 {
			break
		}
	}

	if failedIdx >= 0 {
		rr.ExitCode = buildifier.ExitCheckFailed
	}
	return &CheckResult{
		RunResult: rr,
		Steps:     results,
		FailedIdx: failedIdx,
	}, nil
}

// buildifier resolves the buildifier binary and enforces the configured
// minimum version.
func (e *Engine) buildifier(ctx context.Context) (*buildifier.Client, error) {
	bin, err := e.ResolveTool(platform.Buildifier)
	if err != nil {
		return nil, err
	}
	cfg := e.config()
	if err := e.RequireVersion(ctx, platform.Buildifier, cfg.Buildifier.MinVersion); err != nil {
		return nil, err
	}
	return &buildifier.Client{
		Binary: bin,
		Runner: e.Runner,
		Flags:  cfg.Buildifier.Flags,
		Dir:    e.Workspace,
	}, nil
}

func lintFindings(d *buildifier.Diagnostics) []report.LintFinding {
	var out []report.LintFinding
	for _, f := range d.Files {
		for _, w := range f.Warnings {
			out = append(out, report.LintFinding{
				File:       f.Filename,
				Line:       w.Start.Line,
				Col:        w.Start.Column,
				EndLine:    w.End.Line,
				EndCol:     w.End.Column,
				Category:   w.Category,
				Actionable: w.Actionable,
				Message:    w.Message,
				URL:        w.URL,
			})
		}
	}
	return out
}

func formatSummary(rr *report.RunResult) string {
	var parts []string
	if n := len(rr.InvalidFiles); n > 0 {
		parts = append(parts, fmt.Sprintf("%d files could not be parsed", n))
	}
	if n := len(rr.FormatIssues); n > 0 {
		parts = append(parts, fmt.Sprintf("%d files need formatting", n))
	}
	return strings.Join(parts, ", ")
}

func lintSummary(rr *report.RunResult) string {
	files := make(map[string]bool)
	for _, l := range rr.LintFindings {
		files[l.File] = true
	}
	s := fmt.Sprintf("%d lint warnings in %d files", len(rr.LintFindings), len(files))
	if n := len(rr.InvalidFiles); n > 0 {
		s += fmt.Sprintf(", %d files could not be parsed", n)
	}
	return s
}

// FormatFailureSymbols builds one line per file with findings, naming the
// file and what is wrong with it.
func FormatFailureSymbols(rr *report.RunResult) []string {
	var out []string
	for _, f := range rr.InvalidFiles {
		out = append(out, fmt.Sprintf("%s: syntax error", f))
	}
	for _, f := range rr.FormatIssues {
		out = append(out, fmt.Sprintf("%s: needs formatting", f.File))
	}

	counts := make(map[string]int)
	var order []string
	for _, l := range rr.LintFindings {
		if counts[l.File] == 0 {
			order = append(order, l.File)
		}
		counts[l.File]++
	}
	for _, f := range order {
		out = append(out, fmt.Sprintf("%s: %d lint warnings", f, counts[f]))
	}
	return out
}
