package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/bzlshim/internal/report"
	"github.com/deixis/bzlshim/internal/workflow"
)

type checkParams struct {
	Files []string `json:"files,omitempty" jsonschema:"BUILD, .bzl or MODULE.bazel files to check, relative to the workspace or absolute. Defaults to every file in the workspace."`
}

func (h *handler) checkHandler(ctx context.Context, req *mcp.CallToolRequest, params checkParams) (*mcp.CallToolResult, any, error) {
	result, err := h.engine.Check(h.withLogger(ctx), params.Files)
	if err != nil {
		return failureResult("check", err)
	}

	// Save results for bzl_inspect.
	_ = h.store.Save(result.RunResult)

	return textResult(formatCheck(result.RunResult.ID, result.RunResult, result.Steps, result.FailedIdx))
}

func formatCheck(runID string, rr *report.RunResult, results []workflow.StepResult, failedIdx int) string {
	var b strings.Builder

	allPassed := failedIdx < 0
	if allPassed {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	fmt.Fprintf(&b, "Run: %s\n", runID)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Steps:")
	for _, r := range results {
		fmt.Fprintf(&b, "  %s: %s\n", r.Name, r.Status)
	}
	fmt.Fprintln(&b)

	if !allPassed {
		failed := results[failedIdx]

		failures := workflow.FormatFailureSymbols(rr)
		if len(failures) > 0 {
			fmt.Fprintln(&b, "Failures:")
			for _, f := range failures {
				fmt.Fprintf(&b, "  %s\n", f)
			}
			fmt.Fprintln(&b)
			if len(rr.FormatIssues) > 0 {
				fmt.Fprintln(&b, "Action: run bzl_fix on these files to reformat them.")
			}
			fmt.Fprintf(&b, "Inspect with bzl_inspect(run_id=%q, file=\"<path>\").\n", runID)
		} else if failed.Output != "" {
			fmt.Fprintf(&b, "Failed step: %s\n", failed.Name)
			fmt.Fprintln(&b)
			fmt.Fprintln(&b, failed.Output)
		}
	} else {
		fmt.Fprintln(&b, "All check steps passed.")
	}

	return b.String()
}
