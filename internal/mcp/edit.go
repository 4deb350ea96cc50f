package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/bzlshim/internal/buildozer"
	"github.com/deixis/bzlshim/internal/report"
	"github.com/deixis/bzlshim/internal/runner"
)

type editParams struct {
	Batches []buildozer.Batch `json:"batches" jsonschema:"command batches; each batch applies all of its commands to all of its targets"`
	Flags   []string          `json:"flags,omitempty" jsonschema:"extra buildozer flags placed before the command file, e.g. -k to keep going after errors"`
}

func (h *handler) editHandler(ctx context.Context, req *mcp.CallToolRequest, params editParams) (*mcp.CallToolResult, any, error) {
	if len(params.Batches) == 0 {
		return errorResult("at least one batch is required")
	}

	result, err := h.engine.Edit(h.withLogger(ctx), params.Batches, params.Flags)
	if result != nil {
		// Save results for bzl_inspect.
		_ = h.store.Save(result.RunResult)
	}
	if err != nil {
		var te *runner.ToolError
		if errors.As(err, &te) && result != nil {
			return errorResult(formatEditFailure(result.RunResult))
		}
		return failureResult("edit", err)
	}

	return textResult(formatEdit(result.RunResult, result.Changed))
}

func formatEdit(rr *report.RunResult, changed bool) string {
	var b strings.Builder

	if changed {
		fmt.Fprintln(&b, "Status: OK (changes made)")
	} else {
		fmt.Fprintln(&b, "Status: OK (no changes)")
	}
	fmt.Fprintf(&b, "Run: %s\n", rr.ID)

	if len(rr.Output) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Output:")
		for _, line := range rr.Output {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return b.String()
}

func formatEditFailure(rr *report.RunResult) string {
	var b strings.Builder

	fmt.Fprintln(&b, "Status: FAIL")
	fmt.Fprintf(&b, "Run: %s\n", rr.ID)
	fmt.Fprintf(&b, "buildozer exited with status %d\n", rr.ExitCode)
	if s := strings.TrimSpace(rr.Stderr); s != "" {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, s)
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Inspect the command file with bzl_inspect(run_id=%q).\n", rr.ID)
	return b.String()
}
