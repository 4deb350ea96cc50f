package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/bzlshim/internal/report"
)

type inspectParams struct {
	RunID string `json:"run_id,omitempty" jsonschema:"the run ID from a bzl_check, bzl_fix or bzl_edit result; omit for the latest run"`
	File  string `json:"file,omitempty" jsonschema:"narrow diagnostics to this file (e.g. pkg/BUILD); omit for all files"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	var (
		result *report.RunResult
		err    error
	)
	if params.RunID == "" {
		latest, ok := h.store.(interface {
			Latest() (*report.RunResult, bool)
		})
		if !ok {
			return errorResult("run_id is required")
		}
		if result, ok = latest.Latest(); !ok {
			return errorResult("no runs yet; call bzl_check, bzl_fix or bzl_edit first")
		}
		params.RunID = result.ID
	} else if result, err = h.store.Load(params.RunID); err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	switch result.Kind {
	case report.Edit:
		return textResult(formatEditInspect(result))
	case report.Fix:
		if len(result.FixedFiles) == 0 {
			return textResult(fmt.Sprintf("Run: %s (%s)\nNo files were changed.", result.ID, result.Kind))
		}
		return textResult(fmt.Sprintf("Run: %s (%s)\nFixed:\n  %s\n", result.ID, result.Kind, strings.Join(result.FixedFiles, "\n  ")))
	}

	diagnostics := report.ByFile(result, params.File)
	if len(diagnostics) == 0 {
		scope := params.File
		if scope == "" {
			scope = "any file"
		}
		return textResult(fmt.Sprintf("No diagnostics found for %s in run %s (%s).", scope, params.RunID, result.Kind))
	}

	var files []string
	if params.File == "" {
		files = report.Files(result)
	}
	return textResult(formatInspectOutput(params.RunID, result.Kind, params.File, files, diagnostics))
}

func formatEditInspect(rr *report.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s (%s)\n", rr.ID, rr.Kind)
	fmt.Fprintf(&b, "Command: %s %s\n", rr.Tool, strings.Join(rr.Args, " "))
	fmt.Fprintf(&b, "Exit status: %d\n", rr.ExitCode)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Command file:")
	for _, line := range strings.Split(rr.Input, "\n") {
		fmt.Fprintf(&b, "    %s\n", line)
	}
	if len(rr.Output) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Output:")
		for _, line := range rr.Output {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}
	if s := strings.TrimRight(rr.Stderr, "\n"); s != "" {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "Stderr:")
		for _, line := range strings.Split(s, "\n") {
			fmt.Fprintf(&b, "    %s\n", line)
		}
	}
	return b.String()
}

func formatInspectOutput(runID string, kind report.Kind, file string, files []string, diagnostics []report.Diagnostic) string {
	var b strings.Builder

	// Run header.
	fmt.Fprintf(&b, "Run: %s (%s)\n", runID, kind)

	// Group by source for the header.
	sources := make(map[string]int)
	var order []string
	for _, d := range diagnostics {
		if sources[d.Source] == 0 {
			order = append(order, d.Source)
		}
		sources[d.Source]++
	}
	var parts []string
	for _, source := range order {
		parts = append(parts, fmt.Sprintf("%d %s", sources[source], source))
	}
	if file == "" {
		file = "all files"
	}
	fmt.Fprintf(&b, "%s: %s\n", file, strings.Join(parts, ", "))
	if len(files) > 1 {
		fmt.Fprintf(&b, "Files: %s\n", strings.Join(files, ", "))
	}
	fmt.Fprintln(&b)

	for _, d := range diagnostics {
		switch {
		case d.Line > 0 && d.Col > 0:
			fmt.Fprintf(&b, "%s:%d:%d: ", d.File, d.Line, d.Col)
		case d.Line > 0:
			fmt.Fprintf(&b, "%s:%d: ", d.File, d.Line)
		default:
			fmt.Fprintf(&b, "%s: ", d.File)
		}

		// Source/detail tag.
		tag := d.Source
		if d.Detail != "" {
			tag = d.Source + "/" + d.Detail
		}
		fmt.Fprintf(&b, "[%s] %s\n", tag, d.Message)
		if d.URL != "" {
			fmt.Fprintf(&b, "    %s\n", d.URL)
		}
	}

	return b.String()
}
