package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type fixParams struct {
	Files []string `json:"files,omitempty" jsonschema:"files to fix, relative to the workspace or absolute. Defaults to every file in the workspace."`
}

func (h *handler) fixHandler(ctx context.Context, req *mcp.CallToolRequest, params fixParams) (*mcp.CallToolResult, any, error) {
	result, err := h.engine.Fix(h.withLogger(ctx), params.Files)
	if err != nil {
		return failureResult("fix", err)
	}

	_ = h.store.Save(result.RunResult)

	var b strings.Builder
	fmt.Fprintf(&b, "Fixed: %d files\n", len(result.Fixed))
	fmt.Fprintf(&b, "Run: %s\n", result.RunResult.ID)
	for _, f := range result.Fixed {
		fmt.Fprintf(&b, "  %s\n", f)
	}
	return textResult(b.String())
}

type formatParams struct {
	Path    string `json:"path,omitempty" jsonschema:"file name used to pick BUILD or .bzl formatting rules, e.g. pkg/BUILD.bazel"`
	Content string `json:"content" jsonschema:"the file content to format"`
}

func (h *handler) formatHandler(ctx context.Context, req *mcp.CallToolRequest, params formatParams) (*mcp.CallToolResult, any, error) {
	out, err := h.engine.Format(h.withLogger(ctx), params.Path, []byte(params.Content))
	if err != nil {
		return failureResult("format", err)
	}
	return textResult(string(out))
}
