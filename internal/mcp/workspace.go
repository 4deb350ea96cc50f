package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/bzlshim/internal/config"
	"github.com/deixis/bzlshim/internal/platform"
)

type workspaceParams struct{}

func (h *handler) workspaceHandler(ctx context.Context, req *sdkmcp.CallToolRequest, _ workspaceParams) (*sdkmcp.CallToolResult, any, error) {
	ctx = h.withLogger(ctx)
	e := h.engine

	var b strings.Builder
	fmt.Fprintf(&b, "Repository root: %s\n", e.RepoRoot)
	fmt.Fprintf(&b, "Workspace: %s\n", e.Workspace)
	if _, err := os.Stat(filepath.Join(e.RepoRoot, config.FileName)); err == nil {
		fmt.Fprintf(&b, "Config: %s\n", config.FileName)
	} else {
		fmt.Fprintln(&b, "Config: (defaults)")
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Tools:")
	for _, tool := range []string{platform.Buildozer, platform.Buildifier} {
		bin, err := e.ResolveTool(tool)
		if err != nil {
			fmt.Fprintf(&b, "  %s: unavailable\n", tool)
			for _, line := range strings.Split(err.Error(), "\n") {
				if line != "" {
					fmt.Fprintf(&b, "    %s\n", line)
				}
			}
			continue
		}
		version := "unknown version"
		if v, err := e.ToolVersion(ctx, tool); err == nil {
			version = v.String()
		} else {
			h.logger.Debug().Err(err).Str("tool", tool).Msg("reading tool version")
		}
		fmt.Fprintf(&b, "  %s: %s (%s)\n", tool, bin, version)
	}

	return textResult(b.String())
}
