// Package mcp provides the bzlshim MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"fmt"
	"net/url"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/deixis/bzlshim"
	"github.com/deixis/bzlshim/internal/config"
	"github.com/deixis/bzlshim/internal/logging"
	"github.com/deixis/bzlshim/internal/platform"
	"github.com/deixis/bzlshim/internal/report"
	"github.com/deixis/bzlshim/internal/runner"
	"github.com/deixis/bzlshim/internal/workflow"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	engine *workflow.Engine
	runner *runner.Runner // nil when a custom CommandRunner is installed
	store  report.Store
	logger zerolog.Logger
}

// NewServer creates an MCP server with all bzlshim tools registered.
func NewServer(cfg *config.Config, r *runner.Runner, store report.Store, workspace string, opts ...ServerOption) *mcp.Server {
	so := serverOptions{logger: logging.Nop()}
	for _, o := range opts {
		o(&so)
	}

	h := &handler{
		engine: &workflow.Engine{
			Config:    cfg,
			Runner:    r,
			Resolver:  so.resolver,
			Workspace: workspace,
			RepoRoot:  workspace, // MCP defaults to workspace; updated via roots
		},
		runner: r,
		store:  store,
		logger: so.logger,
	}
	if so.runner != nil {
		h.engine.Runner = so.runner
		h.runner = nil
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "bzlshim", Version: bzlshim.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "bzl_workspace",
		Description: "Summarise the Bazel workspace: repository root, configuration, and the buildozer and buildifier binaries in use.",
	}, h.workspaceHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "bzl_edit",
		Description: `Edit BUILD files with buildozer.

Each batch applies all of its commands to all of its targets. Group as many commands
as possible into one call. Commands use buildozer syntax, e.g. "add deps //base",
"new cc_library foo", "set visibility //visibility:public", "print name srcs".
Targets are labels such as //pkg:rule or //pkg:__pkg__. "No changes" is a success.`,
	}, h.editHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "bzl_check",
		Description: `Run the buildifier check pipeline (format, lint) and stop on first failure.

Files are never modified. Results are stored for drill-down via bzl_inspect.`,
	}, h.checkHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "bzl_fix",
		Description: "Reformat files in place with buildifier and apply automatic lint fixes.",
	}, h.fixHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "bzl_format",
		Description: "Format the given Starlark content with buildifier and return the result. Nothing is written to disk.",
	}, h.formatHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "bzl_inspect",
		Description: `Drill into results from a bzl_check, bzl_fix or bzl_edit run.

Use the run_id from the tool output. Pass a file to narrow diagnostics to it,
or omit it to list every diagnostic in the run.`,
	}, h.inspectHandler)

	return s
}

// ServerOption configures the bzlshim MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	resolver *platform.Resolver
	runner   workflow.CommandRunner
	logger   zerolog.Logger
}

// WithResolver sets where bundled binaries are looked up. Without it only
// PATH is searched.
func WithResolver(r *platform.Resolver) ServerOption {
	return func(o *serverOptions) {
		o.resolver = r
	}
}

// WithCommandRunner replaces the process runner used by all tools.
func WithCommandRunner(r workflow.CommandRunner) ServerOption {
	return func(o *serverOptions) {
		o.runner = r
	}
}

// WithLogger sets the logger passed to tool handlers.
func WithLogger(l zerolog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = l
	}
}

// updateWorkspaceFromRoots queries the client for MCP roots and updates the
// handler's engine, runner, and config if a valid root is returned.
// This is called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		h.logger.Warn().Err(err).Str("workspace", workspace).Msg("ignoring client root")
		return
	}

	if h.runner != nil {
		h.runner.Timeout = loaded.Config.Timeout()
		h.runner.MaxOutput = loaded.Config.MaxOutputBytes()
	}
	if loaded.Config.BinDir != "" && h.engine.Resolver != nil {
		h.engine.Resolver.Dir = loaded.Config.BinDir
	}

	h.engine.Config = loaded.Config
	h.engine.Workspace = workspace
	h.engine.RepoRoot = loaded.RepoRoot
	h.logger.Debug().Str("workspace", workspace).Str("root", loaded.RepoRoot).Msg("workspace updated from client roots")
}

// withLogger attaches the server logger to ctx.
func (h *handler) withLogger(ctx context.Context) context.Context {
	return logging.WithLogger(ctx, h.logger)
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// failureResult reports a failed operation. A missing tool gets a pointer
// to bzl_workspace, which shows where binaries are looked up.
func failureResult(op string, err error) (*mcp.CallToolResult, any, error) {
	if workflow.IsUnavailable(err) {
		return errorResult(fmt.Sprintf("%s failed: %v\n\nCall bzl_workspace to see where buildozer and buildifier are looked up.", op, err))
	}
	return errorResult(fmt.Sprintf("%s failed: %v", op, err))
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
