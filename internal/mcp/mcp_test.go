package mcp

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/bzlshim/internal/buildifier"
	"github.com/deixis/bzlshim/internal/config"
	"github.com/deixis/bzlshim/internal/platform"
	"github.com/deixis/bzlshim/internal/report"
	"github.com/deixis/bzlshim/internal/runner"
)

// fakeTools stands in for buildozer and buildifier. Results are chosen
// by the tool name and the flags of each call.
type fakeTools struct {
	mu    sync.Mutex
	stdin []string

	buildozer  *runner.Result
	format     *runner.Result
	lint       *runner.Result
	fixStderr  string
	formatted  string
	versionOut string
}

func (f *fakeTools) Run(_ context.Context, argv []string, opts runner.Options) (*runner.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if opts.Stdin != nil {
		data, err := io.ReadAll(opts.Stdin)
		if err != nil {
			return nil, err
		}
		f.stdin = append(f.stdin, string(data))
	}

	args := argv[1:]
	switch {
	case slices.Contains(args, "--version"):
		return &runner.Result{Stdout: []byte(f.versionOut)}, nil
	case strings.Contains(filepath.Base(argv[0]), platform.Buildozer):
		return f.buildozer, nil
	case slices.Contains(args, "--mode=fix"):
		return &runner.Result{Stderr: []byte(f.fixStderr)}, nil
	case slices.Contains(args, "--lint=warn"):
		return f.lint, nil
	case slices.Contains(args, "--mode=check"):
		return f.format, nil
	}
	return &runner.Result{Stdout: []byte(f.formatted)}, nil
}

func diagnostics(t *testing.T, files ...buildifier.FileDiagnostics) *runner.Result {
	t.Helper()
	data, err := json.Marshal(buildifier.Diagnostics{Files: files})
	if err != nil {
		t.Fatal(err)
	}
	return &runner.Result{Stdout: data}
}

// setup creates a full bzlshim MCP server + client over in-memory
// transports, backed by fake tools and placeholder bundled binaries.
func setup(t *testing.T, tools *fakeTools, cfg *config.Config) *mcp.ClientSession {
	t.Helper()
	resolver := platform.Host(t.TempDir())
	for _, tool := range []string{platform.Buildozer, platform.Buildifier} {
		p, err := resolver.Binary(tool)
		if err != nil {
			t.Skipf("host platform has no bundled binaries: %v", err)
		}
		if err := os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return setupWithResolver(t, tools, cfg, resolver)
}

func setupWithResolver(t *testing.T, tools *fakeTools, cfg *config.Config, resolver *platform.Resolver) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, "MODULE.bazel"), []byte("module(name = \"test\")\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if cfg == nil {
		cfg = &config.Config{}
	}
	if tools.versionOut == "" {
		tools.versionOut = "buildifier version: 7.1.2\n"
	}

	store := report.NewLRUStore(5, report.NewDiskStore())
	server := NewServer(cfg, &runner.Runner{}, store, workspace,
		WithResolver(resolver),
		WithCommandRunner(tools),
	)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
	})

	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func runID(t *testing.T, text string) string {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		if id, ok := strings.CutPrefix(line, "Run: "); ok {
			return id
		}
	}
	t.Fatalf("no Run ID found in output:\n%s", text)
	return ""
}

var editArgs = map[string]any{
	"batches": []any{
		map[string]any{
			"commands": []any{"add deps //base", "set visibility //visibility:public"},
			"targets":  []any{"//foo:bar", "//foo:baz"},
		},
	},
}

// --- bzl_workspace ---

func TestBzlWorkspace(t *testing.T) {
	cs := setup(t, &fakeTools{}, nil)
	res := callTool(t, cs, "bzl_workspace", nil)
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	for _, want := range []string{"Repository root:", "buildozer:", "buildifier:", "7.1.2"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

// --- bzl_edit ---

func TestBzlEdit_Changed(t *testing.T) {
	tools := &fakeTools{buildozer: &runner.Result{Stdout: []byte("fixed //foo:bar\n")}}
	cs := setup(t, tools, nil)

	res := callTool(t, cs, "bzl_edit", editArgs)
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "Status: OK (changes made)") {
		t.Errorf("expected changes made, got:\n%s", text)
	}
	if !strings.Contains(text, "fixed //foo:bar") {
		t.Errorf("expected buildozer output, got:\n%s", text)
	}
	want := "add deps //base|set visibility //visibility:public|//foo:bar,//foo:baz"
	if len(tools.stdin) != 1 || tools.stdin[0] != want {
		t.Errorf("stdin = %q, want %q", tools.stdin, want)
	}
}

func TestBzlEdit_NoChanges(t *testing.T) {
	tools := &fakeTools{buildozer: &runner.Result{ExitCode: 3}}
	cs := setup(t, tools, nil)

	res := callTool(t, cs, "bzl_edit", editArgs)
	text := resultText(res)
	if res.IsError {
		t.Fatalf("exit 3 must not be an error: %s", text)
	}
	if !strings.Contains(text, "Status: OK (no changes)") {
		t.Errorf("expected no changes, got:\n%s", text)
	}
}

func TestBzlEdit_FailureThenInspect(t *testing.T) {
	tools := &fakeTools{buildozer: &runner.Result{ExitCode: 2, Stderr: []byte("rule 'baz' not found\n")}}
	cs := setup(t, tools, nil)

	res := callTool(t, cs, "bzl_edit", editArgs)
	text := resultText(res)
	if !res.IsError {
		t.Fatalf("expected IsError for exit 2, got:\n%s", text)
	}
	if !strings.Contains(text, "rule 'baz' not found") {
		t.Errorf("expected stderr in output, got:\n%s", text)
	}

	insp := callTool(t, cs, "bzl_inspect", map[string]any{"run_id": runID(t, text)})
	inspText := resultText(insp)
	if insp.IsError {
		t.Fatalf("unexpected error from bzl_inspect: %s", inspText)
	}
	for _, want := range []string{"Exit status: 2", "Command file:", "//foo:bar,//foo:baz", "Stderr:"} {
		if !strings.Contains(inspText, want) {
			t.Errorf("expected %q in inspect output, got:\n%s", want, inspText)
		}
	}
}

func TestBzlEdit_InvalidBatch(t *testing.T) {
	cs := setup(t, &fakeTools{buildozer: &runner.Result{}}, nil)
	res := callTool(t, cs, "bzl_edit", map[string]any{
		"batches": []any{
			map[string]any{"commands": []any{"add deps //a|//b"}, "targets": []any{"//foo:bar"}},
		},
	})
	if !res.IsError {
		t.Errorf("expected IsError for a command containing |, got:\n%s", resultText(res))
	}
}

// --- bzl_check ---

func TestBzlCheck_Passing(t *testing.T) {
	ok := diagnostics(t, buildifier.FileDiagnostics{Filename: "foo/BUILD", Formatted: true, Valid: true})
	cs := setup(t, &fakeTools{format: ok, lint: ok}, nil)

	res := callTool(t, cs, "bzl_check", map[string]any{"files": []any{"foo/BUILD"}})
	text := resultText(res)
	for _, want := range []string{"Status: PASS", "format: pass", "lint: pass", "Run:"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

func TestBzlCheck_LintFailureThenInspect(t *testing.T) {
	format := diagnostics(t, buildifier.FileDiagnostics{Filename: "foo/BUILD", Formatted: true, Valid: true})
	lint := diagnostics(t, buildifier.FileDiagnostics{
		Filename:  "foo/BUILD",
		Formatted: true,
		Valid:     true,
		Warnings: []buildifier.Warning{{
			Start:    buildifier.Position{Line: 2, Column: 5},
			Category: "unsorted-dict-items",
			Message:  "Dictionary items are out of their lexicographical order.",
			URL:      "https://github.com/bazelbuild/buildtools/blob/master/WARNINGS.md#unsorted-dict-items",
		}},
	})
	lint.ExitCode = 4
	cs := setup(t, &fakeTools{format: format, lint: lint}, nil)

	res := callTool(t, cs, "bzl_check", nil)
	text := resultText(res)
	for _, want := range []string{"Status: FAIL", "lint: fail", "foo/BUILD: 1 lint warnings", "bzl_inspect"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}

	insp := callTool(t, cs, "bzl_inspect", map[string]any{
		"run_id": runID(t, text),
		"file":   "foo/BUILD",
	})
	inspText := resultText(insp)
	if insp.IsError {
		t.Fatalf("unexpected error from bzl_inspect: %s", inspText)
	}
	if !strings.Contains(inspText, "foo/BUILD:2:5: [lint/unsorted-dict-items]") {
		t.Errorf("expected positioned lint diagnostic, got:\n%s", inspText)
	}
}

func TestBzlCheck_FormatFailure(t *testing.T) {
	format := diagnostics(t, buildifier.FileDiagnostics{Filename: "foo/BUILD", Formatted: false, Valid: true})
	format.ExitCode = 4
	cs := setup(t, &fakeTools{format: format}, nil)

	res := callTool(t, cs, "bzl_check", nil)
	text := resultText(res)
	for _, want := range []string{"Status: FAIL", "format: fail", "lint: skipped", "bzl_fix"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

func TestBzlCheck_ToolTooOld(t *testing.T) {
	cfg := &config.Config{Buildifier: config.BuildifierConfig{MinVersion: "8.0.0"}}
	cs := setup(t, &fakeTools{}, cfg)

	res := callTool(t, cs, "bzl_check", nil)
	if !res.IsError {
		t.Fatalf("expected IsError for old buildifier, got:\n%s", resultText(res))
	}
	if !strings.Contains(resultText(res), "older than the required minimum") {
		t.Errorf("unexpected message:\n%s", resultText(res))
	}
}

func TestBzlCheck_ToolUnavailable(t *testing.T) {
	resolver := platform.Host(t.TempDir())
	if _, err := resolver.Binary(platform.Buildifier); err != nil {
		t.Skipf("host platform has no bundled binaries: %v", err)
	}
	t.Setenv("PATH", t.TempDir())
	cs := setupWithResolver(t, &fakeTools{}, nil, resolver)

	res := callTool(t, cs, "bzl_check", nil)
	text := resultText(res)
	if !res.IsError {
		t.Fatalf("expected IsError without buildifier, got:\n%s", text)
	}
	for _, want := range []string{"check failed:", "buildifier is required but not installed", "bzl_workspace"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

// --- bzl_fix / bzl_format ---

func TestBzlFix(t *testing.T) {
	cs := setup(t, &fakeTools{fixStderr: "fixed foo/BUILD\n"}, nil)
	res := callTool(t, cs, "bzl_fix", map[string]any{"files": []any{"foo/BUILD"}})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "Fixed: 1 files") || !strings.Contains(text, "foo/BUILD") {
		t.Errorf("unexpected output:\n%s", text)
	}
}

func TestBzlFormat(t *testing.T) {
	tools := &fakeTools{formatted: "cc_library(name = \"x\")\n"}
	cs := setup(t, tools, nil)
	res := callTool(t, cs, "bzl_format", map[string]any{
		"path":    "foo/BUILD",
		"content": "cc_library(name='x')",
	})
	if got := resultText(res); got != "cc_library(name = \"x\")\n" {
		t.Errorf("bzl_format = %q", got)
	}
	if len(tools.stdin) != 1 || tools.stdin[0] != "cc_library(name='x')" {
		t.Errorf("stdin = %q", tools.stdin)
	}
}

// --- bzl_inspect ---

func TestBzlInspect_NoRuns(t *testing.T) {
	cs := setup(t, &fakeTools{}, nil)
	res := callTool(t, cs, "bzl_inspect", map[string]any{"file": "foo/BUILD"})
	if !res.IsError {
		t.Errorf("expected IsError before any run, got:\n%s", resultText(res))
	}
}

func TestBzlInspect_LatestRun(t *testing.T) {
	format := diagnostics(t, buildifier.FileDiagnostics{Filename: "foo/BUILD", Formatted: false, Valid: true})
	format.ExitCode = 4
	cs := setup(t, &fakeTools{format: format}, nil)

	id := runID(t, resultText(callTool(t, cs, "bzl_check", nil)))

	res := callTool(t, cs, "bzl_inspect", nil)
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error from bzl_inspect: %s", text)
	}
	if !strings.Contains(text, "Run: "+id) {
		t.Errorf("expected latest run %s, got:\n%s", id, text)
	}
	if !strings.Contains(text, "foo/BUILD: [format]") {
		t.Errorf("expected format diagnostic, got:\n%s", text)
	}
}

func TestBzlInspect_ListsFiles(t *testing.T) {
	format := diagnostics(t,
		buildifier.FileDiagnostics{Filename: "foo/BUILD", Formatted: false, Valid: true},
		buildifier.FileDiagnostics{Filename: "bar/defs.bzl", Formatted: false, Valid: true},
	)
	format.ExitCode = 4
	cs := setup(t, &fakeTools{format: format}, nil)

	id := runID(t, resultText(callTool(t, cs, "bzl_check", nil)))

	text := resultText(callTool(t, cs, "bzl_inspect", map[string]any{"run_id": id}))
	if !strings.Contains(text, "Files: foo/BUILD, bar/defs.bzl") {
		t.Errorf("expected file listing, got:\n%s", text)
	}

	text = resultText(callTool(t, cs, "bzl_inspect", map[string]any{"run_id": id, "file": "foo/BUILD"}))
	if strings.Contains(text, "Files:") || strings.Contains(text, "bar/defs.bzl") {
		t.Errorf("expected output narrowed to foo/BUILD, got:\n%s", text)
	}
}

func TestBzlInspect_InvalidRunID(t *testing.T) {
	cs := setup(t, &fakeTools{}, nil)
	res := callTool(t, cs, "bzl_inspect", map[string]any{"run_id": "nonexistent-id"})
	if !res.IsError {
		t.Error("expected IsError for invalid run_id")
	}
}
