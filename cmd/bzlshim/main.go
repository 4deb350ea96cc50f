// Command bzlshim edits and checks Bazel files with buildozer and
// buildifier, and serves the same operations over MCP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/bzlshim"
	"github.com/deixis/bzlshim/internal/buildozer"
	"github.com/deixis/bzlshim/internal/config"
	"github.com/deixis/bzlshim/internal/launcher"
	"github.com/deixis/bzlshim/internal/logging"
	bzlmcp "github.com/deixis/bzlshim/internal/mcp"
	"github.com/deixis/bzlshim/internal/platform"
	"github.com/deixis/bzlshim/internal/report"
	"github.com/deixis/bzlshim/internal/runner"
	"github.com/deixis/bzlshim/internal/workflow"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("bzlshim: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "edit":
		err = editMain(args)
	case "check":
		err = checkMain(args)
	case "fix":
		err = fixMain(args)
	case "fmt":
		err = fmtMain(args)
	case "exec":
		err = execMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(bzlshim.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "bzlshim: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Print(err)
		var te *runner.ToolError
		if errors.As(err, &te) {
			os.Exit(te.Status)
		}
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: bzlshim <command> [flags] [args]

Commands:
  edit        Run buildozer command batches ('cmd|cmd|target,target')
  check       Check formatting and lint with buildifier
  fix         Reformat files and apply lint fixes
  fmt         Format stdin and write the result to stdout
  exec        Run buildozer or buildifier directly with the given arguments
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "bzlshim <command> -h" for command-specific flags.`)
}

// --- edit ---

// stringsFlag collects a repeated string flag.
type stringsFlag []string

func (s *stringsFlag) String() string     { return strings.Join(*s, " ") }
func (s *stringsFlag) Set(v string) error { *s = append(*s, v); return nil }

func editMain(args []string) error {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	var toolFlags stringsFlag
	fs.Var(&toolFlags, "flag", "extra buildozer flag, e.g. -flag=-k (repeatable)")
	dir := fs.String("C", "", "run buildozer from this directory")
	file := fs.String("f", "", "read command batches from file (- for stdin)")
	timeoutFlag := fs.Duration("timeout", 0, "override configured timeout (e.g. 5m)")
	_ = fs.Parse(args)

	batches, err := readBatches(fs.Args(), *file, os.Stdin)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, ctx, err := newEngine(ctx, *dir, *timeoutFlag)
	if err != nil {
		return err
	}

	result, err := eng.Edit(ctx, batches, toolFlags)
	if err != nil {
		return err
	}
	for _, line := range result.Lines {
		fmt.Println(line)
	}
	return nil
}

// readBatches parses batches from positional arguments, one batch per
// argument, or from a command file when file is set.
func readBatches(args []string, file string, stdin io.Reader) ([]buildozer.Batch, error) {
	if file != "" {
		if len(args) > 0 {
			return nil, errors.New("edit: -f cannot be combined with batch arguments")
		}
		var (
			data []byte
			err  error
		)
		if file == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			return nil, fmt.Errorf("reading command file: %w", err)
		}
		return buildozer.Parse(string(data))
	}

	if len(args) == 0 {
		return nil, errors.New("edit: no command batches given")
	}
	batches := make([]buildozer.Batch, 0, len(args))
	for _, arg := range args {
		b, err := buildozer.ParseLine(arg)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}

// --- check ---

func checkMain(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output results as JSON")
	verboseFlag := fs.Bool("v", false, "verbose output")
	timeoutFlag := fs.Duration("timeout", 0, "override configured timeout (e.g. 5m)")
	_ = fs.Parse(args)

	files := fs.Args()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, ctx, err := newEngine(ctx, "", *timeoutFlag)
	if err != nil {
		return err
	}

	result, err := eng.Check(ctx, files)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.RunResult); err != nil {
			return err
		}
	} else {
		fmt.Print(formatCheckCLI(result, *verboseFlag))
	}

	if result.FailedIdx >= 0 {
		os.Exit(1)
	}
	return nil
}

func formatCheckCLI(result *workflow.CheckResult, verbose bool) string {
	rr := result.RunResult
	var b []byte
	w := func(format string, args ...any) {
		b = fmt.Appendf(b, format, args...)
	}

	allPassed := result.FailedIdx < 0

	if allPassed {
		w("ok\n")
	} else {
		w("FAIL\n")
	}
	w("\n")

	for _, s := range result.Steps {
		switch s.Status {
		case "pass":
			w("  %-15s ok\n", s.Name)
		case "fail":
			w("  %-15s FAIL\n", s.Name)
		case "skipped":
			w("  %-15s -\n", s.Name)
		}
	}
	w("\n")

	if !allPassed {
		failed := result.Steps[result.FailedIdx]

		failures := workflow.FormatFailureSymbols(rr)
		if len(failures) > 0 {
			for _, f := range failures {
				w("  %s\n", f)
			}
			w("\n")
		}

		if verbose {
			for _, d := range report.ByFile(rr, "") {
				if d.Line > 0 {
					w("%s:%d:%d: [%s] %s\n", d.File, d.Line, d.Col, d.Detail, d.Message)
				}
			}
		}
		if (verbose || len(failures) == 0) && failed.Output != "" {
			w("%s\n", failed.Output)
		}
		if len(rr.FormatIssues) > 0 {
			w("Run \"bzlshim fix\" to reformat.\n")
		}
	}

	return string(b)
}

// --- fix ---

func fixMain(args []string) error {
	fs := flag.NewFlagSet("fix", flag.ExitOnError)
	timeoutFlag := fs.Duration("timeout", 0, "override configured timeout (e.g. 5m)")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, ctx, err := newEngine(ctx, "", *timeoutFlag)
	if err != nil {
		return err
	}

	result, err := eng.Fix(ctx, fs.Args())
	if err != nil {
		return fmt.Errorf("fix: %w", err)
	}
	for _, f := range result.Fixed {
		fmt.Printf("fixed %s\n", f)
	}
	return nil
}

// --- fmt ---

func fmtMain(args []string) error {
	fs := flag.NewFlagSet("fmt", flag.ExitOnError)
	path := fs.String("path", "", "file name used to pick formatting rules (e.g. pkg/BUILD)")
	_ = fs.Parse(args)

	content, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, ctx, err := newEngine(ctx, "", 0)
	if err != nil {
		return err
	}

	out, err := eng.Format(ctx, *path, content)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

// --- exec ---

func execMain(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("exec: missing tool name (%s or %s)", platform.Buildozer, platform.Buildifier)
	}
	tool := args[0]
	if tool != platform.Buildozer && tool != platform.Buildifier {
		return fmt.Errorf("exec: unknown tool %q", tool)
	}

	eng, ctx, err := newEngine(context.Background(), "", 0)
	if err != nil {
		return err
	}
	binary, err := eng.ResolveTool(tool)
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	l := &launcher.Launcher{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Grace:  launcher.DefaultGrace,
		Logger: logging.FromContext(ctx),
	}
	code, err := l.Run(ctx, binary, args[1:], sigs)
	signal.Stop(sigs)
	if err != nil {
		return err
	}
	os.Exit(code)
	return nil
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(bzlmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, *httpAddr)
}

func serve(ctx context.Context, httpAddr string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}

	disk := report.NewDiskStore()
	store := report.NewLRUStore(5, disk)

	r := &runner.Runner{
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
	}

	server := bzlmcp.NewServer(cfg, r, store, workspace,
		bzlmcp.WithResolver(resolver),
		bzlmcp.WithLogger(logging.New(cfg.Level(), os.Stderr)),
	)

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- shared ---

// newEngine loads the configuration for dir (the current directory when
// empty) and returns an engine plus a context carrying the configured
// logger.
func newEngine(ctx context.Context, dir string, timeoutOverride time.Duration) (*workflow.Engine, context.Context, error) {
	workspace := dir
	if workspace == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, nil, fmt.Errorf("determining workspace: %w", err)
		}
		workspace = wd
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	ctx = logging.WithLogger(ctx, logging.New(cfg.Level(), os.Stderr))

	timeout := cfg.Timeout()
	if timeoutOverride > 0 {
		timeout = timeoutOverride
	}

	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, nil, err
	}

	r := &runner.Runner{
		Timeout:   timeout,
		MaxOutput: cfg.MaxOutputBytes(),
	}

	return &workflow.Engine{
		Config:    cfg,
		Runner:    r,
		Resolver:  resolver,
		Workspace: workspace,
		RepoRoot:  loaded.RepoRoot,
	}, ctx, nil
}

// newResolver looks up bundled binaries in the configured bin_dir, or
// next to the running executable.
func newResolver(cfg *config.Config) (*platform.Resolver, error) {
	dir := cfg.BinDir
	if dir == "" {
		var err error
		if dir, err = launcher.BinDir(); err != nil {
			return nil, err
		}
	}
	return platform.Host(dir), nil
}
