// Package report provides structured persistence and retrieval of
// tool run results. Results are stored as typed structs and can be
// queried by file.
package report

import "path/filepath"

// Kind identifies the type of a run.
type Kind string

const (
	// Edit is a buildozer command-batch run.
	Edit Kind = "edit"
	// Check is a buildifier check run (format, lint).
	Check Kind = "check"
	// Fix is a buildifier fix run.
	Fix Kind = "fix"
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult holds the structured output from a tool run.
type RunResult struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	Tool     string   `json:"tool"`
	Args     []string `json:"args,omitempty"`
	ExitCode int      `json:"exit_code"`

	// Edit fields.
	Input  string   `json:"input,omitempty"`  // command file sent on stdin
	Output []string `json:"output,omitempty"` // non-empty stdout lines
	Stderr string   `json:"stderr,omitempty"`

	// Check and fix fields.
	FormatIssues []FormatIssue `json:"format_issues,omitempty"`
	InvalidFiles []string      `json:"invalid_files,omitempty"`
	LintFindings []LintFinding `json:"lint_findings,omitempty"`
	FixedFiles   []string      `json:"fixed_files,omitempty"`
}

// FormatIssue represents a file buildifier would reformat.
type FormatIssue struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// LintFinding represents a buildifier lint warning.
type LintFinding struct {
	File       string `json:"file"`
	Line       int    `json:"line"`
	Col        int    `json:"col"`
	EndLine    int    `json:"end_line,omitempty"`
	EndCol     int    `json:"end_col,omitempty"`
	Category   string `json:"category"`
	Actionable bool   `json:"actionable"`
	Message    string `json:"message"`
	URL        string `json:"url,omitempty"`
}

// Diagnostic is a uniform view over all finding types.
type Diagnostic struct {
	Source  string // "format", "syntax", "lint"
	File    string
	Line    int
	Col     int
	Detail  string // lint category
	Message string
	URL     string
}

// Files returns the distinct files with diagnostics, in first-seen order.
func Files(result *RunResult) []string {
	var out []string
	seen := make(map[string]bool)
	for _, d := range toDiagnostics(result) {
		if !seen[d.File] {
			seen[d.File] = true
			out = append(out, d.File)
		}
	}
	return out
}

// ByFile returns all diagnostics for a file. An empty file returns every
// diagnostic in the run.
func ByFile(result *RunResult, file string) []Diagnostic {
	all := toDiagnostics(result)
	if file == "" {
		return all
	}
	want := filepath.Clean(file)
	var out []Diagnostic
	for _, d := range all {
		if filepath.Clean(d.File) == want {
			out = append(out, d)
		}
	}
	return out
}

func toDiagnostics(r *RunResult) []Diagnostic {
	var out []Diagnostic

	for _, f := range r.InvalidFiles {
		out = append(out, Diagnostic{
			Source:  "syntax",
			File:    f,
			Message: "file could not be parsed",
		})
	}
	for _, f := range r.FormatIssues {
		out = append(out, Diagnostic{
			Source:  "format",
			File:    f.File,
			Message: f.Message,
		})
	}
	for _, l := range r.LintFindings {
		out = append(out, Diagnostic{
			Source:  "lint",
			File:    l.File,
			Line:    l.Line,
			Col:     l.Col,
			Detail:  l.Category,
			Message: l.Message,
			URL:     l.URL,
		})
	}

	return out
}
