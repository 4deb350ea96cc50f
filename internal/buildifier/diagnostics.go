package buildifier

import (
	"encoding/json"
	"fmt"
)

// Diagnostics is the document buildifier prints with --format=json.
type Diagnostics struct {
	Success bool              `json:"success"` // all files formatted and free of warnings
	Files   []FileDiagnostics `json:"files"`
}

// FileDiagnostics holds the diagnostics for one file.
type FileDiagnostics struct {
	Filename  string    `json:"filename"`
	Formatted bool      `json:"formatted"`
	Valid     bool      `json:"valid"`
	Warnings  []Warning `json:"warnings"`
}

// Warning is a single lint finding.
type Warning struct {
	Start      Position `json:"start"`
	End        Position `json:"end"`
	Category   string   `json:"category"`
	Actionable bool     `json:"actionable"`
	Message    string   `json:"message"`
	URL        string   `json:"url"`
}

// Position is a 1-based line and column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ParseDiagnostics decodes buildifier's JSON output.
func ParseDiagnostics(data []byte) (*Diagnostics, error) {
	var d Diagnostics
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing buildifier diagnostics: %w", err)
	}
	return &d, nil
}

// WarningCount returns the total number of warnings across all files.
func (d *Diagnostics) WarningCount() int {
	n := 0
	for _, f := range d.Files {
		n += len(f.Warnings)
	}
	return n
}

// Unformatted returns the names of files that need reformatting.
func (d *Diagnostics) Unformatted() []string {
	var out []string
	for _, f := range d.Files {
		if !f.Formatted {
			out = append(out, f.Filename)
		}
	}
	return out
}

// Invalid returns the names of files buildifier could not parse.
func (d *Diagnostics) Invalid() []string {
	var out []string
	for _, f := range d.Files {
		if !f.Valid {
			out = append(out, f.Filename)
		}
	}
	return out
}
