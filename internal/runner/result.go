package runner

import (
	"fmt"
	"slices"
)

// Result holds the output of a command execution.
type Result struct {
	RunID     string // unique identifier for this run
	ExitCode  int    // process exit code
	Stdout    []byte // captured stdout (may be truncated)
	Stderr    []byte // captured stderr (may be truncated)
	Truncated bool   // true if output exceeded the size cap
}

// Policy decides which exit codes of a tool count as success.
type Policy struct {
	SuccessCodes []int
}

// Success reports whether code is one of the policy's success codes.
// An empty policy accepts only 0.
func (p Policy) Success(code int) bool {
	if len(p.SuccessCodes) == 0 {
		return code == 0
	}
	return slices.Contains(p.SuccessCodes, code)
}

// Check returns a *ToolError carrying the captured stderr when res exited
// with a status outside the success codes. A successful run whose output
// hit the size cap yields an error matching ErrOutputTruncated, since its
// output is incomplete.
func (p Policy) Check(tool string, res *Result) error {
	if !p.Success(res.ExitCode) {
		return &ToolError{Tool: tool, Status: res.ExitCode, Stderr: string(res.Stderr)}
	}
	if res.Truncated {
		return fmt.Errorf("%s: %w", tool, ErrOutputTruncated)
	}
	return nil
}
