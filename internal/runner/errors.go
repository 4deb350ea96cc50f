package runner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSpawn matches every *SpawnError.
var ErrSpawn = errors.New("process could not be started")

// ErrOutputTruncated is returned when a tool succeeded but its captured
// output exceeded Runner.MaxOutput.
var ErrOutputTruncated = errors.New("output exceeded the size limit")

// SpawnError is returned when the child process could not be started at
// all (binary missing, permission denied, ...). It wraps the error from
// os/exec untouched.
type SpawnError struct {
	Argv0 string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("executing %s: %v", e.Argv0, e.Err)
}

func (e *SpawnError) Unwrap() []error {
	return []error{ErrSpawn, e.Err}
}

// ToolError is returned when a tool ran but exited with a status its
// policy does not accept.
type ToolError struct {
	Tool   string
	Status int
	Stderr string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.Status)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\n" + s
	}
	return msg
}
