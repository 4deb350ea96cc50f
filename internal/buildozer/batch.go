// Package buildozer drives the buildozer binary through its command-file
// protocol on standard input.
//
// Each line of the protocol is one batch: its edit commands followed by
// its comma-joined targets, all separated by "|". Buildozer applies every
// command of a line to every target of that line.
package buildozer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBatch is returned for batches that cannot be encoded without
// changing their meaning.
var ErrInvalidBatch = errors.New("invalid command batch")

// Batch groups edit commands with the targets they apply to.
// Group as many commands as possible into one call for efficiency.
type Batch struct {
	// Commands are buildozer edit commands such as "new cc_library foo"
	// or "print name kind".
	Commands []string `json:"commands"`
	// Targets are Bazel labels such as "//pkg:rule" or "//pkg:__pkg__".
	Targets []string `json:"targets"`
}

// Validate reports whether b can be encoded losslessly.
func (b Batch) Validate() error {
	if len(b.Commands) == 0 {
		return fmt.Errorf("%w: no commands", ErrInvalidBatch)
	}
	for _, c := range b.Commands {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("%w: empty command", ErrInvalidBatch)
		}
		if strings.ContainsAny(c, "|\n\r") {
			return fmt.Errorf("%w: command %q contains a separator", ErrInvalidBatch, c)
		}
	}
	for _, t := range b.Targets {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: empty target", ErrInvalidBatch)
		}
		if strings.ContainsAny(t, ",|\n\r") {
			return fmt.Errorf("%w: target %q contains a separator", ErrInvalidBatch, t)
		}
	}
	return nil
}

// Line renders b as a single command-file line.
func (b Batch) Line() string {
	fields := make([]string, 0, len(b.Commands)+1)
	fields = append(fields, b.Commands...)
	fields = append(fields, strings.Join(b.Targets, ","))
	return strings.Join(fields, "|")
}

// Encode renders batches as the standard-input payload of "buildozer -f -".
func Encode(batches ...Batch) (string, error) {
	lines := make([]string, len(batches))
	for i, b := range batches {
		if err := b.Validate(); err != nil {
			return "", fmt.Errorf("batch %d: %w", i, err)
		}
		lines[i] = b.Line()
	}
	return strings.Join(lines, "\n"), nil
}

// ParseLine parses one command-file line back into a Batch. It is the
// inverse of Line for valid batches.
func ParseLine(line string) (Batch, error) {
	fields := strings.Split(line, "|")
	if len(fields) < 2 {
		return Batch{}, fmt.Errorf("%w: line %q has no targets field", ErrInvalidBatch, line)
	}
	b := Batch{Commands: fields[:len(fields)-1]}
	if targets := fields[len(fields)-1]; targets != "" {
		b.Targets = strings.Split(targets, ",")
	}
	return b, b.Validate()
}

// Parse reads a command file, skipping blank lines and "#" comments.
func Parse(content string) ([]Batch, error) {
	var batches []Batch
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		b, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		batches = append(batches, b)
	}
	return batches, nil
}
