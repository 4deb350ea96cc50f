package workflow

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"

	"github.com/deixis/bzlshim/internal/runner"
)

// versionPattern matches the "<tool> version: 7.1.2" line printed by
// buildozer and buildifier.
var versionPattern = regexp.MustCompile(`version:\s*v?(\d[^\s]*)`)

// ParseVersion extracts the semantic version from the output of
// "<tool> --version".
func ParseVersion(out string) (*semver.Version, error) {
	m := versionPattern.FindStringSubmatch(out)
	if m == nil {
		return nil, fmt.Errorf("no version in %q", out)
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, fmt.Errorf("parsing version %q: %w", m[1], err)
	}
	return v, nil
}

// ToolVersion runs "<tool> --version" and parses the result.
func (e *Engine) ToolVersion(ctx context.Context, tool string) (*semver.Version, error) {
	bin, err := e.ResolveTool(tool)
	if err != nil {
		return nil, err
	}
	res, err := e.Runner.Run(ctx, []string{bin, "--version"}, runner.Options{Dir: e.Workspace})
	if err != nil {
		return nil, err
	}
	if err := (runner.Policy{}).Check(tool, res); err != nil {
		return nil, err
	}
	v, err := ParseVersion(string(res.Stdout))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tool, err)
	}
	return v, nil
}

// RequireVersion returns ErrToolTooOld when tool is older than min.
// An empty min accepts any version.
func (e *Engine) RequireVersion(ctx context.Context, tool, min string) error {
	if min == "" {
		return nil
	}
	want, err := semver.NewVersion(min)
	if err != nil {
		return fmt.Errorf("minimum %s version %q: %w", tool, min, err)
	}
	have, err := e.ToolVersion(ctx, tool)
	if err != nil {
		return err
	}
	if have.LessThan(want) {
		return ErrToolTooOld{Name: tool, Have: have.String(), Want: want.String()}
	}
	return nil
}
