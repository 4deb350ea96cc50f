// Package config loads and validates the optional .bzlshim YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file at the repository root.
const FileName = ".bzlshim"

// Default values.
const (
	DefaultMaxOutput = 16 << 20 // 16 MB
	DefaultLogLevel  = "info"
)

// rootMarkers identify a Bazel repository root.
var rootMarkers = []string{"MODULE.bazel", "WORKSPACE", "WORKSPACE.bazel", FileName}

// Config holds the parsed .bzlshim configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int              `yaml:"version"`
	BinDir       string           `yaml:"bin_dir"`    // directory with bundled binaries
	RawTimeout   string           `yaml:"timeout"`    // e.g. "2m"; empty means none
	RawMaxOutput int              `yaml:"max_output"` // bytes
	LogLevel     string           `yaml:"log_level"`
	Buildozer    BuildozerConfig  `yaml:"buildozer"`
	Buildifier   BuildifierConfig `yaml:"buildifier"`
}

// BuildozerConfig controls how buildozer is executed.
type BuildozerConfig struct {
	Flags        []string `yaml:"flags"`         // default flags, e.g. [-k, -quiet]
	SuccessCodes []int    `yaml:"success_codes"` // default: [0, 3]
}

// BuildifierConfig controls how buildifier is executed.
type BuildifierConfig struct {
	Flags      []string    `yaml:"flags"`       // default flags
	Type       string      `yaml:"type"`        // --type for formatting stdin
	Warnings   string      `yaml:"warnings"`    // --warnings value for lint and fix
	MinVersion string      `yaml:"min_version"` // e.g. "6.0.0"
	Check      CheckConfig `yaml:"check"`
}

// CheckConfig defines the steps for bzl_check.
type CheckConfig struct {
	Steps []string `yaml:"steps"` // default: [format, lint]
}

// DefaultCheckSteps are used when no steps are configured.
var DefaultCheckSteps = []string{"format", "lint"}

// Timeout returns the configured timeout, or 0 when none is set.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return 0
}

// MaxOutputBytes returns the configured max output size or the default.
func (c *Config) MaxOutputBytes() int {
	if c.RawMaxOutput > 0 {
		return c.RawMaxOutput
	}
	return DefaultMaxOutput
}

// Level returns the configured log level or the default.
func (c *Config) Level() string {
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return DefaultLogLevel
}

// CheckSteps returns the configured check steps, falling back to defaults.
func (c *Config) CheckSteps() []string {
	if len(c.Buildifier.Check.Steps) > 0 {
		return c.Buildifier.Check.Steps
	}
	return DefaultCheckSteps
}

// LoadResult holds the parsed config and the discovered repository root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory containing MODULE.bazel or WORKSPACE; falls back to workspace
}

// Load reads the .bzlshim file from the repository root.
// The repository root is discovered by walking upward from workspace.
// If no .bzlshim file exists, a default Config is returned. A relative
// bin_dir is resolved against the repository root.
func Load(workspace string) (*LoadResult, error) {
	root, err := findRepoRoot(workspace)
	if err != nil {
		root = workspace
	}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Config: &Config{}, RepoRoot: root}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", FileName, err)
	}
	if cfg.BinDir != "" && !filepath.IsAbs(cfg.BinDir) {
		cfg.BinDir = filepath.Join(root, cfg.BinDir)
	}
	return &LoadResult{Config: cfg, RepoRoot: root}, nil
}

// Validate rejects values that cannot be interpreted.
func (c *Config) Validate() error {
	if c.RawTimeout != "" {
		if _, err := time.ParseDuration(c.RawTimeout); err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
	}
	for _, step := range c.Buildifier.Check.Steps {
		if step != "format" && step != "lint" {
			return fmt.Errorf("buildifier.check.steps: unknown step %q", step)
		}
	}
	return nil
}

// findRepoRoot walks upward from dir looking for a Bazel root marker.
func findRepoRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("repository root not found")
		}
		dir = parent
	}
}
