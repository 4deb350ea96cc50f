package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when no result exists for a run ID.
var ErrNotFound = errors.New("run not found")

// DiskStore keeps one JSON file per run. Without a Dir, a temp directory
// is created on first use.
type DiskStore struct {
	Dir string

	mu  sync.Mutex
	dir string
}

// NewDiskStore creates a DiskStore backed by a lazily-created temp
// directory.
func NewDiskStore() *DiskStore {
	return &DiskStore{}
}

// Save writes result to <dir>/<id>.json, replacing any previous file
// atomically.
func (s *DiskStore) Save(result *RunResult) error {
	path, err := s.path(result.ID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshalling result %s: %w", result.ID, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".run-*")
	if err != nil {
		return fmt.Errorf("writing result %s: %w", result.ID, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing result %s: %w", result.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing result %s: %w", result.ID, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing result %s: %w", result.ID, err)
	}
	return nil
}

// Load reads the result for runID. A run that was never saved yields an
// error matching ErrNotFound.
func (s *DiskStore) Load(runID string) (*RunResult, error) {
	path, err := s.path(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading result %s: %w", runID, err)
	}
	var result RunResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshalling result %s: %w", runID, err)
	}
	return &result, nil
}

// path maps a run ID to its file, rejecting IDs that could escape the
// directory.
func (s *DiskStore) path(runID string) (string, error) {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return "", fmt.Errorf("invalid run ID %q", runID)
	}
	dir, err := s.ensureDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, runID+".json"), nil
}

func (s *DiskStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		return s.dir, nil
	}
	if s.Dir != "" {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return "", fmt.Errorf("creating result directory: %w", err)
		}
		s.dir = s.Dir
		return s.dir, nil
	}
	dir, err := os.MkdirTemp("", "bzlshim-runs-*")
	if err != nil {
		return "", fmt.Errorf("creating result directory: %w", err)
	}
	s.dir = dir
	return dir, nil
}
