// Package runfile persists the run started by `track` for a shell script
// so that a later `finish` in another process can close it.
//
// The file holds exactly one run id as UTF-8 text. It is owned by the CLI;
// core packages receive the run id as a value.
package runfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Name is the file name inside the cache directory.
const Name = "current_shell_run.txt"

// ErrNoRun is returned by Read when no run is being tracked.
var ErrNoRun = errors.New("no tracked run; call track first")

// File is the side-channel file in one cache directory.
type File struct {
	Path string
}

// In returns the run file inside dir.
func In(dir string) File {
	return File{Path: filepath.Join(dir, Name)}
}

// Read returns the tracked run id.
func (f File) Read() (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoRun
	}
	if err != nil {
		return "", fmt.Errorf("read run file: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", ErrNoRun
	}
	return id, nil
}

// Write records id as the tracked run, replacing any previous one.
// The content is written to a temporary file first and renamed into place
// so a concurrent reader never sees a partial id.
func (f File) Write(id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, "\r\n") {
		return fmt.Errorf("write run file: invalid run id %q", id)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("write run file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), Name+".*")
	if err != nil {
		return fmt.Errorf("write run file: %w", err)
	}
	if _, err := tmp.WriteString(id); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write run file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write run file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write run file: %w", err)
	}
	return nil
}

// Remove deletes the run file. Removing a missing file is not an error.
func (f File) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove run file: %w", err)
	}
	return nil
}
