package track

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/stemtrack/internal/locator"
	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/resolver"
	"github.com/roach88/stemtrack/internal/scanner"
	"github.com/roach88/stemtrack/internal/uid"
)

// LoadRequest describes a load into the working tree.
type LoadRequest struct {
	Ref locator.Ref
	// Dir is where the file is written under its key. Defaults to ".".
	Dir string
	// WithEnv also writes the environment of the latest run.
	WithEnv bool
}

// Loaded is the outcome of Load.
type Loaded struct {
	Record record.Record
	Path   string
	// NextUID is the uid written into a notebook so that its next save
	// becomes a new version. Empty when the content was written unchanged.
	NextUID     uid.UID
	Environment string
}

// Load writes the stored content of a record to Dir/<key>. Notebooks that
// embed their uid get the uid of the next numeric version instead, so
// saving the edited notebook continues the family.
func (t *Tracker) Load(ctx context.Context, req LoadRequest) (*Loaded, error) {
	ref := req.Ref
	ref.WithContent = true
	rec, err := locator.New(t.store).Locate(ctx, ref)
	if err != nil {
		return nil, err
	}
	content, err := t.store.Content(ctx, rec.UID)
	if err != nil {
		return nil, err
	}

	dir := req.Dir
	if dir == "" {
		dir = "."
	}
	name := rec.Key
	if name == "" {
		name = string(rec.UID)
	}
	if err := checkKey(name); err != nil {
		return nil, fmt.Errorf("load %s: %w", rec.UID, err)
	}
	out := &Loaded{Record: rec, Path: filepath.Join(dir, filepath.FromSlash(name))}

	if rec.Registry == record.Transform && rec.Kind == scanner.KindNotebook.String() {
		if next, err := uid.NextNumeric(rec.VersionLabel); err == nil {
			nextUID, err := uid.ComposeLabel(rec.Stem(), next)
			if err != nil {
				return nil, err
			}
			if bytes.Contains(content, []byte(rec.UID)) {
				content = bytes.ReplaceAll(content, []byte(rec.UID), []byte(nextUID))
				out.NextUID = nextUID
			}
		}
	}

	if err := t.writeFile(out.Path, content); err != nil {
		return nil, err
	}
	t.logger.Info("loaded", "uid", rec.UID, "path", out.Path, "next", out.NextUID)

	if req.WithEnv && rec.Registry == record.Transform {
		path, err := t.loadEnvironment(ctx, rec.UID, dir)
		if err != nil {
			return nil, err
		}
		out.Environment = path
	}
	return out, nil
}

// writeFile writes content, asking before it overwrites a different file.
func (t *Tracker) writeFile(path string, content []byte) error {
	existing, err := os.ReadFile(path)
	switch {
	case err == nil && bytes.Equal(existing, content):
		return nil
	case err == nil:
		p := resolver.Prompt{
			Kind:    resolver.PromptReplaceSource,
			Message: "a different file already exists; overwrite it",
			Current: path,
		}
		if !t.consent.Confirm(p) {
			return resolver.Declined(p)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("load: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

func (t *Tracker) loadEnvironment(ctx context.Context, u uid.UID, dir string) (string, error) {
	run, err := t.store.LatestRun(ctx, u)
	if err != nil {
		return "", err
	}
	if run == nil || run.EnvironmentUID == "" {
		t.logger.Warn("no environment found", "uid", u)
		return "", nil
	}
	content, err := t.store.Content(ctx, run.EnvironmentUID)
	if err != nil {
		return "", err
	}
	path := EnvironmentFile(dir, run.ID)
	if err := t.writeFile(path, content); err != nil {
		return "", err
	}
	return path, nil
}
