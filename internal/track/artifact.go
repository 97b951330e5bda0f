package track

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/stemtrack/internal/hasher"
	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/resolver"
	"github.com/roach88/stemtrack/internal/scanner"
)

// ErrNoKeyOrDescription is returned when an artifact is saved with
// neither a key nor a description.
var ErrNoKeyOrDescription = errors.New("pass a key or a description")

// ErrUnsafeKey is returned for keys that are absolute or climb out of the
// directory they are loaded into.
var ErrUnsafeKey = errors.New("key must be a relative path without '..'")

func checkKey(key string) error {
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return fmt.Errorf("%q: %w", key, ErrUnsafeKey)
	}
	return nil
}

// ArtifactRequest describes one save of a data file.
type ArtifactRequest struct {
	Path        string
	Key         string
	Description string
	// Stem adds the file as a new version of an existing artifact family.
	Stem       string
	CreateStem bool
}

// SaveArtifact stores a file in the artifact registry. Artifacts are
// content addressed: a file whose bytes are already stored returns the
// existing record. Otherwise the family is found by Stem, then by key,
// and the content becomes its next version.
func (t *Tracker) SaveArtifact(ctx context.Context, req ArtifactRequest) (*Result, error) {
	if req.Key == "" && req.Description == "" {
		return nil, ErrNoKeyOrDescription
	}
	if req.Key != "" {
		if err := checkKey(req.Key); err != nil {
			return nil, err
		}
	}
	content, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.Path, err)
	}
	hash := hasher.HashBytes(content)

	same, err := t.store.FindByHash(ctx, hash, record.Artifact)
	if err != nil {
		return nil, err
	}
	if len(same) > 0 {
		t.logger.Info("returning existing artifact with same hash", "uid", same[0].UID, "hash", hash)
		existing := same[0]
		return &Result{
			Decision: &resolver.Decision{Outcome: resolver.ReuseExisting, UID: existing.UID, Label: existing.VersionLabel, Existing: &existing},
			Record:   existing,
		}, nil
	}

	in := resolver.Input{
		Registry:     record.Artifact,
		Key:          req.Key,
		ContentHash:  hash,
		ExplicitStem: req.Stem,
		CreateStem:   req.CreateStem,
	}
	d, rec, err := t.resolveAndApply(ctx, in, content, req.Description, true)
	if err != nil {
		return nil, err
	}
	t.logger.Info("saved artifact", "uid", rec.UID, "outcome", d.Outcome, "key", rec.Key)
	return &Result{Decision: d, Record: rec}, nil
}

// IsArtifactPath reports whether path is saved as an artifact rather than
// as a transform.
func IsArtifactPath(path string) bool {
	return !scanner.IsTransform(path)
}
