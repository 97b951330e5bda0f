package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/testutil"
	"github.com/roach88/stemtrack/internal/uid"
)

// createTestStore creates a new file-backed store with a deterministic clock.
func createTestStore(t *testing.T) (*Store, *testutil.DeterministicClock) {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

// createTestTransform creates a transform version with minimal required fields.
func createTestTransform(u, label, key string, revises uid.UID) NewRecord {
	return NewRecord{
		UID:          uid.UID(u),
		Registry:     record.Transform,
		Kind:         "script",
		Key:          key,
		VersionLabel: label,
		Revises:      revises,
		CreatedBy:    "testuser",
	}
}

// createTestArtifact creates an artifact with content.
func createTestArtifact(u, key, content string) NewRecord {
	return NewRecord{
		UID:       uid.UID(u),
		Registry:  record.Artifact,
		Key:       key,
		CreatedBy: "testuser",
		Content:   []byte(content),
	}
}
