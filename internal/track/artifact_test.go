package track

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/resolver"
	"github.com/roach88/stemtrack/internal/uid"
)

func TestSaveArtifactNeedsKeyOrDescription(t *testing.T) {
	f := newFixture(t)
	_, err := f.tracker("alice", resolver.Never).SaveArtifact(context.Background(), ArtifactRequest{Path: f.write("cells.csv", "a,b\n")})
	assert.ErrorIs(t, err, ErrNoKeyOrDescription)
}

func TestSaveArtifactRejectsKeysOutsideTree(t *testing.T) {
	f := newFixture(t)
	tr := f.tracker("alice", resolver.Never, "dataset00001")
	path := f.write("cells.csv", "a,b\n")
	for _, key := range []string{"../../x.csv", "/etc/x.csv", "data/../../x.csv"} {
		_, err := tr.SaveArtifact(context.Background(), ArtifactRequest{Path: path, Key: key})
		assert.ErrorIs(t, err, ErrUnsafeKey, key)
	}
}

func TestSaveArtifactVersions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.tracker("alice", resolver.Never, "dataset00001")

	first, err := tr.SaveArtifact(ctx, ArtifactRequest{Path: f.write("cells.csv", "a,b\n1,2\n"), Key: "data/cells.csv"})
	require.NoError(t, err)
	assert.Equal(t, resolver.CreateNewFamily, first.Decision.Outcome)
	assert.Equal(t, uid.UID("dataset000010000"), first.Record.UID)
	assert.Equal(t, record.Artifact, first.Record.Registry)
	assert.Equal(t, "data/cells.csv", first.Record.Key)
	assert.Empty(t, first.Record.Kind)

	// The same bytes under another name are the same artifact.
	copied, err := tr.SaveArtifact(ctx, ArtifactRequest{Path: f.write("copy.csv", "a,b\n1,2\n"), Description: "a copy"})
	require.NoError(t, err)
	assert.Equal(t, resolver.ReuseExisting, copied.Decision.Outcome)
	assert.Equal(t, first.Record.UID, copied.Record.UID)

	second, err := tr.SaveArtifact(ctx, ArtifactRequest{Path: f.write("cells.csv", "a,b\n1,2\n3,4\n"), Key: "data/cells.csv"})
	require.NoError(t, err)
	assert.Equal(t, resolver.CreateVersion, second.Decision.Outcome)
	assert.Equal(t, "2", second.Record.VersionLabel)
	assert.Equal(t, first.Record.UID, second.Record.Revises)
}

func TestSaveArtifactExplicitStem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.tracker("alice", resolver.Never)
	path := f.write("cells.csv", "a,b\n")

	_, err := tr.SaveArtifact(ctx, ArtifactRequest{Path: path, Key: "cells.csv", Stem: "explicit0001"})
	require.Error(t, err)
	assert.True(t, resolver.IsStemNotFound(err))

	res, err := tr.SaveArtifact(ctx, ArtifactRequest{Path: path, Key: "cells.csv", Stem: "explicit0001", CreateStem: true})
	require.NoError(t, err)
	assert.Equal(t, uid.UID("explicit00010000"), res.Record.UID)
}

func TestIsArtifactPath(t *testing.T) {
	assert.True(t, IsArtifactPath("cells.csv"))
	assert.True(t, IsArtifactPath("model.pt"))
	assert.False(t, IsArtifactPath("analysis.py"))
	assert.False(t, IsArtifactPath("explore.ipynb"))
}
