package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stemtrack/internal/hasher"
	"github.com/roach88/stemtrack/internal/uid"
)

func setupTransform(t *testing.T, s *Store) uid.UID {
	t.Helper()
	rec, err := s.CreateVersion(context.Background(), createTestTransform("abcd1234efgh0000", "1", "nb.ipynb", ""))
	require.NoError(t, err)
	return rec.UID
}

func TestCreateAndFinishRun(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()
	u := setupTransform(t, s)

	run, err := s.CreateRun(ctx, "run-1", u, "alice")
	require.NoError(t, err)
	assert.Equal(t, clock.Current(), run.StartedAt)
	assert.Nil(t, run.FinishedAt)

	consecutive := true
	require.NoError(t, s.FinishRun(ctx, "run-1", &consecutive))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, clock.Current(), *got.FinishedAt)
	require.NotNil(t, got.IsConsecutive)
	assert.True(t, *got.IsConsecutive)

	require.NoError(t, s.FinishRun(ctx, "run-1", nil))
	got, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got.IsConsecutive, "nil keeps the recorded flag")

	assert.ErrorIs(t, s.FinishRun(ctx, "missing", nil), ErrNotFound)
	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRun_DuplicateID(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	u := setupTransform(t, s)

	_, err := s.CreateRun(ctx, "run-1", u, "alice")
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "run-1", u, "alice")
	assert.ErrorIs(t, err, ErrDuplicateIdentity)
}

func TestLatestRun(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	u := setupTransform(t, s)

	latest, err := s.LatestRun(ctx, u)
	require.NoError(t, err)
	assert.Nil(t, latest)

	for _, r := range []struct{ id, user string }{{"run-1", "alice"}, {"run-2", "bob"}, {"run-3", "alice"}, {"run-4", "bob"}} {
		_, err := s.CreateRun(ctx, r.id, u, r.user)
		require.NoError(t, err)
	}

	latest, err = s.LatestRun(ctx, u)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "run-4", latest.ID)

	mine, err := s.LatestRunFor(ctx, u, "alice")
	require.NoError(t, err)
	require.NotNil(t, mine)
	assert.Equal(t, "run-3", mine.ID)

	none, err := s.LatestRunFor(ctx, u, "carol")
	require.NoError(t, err)
	assert.Nil(t, none)

	runs, err := s.Runs(ctx, u)
	require.NoError(t, err)
	require.Len(t, runs, 4)
	assert.Equal(t, "run-4", runs[0].ID)
	assert.Equal(t, "run-1", runs[3].ID)
}

func TestAttachReport(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	u := setupTransform(t, s)
	_, err := s.CreateRun(ctx, "run-1", u, "alice")
	require.NoError(t, err)

	rep, err := s.AttachReport(ctx, "run-1", createTestArtifact("repo1234efgh0000", "", "<p>1</p>"), false)
	require.NoError(t, err)
	assert.Equal(t, uid.UID("repo1234efgh0000"), rep.UID)

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rep.UID, run.ReportUID)

	same, err := s.AttachReport(ctx, "run-1", createTestArtifact("othr1234efgh0000", "", "<p>1</p>"), false)
	require.NoError(t, err)
	assert.Equal(t, rep.UID, same.UID, "unchanged report keeps its record")

	_, err = s.AttachReport(ctx, "run-1", createTestArtifact("othr1234efgh0000", "", "<p>2</p>"), false)
	assert.ErrorIs(t, err, ErrAlreadyAttached)

	replaced, err := s.AttachReport(ctx, "run-1", createTestArtifact("othr1234efgh0000", "", "<p>2</p>"), true)
	require.NoError(t, err)
	assert.Equal(t, rep.UID, replaced.UID, "replacement rewrites the existing report")
	assert.Equal(t, hasher.HashBytes([]byte("<p>2</p>")), replaced.ContentHash)

	_, err = s.AttachReport(ctx, "missing", createTestArtifact("othr1234efgh0000", "", "x"), false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttachEnvironment_Deduplicates(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	u := setupTransform(t, s)
	for _, id := range []string{"run-1", "run-2", "run-3"} {
		_, err := s.CreateRun(ctx, id, u, "alice")
		require.NoError(t, err)
	}

	env1, err := s.AttachEnvironment(ctx, "run-1", createTestArtifact("envv1234efgh0000", "run_env_pip.txt", "a==1\n"))
	require.NoError(t, err)
	env2, err := s.AttachEnvironment(ctx, "run-2", createTestArtifact("envv5678efgh0000", "run_env_pip.txt", "a==1\n"))
	require.NoError(t, err)
	assert.Equal(t, env1.UID, env2.UID)

	env3, err := s.AttachEnvironment(ctx, "run-3", createTestArtifact("envv9999efgh0000", "run_env_pip.txt", "a==2\n"))
	require.NoError(t, err)
	assert.Equal(t, uid.UID("envv9999efgh0000"), env3.UID)
}
