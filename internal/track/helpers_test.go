package track

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stemtrack/internal/resolver"
	"github.com/roach88/stemtrack/internal/store"
	"github.com/roach88/stemtrack/internal/testutil"
)

type fixture struct {
	t     *testing.T
	dir   string
	cache string
	store *store.Store
	clock *testutil.DeterministicClock
	// html is what the fake renderer returns.
	html    string
	renders int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.NewDeterministicClock()
	s, err := store.Open(filepath.Join(t.TempDir(), "records.db"), store.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &fixture{
		t:     t,
		dir:   t.TempDir(),
		cache: t.TempDir(),
		store: s,
		clock: clock,
		html:  "<html>1</html>",
	}
}

func (f *fixture) Render(context.Context, string) ([]byte, error) {
	f.renders++
	return []byte(f.html), nil
}

func (f *fixture) options(user string, consent resolver.ConsentPolicy, stems ...string) Options {
	opts := Options{
		User:     user,
		DevDir:   f.dir,
		CacheDir: f.cache,
		Consent:  consent,
		Renderer: f,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if len(stems) > 0 {
		opts.Stems = testutil.NewSequenceGenerator(stems...)
	}
	return opts
}

func (f *fixture) tracker(user string, consent resolver.ConsentPolicy, stems ...string) *Tracker {
	return New(f.store, f.options(user, consent, stems...))
}

func (f *fixture) write(name, content string) string {
	f.t.Helper()
	path := filepath.Join(f.dir, filepath.FromSlash(name))
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// notebook builds a two code cell Jupyter notebook that tracks token.
func notebook(token string, first, second int, code string) string {
	return fmt.Sprintf(`{
 "cells": [
  {"cell_type": "markdown", "metadata": {}, "source": ["# My exploration\n"]},
  {"cell_type": "code", "execution_count": %d, "metadata": {}, "outputs": [],
   "source": ["import lamindb as ln\n", "ln.track(\"%s\")"]},
  {"cell_type": "code", "execution_count": %d, "metadata": {}, "outputs": [], "source": [%q]}
 ],
 "metadata": {},
 "nbformat": 4,
 "nbformat_minor": 5
}`, first, token, second, code)
}
