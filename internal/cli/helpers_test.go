package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stemtrack/internal/config"
)

// cliEnv runs commands against a private settings home.
type cliEnv struct {
	t    *testing.T
	home string
	dir  string
	// stdin answers consent prompts when set.
	stdin io.Reader
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	for _, k := range []string{config.EnvHome, config.EnvDB, config.EnvUser, config.EnvDevDir, config.EnvTesting} {
		t.Setenv(k, "")
	}
	return &cliEnv{t: t, home: t.TempDir(), dir: t.TempDir()}
}

func (e *cliEnv) write(name, content string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes one command as alice. Flags in args come after the
// defaults, so they win.
func (e *cliEnv) run(args ...string) (string, string, error) {
	opts := &RootOptions{Stdin: e.stdin, Renderer: htmlRenderer("<html></html>")}
	cmd := newRootCommand(opts)
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	full := append([]string{args[0], "--home", e.home, "--user", "alice"}, args[1:]...)
	cmd.SetArgs(full)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// runJSON executes a command with --format json and decodes the payload.
func runJSON[T any](e *cliEnv, args ...string) (T, error) {
	e.t.Helper()
	var data T
	stdout, _, err := e.run(append(args, "--format", "json")...)
	if err != nil {
		return data, err
	}
	var resp struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	require.NoError(e.t, json.Unmarshal([]byte(stdout), &resp), stdout)
	require.Equal(e.t, "ok", resp.Status)
	return resp.Data, nil
}

type htmlRenderer string

func (h htmlRenderer) Render(context.Context, string) ([]byte, error) {
	return []byte(h), nil
}
