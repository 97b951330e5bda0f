package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stemtrack/internal/hasher"
	"github.com/roach88/stemtrack/internal/record"
	"github.com/roach88/stemtrack/internal/resolver"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

// rerun rewrites execution counts and outputs as a fresh kernel would.
func rerun(content []byte) []byte {
	s := strings.Replace(string(content), `"execution_count": 1`, `"execution_count": 7`, 1)
	s = strings.Replace(s, `"execution_count": 2`, `"execution_count": 8`, 1)
	s = strings.Replace(s, `"hello\n"`, `"bye\n"`, 1)
	return []byte(s)
}

func TestStripNotebook(t *testing.T) {
	stripped, err := StripNotebook(readFixture(t, "executed.ipynb"))
	require.NoError(t, err)

	s := string(stripped)
	assert.NotContains(t, s, `"output_type"`)
	assert.NotContains(t, s, `"scrolled"`)
	assert.Contains(t, s, `"execution_count":null`)
	assert.Contains(t, s, `"outputs":[]`)
	assert.Contains(t, s, `ln.track(\"m5uCHTTpJnjQ0000\")`)
	assert.Contains(t, s, `"kernelspec"`, "notebook metadata is kept")
}

func TestStripNotebookIgnoresExecution(t *testing.T) {
	original := readFixture(t, "executed.ipynb")
	a, err := StripNotebook(original)
	require.NoError(t, err)
	b, err := StripNotebook(rerun(original))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, hasher.HashBytes(a), hasher.HashBytes(b))

	edited := strings.Replace(string(original), "print('hello')", "print('hi')", 1)
	c, err := StripNotebook([]byte(edited))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestStripNotebookKeepsSourceText(t *testing.T) {
	decomposed := "x = 'cafe\u0301'"
	nb := `{"cells": [{"cell_type": "code", "execution_count": 1, "metadata": {}, "outputs": [], "source": ["x = 'cafe\u0301'"]}], "metadata": {}, "nbformat": 4, "nbformat_minor": 5}`

	stripped, err := StripNotebook([]byte(nb))
	require.NoError(t, err)
	assert.Contains(t, string(stripped), decomposed)
	assert.NotContains(t, string(stripped), "caf\u00e9")
}

func TestStripNotebookRejectsGarbage(t *testing.T) {
	_, err := StripNotebook([]byte("not json"))
	assert.Error(t, err)
	_, err = StripNotebook([]byte(`[1, 2]`))
	assert.Error(t, err)
}

func TestCheckConsecutiveness(t *testing.T) {
	ok, violations, err := CheckConsecutiveness(readFixture(t, "executed.ipynb"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, violations)

	nb := `{"cells": [
		{"cell_type": "code", "execution_count": 1, "source": ""},
		{"cell_type": "code", "execution_count": null, "source": ""},
		{"cell_type": "code", "execution_count": 3, "source": ""},
		{"cell_type": "code", "execution_count": 2, "source": ""}
	]}`
	ok, violations, err = CheckConsecutiveness([]byte(nb))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []Violation{{1, 3}, {3, 2}}, violations)
	assert.Equal(t, "cell [3] followed by [2]", violations[1].String())
}

func TestSiblingHTML(t *testing.T) {
	dir := t.TempDir()
	rmd := filepath.Join(dir, "report.Rmd")
	require.NoError(t, os.WriteFile(rmd, []byte("---\ntitle: x\n---\n"), 0o644))

	_, err := SiblingHTML(rmd)
	assert.ErrorIs(t, err, ErrNoReport)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.nb.html"), []byte("<html>"), 0o644))
	got, err := SiblingHTML(rmd)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.nb.html"), got)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.html"), []byte("<html>"), 0o644))
	_, err = SiblingHTML(rmd)
	assert.ErrorIs(t, err, ErrTwoReports)
}

type stubRenderer struct {
	html []byte
	err  error
}

func (s stubRenderer) Render(context.Context, string) ([]byte, error) { return s.html, s.err }

func TestBuild(t *testing.T) {
	ctx := context.Background()
	content := readFixture(t, "executed.ipynb")

	out, err := Build(ctx, "nb/executed.ipynb", content, stubRenderer{html: []byte("<html>")})
	require.NoError(t, err)
	assert.NotEqual(t, content, out.Source)
	assert.Equal(t, []byte("<html>"), out.Report)
	assert.Equal(t, "executed.html", out.ReportName)
	require.NotNil(t, out.Consecutive)
	assert.True(t, *out.Consecutive)

	_, err = Build(ctx, "executed.ipynb", content, stubRenderer{err: errors.New("no jupyter")})
	assert.Error(t, err)

	script := []byte("print(1)\n")
	out, err = Build(ctx, "a.py", script, nil)
	require.NoError(t, err)
	assert.Equal(t, script, out.Source)
	assert.Nil(t, out.Report)
	assert.Nil(t, out.Consecutive)
}

func TestBuildRNotebook(t *testing.T) {
	dir := t.TempDir()
	qmd := filepath.Join(dir, "analysis.qmd")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "analysis.html"), []byte("<p>r</p>"), 0o644))

	out, err := Build(context.Background(), qmd, []byte("# qmd"), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("# qmd"), out.Source)
	assert.Equal(t, []byte("<p>r</p>"), out.Report)
	assert.Equal(t, "analysis.html", out.ReportName)
}

func TestSource(t *testing.T) {
	script := []byte("print(1)\n")
	got, err := Source("a.py", script)
	require.NoError(t, err)
	assert.Equal(t, script, got)

	nb := readFixture(t, "executed.ipynb")
	got, err = Source("a.ipynb", nb)
	require.NoError(t, err)
	stripped, err := StripNotebook(nb)
	require.NoError(t, err)
	assert.Equal(t, stripped, got)
}

func TestSourceAction(t *testing.T) {
	assert.Equal(t, Unchanged, SourceAction(&resolver.Decision{}))
	assert.Equal(t, New, SourceAction(&resolver.Decision{AttachSource: true}))
	assert.Equal(t, Replace, SourceAction(&resolver.Decision{AttachSource: true, ReplaceSource: true}))
}

func TestReportAction(t *testing.T) {
	html := []byte("<html>1</html>")
	current := &record.Record{UID: "abcd1234efgh0000", ContentHash: hasher.HashBytes(html)}

	assert.Equal(t, Unchanged, ReportAction(current, nil, resolver.Always))
	assert.Equal(t, New, ReportAction(nil, html, resolver.Never))
	assert.Equal(t, Unchanged, ReportAction(current, html, resolver.Never))

	changed := []byte("<html>2</html>")
	assert.Equal(t, Replace, ReportAction(current, changed, resolver.Always))
	assert.Equal(t, Abort, ReportAction(current, changed, resolver.Never))

	var asked resolver.Prompt
	ReportAction(current, changed, resolver.Ask(func(p resolver.Prompt) bool {
		asked = p
		return false
	}))
	assert.Equal(t, resolver.PromptReplaceReport, asked.Kind)
	assert.Contains(t, asked.Current, "abcd1234efgh0000")
}
