package scanner

import (
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stemtrack/internal/hasher"
)

func scanAs(t *testing.T, path, content string) Result {
	t.Helper()
	s, err := For(path)
	require.NoError(t, err)
	return s.Scan(content)
}

func TestPythonTrackPattern(t *testing.T) {
	valid := []string{
		`ln.track("abcd123456789xyz")`,
		`ln.track('abcd123456789xyz')`,
		`ln.track(transform="abcd123456789xyz")`,
		`ln.track(transform='abcd123456789xyz')`,
		`ln.track( "abcd123456789xyz" )`,
		`ln.track(    transform ="abcd123456789xyz")`,
		"ln.track(\n    \"abcd123456789xyz\"\n)",
	}
	for _, content := range valid {
		res := scanAs(t, "x.py", content)
		assert.Equal(t, FoundUID, res.Found, content)
		assert.Equal(t, "abcd123456789xyz", string(res.UID), content)
		assert.Equal(t, "abcd12345678", res.Stem, content)
	}

	invalid := []string{
		`ln.track("abcd123456789xyz')`,
		`ln.track('abcd123456789xyz")`,
		`ln.track("abc123")`,
		`ln.track("abcd123456789xyz0")`,
		`ln.track("abcd-123456789xyz")`,
		`ln.track("abcd_123456789xyz")`,
		`ln.track("abcd!123456789xyz")`,
		`ln.track(uid="abcd123456789xyz")`,
	}
	for _, content := range invalid {
		res := scanAs(t, "x.py", content)
		assert.Equal(t, FoundNone, res.Found, content)
	}
}

func TestJupyterTrackPattern(t *testing.T) {
	valid := []string{
		`ln.track(\"abcd123456789xyz\")`,
		`ln.track('abcd123456789xyz')`,
		`ln.track(transform=\"abcd123456789xyz\")`,
		`ln.track(transform='abcd123456789xyz')`,
		`ln.track( \"abcd123456789xyz\" )`,
		`ln.track(    transform =\"abcd123456789xyz\")`,
	}
	for _, content := range valid {
		res := scanAs(t, "x.ipynb", content)
		assert.Equal(t, FoundUID, res.Found, content)
		assert.Equal(t, "abcd123456789xyz", res.Token, content)
	}

	invalid := []string{
		`ln.track(\"abcd123456789xyz')`,
		`ln.track(\"abc123\")`,
		`ln.track(\"abcd123456789xyz0\")`,
		`ln.track(\"abcd-123456789xyz\")`,
		`ln.track(\"abcd_123456789xyz\")`,
		`ln.track(uid=\"abcd123456789xyz\")`,
		// unescaped double quotes cannot occur inside a JSON string
		`ln.track("abcd123456789xyz")`,
	}
	for _, content := range invalid {
		res := scanAs(t, "x.ipynb", content)
		assert.Equal(t, FoundNone, res.Found, content)
	}
}

func TestFirstMatchWins(t *testing.T) {
	res := scanAs(t, "x.py", "ln.track(\"abcd123456789xyz\")\nln.track(\"efgh123456789xyz\")")
	assert.Equal(t, "abcd123456789xyz", res.Token)

	res = scanAs(t, "x.py", "ln.track(\"invalid\")\nln.track(\"abcd123456789xyz\")")
	assert.Equal(t, "abcd123456789xyz", res.Token)

	// the first match wins even when it is a bare stem
	res = scanAs(t, "x.py", "ln.track(\"abcd12345678\")\nln.track(\"efgh123456789xyz\")")
	assert.Equal(t, FoundStem, res.Found)
	assert.Equal(t, "abcd12345678", res.Stem)
}

func TestRTrackPattern(t *testing.T) {
	for _, path := range []string{"x.R", "x.qmd", "x.Rmd"} {
		for _, content := range []string{`track("abcd123456789xyz")`, `track('abcd123456789xyz')`} {
			res := scanAs(t, path, content)
			assert.Equal(t, FoundUID, res.Found, "%s: %s", path, content)
			assert.Equal(t, "abcd123456789xyz", res.Token)
		}
	}
}

func TestTokenLengthClassification(t *testing.T) {
	res := scanAs(t, "x.py", `ln.track("abcd12345678")`)
	assert.Equal(t, FoundStem, res.Found)
	assert.Empty(t, res.UID)

	res = scanAs(t, "x.py", `ln.track("abcd123456789")`)
	assert.Equal(t, FoundMalformed, res.Found)
	assert.Equal(t, "abcd123456789", res.Token)
}

func TestPythonContextUIDFallback(t *testing.T) {
	res := scanAs(t, "x.py", `ln.context.uid = "abcd123456789xyz"`)
	assert.Equal(t, FoundUID, res.Found)

	res = scanAs(t, "x.py", "ln.context.uid = \"abcd123456789xyz\"\nln.track(\"efgh123456789xyz\")")
	assert.Equal(t, "efgh123456789xyz", res.Token, "track call takes precedence")

	res = scanAs(t, "x.py", `ln.context.uid = "not-a-uid"`)
	assert.Equal(t, FoundMalformed, res.Found)

	res = scanAs(t, "x.ipynb", `ln.context.uid = \"abcd123456789xyz\"`)
	assert.Equal(t, FoundUID, res.Found)
}

func TestPythonLegacyStemWithoutVersion(t *testing.T) {
	res := scanAs(t, "x.py", `__transform_stem_uid__ = "NJvdsWWbJlZS"`)
	assert.Equal(t, FoundStem, res.Found)
	assert.Equal(t, "NJvdsWWbJlZS", res.Stem)
}

func TestShellNeverEmbedsIdentifier(t *testing.T) {
	res := scanAs(t, "run.sh", `ln.track("abcd123456789xyz")`)
	assert.Equal(t, FoundNone, res.Found)
}

func TestForUnsupportedSuffix(t *testing.T) {
	_, err := For("data.csv")
	require.Error(t, err)
	var unsupported *UnsupportedSuffixError
	require.ErrorAs(t, err, &unsupported)
	assert.Contains(t, err.Error(), ".ipynb")
	assert.False(t, IsTransform("data.csv"))
	assert.True(t, IsTransform("run.sh"))
}

func TestKindOf(t *testing.T) {
	cases := map[string]Kind{
		"a.py":    KindScript,
		"a.R":     KindScript,
		"a.ipynb": KindNotebook,
		"a.Rmd":   KindNotebook,
		"a.qmd":   KindNotebook,
		"a.sh":    KindShellScript,
	}
	for path, want := range cases {
		got, err := KindOf(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}
}

func TestRTitleOnlyInHeader(t *testing.T) {
	s, err := For("x.qmd")
	require.NoError(t, err)
	assert.Equal(t, "", s.Title("no header\ntitle: \"Body\"\n"))
	assert.Equal(t, "Head", s.Title("---\ntitle: \"Head\"\n---\n"))
}

// TestScanGolden runs every fixture under testdata/sources through its
// scanner and compares the result against testdata/golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/scanner -update
func TestScanGolden(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "sources", "*"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, path := range paths {
		name := filepath.Base(path)
		t.Run(name, func(t *testing.T) {
			s, res, content, err := ScanFile(path)
			require.NoError(t, err)

			snapshot := map[string]any{
				"file":  name,
				"kind":  s.Kind().String(),
				"found": res.Found.String(),
			}
			for k, v := range map[string]string{
				"token": res.Token,
				"uid":   string(res.UID),
				"stem":  res.Stem,
				"label": res.Label,
				"title": s.Title(content),
			} {
				if v != "" {
					snapshot[k] = v
				}
			}

			data, err := hasher.MarshalCanonical(snapshot)
			require.NoError(t, err)
			g.Assert(t, name, data)
		})
	}
}
