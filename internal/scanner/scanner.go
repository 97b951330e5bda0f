// Package scanner extracts embedded transform identifiers from source text.
//
// Each Kind has its own Scanner, selected once from the file suffix by For.
// A scan never fails: a file without any recognizable tracking call yields
// a Result with Found == FoundNone, meaning "this file was never tracked".
//
// When several candidate tokens appear, the first one in document order
// wins. Commented-out calls are not special-cased.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/roach88/stemtrack/internal/uid"
)

// Found tags the variant held by a Result.
type Found int

const (
	// FoundNone means no identifier is embedded in the source.
	FoundNone Found = iota
	// FoundUID is a full 16-character uid naming one exact version.
	FoundUID
	// FoundStem is a bare 12-character stem naming a version family.
	FoundStem
	// FoundLegacy is a separately stored (stem, version label) pair.
	FoundLegacy
	// FoundMalformed is a token in a tracking call that is neither a stem
	// nor a uid. The resolver reports it; the scanner does not judge.
	FoundMalformed
)

func (f Found) String() string {
	switch f {
	case FoundNone:
		return "none"
	case FoundUID:
		return "uid"
	case FoundStem:
		return "stem"
	case FoundLegacy:
		return "legacy"
	case FoundMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("Found(%d)", int(f))
	}
}

// Result is the outcome of one scan.
type Result struct {
	Found Found
	// Token is the identifier text as written in the source.
	Token string
	// UID is set for FoundUID.
	UID uid.UID
	// Stem is set for FoundUID, FoundStem and FoundLegacy.
	Stem string
	// Label is set for FoundLegacy.
	Label string
}

// Scanner extracts identity and descriptive metadata from one kind of source.
type Scanner interface {
	Kind() Kind
	// Scan returns the first embedded identifier in content.
	Scan(content string) Result
	// Title returns a human title declared in content, or "".
	Title(content string) string
}

// For selects the scanner for path's suffix.
func For(path string) (Scanner, error) {
	kind, err := KindOf(path)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindScript:
		if filepath.Ext(path) == ".R" {
			return rScanner{kind: KindScript}, nil
		}
		return pythonScanner{}, nil
	case KindNotebook:
		if IsRNotebook(path) {
			return rScanner{kind: KindNotebook}, nil
		}
		return jupyterScanner{}, nil
	case KindShellScript:
		return shellScanner{}, nil
	}
	return nil, &UnsupportedSuffixError{Path: path}
}

// ScanFile reads path and scans it with the scanner selected by For.
func ScanFile(path string) (Scanner, Result, string, error) {
	s, err := For(path)
	if err != nil {
		return nil, Result{}, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Result{}, "", fmt.Errorf("scan %s: %w", path, err)
	}
	content := string(data)
	return s, s.Scan(content), content, nil
}

const tokenClass = `[a-zA-Z0-9]{12,16}`

var (
	// ln.track("tok"), ln.track('tok'), ln.track(transform="tok"). Quotes
	// must match, so the two quote styles are separate alternatives.
	pyTrackPattern = regexp.MustCompile(
		`ln\.track\(\s*(?:transform\s*=\s*)?(?:"(` + tokenClass + `)"|'(` + tokenClass + `)')`)
	pyContextUIDPattern = regexp.MustCompile(`\.context\.uid\s*=\s*["']([^"']+)["']`)
	pyLegacyStemPattern = regexp.MustCompile(`__transform_stem_uid__\s*=\s*["']([^"']+)["']`)
	pyLegacyVersion     = regexp.MustCompile(`__version__\s*=\s*["']([^"']+)["']`)

	// Notebook cells are JSON strings, so double quotes appear escaped.
	nbTrackPattern = regexp.MustCompile(
		`ln\.track\(\s*(?:transform\s*=\s*)?(?:\\"(` + tokenClass + `)\\"|'(` + tokenClass + `)')`)
	nbContextUIDPattern = regexp.MustCompile(`\.context\.uid\s*=\s*(?:\\"([^"'\\]+)\\"|'([^"'\\]+)')`)

	rTrackPattern = regexp.MustCompile(
		`track\(\s*(?:transform\s*=\s*)?(?:"(` + tokenClass + `)"|'(` + tokenClass + `)')`)

	rTitlePattern = regexp.MustCompile(`(?sm)^---\n.*?title:\s*"([^"]*)".*?---`)
)

// firstGroup returns the first non-empty capture group of the leftmost match.
func firstGroup(re *regexp.Regexp, content string) (string, bool) {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	for _, g := range m[1:] {
		if g != "" {
			return g, true
		}
	}
	return "", false
}

// classify turns a raw token into a Result.
func classify(token string) Result {
	switch {
	case len(token) == uid.Length:
		if u, err := uid.Parse(token); err == nil {
			return Result{Found: FoundUID, Token: token, UID: u, Stem: u.Stem()}
		}
	case uid.IsStem(token):
		return Result{Found: FoundStem, Token: token, Stem: token}
	}
	return Result{Found: FoundMalformed, Token: token}
}

func legacy(stem, label string) Result {
	if !uid.IsStem(stem) {
		return Result{Found: FoundMalformed, Token: stem}
	}
	return Result{Found: FoundLegacy, Token: stem, Stem: stem, Label: label}
}

type pythonScanner struct{}

func (pythonScanner) Kind() Kind { return KindScript }

func (pythonScanner) Scan(content string) Result {
	if tok, ok := firstGroup(pyTrackPattern, content); ok {
		return classify(tok)
	}
	if tok, ok := firstGroup(pyContextUIDPattern, content); ok {
		return classify(tok)
	}
	stem, okStem := firstGroup(pyLegacyStemPattern, content)
	if !okStem {
		return Result{}
	}
	if label, ok := firstGroup(pyLegacyVersion, content); ok {
		return legacy(stem, label)
	}
	return classify(stem)
}

func (pythonScanner) Title(string) string { return "" }

type jupyterScanner struct{}

func (jupyterScanner) Kind() Kind { return KindNotebook }

func (jupyterScanner) Scan(content string) Result {
	if tok, ok := firstGroup(nbTrackPattern, content); ok {
		return classify(tok)
	}
	if tok, ok := firstGroup(nbContextUIDPattern, content); ok {
		return classify(tok)
	}
	nb, err := parseNotebook(content)
	if err != nil || nb.Metadata.NBProject == nil || nb.Metadata.NBProject.ID == "" {
		return Result{}
	}
	meta := nb.Metadata.NBProject
	if meta.Version == "" {
		return classify(meta.ID)
	}
	return legacy(meta.ID, meta.Version)
}

func (jupyterScanner) Title(content string) string {
	nb, err := parseNotebook(content)
	if err != nil {
		return ""
	}
	return nb.title()
}

// rScanner covers .R scripts and the .Rmd/.qmd notebook formats, which
// share the R tracking call.
type rScanner struct {
	kind Kind
}

func (s rScanner) Kind() Kind { return s.kind }

func (rScanner) Scan(content string) Result {
	if tok, ok := firstGroup(rTrackPattern, content); ok {
		return classify(tok)
	}
	return Result{}
}

func (s rScanner) Title(content string) string {
	if s.kind != KindNotebook {
		return ""
	}
	title, _ := firstGroup(rTitlePattern, content)
	return title
}

// shellScanner always reports FoundNone. Shell scripts are tracked by the
// current-run file, never by their text.
type shellScanner struct{}

func (shellScanner) Kind() Kind { return KindShellScript }

func (shellScanner) Scan(string) Result { return Result{} }

func (shellScanner) Title(string) string { return "" }
