package scanner

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind is the closed set of tracked source variants.
type Kind int

const (
	// KindUnknown is the zero value; no scanner exists for it.
	KindUnknown Kind = iota
	// KindScript is a plain source file executed top to bottom (.py, .R).
	KindScript
	// KindNotebook is a document mixing code and prose that renders to a
	// report (.ipynb, .Rmd, .qmd).
	KindNotebook
	// KindShellScript is a shell script (.sh). It cannot embed an
	// identifier and is tracked through the current-run file instead.
	KindShellScript
)

func (k Kind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindNotebook:
		return "notebook"
	case KindShellScript:
		return "shell"
	default:
		return "unknown"
	}
}

// SupportedSuffixes lists every file suffix that can be saved as a transform.
var SupportedSuffixes = []string{".py", ".ipynb", ".R", ".qmd", ".Rmd", ".sh"}

// UnsupportedSuffixError is returned for paths no scanner understands.
type UnsupportedSuffixError struct {
	Path string
}

func (e *UnsupportedSuffixError) Error() string {
	return fmt.Sprintf("unsupported file %q: only %s files are supported for saving transforms",
		e.Path, strings.Join(SupportedSuffixes, ", "))
}

// KindOf classifies path by its suffix. Suffixes are case sensitive, the
// same as the tools that produce these files.
func KindOf(path string) (Kind, error) {
	switch filepath.Ext(path) {
	case ".py", ".R":
		return KindScript, nil
	case ".ipynb", ".Rmd", ".qmd":
		return KindNotebook, nil
	case ".sh":
		return KindShellScript, nil
	default:
		return KindUnknown, &UnsupportedSuffixError{Path: path}
	}
}

// IsTransform reports whether path would be saved as a transform rather
// than as a plain artifact.
func IsTransform(path string) bool {
	_, err := KindOf(path)
	return err == nil
}

// IsRNotebook reports whether path is an R markdown or Quarto document,
// whose report is a sibling HTML export.
func IsRNotebook(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".Rmd" || ext == ".qmd"
}

// IsJupyter reports whether path is a Jupyter notebook.
func IsJupyter(path string) bool {
	return filepath.Ext(path) == ".ipynb"
}
