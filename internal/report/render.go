package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/roach88/stemtrack/internal/scanner"
)

var (
	// ErrNoReport is returned when an R notebook has no exported html.
	ErrNoReport = errors.New("no html export found")

	// ErrTwoReports is returned when an R notebook has both a .html and a
	// .nb.html export.
	ErrTwoReports = errors.New("both .html and .nb.html exports found")
)

// Renderer produces the human-readable report of a notebook.
type Renderer interface {
	Render(ctx context.Context, path string) ([]byte, error)
}

// NBConvert renders Jupyter notebooks with `jupyter nbconvert`.
type NBConvert struct {
	// Command defaults to "jupyter".
	Command string
}

func (r NBConvert) Render(ctx context.Context, path string) ([]byte, error) {
	command := r.Command
	if command == "" {
		command = "jupyter"
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command, "nbconvert", "--to", "html", "--stdout", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("render %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// SiblingHTML finds the html export of an R Markdown or Quarto notebook.
// Exactly one of <name>.html and <name>.nb.html must exist next to it.
func SiblingHTML(path string) (string, error) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	var found []string
	for _, candidate := range []string{base + ".html", base + ".nb.html"} {
		if _, err := os.Stat(candidate); err == nil {
			found = append(found, candidate)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%s: %w; please export your notebook as html", path, ErrNoReport)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%s: %w; please delete one of them", path, ErrTwoReports)
	}
}

// Rendered is the output of Build.
type Rendered struct {
	// Source is the content to attach as the transform source.
	Source []byte
	// Report is the rendered html; nil when there is none.
	Report []byte
	// ReportName is the file name the report is stored under.
	ReportName string
	// Consecutive is set for Jupyter notebooks.
	Consecutive *bool
	Violations  []Violation
}

// Source returns the bytes attached as the transform source: the stripped
// notebook for Jupyter notebooks and the content itself otherwise.
func Source(path string, content []byte) ([]byte, error) {
	if scanner.IsJupyter(path) {
		return StripNotebook(content)
	}
	return content, nil
}

// Build prepares the attachments of a source file. Scripts keep their
// bytes and get no report. Jupyter notebooks are stripped, checked for
// consecutive execution and rendered by r. R notebooks keep their bytes
// and use their html export.
func Build(ctx context.Context, path string, content []byte, r Renderer) (*Rendered, error) {
	out := &Rendered{Source: content}
	switch {
	case scanner.IsJupyter(path):
		stripped, err := Source(path, content)
		if err != nil {
			return nil, err
		}
		ok, violations, err := CheckConsecutiveness(content)
		if err != nil {
			return nil, err
		}
		out.Source = stripped
		out.Consecutive = &ok
		out.Violations = violations
		if r == nil {
			return out, nil
		}
		html, err := r.Render(ctx, path)
		if err != nil {
			return nil, err
		}
		out.Report = html
		out.ReportName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".html"
	case scanner.IsRNotebook(path):
		htmlPath, err := SiblingHTML(path)
		if err != nil {
			return nil, err
		}
		html, err := os.ReadFile(htmlPath)
		if err != nil {
			return nil, fmt.Errorf("read report: %w", err)
		}
		out.Report = html
		out.ReportName = filepath.Base(htmlPath)
	}
	return out, nil
}
