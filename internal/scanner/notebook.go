package scanner

import (
	"encoding/json"
	"fmt"
	"strings"
)

// notebook is the subset of the Jupyter document format the scanner reads.
type notebook struct {
	Cells    []notebookCell `json:"cells"`
	Metadata struct {
		NBProject *struct {
			ID      string `json:"id"`
			Version string `json:"version"`
		} `json:"nbproject"`
	} `json:"metadata"`
}

type notebookCell struct {
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
}

func parseNotebook(content string) (*notebook, error) {
	var nb notebook
	if err := json.Unmarshal([]byte(content), &nb); err != nil {
		return nil, fmt.Errorf("parse notebook: %w", err)
	}
	return &nb, nil
}

// text joins a cell source, which the format allows to be either one
// string or a list of lines.
func (c notebookCell) text() string {
	var s string
	if err := json.Unmarshal(c.Source, &s); err == nil {
		return s
	}
	var lines []string
	if err := json.Unmarshal(c.Source, &lines); err == nil {
		return strings.Join(lines, "")
	}
	return ""
}

// title is the first level-one heading found at the top of a markdown cell.
func (nb *notebook) title() string {
	for _, c := range nb.Cells {
		if c.CellType != "markdown" {
			continue
		}
		first, _, _ := strings.Cut(strings.TrimLeft(c.text(), "\n"), "\n")
		if rest, ok := strings.CutPrefix(first, "# "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
