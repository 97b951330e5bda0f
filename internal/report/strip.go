package report

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/stemtrack/internal/hasher"
)

// StripNotebook removes everything from a Jupyter notebook that changes
// when it is executed: cell outputs, execution counts and cell metadata.
// The result is compact JSON with sorted keys, so two notebooks with the
// same code strip to the same bytes no matter how their editor formatted
// them. Strings keep their exact code points.
func StripNotebook(content []byte) ([]byte, error) {
	doc, err := hasher.DecodeJSON(content)
	if err != nil {
		return nil, fmt.Errorf("strip notebook: %w", err)
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("strip notebook: top level is not an object")
	}
	cells, _ := root["cells"].([]any)
	for _, c := range cells {
		cell, ok := c.(map[string]any)
		if !ok {
			continue
		}
		cell["metadata"] = map[string]any{}
		if cell["cell_type"] == "code" {
			cell["outputs"] = []any{}
			cell["execution_count"] = nil
		}
	}
	out, err := hasher.MarshalSorted(root)
	if err != nil {
		return nil, fmt.Errorf("strip notebook: %w", err)
	}
	return out, nil
}

// ExecutionCounts returns the execution counts of the code cells in
// document order. Cells that never ran are skipped.
func ExecutionCounts(content []byte) ([]int64, error) {
	var nb struct {
		Cells []struct {
			CellType       string       `json:"cell_type"`
			ExecutionCount *json.Number `json:"execution_count"`
		} `json:"cells"`
	}
	if err := json.Unmarshal(content, &nb); err != nil {
		return nil, fmt.Errorf("read execution counts: %w", err)
	}
	var counts []int64
	for _, c := range nb.Cells {
		if c.CellType != "code" || c.ExecutionCount == nil {
			continue
		}
		n, err := c.ExecutionCount.Int64()
		if err != nil {
			return nil, fmt.Errorf("read execution counts: %w", err)
		}
		counts = append(counts, n)
	}
	return counts, nil
}

// Violation is a pair of neighbouring code cells that did not run one
// after the other.
type Violation struct {
	Previous, Next int64
}

func (v Violation) String() string {
	return fmt.Sprintf("cell [%d] followed by [%d]", v.Previous, v.Next)
}

// CheckConsecutiveness reports whether the code cells of a notebook ran
// top to bottom, each count one more than the previous one.
func CheckConsecutiveness(content []byte) (bool, []Violation, error) {
	counts, err := ExecutionCounts(content)
	if err != nil {
		return false, nil, err
	}
	var violations []Violation
	for i := 1; i < len(counts); i++ {
		if counts[i]-counts[i-1] != 1 {
			violations = append(violations, Violation{Previous: counts[i-1], Next: counts[i]})
		}
	}
	return len(violations) == 0, violations, nil
}
