package track

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DeriveKey returns the key a file is stored under: its path relative to
// devDir when it lies inside it, otherwise its base name. Keys use forward
// slashes and NFC so the same file gets the same key on every platform.
func DeriveKey(path, devDir string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	key := filepath.Base(abs)
	if devDir != "" {
		root, err := filepath.Abs(devDir)
		if err != nil {
			return "", fmt.Errorf("derive key: %w", err)
		}
		if rel, err := filepath.Rel(root, abs); err == nil && rel != "." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != ".." {
			key = rel
		}
	}
	return norm.NFC.String(filepath.ToSlash(key)), nil
}
