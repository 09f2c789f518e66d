package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolveWithin joins a user-supplied relative path onto root,
// rejecting anything that would resolve outside it.
func ResolveWithin(root, relative string) (string, error) {
	cleaned := filepath.FromSlash(strings.TrimSpace(relative))
	if cleaned == "" {
		return "", fmt.Errorf("empty path")
	}
	if !filepath.IsLocal(cleaned) {
		return "", fmt.Errorf("path escapes the data directory")
	}
	return filepath.Join(root, cleaned), nil
}
