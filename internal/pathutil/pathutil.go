// Package pathutil provides shared path validation helpers.
package pathutil

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ValidateFilePath validates a file path for path traversal and invalid characters.
// Uses segment-based detection so that "scripts/../etc/passwd" is rejected before
// cleaning (cleaned path would be "etc/passwd" and could bypass a simple ".." check).
// Returns an error if the path is empty, contains null bytes, or has ".." in any segment.
func ValidateFilePath(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.Contains(filePath, "\x00") {
		return fmt.Errorf("file path contains invalid characters")
	}

	normalized := filepath.ToSlash(filePath)
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return fmt.Errorf("file path contains path traversal: %q", filePath)
		}
	}
	return nil
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateID checks that id can be used as a single directory name.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if !idPattern.MatchString(id) || id == "." || strings.Contains(id, "..") {
		return fmt.Errorf("id %q contains characters that are not allowed in a directory name", id)
	}
	return nil
}

// ResolveWithin joins rel onto base after validating it. Absolute rel paths
// are returned cleaned and unchanged.
func ResolveWithin(base, rel string) (string, error) {
	if err := ValidateFilePath(rel); err != nil {
		return "", err
	}
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel), nil
	}
	if base == "" {
		base = "."
	}
	return filepath.Join(base, rel), nil
}
