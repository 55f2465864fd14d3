package util

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeFileName removes path separators and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", errors.New("invalid file name")
	}
	return s, nil
}

// Underscore collapses runs of whitespace into single underscores.
func Underscore(name string) string {
	return strings.Join(strings.FieldsFunc(name, unicode.IsSpace), "_")
}

// HasExtension reports whether name ends in one of exts, ignoring case.
// exts include the leading dot.
func HasExtension(name string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range exts {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}
