package util

import (
	"errors"
	"strings"
	"unicode"
)

// ErrInvalidFileName is returned when nothing usable remains of a file name.
var ErrInvalidFileName = errors.New("invalid file name")

// SanitizeFileName removes path separators and traversal sequences so the
// result is safe to use as the last element of a storage key.
func SanitizeFileName(name string) (string, error) {
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", "_")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if strings.Trim(s, "_. ") == "" {
		return "", ErrInvalidFileName
	}
	return s, nil
}

// HeaderFileName makes a name safe to embed in a quoted Content-Disposition
// filename parameter.
func HeaderFileName(name string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if out == "" {
		return "document.pdf"
	}
	return out
}
