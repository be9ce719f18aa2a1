package util

import (
	"errors"
	"strings"
)

const maxFileNameLen = 255

// SanitizeFileName makes an uploaded document name safe to embed in a
// storage path: traversal sequences are rejected, separators replaced.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("file name contains traversal sequence")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", errors.New("file name is empty")
	}
	if len(s) > maxFileNameLen {
		return "", errors.New("file name too long")
	}
	return s, nil
}
