package fs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultIgnorePatterns are always applied: the ignore file itself and
// hidden files or OS droppings that show up in photo folders.
var defaultIgnorePatterns = []string{IgnoreFileName, ".*", "Thumbs.db"}

// IgnoreMatcher matches file names (not paths) against glob patterns.
// Matching is case-insensitive: cameras disagree about "IMG_1.JPG".
type IgnoreMatcher struct {
	patterns []string
}

// NewIgnoreMatcher skips blank lines, '#' comments and malformed globs.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []string
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		raw = strings.ToLower(raw)
		if _, err := filepath.Match(raw, ""); err != nil {
			continue
		}
		patterns = append(patterns, raw)
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether a file called name should be skipped.
func (m *IgnoreMatcher) Match(name string) bool {
	if name == "" {
		return false
	}
	name = strings.ToLower(filepath.Base(name))
	for _, p := range m.patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// LoadIgnoreMatcher combines the default patterns with dir's ignore file.
func LoadIgnoreMatcher(dir string) (*IgnoreMatcher, error) {
	patterns, err := ParseIgnoreFile(filepath.Join(dir, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	all := append(append([]string(nil), defaultIgnorePatterns...), patterns...)
	return NewIgnoreMatcher(all), nil
}

// ParseIgnoreFile returns the raw lines of an ignore file, or nil if it
// does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
