package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-directory file listing patterns to skip on import.
const IgnoreFileName = ".galleryignore"

// defaultIgnorePatterns are applied to every import, whatever the ignore file says.
var defaultIgnorePatterns = []string{IgnoreFileName, ".DS_Store", "Thumbs.db", "desktop.ini"}

type ignorePattern struct {
	glob     string
	fullPath bool
}

// IgnoreMatcher decides which files under an import root are skipped.
// A pattern containing '/' is matched against the path relative to the root;
// any other pattern is matched against the basename.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher builds a matcher from the default patterns plus raw.
// Blank lines and '#' comments in raw are dropped.
func NewIgnoreMatcher(raw []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, line := range append(append([]string{}, defaultIgnorePatterns...), raw...) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m.patterns = append(m.patterns, ignorePattern{glob: line, fullPath: strings.Contains(line, "/")})
	}
	return m
}

// LoadIgnoreMatcher reads root's ignore file, if any, and merges extra into it.
func LoadIgnoreMatcher(root string, extra []string) (*IgnoreMatcher, error) {
	fromFile, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	return NewIgnoreMatcher(append(fromFile, extra...)), nil
}

// Match reports whether rel, a path relative to the import root, is skipped.
func (m *IgnoreMatcher) Match(rel string) bool {
	slashed := filepath.ToSlash(rel)
	base := filepath.Base(rel)
	for _, p := range m.patterns {
		target := base
		if p.fullPath {
			target = slashed
		}
		// Malformed globs never match.
		if ok, err := filepath.Match(p.glob, target); err == nil && ok {
			return true
		}
	}
	return false
}

// ParseIgnoreFile returns the lines of an ignore file.
// A missing file yields no patterns and no error.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
