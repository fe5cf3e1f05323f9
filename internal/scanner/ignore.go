package scanner

import (
	"path"
	"strings"
)

// IgnorePattern is a single gitignore-style line from a .depfinderignore file.
type IgnorePattern struct {
	negate   bool
	dirOnly  bool
	anchored bool
	segments []string
}

// ParseIgnorePattern parses a gitignore-style pattern string.
func ParseIgnorePattern(pattern string) IgnorePattern {
	var p IgnorePattern

	if strings.HasPrefix(pattern, "!") {
		p.negate = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		p.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		p.anchored = true
		pattern = pattern[1:]
	}
	// A slash in the middle anchors the pattern too.
	if strings.Contains(pattern, "/") {
		p.anchored = true
	}

	p.segments = strings.Split(pattern, "/")
	return p
}

// IsNegation returns true if this pattern re-includes matching paths.
func (p IgnorePattern) IsNegation() bool {
	return p.negate
}

// Match reports whether a slash separated path relative to the scan root is
// covered by the pattern. A pattern naming a directory covers every file
// below it.
func (p IgnorePattern) Match(relPath string) bool {
	parts := strings.Split(relPath, "/")

	// Only directory components are candidates for a directory pattern.
	if p.dirOnly {
		parts = parts[:len(parts)-1]
	}

	if p.anchored {
		return matchPrefix(p.segments, parts)
	}
	for i := range parts {
		if matchPrefix(p.segments, parts[i:]) {
			return true
		}
	}
	return false
}

// matchPrefix matches pattern segments against the leading path components.
func matchPrefix(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return true
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchPrefix(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], parts[0])
	if err != nil || !ok {
		return false
	}
	return matchPrefix(pattern[1:], parts[1:])
}
