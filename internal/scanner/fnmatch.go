package scanner

import (
	"strings"

	"github.com/gobwas/glob"
)

// GlobSet is a compiled list of fnmatch-style patterns. Unlike path.Match a
// '*' also matches '/', so "*/tests/*" covers every file under any tests
// directory.
type GlobSet struct {
	patterns []string
	globs    []glob.Glob
}

// NewGlobSet compiles patterns. Empty patterns are skipped.
func NewGlobSet(patterns []string) *GlobSet {
	g := &GlobSet{}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		g.patterns = append(g.patterns, p)
		g.globs = append(g.globs, compile(p))
	}
	return g
}

// Patterns returns the source patterns.
func (g *GlobSet) Patterns() []string {
	if g == nil {
		return nil
	}
	return g.patterns
}

// Empty reports whether the set holds no patterns.
func (g *GlobSet) Empty() bool {
	return g == nil || len(g.globs) == 0
}

// Match reports whether name matches any pattern.
func (g *GlobSet) Match(name string) bool {
	if g == nil {
		return false
	}
	for _, gl := range g.globs {
		if gl.Match(name) {
			return true
		}
	}
	return false
}

// MatchAll reports whether every name matches some pattern. It is false for
// an empty list or an empty set.
func (g *GlobSet) MatchAll(names []string) bool {
	if g.Empty() || len(names) == 0 {
		return false
	}
	for _, n := range names {
		if !g.Match(n) {
			return false
		}
	}
	return true
}

// Fnmatch matches a single name against a single pattern.
func Fnmatch(name, pattern string) bool {
	return compile(pattern).Match(name)
}

// compile builds a glob without separators so '*' crosses '/'. Patterns glob
// rejects, such as an unterminated or reversed bracket, match literally.
func compile(pattern string) glob.Glob {
	g, err := glob.Compile(quoteExtensions(pattern))
	if err != nil {
		return glob.MustCompile(glob.QuoteMeta(pattern))
	}
	return g
}

// quoteExtensions escapes the glob syntax fnmatch lacks: brace alternation
// and backslash escapes. Bracket expressions are left alone.
func quoteExtensions(pattern string) string {
	var b strings.Builder
	start := -1
	for i, r := range pattern {
		switch {
		case start >= 0:
			// A ']' right after "[" or "[!" is a member, not the end.
			first := start + 1
			if pattern[first] == '!' {
				first++
			}
			if r == ']' && i > first {
				start = -1
			}
		case r == '[':
			start = i
		case r == '{', r == '}', r == '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
