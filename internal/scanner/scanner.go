// Package scanner walks a source tree and reports the Python files and
// notebooks that should be inspected. It honours .depfinderignore files with
// gitignore-style patterns and fnmatch-style ignore globs from the command
// line or config.
package scanner

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the type of an inspectable file.
type Kind string

const (
	KindSource   Kind = "python"
	KindNotebook Kind = "notebook"
)

// DetectKind maps a file extension to the Kind it is inspected as.
func DetectKind(ext string) (Kind, bool) {
	switch strings.ToLower(ext) {
	case ".py":
		return KindSource, true
	case ".ipynb":
		return KindNotebook, true
	}
	return "", false
}

// FileInfo represents information about a discovered file.
type FileInfo struct {
	Path     string // Relative path from root, slash separated
	FullPath string // root joined with Path, as the caller spelled root
	Kind     Kind
	Size     int64
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden       bool     // Skip hidden files and directories (starting with .)
	FollowSymlinks   bool     // Follow symlinks (within root only)
	IncludeNotebooks bool     // Report .ipynb files alongside .py files
	DefaultExcludes  []string // Directory names never descended into
	IgnoreFileName   string   // Name of the ignore file (default: .depfinderignore)
	Ignore           []string // fnmatch globs matched against the full path
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		IgnoreFileName: ".depfinderignore",
		DefaultExcludes: []string{
			".git",
			".hg",
			".svn",
			"__pycache__",
			".tox",
			".nox",
			".mypy_cache",
			".pytest_cache",
		},
	}
}

// Result is the outcome of a scan.
type Result struct {
	Files   []FileInfo
	Ignored []string // FullPath of files skipped by an ignore glob or pattern
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts  Options
	globs *GlobSet
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts, globs: NewGlobSet(opts.Ignore)}
}

// Scan recursively scans the directory at root. Files are returned in
// lexical order of their relative path.
func (s *Scanner) Scan(root string) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	ignorePatterns, err := s.loadIgnorePatterns(absRoot)
	if err != nil {
		return nil, fmt.Errorf("loading ignore patterns: %w", err)
	}

	res := &Result{}

	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}
		relPathSlash := filepath.ToSlash(relPath)

		if s.opts.SkipHidden && isHidden(info.Name()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if s.isDefaultExcluded(info.Name()) {
				return filepath.SkipDir
			}
			nested, err := s.loadIgnorePatterns(path)
			if err == nil && len(nested) > 0 {
				ignorePatterns = append(ignorePatterns, nested...)
			}
			return nil
		}

		kind, ok := DetectKind(filepath.Ext(path))
		if !ok || (kind == KindNotebook && !s.opts.IncludeNotebooks) {
			return nil
		}

		fullPath := filepath.Join(root, relPath)
		if matchesIgnorePatterns(relPathSlash, ignorePatterns) ||
			s.globs.Match(fullPath) || s.globs.Match(relPathSlash) {
			res.Ignored = append(res.Ignored, fullPath)
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			if !s.opts.FollowSymlinks {
				return nil
			}
			target, ok := resolveWithin(absRoot, path)
			if !ok {
				return nil
			}
			info = target
		}

		res.Files = append(res.Files, FileInfo{
			Path:     relPathSlash,
			FullPath: fullPath,
			Kind:     kind,
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })
	sort.Strings(res.Ignored)
	return res, nil
}

// resolveWithin follows a file symlink and reports the target's info if it
// stays inside root.
func resolveWithin(root, path string) (os.FileInfo, bool) {
	realPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, false
	}
	realAbs, err := filepath.Abs(realPath)
	if err != nil {
		return nil, false
	}
	if !strings.HasPrefix(realAbs, root+string(filepath.Separator)) {
		return nil, false
	}
	info, err := os.Stat(realAbs)
	if err != nil || info.IsDir() {
		return nil, false
	}
	return info, true
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// loadIgnorePatterns loads patterns from the ignore file in dir, if any.
func (s *Scanner) loadIgnorePatterns(dir string) ([]IgnorePattern, error) {
	if s.opts.IgnoreFileName == "" {
		return nil, nil
	}
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var patterns []IgnorePattern
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns, sc.Err()
}

// matchesIgnorePatterns applies gitignore semantics: later patterns win and
// negations re-include.
func matchesIgnorePatterns(relPath string, patterns []IgnorePattern) bool {
	ignored := false
	for _, pattern := range patterns {
		if pattern.Match(relPath) {
			ignored = !pattern.IsNegation()
		}
	}
	return ignored
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) (*Result, error) {
	return New(DefaultOptions()).Scan(root)
}
