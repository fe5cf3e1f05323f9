package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

func paths(files []FileInfo) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func TestScannerScan(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"setup.py":                  "import setuptools",
		"pkg/__init__.py":           "",
		"pkg/core.py":               "import numpy",
		"pkg/README.md":             "# Test",
		"notebooks/demo.ipynb":      "{}",
		".git/hooks/pre-commit.py":  "import sys",
		"pkg/__pycache__/core.py":   "stale",
		".hidden/visible_anyway.py": "import os",
	})

	res, err := New(DefaultOptions()).Scan(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		".hidden/visible_anyway.py",
		"pkg/__init__.py",
		"pkg/core.py",
		"setup.py",
	}, paths(res.Files))
	assert.Empty(t, res.Ignored)

	for _, f := range res.Files {
		assert.Equal(t, KindSource, f.Kind)
		assert.Equal(t, filepath.Join(tmpDir, filepath.FromSlash(f.Path)), f.FullPath)
	}
}

func TestScannerNotebooks(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"a.py":         "",
		"b.ipynb":      "{}",
		"docs/c.IPYNB": "{}",
	})

	opts := DefaultOptions()
	opts.IncludeNotebooks = true
	res, err := New(opts).Scan(tmpDir)
	require.NoError(t, err)

	require.Len(t, res.Files, 3)
	assert.Equal(t, KindSource, res.Files[0].Kind)
	assert.Equal(t, KindNotebook, res.Files[1].Kind)
	assert.Equal(t, KindNotebook, res.Files[2].Kind)
}

func TestScannerWithIgnoreFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		".depfinderignore": "# generated code\n*_pb2.py\nbuild/\n!build/keep.py\nsecret.py\n",
		"app.py":           "",
		"api_pb2.py":       "",
		"build/output.py":  "",
		"build/keep.py":    "",
		"secret.py":        "",
		"sub/secret.py":    "",
	})

	res, err := New(DefaultOptions()).Scan(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, []string{"app.py", "build/keep.py"}, paths(res.Files))
	assert.Len(t, res.Ignored, 4)
}

func TestScannerIgnoreGlobs(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"pkg/core.py":             "",
		"pkg/tests/test_core.py":  "",
		"pkg/sub/tests/test_x.py": "",
		"docs/conf.py":            "",
	})

	opts := DefaultOptions()
	opts.Ignore = []string{"*/tests/*", "docs/*"}
	res, err := New(opts).Scan(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, []string{"pkg/core.py"}, paths(res.Files))
	assert.ElementsMatch(t, []string{
		filepath.Join(tmpDir, "docs", "conf.py"),
		filepath.Join(tmpDir, "pkg", "sub", "tests", "test_x.py"),
		filepath.Join(tmpDir, "pkg", "tests", "test_core.py"),
	}, res.Ignored)
}

func TestScannerSkipHidden(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"visible.py":      "",
		".hidden/file.py": "",
		".conftest.py":    "",
	})

	opts := DefaultOptions()
	opts.SkipHidden = true
	res, err := New(opts).Scan(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"visible.py"}, paths(res.Files))

	opts.SkipHidden = false
	res, err = New(opts).Scan(tmpDir)
	require.NoError(t, err)
	assert.Len(t, res.Files, 3)
}

func TestScannerRejectsFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"a.py": ""})

	_, err := Scan(filepath.Join(tmpDir, "a.py"))
	assert.Error(t, err)

	_, err = Scan(filepath.Join(tmpDir, "missing"))
	assert.Error(t, err)
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		ext  string
		kind Kind
		ok   bool
	}{
		{".py", KindSource, true},
		{".PY", KindSource, true},
		{".ipynb", KindNotebook, true},
		{".pyi", "", false},
		{".go", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		kind, ok := DetectKind(tt.ext)
		if kind != tt.kind || ok != tt.ok {
			t.Errorf("DetectKind(%q) = (%q, %v), want (%q, %v)", tt.ext, kind, ok, tt.kind, tt.ok)
		}
	}
}

func TestIgnorePattern(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		match   bool
	}{
		// Simple patterns
		{"*.py", "file.py", true},
		{"*.py", "dir/file.py", true},
		{"*.py", "file.txt", false},
		{"build/", "build/file.py", true},
		{"build/", "other/build/file.py", true},
		{"build/", "builder.py", false},
		{"build", "build/file.py", true},

		// Absolute patterns
		{"/build/", "build/file.py", true},
		{"/build/", "src/build/file.py", false},

		// Glob patterns
		{"*_pb2.py", "api_pb2.py", true},
		{"*_pb2.py", "deep/api_pb2.py", true},
		{"src/*.py", "src/app.py", true},
		{"src/*.py", "src/deep/app.py", false},

		// Double asterisk
		{"**/test/**", "test/file.py", true},
		{"**/test/**", "src/test/file.py", true},
		{"**/test/**", "src/deep/test/file.py", true},
		{"**/test/**", "testing/file.py", false},

		// Question mark
		{"file?.py", "file1.py", true},
		{"file?.py", "file12.py", false},

		// A negation still matches; the caller flips the outcome.
		{"!*.py", "file.py", true},
	}

	for _, tt := range tests {
		result := ParseIgnorePattern(tt.pattern).Match(tt.path)
		if result != tt.match {
			t.Errorf("Pattern %q matching %q: got %v, want %v", tt.pattern, tt.path, result, tt.match)
		}
	}
}

func TestFnmatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		match   bool
	}{
		{"pkg/tests/test_a.py", "*/tests/*", true},
		{"/abs/pkg/tests/deep/test_a.py", "*/tests/*", true},
		{"pkg/test_a.py", "*/tests/*", false},
		{"setup.py", "setup.py", true},
		{"setup.py", "setup.p?", true},
		{"setup.py", "[st]etup.py", true},
		{"setup.py", "[!s]etup.py", false},
		{"a+b.py", "a+b.py", true},
		{"axb.py", "a.b.py", false},
		{"[weird", "[weird", true},
		{"x", "[z-a]", false},
		{"[z-a]", "[z-a]", true},
		{"pkg/a/b/tests", "pkg/*", true},
		{"pkg/b.py", "pkg/[!a]*", true},
		{"pkg/a.py", "pkg/[!a]*", false},
		{"a{b,c}.py", "a{b,c}.py", true},
		{"ab.py", "a{b,c}.py", false},
		{"!{x}.py", "[a!]{x}.py", true},
		{`a\b.py`, `a\b.py`, true},
	}

	for _, tt := range tests {
		if got := Fnmatch(tt.name, tt.pattern); got != tt.match {
			t.Errorf("Fnmatch(%q, %q) = %v, want %v", tt.name, tt.pattern, got, tt.match)
		}
	}
}

func TestGlobSetMatchAll(t *testing.T) {
	g := NewGlobSet([]string{"*/tests/*", ""})
	assert.Equal(t, []string{"*/tests/*"}, g.Patterns())

	assert.True(t, g.MatchAll([]string{"a/tests/x.py", "b/tests/y.py"}))
	assert.False(t, g.MatchAll([]string{"a/tests/x.py", "b/y.py"}))
	assert.False(t, g.MatchAll(nil))
	assert.False(t, NewGlobSet(nil).MatchAll([]string{"a/tests/x.py"}))

	var nilSet *GlobSet
	assert.False(t, nilSet.Match("x"))
	assert.True(t, nilSet.Empty())
}
