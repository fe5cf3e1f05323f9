// Package stdlib provides the set of Python standard-library module names for
// a given interpreter version.
package stdlib

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/l3aro/go-depfinder/pkg/types"
)

// DefaultVersion is used when no Python version is configured.
const DefaultVersion = "3.12"

// versionDelta describes how a version differs from the 3.12 baseline.
type versionDelta struct {
	add    []string
	remove []string
}

// Removed from the baseline in 3.12 and still present in earlier versions.
var pre312 = []string{"asynchat", "asyncore", "distutils", "imp", "smtpd"}

var deltas = map[string]versionDelta{
	"3.8": {
		add: append([]string{
			"formatter", "parser", "symbol", "binhex", "dummy_threading", "_dummy_thread",
			"_bootlocale", "_sha256", "_sha512", "macpath",
		}, pre312...),
		remove: []string{"graphlib", "zoneinfo", "_zoneinfo", "tomllib", "_pydatetime", "_pylong", "_sha2", "_wmi", "_typing", "_tokenize"},
	},
	"3.9": {
		add:    append([]string{"formatter", "parser", "symbol", "binhex", "_bootlocale", "_sha256", "_sha512"}, pre312...),
		remove: []string{"tomllib", "_pydatetime", "_pylong", "_sha2", "_wmi", "_typing", "_tokenize"},
	},
	"3.10": {
		add:    append([]string{"binhex", "_bootlocale", "_sha256", "_sha512"}, pre312...),
		remove: []string{"tomllib", "_pydatetime", "_pylong", "_sha2", "_wmi", "_typing", "_tokenize"},
	},
	"3.11": {
		add:    append([]string{"_sha256", "_sha512"}, pre312...),
		remove: []string{"_pydatetime", "_pylong", "_sha2", "_wmi", "_tokenize"},
	},
	"3.12": {},
	"3.13": {
		add: []string{"_colorize", "_pyrepl", "_interpchannels", "_interpqueues", "_interpreters", "_suggestions", "_sysconfig"},
		remove: []string{
			"aifc", "audioop", "cgi", "cgitb", "chunk", "crypt", "_crypt", "imghdr", "mailcap",
			"msilib", "_msi", "nis", "nntplib", "ossaudiodev", "pipes", "sndhdr", "spwd", "sunau",
			"telnetlib", "uu", "xdrlib", "lib2to3",
		},
	},
}

var (
	mu    sync.Mutex
	cache = map[string]types.Set{}
)

// Versions returns the supported versions in ascending order.
func Versions() []string {
	out := make([]string, 0, len(deltas))
	for v := range deltas {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		var ai, aj int
		fmt.Sscanf(strings.TrimPrefix(out[i], "3."), "%d", &ai)
		fmt.Sscanf(strings.TrimPrefix(out[j], "3."), "%d", &aj)
		return ai < aj
	})
	return out
}

// Supported reports whether version has a module list.
func Supported(version string) bool {
	_, ok := deltas[normalize(version)]
	return ok
}

// Modules returns the standard-library names for version ("3.11", "3.12.4", ...).
// The returned set must not be modified.
func Modules(version string) (types.Set, error) {
	v := normalize(version)
	d, ok := deltas[v]
	if !ok {
		return nil, fmt.Errorf("unsupported python version %q (supported: %s)", version, strings.Join(Versions(), ", "))
	}

	mu.Lock()
	defer mu.Unlock()
	if s, ok := cache[v]; ok {
		return s, nil
	}

	s := types.NewSet(baseline...)
	for _, n := range d.add {
		s.Add(n)
	}
	for _, n := range d.remove {
		delete(s, n)
	}
	cache[v] = s
	return s, nil
}

// MustModules is like Modules but panics on an unsupported version.
func MustModules(version string) types.Set {
	s, err := Modules(version)
	if err != nil {
		panic(err)
	}
	return s
}

// Default returns the module set for DefaultVersion.
func Default() types.Set {
	return MustModules(DefaultVersion)
}

// normalize trims a version down to major.minor.
func normalize(version string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		return DefaultVersion
	}
	version = strings.TrimPrefix(version, "py")
	parts := strings.SplitN(version, ".", 3)
	if len(parts) >= 2 {
		return parts[0] + "." + parts[1]
	}
	return version
}
