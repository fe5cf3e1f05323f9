package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-depfinder/internal/log"
	"github.com/l3aro/go-depfinder/pkg/types"
)

// fakeAuthority serves artifacts from a map and records how often each
// name was asked for.
type fakeAuthority struct {
	artifacts map[string][]string
	ranked    []string
	failing   map[string]bool
	rankedErr error

	mu    sync.Mutex
	calls map[string]int
	total int32
}

func newFake() *fakeAuthority {
	return &fakeAuthority{
		artifacts: map[string][]string{
			"numpy":           {"numpy-1.26.4-py312_0", "numpy-base-1.26.4-py312_0"},
			"yaml":            {"pyyaml-6.0.1-py312_0"},
			"google.cloud":    {"google-cloud-core-2.4.1-pyhd8ed1ab_0"},
			"matplotlib":      {"matplotlib-base-3.8.0-py312_0", "matplotlib-3.8.0-py312_0"},
			"broken.artifact": {"nonsense"},
		},
		ranked:  []string{"python", "numpy", "matplotlib", "matplotlib-base", "pyyaml"},
		failing: map[string]bool{},
		calls:   map[string]int{},
	}
}

func (f *fakeAuthority) ResolvePrefix(_ context.Context, name string) ([]string, error) {
	atomic.AddInt32(&f.total, 1)
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
	if f.failing[name] {
		return nil, fmt.Errorf("remote unavailable for %s", name)
	}
	return f.artifacts[name], nil
}

func (f *fakeAuthority) ResolveArtifact(_ context.Context, artifact string) (string, error) {
	parts := strings.Split(artifact, "-")
	if len(parts) < 3 {
		return "", errors.New("bad artifact")
	}
	return strings.Join(parts[:len(parts)-2], "-"), nil
}

func (f *fakeAuthority) RankedAuthorities(context.Context) ([]string, error) {
	return f.ranked, f.rankedErr
}

func occurrence(file string, line int, flags ...types.Construct) types.ImportMetadata {
	var fl types.Flags
	for _, c := range flags {
		fl = fl.With(c)
	}
	return types.ImportMetadata{Filename: file, Line: line, Flags: fl}
}

func importMap(entries map[string][]types.ImportMetadata) types.ImportMap {
	m := make(types.ImportMap)
	for name, mds := range entries {
		for _, md := range mds {
			m.Add(name, md)
		}
	}
	return m
}

func newResolver(a Authority, opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return New(a, opts)
}

func TestReportBuckets(t *testing.T) {
	imports := importMap(map[string][]types.ImportMetadata{
		"numpy":                {occurrence("a.py", 1)},
		"yaml":                 {occurrence("a.py", 2, types.ConstructTry)},
		"os.path":              {occurrence("a.py", 3)},
		"notapkg":              {occurrence("a.py", 4)},
		"maybe":                {occurrence("a.py", 5, types.ConstructFunctionDef)},
		"google.cloud.storage": {occurrence("b.py", 1)},
	})

	out, err := newResolver(newFake(), Options{}).Report(context.Background(), imports)
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{
		"required":              {"google.cloud.storage", "numpy"},
		"questionable":          {"pyyaml"},
		"builtin":               {"os.path"},
		"required no match":     {"notapkg"},
		"questionable no match": {"maybe"},
	}, out.Report.Describe())

	i2p := out.ImportToPackage.Describe()
	assert.Equal(t, []string{"numpy", "numpy-base"}, i2p["required"]["numpy"])
	assert.Equal(t, []string{"google-cloud-core"}, i2p["required"]["google.cloud.storage"],
		"lookups fall back to shorter prefixes")
	assert.Empty(t, i2p["required no match"]["notapkg"])
	assert.Empty(t, out.Failures)
}

func TestReportFlaggedAnywhereIsQuestionable(t *testing.T) {
	imports := importMap(map[string][]types.ImportMetadata{
		"numpy":   {occurrence("a.py", 1), occurrence("b.py", 7, types.ConstructTry)},
		"notapkg": {occurrence("a.py", 2), occurrence("b.py", 8, types.ConstructIf)},
	})

	out, err := newResolver(newFake(), Options{}).Report(context.Background(), imports)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"questionable":          {"numpy"},
		"questionable no match": {"notapkg"},
	}, out.Report.Describe(), "each name lands in exactly one bucket")

	i2p := out.ImportToPackage.Describe()
	assert.Equal(t, []string{"numpy", "numpy-base"}, i2p["questionable"]["numpy"])
	assert.NotContains(t, i2p["required"], "numpy")
}

func TestFileSkipsFullyIgnoredName(t *testing.T) {
	r := newResolver(newFake(), Options{Ignore: []string{"*/tests/*"}})
	out := newOutput()
	occ := map[types.Location]types.ImportMetadata{}
	md := occurrence("pkg/tests/test_a.py", 3, types.ConstructTry)
	occ[md.Location()] = md

	r.file(out, "numpy", occ, Lookup{Candidates: types.NewSet("numpy"), MostLikely: "numpy"})
	assert.Empty(t, out.Report.Describe())
	assert.Empty(t, out.ImportToPackage.Describe())
}

func TestReportIgnore(t *testing.T) {
	imports := importMap(map[string][]types.ImportMetadata{
		"pytest": {occurrence("pkg/tests/test_a.py", 1)},
		"numpy":  {occurrence("pkg/tests/test_a.py", 2), occurrence("pkg/core.py", 1, types.ConstructTry)},
	})
	fake := newFake()

	out, err := newResolver(fake, Options{Ignore: []string{"*/tests/*"}}).Report(context.Background(), imports)
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{"questionable": {"numpy"}}, out.Report.Describe(),
		"ignored occurrences do not contribute a bucket")
	assert.Zero(t, fake.calls["pytest"], "names only seen in ignored files are never looked up")
}

func TestReportMostLikelyTieBreak(t *testing.T) {
	imports := importMap(map[string][]types.ImportMetadata{
		"matplotlib": {occurrence("a.py", 1)},
	})

	fake := newFake()
	out, err := newResolver(fake, Options{}).Report(context.Background(), imports)
	require.NoError(t, err)
	assert.Equal(t, []string{"matplotlib"}, out.Report.Describe()["required"])

	fake = newFake()
	fake.ranked = []string{"matplotlib-base", "matplotlib"}
	out, err = newResolver(fake, Options{}).Report(context.Background(), imports)
	require.NoError(t, err)
	assert.Equal(t, []string{"matplotlib-base"}, out.Report.Describe()["required"])

	fake = newFake()
	fake.ranked = []string{"unrelated"}
	fake.artifacts["matplotlib"] = []string{"mpl-core-1.0-0"}
	out, err = newResolver(fake, Options{}).Report(context.Background(), imports)
	require.NoError(t, err)
	assert.Equal(t, []string{"matplotlib"}, out.Report.Describe()["required"],
		"no ranked candidate falls back to the import name")
}

func TestReportDeterministic(t *testing.T) {
	entries := map[string][]types.ImportMetadata{}
	for i := 0; i < 40; i++ {
		entries[fmt.Sprintf("pkg%02d", i)] = []types.ImportMetadata{occurrence("a.py", i+1)}
	}
	entries["numpy"] = []types.ImportMetadata{occurrence("a.py", 100)}
	entries["matplotlib"] = []types.ImportMetadata{occurrence("a.py", 101, types.ConstructFor)}
	imports := importMap(entries)

	first, err := newResolver(newFake(), Options{Workers: 1}).Report(context.Background(), imports)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := newResolver(newFake(), Options{Workers: 8}).Report(context.Background(), imports)
		require.NoError(t, err)
		assert.Equal(t, first.Report.Describe(), again.Report.Describe())
		assert.Equal(t, first.ImportToPackage.Describe(), again.ImportToPackage.Describe())
	}
}

func TestReportFailureIsolation(t *testing.T) {
	fake := newFake()
	fake.failing["flaky"] = true
	imports := importMap(map[string][]types.ImportMetadata{
		"flaky": {occurrence("a.py", 1)},
		"numpy": {occurrence("a.py", 2)},
	})

	out, err := newResolver(fake, Options{}).Report(context.Background(), imports)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"required":          {"numpy"},
		"required no match": {"flaky"},
	}, out.Report.Describe())
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "flaky", out.Failures[0].Name)
}

func TestReportBadArtifacts(t *testing.T) {
	imports := importMap(map[string][]types.ImportMetadata{
		"broken.artifact": {occurrence("a.py", 1)},
	})
	out, err := newResolver(newFake(), Options{}).Report(context.Background(), imports)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"required no match": {"broken.artifact"}}, out.Report.Describe())
	assert.Len(t, out.Failures, 1)
}

func TestReportCache(t *testing.T) {
	fake := newFake()
	cache := NewCache(16)
	imports := importMap(map[string][]types.ImportMetadata{
		"numpy": {occurrence("a.py", 1)},
	})

	r := newResolver(fake, Options{Cache: cache})
	for i := 0; i < 3; i++ {
		_, err := r.Report(context.Background(), imports)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fake.calls["numpy"])

	// A second resolver sharing the cache does not ask again.
	_, err := newResolver(fake, Options{Cache: cache}).Report(context.Background(), imports)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls["numpy"])
}

func TestReportRankedUnavailable(t *testing.T) {
	fake := newFake()
	fake.rankedErr = errors.New("offline")
	imports := importMap(map[string][]types.ImportMetadata{
		"yaml": {occurrence("a.py", 1)},
	})

	r := newResolver(fake, Options{})
	out, err := r.Report(context.Background(), imports)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"required": {"yaml"}}, out.Report.Describe())

	fake.rankedErr = nil
	out, err = r.Report(context.Background(), imports)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"required": {"pyyaml"}}, out.Report.Describe(),
		"results computed without a ranking are not cached")
}

func TestReportCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	imports := importMap(map[string][]types.ImportMetadata{"numpy": {occurrence("a.py", 1)}})
	_, err := newResolver(newFake(), Options{}).Report(ctx, imports)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchPrefixes(t *testing.T) {
	set := types.NewSet("os", "xml.etree")
	assert.Equal(t, "os", searchPrefixes("os.path.join", set))
	assert.Equal(t, "xml.etree", searchPrefixes("xml.etree.ElementTree", set))
	assert.Equal(t, "", searchPrefixes("numpy.linalg", set))
}
