package authority

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-depfinder/internal/log"
)

type fakeRemote struct {
	*httptest.Server
	hits sync.Map // path -> *int32
}

func newFakeRemote(t *testing.T, files map[string]interface{}) *fakeRemote {
	t.Helper()
	fr := &fakeRemote{}
	fr.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := fr.hits.LoadOrStore(r.URL.Path, new(int32))
		atomic.AddInt32(n.(*int32), 1)

		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if raw, ok := body.(string); ok {
			w.Write([]byte(raw))
			return
		}
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(fr.Close)
	return fr
}

func (fr *fakeRemote) count(path string) int32 {
	n, ok := fr.hits.Load(path)
	if !ok {
		return 0
	}
	return atomic.LoadInt32(n.(*int32))
}

func newClient(fr *fakeRemote) *Client {
	return New(Config{
		ImportMapsURL: fr.URL + "/libcfgraph/",
		RankedURL:     fr.URL + "/ranked.json",
		Logger:        log.Discard(),
	})
}

func standardFiles() map[string]interface{} {
	return map[string]interface{}{
		"/libcfgraph/import_maps_meta.json": map[string]int{"num_letters": 2},
		"/libcfgraph/import_maps/nu.json": map[string][]string{
			"numpy":        {"conda-forge/linux-64/numpy-1.26.4-py312h8753938_0.conda", "numpy-base-1.26.4-py312_0"},
			"numpy.linalg": {"numpy-1.26.4-py312h8753938_0"},
		},
		"/libcfgraph/import_maps/ya.json": map[string][]string{
			"yaml": {"pyyaml-6.0.1-py312h98912ed_1.tar.bz2"},
		},
		"/ranked.json": []string{"python", "numpy", "pyyaml"},
	}
}

func TestResolvePrefix(t *testing.T) {
	fr := newFakeRemote(t, standardFiles())
	c := newClient(fr)
	ctx := context.Background()

	got, err := c.ResolvePrefix(ctx, "numpy")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = c.ResolvePrefix(ctx, "numpy.linalg")
	require.NoError(t, err)
	assert.Equal(t, []string{"numpy-1.26.4-py312h8753938_0"}, got)

	got, err = c.ResolvePrefix(ctx, "nuitka")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Equal(t, int32(1), fr.count("/libcfgraph/import_maps_meta.json"))
	assert.Equal(t, int32(1), fr.count("/libcfgraph/import_maps/nu.json"), "shards are memoized")
}

func TestResolvePrefixMissingShard(t *testing.T) {
	fr := newFakeRemote(t, standardFiles())
	c := newClient(fr)

	got, err := c.ResolvePrefix(context.Background(), "zzz_unknown")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolvePrefixShortNameAndCase(t *testing.T) {
	files := standardFiles()
	files["/libcfgraph/import_maps/y.json"] = map[string][]string{"y": {"why-1.0-0"}}
	files["/libcfgraph/import_maps/pi.json"] = map[string][]string{"PIL": {"pillow-10.0.0-py312_0"}}
	fr := newFakeRemote(t, files)
	c := newClient(fr)

	got, err := c.ResolvePrefix(context.Background(), "y")
	require.NoError(t, err)
	assert.Equal(t, []string{"why-1.0-0"}, got)

	got, err = c.ResolvePrefix(context.Background(), "PIL")
	require.NoError(t, err)
	assert.Equal(t, []string{"pillow-10.0.0-py312_0"}, got)
}

func TestResolvePrefixConcurrent(t *testing.T) {
	fr := newFakeRemote(t, standardFiles())
	c := newClient(fr)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ResolvePrefix(context.Background(), "numpy")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fr.count("/libcfgraph/import_maps/nu.json"))
}

func TestFetchErrors(t *testing.T) {
	files := standardFiles()
	delete(files, "/libcfgraph/import_maps_meta.json")
	files["/ranked.json"] = "{not json"
	fr := newFakeRemote(t, files)
	c := newClient(fr)

	_, err := c.ResolvePrefix(context.Background(), "numpy")
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.Status)
	assert.Contains(t, fe.URL, "import_maps_meta.json")

	_, err = c.RankedAuthorities(context.Background())
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, err.Error(), "decoding response")
}

func TestInvalidNumLetters(t *testing.T) {
	files := standardFiles()
	files["/libcfgraph/import_maps_meta.json"] = map[string]int{"num_letters": 0}
	fr := newFakeRemote(t, files)

	_, err := newClient(fr).ResolvePrefix(context.Background(), "numpy")
	assert.ErrorContains(t, err, "invalid num_letters")
}

func TestRankedAuthorities(t *testing.T) {
	fr := newFakeRemote(t, standardFiles())
	c := newClient(fr)

	for i := 0; i < 3; i++ {
		ranked, err := c.RankedAuthorities(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"python", "numpy", "pyyaml"}, ranked)
	}
	assert.Equal(t, int32(1), fr.count("/ranked.json"))
}

func TestPackageOfArtifact(t *testing.T) {
	tests := []struct {
		artifact string
		expected string
		wantErr  bool
	}{
		{"numpy-1.26.4-py312h8753938_0", "numpy", false},
		{"conda-forge/linux-64/numpy-1.26.4-py312h8753938_0.conda", "numpy", false},
		{"pyyaml-6.0.1-py312h98912ed_1.tar.bz2", "pyyaml", false},
		{"numpy-base-1.26.4-py312_0", "numpy-base", false},
		{"artifacts/noarch/google-cloud-storage-2.14.0-pyhca7485f_0.json", "google-cloud-storage", false},
		{"numpy", "", true},
		{"numpy-1.0", "", true},
		{"-1.0-0", "", true},
	}

	for _, tt := range tests {
		got, err := PackageOfArtifact(tt.artifact)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrBadArtifact, tt.artifact)
			continue
		}
		require.NoError(t, err, tt.artifact)
		assert.Equal(t, tt.expected, got, tt.artifact)
	}
}
