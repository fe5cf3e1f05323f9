// Package authority looks up which conda-forge packages supply an import,
// using the import maps published by libcfgraph and the package ranking
// published by the autotick bot.
package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/l3aro/go-depfinder/internal/log"
	"github.com/l3aro/go-depfinder/pkg/cache"
)

// Config configures a Client.
type Config struct {
	// ImportMapsURL is the base holding import_maps_meta.json and import_maps/.
	ImportMapsURL string
	// RankedURL points at the ranked hubs/authorities JSON list.
	RankedURL string
	Timeout   time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
	// MaxPrefixes bounds how many import-map shards stay in memory.
	MaxPrefixes int
	Logger      log.Logger
}

// Client is an HTTP backed authority. It is safe for concurrent use.
type Client struct {
	importMapsURL string
	rankedURL     string
	http          *http.Client
	logger        log.Logger

	shards *cache.LRU[map[string][]string]
	group  singleflight.Group

	mu         sync.Mutex
	numLetters int
	ranked     []string
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxPrefixes == 0 {
		cfg.MaxPrefixes = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default().Named("authority")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		importMapsURL: strings.TrimRight(cfg.ImportMapsURL, "/"),
		rankedURL:     cfg.RankedURL,
		http:          cfg.HTTPClient,
		logger:        cfg.Logger,
		shards:        cache.New(cache.Options[map[string][]string]{MaxSize: cfg.MaxPrefixes}),
	}
}

type importMapsMeta struct {
	NumLetters int `json:"num_letters"`
}

// ResolvePrefix returns the artifacts that ship exactly the import name. An
// import absent from the maps yields no artifacts and no error.
func (c *Client) ResolvePrefix(ctx context.Context, name string) ([]string, error) {
	n, err := c.prefixLength(ctx)
	if err != nil {
		return nil, err
	}
	prefix := strings.ToLower(name)
	if len(prefix) > n {
		prefix = prefix[:n]
	}

	shard, err := c.shard(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return shard[name], nil
}

func (c *Client) prefixLength(ctx context.Context) (int, error) {
	c.mu.Lock()
	n := c.numLetters
	c.mu.Unlock()
	if n > 0 {
		return n, nil
	}

	v, err, _ := c.group.Do("meta", func() (interface{}, error) {
		c.mu.Lock()
		n := c.numLetters
		c.mu.Unlock()
		if n > 0 {
			return n, nil
		}
		var meta importMapsMeta
		if err := c.getJSON(ctx, c.importMapsURL+"/import_maps_meta.json", &meta); err != nil {
			return 0, err
		}
		if meta.NumLetters <= 0 {
			return 0, fmt.Errorf("import_maps_meta.json: invalid num_letters %d", meta.NumLetters)
		}
		return meta.NumLetters, nil
	})
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.numLetters = v.(int)
	c.mu.Unlock()
	return v.(int), nil
}

func (c *Client) shard(ctx context.Context, prefix string) (map[string][]string, error) {
	if m, ok := c.shards.Get(prefix); ok {
		return m, nil
	}

	v, err, _ := c.group.Do("shard:"+prefix, func() (interface{}, error) {
		if m, ok := c.shards.Get(prefix); ok {
			return m, nil
		}
		var m map[string][]string
		err := c.getJSON(ctx, c.importMapsURL+"/import_maps/"+prefix+".json", &m)
		var fe *FetchError
		if err != nil && errors.As(err, &fe) && fe.Status == http.StatusNotFound {
			c.logger.Debug("no import map shard", "prefix", prefix)
			m, err = map[string][]string{}, nil
		}
		if err != nil {
			return nil, err
		}
		c.shards.Set(prefix, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string][]string), nil
}

// ResolveArtifact returns the package name of an artifact id such as
// "numpy-1.26.4-py312h8753938_0" or
// "conda-forge/linux-64/numpy-1.26.4-py312h8753938_0.conda".
func (c *Client) ResolveArtifact(_ context.Context, artifact string) (string, error) {
	return PackageOfArtifact(artifact)
}

// PackageOfArtifact splits an artifact id into its package name.
func PackageOfArtifact(artifact string) (string, error) {
	base := artifact
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	for _, ext := range []string{".conda", ".tar.bz2", ".json"} {
		base = strings.TrimSuffix(base, ext)
	}

	// name-version-build; the name itself may contain dashes.
	last := strings.LastIndexByte(base, '-')
	if last <= 0 {
		return "", fmt.Errorf("%w: %q", ErrBadArtifact, artifact)
	}
	mid := strings.LastIndexByte(base[:last], '-')
	if mid <= 0 {
		return "", fmt.Errorf("%w: %q", ErrBadArtifact, artifact)
	}
	return base[:mid], nil
}

// RankedAuthorities returns the package ranking, fetched once.
func (c *Client) RankedAuthorities(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	ranked := c.ranked
	c.mu.Unlock()
	if ranked != nil {
		return ranked, nil
	}

	v, err, _ := c.group.Do("ranked", func() (interface{}, error) {
		c.mu.Lock()
		cached := c.ranked
		c.mu.Unlock()
		if cached != nil {
			return cached, nil
		}
		var list []string
		if err := c.getJSON(ctx, c.rankedURL, &list); err != nil {
			return nil, err
		}
		if list == nil {
			list = []string{}
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.ranked = v.([]string)
	c.mu.Unlock()
	return v.([]string), nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &FetchError{URL: url, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &FetchError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	c.logger.Debug("fetched", "url", url, "took", time.Since(start))
	return nil
}
