package pkgdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/l3aro/go-depfinder/internal/log"
	"github.com/l3aro/go-depfinder/pkg/cache"
)

// NameMapping is one row of the conda-forge name_mapping.json table.
type NameMapping struct {
	ImportName string `json:"import_name" msgpack:"import_name"`
	CondaName  string `json:"conda_name" msgpack:"conda_name"`
	PypiName   string `json:"pypi_name" msgpack:"pypi_name"`
}

// IsNamespace reports whether the import name spans several dotted segments.
func (m NameMapping) IsNamespace() bool {
	return strings.Contains(m.ImportName, ".")
}

// ErrNoMapping is returned when neither the remote table nor a snapshot is
// available.
var ErrNoMapping = errors.New("no name mapping available")

// SnapshotFile is the file name of the offline copy inside the cache dir.
const SnapshotFile = "name_mapping.msgpack"

// Fetcher downloads the name-mapping table and keeps a msgpack snapshot of
// the last good copy for offline runs.
type Fetcher struct {
	URL      string
	CacheDir string
	Offline  bool
	Client   *http.Client
	Logger   log.Logger
}

// NewFetcher creates a Fetcher with an http.Client using timeout.
func NewFetcher(url, cacheDir string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		URL:      url,
		CacheDir: cacheDir,
		Client:   &http.Client{Timeout: timeout},
		Logger:   log.Default().Named("pkgdata"),
	}
}

func (f *Fetcher) logger() log.Logger {
	if f.Logger == nil {
		return log.Discard()
	}
	return f.Logger
}

func (f *Fetcher) snapshotPath() string {
	if f.CacheDir == "" {
		return ""
	}
	return filepath.Join(f.CacheDir, SnapshotFile)
}

// Fetch returns the remote table, falling back to the snapshot when the
// network is unavailable or Offline is set.
func (f *Fetcher) Fetch(ctx context.Context) ([]NameMapping, error) {
	if !f.Offline {
		rows, err := f.fetchRemote(ctx)
		if err == nil {
			if err := f.writeSnapshot(rows); err != nil {
				f.logger().Warn("failed to write name mapping snapshot", "error", err)
			}
			return rows, nil
		}
		f.logger().Warn("could not fetch name mapping, using snapshot", "url", f.URL, "error", err)
	}

	rows, err := f.readSnapshot()
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, ErrNoMapping
	}
	return rows, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context) ([]NameMapping, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rows []NameMapping
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode name mapping: %w", err)
	}
	return rows, nil
}

func (f *Fetcher) writeSnapshot(rows []NameMapping) error {
	path := f.snapshotPath()
	if path == "" {
		return nil
	}
	c := cache.New(cache.Options[[]NameMapping]{MaxSize: 1})
	c.Set(f.URL, rows)
	return cache.PersistToFile(c, path)
}

func (f *Fetcher) readSnapshot() ([]NameMapping, error) {
	path := f.snapshotPath()
	if path == "" {
		return nil, nil
	}
	c := cache.New(cache.Options[[]NameMapping]{MaxSize: 1})
	if err := cache.LoadFromFile(c, path); err != nil {
		return nil, fmt.Errorf("failed to read name mapping snapshot: %w", err)
	}
	rows, _ := c.Get(f.URL)
	return rows, nil
}

// Load returns the bundled tables extended with the name-mapping table.
// Mapping failures are logged and the bundled tables are returned as is.
func Load(ctx context.Context, f *Fetcher) (*Tables, error) {
	t, err := Bundled()
	if err != nil {
		return nil, err
	}
	if f == nil {
		return t, nil
	}

	rows, err := f.Fetch(ctx)
	if err != nil {
		f.logger().Info("continuing with bundled namespace table", "error", err)
		return t, nil
	}
	added := t.Merge(rows)
	f.logger().Debug("merged name mapping", "rows", len(rows), "new_namespaces", added)
	return t, nil
}
