package healthcheck

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/l3aro/go-depfinder/internal/config"
	"github.com/l3aro/go-depfinder/pkg/pkgdata"
	"github.com/l3aro/go-depfinder/pkg/stdlib"
)

// Status values reported for a source.
const (
	StatusReady   = "ready"
	StatusOffline = "offline"
	StatusMissing = "missing"
	StatusError   = "error"
)

// SourceStatus is the health of one remote lookup table.
type SourceStatus struct {
	Name   string
	URL    string
	Status string
	Error  string
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	EffectivePath  string
	EffectiveScope string // "global", "project" or "" for defaults
	PythonVersion  string
	Builtins       int
	Sources        []SourceStatus
	Snapshot       SourceStatus
}

// HasErrors reports whether any remote source failed.
func (r *HealthCheckResult) HasErrors() bool {
	for _, s := range r.Sources {
		if s.Status == StatusError {
			return true
		}
	}
	return false
}

// Check validates cfg and checks every remote lookup table it names.
// effectivePath is the config file in use, empty when running on defaults.
func Check(ctx context.Context, cfg *config.Config, effectivePath string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	builtins, err := stdlib.Modules(cfg.PythonVersion)
	if err != nil {
		return nil, err
	}

	result := &HealthCheckResult{
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
		PythonVersion:  cfg.PythonVersion,
		Builtins:       len(builtins),
		Snapshot:       checkSnapshot(cfg.CacheDir),
	}

	client := cfg.HTTPClient()
	for _, src := range []SourceStatus{
		{Name: "import maps", URL: strings.TrimRight(cfg.ImportMapsURL, "/") + "/import_maps_meta.json"},
		{Name: "ranked packages", URL: cfg.RankedURL},
		{Name: "name mapping", URL: cfg.NameMappingURL},
	} {
		if cfg.Offline {
			src.Status = StatusOffline
		} else {
			src.Status, src.Error = ping(ctx, client, src.URL)
		}
		result.Sources = append(result.Sources, src)
	}

	return result, nil
}

// scopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, ".depfinder")
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

// ping fetches url and reports whether it answered 200.
func ping(ctx context.Context, client *http.Client, url string) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatusError, fmt.Sprintf("invalid URL: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return StatusError, fmt.Sprintf("cannot reach %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StatusError, fmt.Sprintf("returned status %d", resp.StatusCode)
	}
	return StatusReady, ""
}

// checkSnapshot looks for the offline copy of the name-mapping table.
func checkSnapshot(cacheDir string) SourceStatus {
	status := SourceStatus{Name: "name mapping snapshot"}
	if cacheDir == "" {
		status.Status = StatusMissing
		status.Error = "cache_dir is not configured"
		return status
	}

	status.URL = filepath.Join(cacheDir, pkgdata.SnapshotFile)
	if info, err := os.Stat(status.URL); err == nil && !info.IsDir() {
		status.Status = StatusReady
	} else {
		status.Status = StatusMissing
	}
	return status
}
