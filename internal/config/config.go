package config

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/l3aro/go-depfinder/pkg/stdlib"
	"github.com/l3aro/go-depfinder/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	DefaultImportMapsURL  = "https://raw.githubusercontent.com/regro/libcfgraph/master"
	DefaultRankedURL      = "https://raw.githubusercontent.com/regro/cf-graph-countyfair/master/ranked_hubs_authorities.json"
	DefaultNameMappingURL = "https://raw.githubusercontent.com/regro/cf-graph-countyfair/master/mappings/pypi/name_mapping.json"
)

// Config holds all configuration for depfinder
type Config struct {
	// PythonVersion selects the standard-library name set.
	PythonVersion string `yaml:"python_version" env:"DEPFINDER_PYTHON_VERSION"`

	// CustomNamespaces are extra dotted names that must not be truncated.
	// A trailing ".*" keeps one segment below the namespace.
	CustomNamespaces []string `yaml:"custom_namespaces" env:"DEPFINDER_CUSTOM_NAMESPACES"`

	// Ignore holds fnmatch-style path globs for files that are not inspected.
	Ignore []string `yaml:"ignore" env:"DEPFINDER_IGNORE"`

	// Strict fails the run after every file was attempted if any failed to parse.
	Strict bool `yaml:"strict" env:"DEPFINDER_STRICT"`

	// Remap runs the sanitizer over results before display.
	Remap bool `yaml:"remap" env:"DEPFINDER_REMAP"`

	// QuestionableConstructs names the constructs that make an import questionable.
	QuestionableConstructs []string `yaml:"questionable_constructs" env:"DEPFINDER_QUESTIONABLE_CONSTRUCTS"`

	// Workers bounds parallel parsing and lookups. 0 picks a default.
	Workers int `yaml:"workers" env:"DEPFINDER_WORKERS"`

	// Remote lookup tables
	ImportMapsURL  string        `yaml:"import_maps_url" env:"DEPFINDER_IMPORT_MAPS_URL"`
	RankedURL      string        `yaml:"ranked_url" env:"DEPFINDER_RANKED_URL"`
	NameMappingURL string        `yaml:"name_mapping_url" env:"DEPFINDER_NAME_MAPPING_URL"`
	HTTPTimeout    time.Duration `yaml:"http_timeout" env:"DEPFINDER_HTTP_TIMEOUT"`

	// CacheDir holds the offline snapshot of the name-mapping table.
	CacheDir string `yaml:"cache_dir" env:"DEPFINDER_CACHE_DIR"`

	// Offline skips every network fetch and relies on bundled data and snapshots.
	Offline bool `yaml:"offline" env:"DEPFINDER_OFFLINE"`

	// Logging
	Verbose  bool `yaml:"verbose" env:"DEPFINDER_VERBOSE"`
	JSONLogs bool `yaml:"json_logs" env:"DEPFINDER_JSON_LOGS"`
}

// DefaultQuestionableConstructs is the default questionable policy.
var DefaultQuestionableConstructs = []string{
	"try", "match_case", "function_def", "async_function_def", "if", "while", "for", "async_for",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PythonVersion:          stdlib.DefaultVersion,
		Remap:                  true,
		QuestionableConstructs: append([]string(nil), DefaultQuestionableConstructs...),
		Workers:                0,
		ImportMapsURL:          DefaultImportMapsURL,
		RankedURL:              DefaultRankedURL,
		NameMappingURL:         DefaultNameMappingURL,
		HTTPTimeout:            30 * time.Second,
		CacheDir:               defaultCacheDir(),
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "depfinder")
	}
	return filepath.Join(dir, "depfinder")
}

// GlobalConfigFilePath returns the global config file path (~/.depfinder/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".depfinder/config.yaml"
	}
	return filepath.Join(home, ".depfinder", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.depfinder/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".depfinder", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.depfinder/config.yaml)
// 3. Global config (~/.depfinder/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigFilePath(), ProjectConfigFilePath()} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DEPFINDER_PYTHON_VERSION"); v != "" {
		cfg.PythonVersion = v
	}
	if v := os.Getenv("DEPFINDER_CUSTOM_NAMESPACES"); v != "" {
		cfg.CustomNamespaces = SplitList(v)
	}
	if v := os.Getenv("DEPFINDER_IGNORE"); v != "" {
		cfg.Ignore = SplitList(v)
	}
	if v := os.Getenv("DEPFINDER_STRICT"); v != "" {
		cfg.Strict = parseBool(v)
	}
	if v := os.Getenv("DEPFINDER_REMAP"); v != "" {
		cfg.Remap = parseBool(v)
	}
	if v := os.Getenv("DEPFINDER_QUESTIONABLE_CONSTRUCTS"); v != "" {
		cfg.QuestionableConstructs = SplitList(v)
	}
	if v := os.Getenv("DEPFINDER_WORKERS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Workers = i
		}
	}
	if v := os.Getenv("DEPFINDER_IMPORT_MAPS_URL"); v != "" {
		cfg.ImportMapsURL = v
	}
	if v := os.Getenv("DEPFINDER_RANKED_URL"); v != "" {
		cfg.RankedURL = v
	}
	if v := os.Getenv("DEPFINDER_NAME_MAPPING_URL"); v != "" {
		cfg.NameMappingURL = v
	}
	if v := os.Getenv("DEPFINDER_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DEPFINDER_HTTP_TIMEOUT %q: %w", v, err)
		}
		cfg.HTTPTimeout = d
	}
	if v := os.Getenv("DEPFINDER_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("DEPFINDER_OFFLINE"); v != "" {
		cfg.Offline = parseBool(v)
	}
	if v := os.Getenv("DEPFINDER_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
	if v := os.Getenv("DEPFINDER_JSON_LOGS"); v != "" {
		cfg.JSONLogs = parseBool(v)
	}
	return nil
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if !stdlib.Supported(c.PythonVersion) {
		return fmt.Errorf("unsupported python_version %q (supported: %s)",
			c.PythonVersion, strings.Join(stdlib.Versions(), ", "))
	}

	if _, err := c.Constructs(); err != nil {
		return err
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout must be non-negative")
	}

	for key, raw := range map[string]string{
		"import_maps_url":  c.ImportMapsURL,
		"ranked_url":       c.RankedURL,
		"name_mapping_url": c.NameMappingURL,
	} {
		if raw == "" {
			return fmt.Errorf("%s is required", key)
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file") {
			return fmt.Errorf("%s must be an http(s) or file URL: %q", key, raw)
		}
	}

	return nil
}

// Constructs parses QuestionableConstructs.
func (c *Config) Constructs() ([]types.Construct, error) {
	out := make([]types.Construct, 0, len(c.QuestionableConstructs))
	for _, name := range c.QuestionableConstructs {
		kind, err := types.ParseConstruct(name)
		if err != nil {
			return nil, fmt.Errorf("questionable_constructs: %w", err)
		}
		out = append(out, kind)
	}
	return out, nil
}

// HTTPClient returns the client used for remote lookup tables. It honours
// HTTPTimeout and also serves file:// URLs from the local filesystem.
func (c *Config) HTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	return &http.Client{Timeout: c.HTTPTimeout, Transport: transport}
}

// SplitList splits a comma separated flag or env value, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes"
}

// parseInt attempts to parse a string as int
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0
	}
	return i
}
