package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-depfinder/internal/config"
	"github.com/l3aro/go-depfinder/internal/log"
	"github.com/l3aro/go-depfinder/pkg/aggregate"
	"github.com/l3aro/go-depfinder/pkg/inspection"
	"github.com/l3aro/go-depfinder/pkg/pkgdata"
	"github.com/l3aro/go-depfinder/pkg/stdlib"
	"github.com/l3aro/go-depfinder/pkg/types"
)

var errVerboseAndQuiet = errors.New("you have enabled both verbose mode (-v) and quiet mode (-q), please pick one")

// settings is the resolved configuration of one invocation.
type settings struct {
	cfg        *config.Config
	configPath string
	logger     *log.DefaultLogger
	builtins   types.Set
}

// loadSettings merges config files, environment and the command's flags, then
// configures the process logger.
func loadSettings(cmd *cobra.Command) (*settings, error) {
	flags := cmd.Flags()

	verbose, _ := flags.GetBool("verbose")
	quiet, _ := flags.GetBool("quiet")
	if verbose && quiet {
		return nil, errVerboseAndQuiet
	}

	configPath, _ := flags.GetString("config")
	cfg, effectivePath, err := loadConfigWithPath(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if flags.Changed("ignore") {
		v, _ := flags.GetString("ignore")
		cfg.Ignore = config.SplitList(v)
	}
	if flags.Changed("custom-namespaces") {
		v, _ := flags.GetString("custom-namespaces")
		cfg.CustomNamespaces = config.SplitList(v)
	}
	if flags.Changed("python-version") {
		cfg.PythonVersion, _ = flags.GetString("python-version")
	}
	if flags.Changed("strict") {
		cfg.Strict, _ = flags.GetBool("strict")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("offline") {
		cfg.Offline, _ = flags.GetBool("offline")
	}
	if verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := log.Default()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetJSONOutput(cfg.JSONLogs)
	switch {
	case quiet:
		logger.SetLevel(log.ErrorLevel)
	case cfg.Verbose:
		logger.SetLevel(log.DebugLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	builtins, err := stdlib.Modules(cfg.PythonVersion)
	if err != nil {
		return nil, err
	}

	logger.Debug("settings loaded", "config", effectivePath, "python", cfg.PythonVersion, "offline", cfg.Offline)
	return &settings{
		cfg:        cfg,
		configPath: effectivePath,
		logger:     logger,
		builtins:   builtins,
	}, nil
}

// loadConfigWithPath loads an explicit config file, or the layered defaults
// when path is empty. It also reports which file took effect.
func loadConfigWithPath(path string) (*config.Config, string, error) {
	if path != "" {
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}

	effectivePath := ""
	if fileExists(config.ProjectConfigFilePath()) {
		effectivePath = config.ProjectConfigFilePath()
	} else if fileExists(config.GlobalConfigFilePath()) {
		effectivePath = config.GlobalConfigFilePath()
	}
	return cfg, effectivePath, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// tables loads the bundled package tables merged with the name-mapping table.
func (s *settings) tables(ctx context.Context) (*pkgdata.Tables, error) {
	fetcher := pkgdata.NewFetcher(s.cfg.NameMappingURL, s.cfg.CacheDir, s.cfg.HTTPTimeout)
	fetcher.Offline = s.cfg.Offline
	fetcher.Client = s.cfg.HTTPClient()
	fetcher.Logger = s.logger.Named("pkgdata")
	return pkgdata.Load(ctx, fetcher)
}

// searchOptions builds the aggregate options for this invocation.
func (s *settings) searchOptions(cmd *cobra.Command, tables *pkgdata.Tables) (aggregate.Options, error) {
	constructs, err := s.cfg.Constructs()
	if err != nil {
		return aggregate.Options{}, err
	}
	policy := inspection.NewPolicy(constructs...)
	notebooks, _ := cmd.Flags().GetBool("notebooks")
	workers := s.cfg.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	return aggregate.Options{
		Finder: inspection.Options{
			Builtins:         s.builtins,
			Namespaces:       tables.Namespaces(),
			CustomNamespaces: s.cfg.CustomNamespaces,
			Policy:           &policy,
			Logger:           s.logger.Named("inspection"),
		},
		Ignore:           s.cfg.Ignore,
		Strict:           s.cfg.Strict,
		Workers:          workers,
		IncludeNotebooks: notebooks,
		Logger:           s.logger.Named("aggregate"),
	}, nil
}
