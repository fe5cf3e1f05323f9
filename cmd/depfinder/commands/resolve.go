package commands

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-depfinder/internal/log"
	"github.com/l3aro/go-depfinder/pkg/aggregate"
	"github.com/l3aro/go-depfinder/pkg/authority"
	"github.com/l3aro/go-depfinder/pkg/resolver"
)

// resolveCmd maps the imports of a project to conda-forge packages.
var resolveCmd = &cobra.Command{
	Use:   "resolve <file_or_directory>",
	Short: "Map imports to conda-forge packages",
	Long: `Finds the imports of a file, notebook or directory and looks each one up
in the conda-forge import maps. Imports are reported under required or
questionable with the most likely package; names no package provides land in
"required no match" or "questionable no match".`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().BoolP("yaml", "y", false, "Output as YAML")
	resolveCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	resolveCmd.Flags().Bool("pkg-map", false, "Print every candidate package per import instead of the report")
	resolveCmd.MarkFlagsMutuallyExclusive("yaml", "json")
}

func runResolve(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if s.cfg.Offline {
		return fmt.Errorf("resolve needs the conda-forge import maps and cannot run offline")
	}
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	tables, err := s.tables(ctx)
	if err != nil {
		return err
	}
	opts, err := s.searchOptions(cmd, tables)
	if err != nil {
		return err
	}
	res, err := aggregate.Search(ctx, args[0], opts)
	if err != nil {
		return err
	}

	client := authority.New(authority.Config{
		ImportMapsURL: s.cfg.ImportMapsURL,
		RankedURL:     s.cfg.RankedURL,
		HTTPClient:    s.cfg.HTTPClient(),
		Logger:        s.logger.Named("authority"),
	})
	r := resolver.New(client, resolver.Options{
		Builtins: s.builtins,
		Ignore:   s.cfg.Ignore,
		Workers:  s.cfg.Workers,
		Logger:   s.logger.Named("resolver"),
	})

	var spinner *log.ProgressSpinner
	if f, ok := cmd.ErrOrStderr().(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		spinner = log.NewProgressSpinner(f, fmt.Sprintf("resolving %d imports", len(res.Imports)))
		spinner.Start()
	}
	out, err := r.Report(ctx, res.Imports)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return err
	}

	for _, failure := range out.Failures {
		s.logger.Warn("lookup failed, reported as no match", "name", failure.Name, "error", failure.Err)
	}

	if pkgMap, _ := cmd.Flags().GetBool("pkg-map"); pkgMap {
		return printPackageMap(cmd.OutOrStdout(), out.ImportToPackage.Describe(), format)
	}
	return printDeps(cmd.OutOrStdout(), out.Report.Describe(), format)
}
