package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = ""
)

// RootCmd represents the base command. Given a path it prints the imports
// found there.
var RootCmd = &cobra.Command{
	Use:   "depfinder [file_or_directory]",
	Short: "depfinder - Find the dependencies of a Python project",
	Long: `depfinder inspects Python source files, Jupyter notebooks or whole
directories and reports which modules they import, split into required,
questionable, builtin and relative imports.

Commands:
  resolve     Map imports to conda-forge packages
  doctor      Check configuration and remote lookup tables
  init        Create a configuration file interactively
  version     Print version information

Use "depfinder [command] --help" for more information about a command.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runSearch,
}

// SetVersion records the build information printed by "depfinder version".
func SetVersion(v, built string) {
	version = v
	buildTime = built
}

// Execute runs the root command with ctx, cancelled on interrupt by main.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.BoolP("quiet", "q", false, "Only log errors")
	pf.String("config", "", "Config file path (default: project, then global config)")
	pf.String("ignore", "", "Comma separated list of file patterns not to inspect")
	pf.Bool("strict", false, "Fail if any file fails to parse")
	pf.String("custom-namespaces", "", `Comma separated custom namespace packages: "foo.*" reports foo.bar.baz as foo.bar, a plain "foo" reports it as foo`)
	pf.String("python-version", "", "Python version whose standard library counts as builtin")
	pf.Int("workers", 0, "Parallel workers for parsing and lookups (0 picks a default)")
	pf.Bool("offline", false, "Do not fetch remote lookup tables")
	pf.Bool("notebooks", false, "Also inspect .ipynb files when searching a directory")

	RootCmd.Flags().BoolP("yaml", "y", false, "Output as YAML")
	RootCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.Flags().Bool("conda", false, "Output a space separated list for conda install")
	RootCmd.Flags().Bool("no-remap", false, "Do not remap import names to their package names")
	RootCmd.Flags().StringArrayP("key", "k", nil, "Output keys: required, questionable, builtin, relative or all")
	RootCmd.Flags().BoolP("version", "V", false, "Print version information and exit")
	RootCmd.MarkFlagsMutuallyExclusive("yaml", "json", "conda")

	RootCmd.AddCommand(resolveCmd)
	RootCmd.AddCommand(doctorCmd)
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(versionCmd)
}
