package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-depfinder/internal/healthcheck"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and remote lookup tables",
	Long: `Validates the effective configuration and verifies that the conda-forge
import maps, the ranked package list and the name-mapping table are reachable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		result, err := healthcheck.Check(cmd.Context(), s.cfg, s.configPath)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		displayDoctorResult(cmd.OutOrStdout(), result)

		if result.HasErrors() {
			return fmt.Errorf("health check failed: one or more lookup tables are not reachable")
		}
		return nil
	},
}

func displayDoctorResult(w io.Writer, result *healthcheck.HealthCheckResult) {
	if result.EffectivePath == "" {
		fmt.Fprintln(w, "Using config: defaults (run 'depfinder init' to create one)")
	} else {
		fmt.Fprintf(w, "Using config: %s (%s)\n", result.EffectivePath, result.EffectiveScope)
	}
	fmt.Fprintf(w, "Python: %s (%d standard library modules)\n", result.PythonVersion, result.Builtins)

	fmt.Fprintln(w, "\nLookup tables:")
	for _, src := range result.Sources {
		printSourceStatus(w, src)
	}
	fmt.Fprintln(w)
	printSourceStatus(w, result.Snapshot)
}

func printSourceStatus(w io.Writer, src healthcheck.SourceStatus) {
	fmt.Fprintf(w, "  %s %s\n", formatStatusIcon(src.Status), src.Name)
	if src.URL != "" {
		fmt.Fprintf(w, "      %s\n", src.URL)
	}
	if src.Error != "" {
		fmt.Fprintf(w, "      Error: %s\n", src.Error)
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case healthcheck.StatusReady:
		return color.GreenString("✓")
	case healthcheck.StatusOffline, healthcheck.StatusMissing:
		return color.YellowString("◐")
	case healthcheck.StatusError:
		return color.RedString("✗")
	default:
		return "?"
	}
}
