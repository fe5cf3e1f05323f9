package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-depfinder/internal/config"
	"github.com/l3aro/go-depfinder/internal/healthcheck"
	"github.com/l3aro/go-depfinder/pkg/stdlib"
	"github.com/l3aro/go-depfinder/pkg/types"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file interactively",
	Long: `Guides you through setting up depfinder step by step and writes the
answers to a global or project config file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd)
	},
}

func runInit(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Analysis ===
	versionOptions := make([]huh.Option[string], 0, len(stdlib.Versions()))
	for _, v := range stdlib.Versions() {
		versionOptions = append(versionOptions, huh.NewOption("Python "+v, v))
	}
	constructOptions := make([]huh.Option[string], 0, len(types.AllConstructs()))
	for _, c := range types.AllConstructs() {
		constructOptions = append(constructOptions, huh.NewOption(c.String(), c.String()))
	}

	var customNamespaces, ignore string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Python version").
				Description("Its standard library is reported as builtin").
				Options(versionOptions...).
				Value(&cfg.PythonVersion),
			huh.NewMultiSelect[string]().
				Title("Questionable constructs").
				Description("Imports nested in these are reported as questionable").
				Options(constructOptions...).
				Value(&cfg.QuestionableConstructs),
			huh.NewInput().
				Title("Custom namespace packages (comma separated, optional)").
				Placeholder("mycompany, mycompany.plugins.*").
				Value(&customNamespaces),
			huh.NewInput().
				Title("File patterns to ignore (comma separated, optional)").
				Placeholder("*/tests/*, setup.py").
				Value(&ignore),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.CustomNamespaces = config.SplitList(customNamespaces)
	cfg.Ignore = config.SplitList(ignore)

	// === SECTION 2: Behaviour ===
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Strict mode").
				Description("Fail when any file cannot be parsed?").
				Value(&cfg.Strict),
			huh.NewConfirm().
				Title("Remap import names").
				Description("Report package names such as scikit-learn instead of sklearn?").
				Value(&cfg.Remap),
			huh.NewConfirm().
				Title("Offline").
				Description("Never fetch remote lookup tables?").
				Value(&cfg.Offline),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 3: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.depfinder/config.yaml)", "global"),
					huh.NewOption("Project (./.depfinder/config.yaml)", "project"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n=== Configuration Preview ===")
	fmt.Fprintf(out, "Config path: %s\n", configPath)
	fmt.Fprintf(out, "Python version: %s\n", cfg.PythonVersion)
	fmt.Fprintf(out, "Questionable constructs: %s\n", strings.Join(cfg.QuestionableConstructs, ", "))
	if len(cfg.CustomNamespaces) > 0 {
		fmt.Fprintf(out, "Custom namespaces: %s\n", strings.Join(cfg.CustomNamespaces, ", "))
	}
	if len(cfg.Ignore) > 0 {
		fmt.Fprintf(out, "Ignore: %s\n", strings.Join(cfg.Ignore, ", "))
	}
	fmt.Fprintf(out, "Strict: %t, Remap: %t, Offline: %t\n", cfg.Strict, cfg.Remap, cfg.Offline)
	fmt.Fprintln(out, "================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	absPath, _ := filepath.Abs(configPath)
	fmt.Fprintf(out, "Configuration saved to: %s\n", absPath)

	// === SECTION 4: Health Check ===
	fmt.Fprintln(out, "\n=== Running Health Check ===")
	result, err := healthcheck.Check(cmd.Context(), cfg, configPath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	displayDoctorResult(out, result)
	return nil
}
