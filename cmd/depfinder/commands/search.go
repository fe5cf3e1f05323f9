package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-depfinder/pkg/aggregate"
	"github.com/l3aro/go-depfinder/pkg/sanitize"
	"github.com/l3aro/go-depfinder/pkg/types"
)

// outputKeys maps every accepted -k value to the bucket it selects.
var outputKeys = map[string]types.Bucket{
	"required":     types.Required,
	"questionable": types.Questionable,
	"optional":     types.Questionable,
	"builtin":      types.Builtin,
	"relative":     types.Relative,
}

func runSearch(cmd *cobra.Command, args []string) error {
	if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
		fmt.Fprintln(cmd.OutOrStdout(), version)
		return nil
	}
	if len(args) == 0 {
		return errors.New("positional argument file_or_directory is required")
	}
	path := args[0]

	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	keyFlags, _ := cmd.Flags().GetStringArray("key")
	keys, err := selectKeys(keyFlags)
	if err != nil {
		return err
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

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		s.logger.Debug("searching directory recursively", "path", path)
	}
	res, err := aggregate.Search(ctx, path, opts)
	if err != nil {
		return err
	}

	deps := res.Describe()
	if noRemap, _ := cmd.Flags().GetBool("no-remap"); !noRemap && s.cfg.Remap {
		deps = sanitize.New(tables, aggregate.PackageName(path), s.logger.Named("sanitize")).Sanitize(deps)
	}

	return printDeps(cmd.OutOrStdout(), filterKeys(deps, keys), format)
}

// selectKeys validates -k values. A nil result selects every key.
func selectKeys(values []string) ([]types.Bucket, error) {
	var out []types.Bucket
	seen := make(map[types.Bucket]bool)
	for _, v := range values {
		if v == "all" {
			return nil, nil
		}
		b, ok := outputKeys[v]
		if !ok {
			return nil, fmt.Errorf("invalid key %q: valid options are required, questionable, optional, builtin, relative, all", v)
		}
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out, nil
}

func filterKeys(deps map[string][]string, keys []types.Bucket) map[string][]string {
	if keys == nil {
		return deps
	}
	out := make(map[string][]string, len(keys))
	for _, k := range keys {
		if names, ok := deps[string(k)]; ok {
			out[string(k)] = names
		}
	}
	return out
}
