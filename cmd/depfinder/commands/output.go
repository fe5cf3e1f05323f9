package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-depfinder/pkg/types"
)

type format int

const (
	formatText format = iota
	formatYAML
	formatJSON
	formatConda
)

func outputFormat(cmd *cobra.Command) (format, error) {
	selected := formatText
	n := 0
	for name, f := range map[string]format{"yaml": formatYAML, "json": formatJSON, "conda": formatConda} {
		if cmd.Flags().Lookup(name) == nil {
			continue
		}
		if on, _ := cmd.Flags().GetBool(name); on {
			selected = f
			n++
		}
	}
	if n > 1 {
		return formatText, fmt.Errorf("pick only one of --yaml, --json and --conda")
	}
	return selected, nil
}

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	nameColor   = color.New(color.FgGreen)
	mutedColor  = color.New(color.Faint)
)

// printDeps writes bucket -> names in the chosen format.
func printDeps(w io.Writer, deps map[string][]string, f format) error {
	switch f {
	case formatYAML:
		return writeYAML(w, deps)
	case formatJSON:
		return writeJSON(w, deps)
	case formatConda:
		fmt.Fprintln(w, strings.Join(condaNames(deps), " "))
		return nil
	}

	for _, key := range orderedKeys(deps) {
		headerColor.Fprintf(w, "%s:\n", key)
		for _, name := range deps[key] {
			fmt.Fprintf(w, "  - %s\n", nameColor.Sprint(name))
		}
	}
	if len(deps) == 0 {
		mutedColor.Fprintln(w, "no imports found")
	}
	return nil
}

// printPackageMap writes bucket -> import -> candidate packages.
func printPackageMap(w io.Writer, m map[string]map[string][]string, f format) error {
	switch f {
	case formatYAML:
		return writeYAML(w, m)
	case formatJSON:
		return writeJSON(w, m)
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortBuckets(keys)
	for _, key := range keys {
		headerColor.Fprintf(w, "%s:\n", key)
		imports := make([]string, 0, len(m[key]))
		for name := range m[key] {
			imports = append(imports, name)
		}
		sort.Strings(imports)
		for _, name := range imports {
			pkgs := m[key][name]
			if len(pkgs) == 0 {
				fmt.Fprintf(w, "  %s: %s\n", name, mutedColor.Sprint("-"))
				continue
			}
			fmt.Fprintf(w, "  %s: %s\n", name, nameColor.Sprint(strings.Join(pkgs, ", ")))
		}
	}
	return nil
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// condaNames lists required and questionable names once each, sorted.
func condaNames(deps map[string][]string) []string {
	set := types.NewSet(deps[string(types.Required)]...)
	set.Union(types.NewSet(deps[string(types.Questionable)]...))
	return set.Sorted()
}

func orderedKeys(deps map[string][]string) []string {
	keys := make([]string, 0, len(deps))
	for k := range deps {
		keys = append(keys, k)
	}
	sortBuckets(keys)
	return keys
}

// sortBuckets orders bucket names the way they are reported, unknown names last.
func sortBuckets(keys []string) {
	rank := make(map[string]int)
	for i, b := range types.ClassificationBuckets {
		rank[string(b)] = i
	}
	for _, b := range types.ReportBuckets {
		if _, ok := rank[string(b)]; !ok {
			rank[string(b)] = len(rank)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		ri, iok := rank[keys[i]]
		rj, jok := rank[keys[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return keys[i] < keys[j]
	})
}
