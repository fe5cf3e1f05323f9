// Package pkgdata holds the static lookup tables used to normalise import
// names: the synonym table, the fake-package table and the set of dotted
// namespace packages.
package pkgdata

import (
	_ "embed"
	"fmt"
	"maps"
	"sync"

	"github.com/l3aro/go-depfinder/pkg/types"
	"gopkg.in/yaml.v3"
)

//go:embed pkg_data.yml
var bundledYAML []byte

// Tables is the decoded form of pkg_data.yml, optionally extended with a
// remote name-mapping table.
type Tables struct {
	PackageMapping    map[string]string   `yaml:"_PACKAGE_MAPPING"`
	FakePackages      map[string][]string `yaml:"_FAKE_PACKAGES"`
	NamespacePackages []string            `yaml:"_NAMESPACE_PACKAGES"`

	mu         sync.RWMutex
	fakes      types.Set
	namespaces types.Set
}

var (
	bundledOnce sync.Once
	bundled     *Tables
	bundledErr  error
)

// Bundled returns a fresh copy of the tables compiled into the binary.
func Bundled() (*Tables, error) {
	bundledOnce.Do(func() {
		bundled, bundledErr = Parse(bundledYAML)
	})
	if bundledErr != nil {
		return nil, bundledErr
	}
	return bundled.clone(), nil
}

// MustBundled is like Bundled but panics if the embedded data is corrupt.
func MustBundled() *Tables {
	t, err := Bundled()
	if err != nil {
		panic(err)
	}
	return t
}

// Parse decodes a pkg_data.yml document.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse package tables: %w", err)
	}
	t.index()
	return &t, nil
}

func (t *Tables) index() {
	t.fakes = types.NewSet()
	for _, names := range t.FakePackages {
		for _, n := range names {
			t.fakes.Add(n)
		}
	}
	t.namespaces = types.NewSet(t.NamespacePackages...)
	if t.PackageMapping == nil {
		t.PackageMapping = map[string]string{}
	}
}

func (t *Tables) clone() *Tables {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c := &Tables{
		PackageMapping:    make(map[string]string, len(t.PackageMapping)),
		FakePackages:      make(map[string][]string, len(t.FakePackages)),
		NamespacePackages: append([]string(nil), t.NamespacePackages...),
	}
	for k, v := range t.PackageMapping {
		c.PackageMapping[k] = v
	}
	for k, v := range t.FakePackages {
		c.FakePackages[k] = append([]string(nil), v...)
	}
	c.index()
	return c
}

// IsFake reports whether name is bundled inside another distribution.
func (t *Tables) IsFake(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fakes.Has(name)
}

// Namespaces returns a copy of the dotted names top-level reduction must not
// cut. Later merges do not show up in it.
func (t *Tables) Namespaces() types.Set {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.namespaces)
}

// Canonical returns the distribution name for an import name, or the name
// itself when no synonym is known.
func (t *Tables) Canonical(name string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if v, ok := t.PackageMapping[name]; ok {
		return v
	}
	return name
}

// Merge folds a name-mapping table in: dotted import names become namespace
// packages. It returns how many namespaces were new.
func (t *Tables) Merge(mappings []NameMapping) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	added := 0
	for _, m := range mappings {
		if !m.IsNamespace() || t.namespaces.Has(m.ImportName) {
			continue
		}
		t.namespaces.Add(m.ImportName)
		added++
	}
	if added > 0 {
		t.NamespacePackages = t.namespaces.Sorted()
	}
	return added
}
