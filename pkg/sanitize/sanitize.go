// Package sanitize normalises classification results for display: names
// shipped inside another distribution are dropped, the package being
// inspected is dropped, and import names are renamed to distribution names.
package sanitize

import (
	"github.com/l3aro/go-depfinder/internal/log"
	"github.com/l3aro/go-depfinder/pkg/pkgdata"
	"github.com/l3aro/go-depfinder/pkg/types"
)

// Sanitizer applies the fake-package and synonym tables.
type Sanitizer struct {
	tables      *pkgdata.Tables
	packageName string
	logger      log.Logger
}

// New creates a Sanitizer. packageName is the project being inspected and
// is never reported as its own dependency; empty disables that rule.
func New(tables *pkgdata.Tables, packageName string, logger log.Logger) *Sanitizer {
	if logger == nil {
		logger = log.Default().Named("sanitize")
	}
	return &Sanitizer{tables: tables, packageName: packageName, logger: logger}
}

// Sanitize returns a new bucket map. Buckets left empty are removed and
// every list is sorted.
func (s *Sanitizer) Sanitize(deps map[string][]string) map[string][]string {
	out := make(map[string][]string, len(deps))
	for bucket, names := range deps {
		kept := types.NewSet()
		for _, name := range names {
			if s.tables.IsFake(name) {
				s.logger.Debug("ignoring import installed as part of another package, use --no-remap to keep it", "name", name)
				continue
			}
			if s.packageName != "" && name == s.packageName {
				s.logger.Debug("ignoring import of the package being inspected, use --no-remap to keep it", "name", name)
				continue
			}
			canonical := s.tables.Canonical(name)
			if canonical != name {
				s.logger.Debug("renaming import", "from", name, "to", canonical)
			}
			kept.Add(canonical)
		}
		if len(kept) > 0 {
			out[bucket] = kept.Sorted()
		}
	}
	return out
}

// Sanitize is a one-shot form of Sanitizer.Sanitize.
func Sanitize(deps map[string][]string, tables *pkgdata.Tables, packageName string) map[string][]string {
	return New(tables, packageName, log.Discard()).Sanitize(deps)
}
