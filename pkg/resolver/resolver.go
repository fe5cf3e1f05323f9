// Package resolver maps import names to the conda-forge packages most
// likely to provide them and sorts the results into report buckets.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-depfinder/internal/log"
	"github.com/l3aro/go-depfinder/internal/scanner"
	"github.com/l3aro/go-depfinder/pkg/stdlib"
	"github.com/l3aro/go-depfinder/pkg/types"
)

// Authority answers which artifacts ship an import and how packages rank.
type Authority interface {
	// ResolvePrefix returns the artifacts that ship exactly name; none is
	// not an error.
	ResolvePrefix(ctx context.Context, name string) ([]string, error)
	// ResolveArtifact returns the package an artifact id belongs to.
	ResolveArtifact(ctx context.Context, artifact string) (string, error)
	// RankedAuthorities lists packages from most to least authoritative.
	RankedAuthorities(ctx context.Context) ([]string, error)
}

// DefaultCacheSize bounds the per-name lookup cache.
const DefaultCacheSize = 4096

// Lookup is the outcome of resolving one import name.
type Lookup struct {
	Candidates types.Set
	MostLikely string
}

// LookupError records a name whose lookup failed.
type LookupError struct {
	Name string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %s: %v", e.Name, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Options configures a Resolver.
type Options struct {
	// Builtins defaults to stdlib.Default().
	Builtins types.Set
	// Ignore holds fnmatch globs; occurrences in matching files are dropped.
	Ignore []string
	// Workers bounds concurrent lookups. 0 means min(32, NumCPU+4).
	Workers int
	// Cache is shared by every Report call; nil creates one per Resolver.
	Cache  *lru.Cache[string, Lookup]
	Logger log.Logger
}

// Resolver turns an import map into a package report.
type Resolver struct {
	authority Authority
	builtins  types.Set
	ignore    *scanner.GlobSet
	workers   int
	cache     *lru.Cache[string, Lookup]
	logger    log.Logger
}

// NewCache creates a lookup cache holding up to size names.
func NewCache(size int) *lru.Cache[string, Lookup] {
	c, err := lru.New[string, Lookup](size)
	if err != nil {
		panic(err)
	}
	return c
}

// New creates a Resolver backed by authority.
func New(authority Authority, opts Options) *Resolver {
	r := &Resolver{
		authority: authority,
		builtins:  opts.Builtins,
		ignore:    scanner.NewGlobSet(opts.Ignore),
		workers:   opts.Workers,
		cache:     opts.Cache,
		logger:    opts.Logger,
	}
	if r.builtins == nil {
		r.builtins = stdlib.Default()
	}
	if r.workers <= 0 {
		r.workers = min(32, runtime.NumCPU()+4)
	}
	if r.cache == nil {
		r.cache = NewCache(DefaultCacheSize)
	}
	if r.logger == nil {
		r.logger = log.Default().Named("resolver")
	}
	return r
}

// Report is bucket -> most likely packages.
type Report map[types.Bucket]types.Set

// Describe returns the non-empty buckets as sorted lists.
func (r Report) Describe() map[string][]string {
	out := make(map[string][]string)
	for b, set := range r {
		if len(set) > 0 {
			out[string(b)] = set.Sorted()
		}
	}
	return out
}

// ImportToPackage is bucket -> import name -> candidate packages.
type ImportToPackage map[types.Bucket]map[string]types.Set

// Describe flattens the candidate sets to sorted lists, dropping empty buckets.
func (m ImportToPackage) Describe() map[string]map[string][]string {
	out := make(map[string]map[string][]string)
	for b, names := range m {
		if len(names) == 0 {
			continue
		}
		inner := make(map[string][]string, len(names))
		for name, set := range names {
			inner[name] = set.Sorted()
		}
		out[string(b)] = inner
	}
	return out
}

// Output holds both views of a resolved import map.
type Output struct {
	Report          Report
	ImportToPackage ImportToPackage
	// Failures lists names whose lookup failed and were reported as no match.
	Failures []*LookupError
}

func newOutput() *Output {
	out := &Output{
		Report:          make(Report, len(types.ReportBuckets)),
		ImportToPackage: make(ImportToPackage, len(types.ReportBuckets)),
	}
	for _, b := range types.ReportBuckets {
		out.Report[b] = types.NewSet()
		out.ImportToPackage[b] = make(map[string]types.Set)
	}
	return out
}

type result struct {
	lookup Lookup
	err    error
}

// Report resolves every name in imports. Lookup failures are isolated to the
// name that failed; only context cancellation aborts the run.
func (r *Resolver) Report(ctx context.Context, imports types.ImportMap) (*Output, error) {
	out := newOutput()

	var pending []string
	for _, name := range imports.Names() {
		if r.allIgnored(imports[name]) {
			r.logger.Debug("every occurrence is ignored", "name", name)
			continue
		}
		if hit := searchPrefixes(name, r.builtins); hit != "" {
			out.Report[types.Builtin].Add(name)
			continue
		}
		pending = append(pending, name)
	}
	if len(pending) == 0 {
		return out, nil
	}

	ranked, err := r.authority.RankedAuthorities(ctx)
	rankedOK := err == nil
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("ranked package list unavailable, most likely package falls back to the import name", "error", err)
	}

	results := make([]result, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, name := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i].lookup, results[i].err = r.lookup(gctx, name, ranked, rankedOK)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, name := range pending {
		res := results[i]
		if res.err != nil {
			r.logger.Error("could not get package name from conda-forge metadata", "name", name, "error", res.err)
			out.Failures = append(out.Failures, &LookupError{Name: name, Err: res.err})
		}
		r.file(out, name, imports[name], res.lookup)
	}
	return out, nil
}

// file records name in exactly one report bucket. A name flagged at any
// non-ignored occurrence is questionable; names whose every occurrence is
// ignored are dropped.
func (r *Resolver) file(out *Output, name string, occ map[types.Location]types.ImportMetadata, l Lookup) {
	seen, questionable := false, false
	for loc, md := range occ {
		if r.ignore.Match(loc.Filename) {
			continue
		}
		seen = true
		questionable = questionable || md.Flags.Any()
	}
	if !seen {
		return
	}

	var b types.Bucket
	switch matched := len(l.Candidates) > 0; {
	case questionable && matched:
		b = types.Questionable
	case questionable:
		b = types.QuestionableNoMatch
	case matched:
		b = types.Required
	default:
		b = types.RequiredNoMatch
	}
	out.Report[b].Add(l.MostLikely)
	out.ImportToPackage[b][name] = l.Candidates
}

func (r *Resolver) allIgnored(occ map[types.Location]types.ImportMetadata) bool {
	if r.ignore.Empty() || len(occ) == 0 {
		return false
	}
	for loc := range occ {
		if !r.ignore.Match(loc.Filename) {
			return false
		}
	}
	return true
}

// lookup resolves name, consulting the cache first. On failure it returns a
// no-match Lookup for name alongside the error. Results computed without a
// ranked list are not cached.
func (r *Resolver) lookup(ctx context.Context, name string, ranked []string, cache bool) (Lookup, error) {
	if l, ok := r.cache.Get(name); ok {
		return l, nil
	}

	candidates, err := r.candidates(ctx, name)
	if err != nil {
		return Lookup{Candidates: types.NewSet(), MostLikely: name}, err
	}

	l := Lookup{Candidates: candidates, MostLikely: mostLikely(name, candidates, ranked)}
	if cache {
		r.cache.Add(name, l)
	}
	return l, nil
}

// candidates asks the authority for name and then for each shorter dotted
// prefix until one is known.
func (r *Resolver) candidates(ctx context.Context, name string) (types.Set, error) {
	for prefix := name; ; {
		artifacts, err := r.authority.ResolvePrefix(ctx, prefix)
		if err != nil {
			return nil, err
		}
		if len(artifacts) > 0 {
			return r.packages(ctx, artifacts)
		}
		i := strings.LastIndexByte(prefix, '.')
		if i < 0 {
			return types.NewSet(), nil
		}
		prefix = prefix[:i]
	}
}

func (r *Resolver) packages(ctx context.Context, artifacts []string) (types.Set, error) {
	pkgs := types.NewSet()
	var errs []error
	for _, a := range artifacts {
		pkg, err := r.authority.ResolveArtifact(ctx, a)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pkgs.Add(pkg)
	}
	if len(pkgs) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		r.logger.Debug("skipping artifact", "error", err)
	}
	return pkgs, nil
}

// mostLikely is the best ranked candidate, or name when none is ranked.
func mostLikely(name string, candidates types.Set, ranked []string) string {
	for _, pkg := range ranked {
		if candidates.Has(pkg) {
			return pkg
		}
	}
	return name
}

// searchPrefixes returns the first of name and its shorter dotted prefixes
// that is in set, or "".
func searchPrefixes(name string, set types.Set) string {
	for {
		if set.Has(name) {
			return name
		}
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return ""
		}
		name = name[:i]
	}
}
