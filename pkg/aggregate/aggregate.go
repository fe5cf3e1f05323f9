// Package aggregate runs the import finder over a file, a notebook or a
// whole source tree and merges the per-file ledgers.
package aggregate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-depfinder/internal/log"
	"github.com/l3aro/go-depfinder/internal/scanner"
	"github.com/l3aro/go-depfinder/pkg/inspection"
	"github.com/l3aro/go-depfinder/pkg/types"
)

// Options configures a search.
type Options struct {
	Finder inspection.Options
	// Ignore holds fnmatch globs; matching files are not inspected.
	Ignore []string
	// Strict turns per-file parse failures into a *StrictError once every
	// file has been attempted.
	Strict bool
	// Workers > 1 parses files in parallel, one parser per worker.
	Workers int
	// IncludeNotebooks also inspects .ipynb files found in a directory.
	IncludeNotebooks bool
	Logger           log.Logger
}

func (o Options) logger() log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default().Named("aggregate")
}

func (o Options) finderOptions() inspection.Options {
	fo := o.Finder
	if fo.Logger == nil {
		fo.Logger = o.logger()
	}
	return fo
}

// Skipped is a file that could not be inspected.
type Skipped struct {
	Path string
	Err  error
}

// Result is a merged ledger plus bookkeeping about the files visited.
type Result struct {
	*types.Ledger
	Files   []string
	Skipped []Skipped
	Ignored []string
}

// Merge unions the buckets and import metadata of ledgers. Existing
// occurrences are never overwritten, so the result does not depend on order.
func Merge(ledgers ...*types.Ledger) *types.Ledger {
	out := types.NewLedger("")
	for _, l := range ledgers {
		if l == nil {
			continue
		}
		for b, set := range l.Buckets {
			for name := range set {
				out.Add(b, name)
			}
		}
		for name, occ := range l.Imports {
			for _, md := range occ {
				out.Imports.Add(name, md)
			}
		}
	}
	return out
}

// PackageName derives the name of the package being inspected from a path:
// the base name up to its first dot.
func PackageName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return base
}

// Search dispatches on path: a directory is walked, a .py file is parsed and
// a .ipynb file is read as a notebook.
func Search(ctx context.Context, path string, opts Options) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return SearchDirectory(ctx, path, opts)
	}
	switch kind, _ := scanner.DetectKind(filepath.Ext(path)); kind {
	case scanner.KindSource:
		return SearchFile(ctx, path, opts)
	case scanner.KindNotebook:
		return SearchNotebook(ctx, path, opts)
	}
	return nil, fmt.Errorf("%s: expected a .py file, a .ipynb notebook or a directory", path)
}

// SearchSource classifies an inline snippet. Occurrences carry no filename.
func SearchSource(ctx context.Context, code string, opts Options) (*types.Ledger, error) {
	f := inspection.NewFinder(opts.finderOptions())
	defer f.Close()
	return f.FromSource(ctx, "", []byte(code))
}

// SearchFile classifies a single file.
func SearchFile(ctx context.Context, path string, opts Options) (*Result, error) {
	f := inspection.NewFinder(opts.finderOptions())
	defer f.Close()

	ledger, err := f.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Result{Ledger: ledger, Files: []string{path}}, nil
}

// SearchDirectory walks root and classifies every .py file (and notebooks
// when enabled). Files that fail to parse are logged and skipped; in strict
// mode a *StrictError is returned together with the partial result after all
// files have been attempted.
func SearchDirectory(ctx context.Context, root string, opts Options) (*Result, error) {
	logger := opts.logger()

	scanOpts := scanner.DefaultOptions()
	scanOpts.Ignore = opts.Ignore
	scanOpts.IncludeNotebooks = opts.IncludeNotebooks
	scan, err := scanner.New(scanOpts).Scan(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	for _, path := range scan.Ignored {
		logger.Debug("ignoring file", "path", path)
	}

	ledgers := make([]*types.Ledger, len(scan.Files))
	errs := make([]error, len(scan.Files))

	workers := opts.Workers
	if workers > len(scan.Files) {
		workers = len(scan.Files)
	}
	if workers <= 1 {
		f := inspection.NewFinder(opts.finderOptions())
		defer f.Close()
		for i, file := range scan.Files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ledgers[i], errs[i] = inspectFile(ctx, f, file, opts)
		}
	} else if err := searchParallel(ctx, scan.Files, workers, opts, ledgers, errs); err != nil {
		return nil, err
	}

	res := &Result{Ignored: scan.Ignored}
	var parsed []*types.Ledger
	for i, file := range scan.Files {
		if errs[i] != nil {
			logger.Error("could not parse file", "path", file.FullPath, "error", errs[i])
			res.Skipped = append(res.Skipped, Skipped{Path: file.FullPath, Err: errs[i]})
			continue
		}
		res.Files = append(res.Files, file.FullPath)
		parsed = append(parsed, ledgers[i])
	}
	res.Ledger = Merge(parsed...)
	res.Ledger.Filename = root

	if len(res.Skipped) > 0 {
		logger.Warn(fmt.Sprintf("skipped %d/%d files", len(res.Skipped), len(scan.Files)))
		for i, s := range res.Skipped {
			logger.Warn(fmt.Sprintf("%d: %s", i, s.Path))
		}
		if opts.Strict {
			return res, &StrictError{Skipped: res.Skipped, Total: len(scan.Files)}
		}
	}
	return res, nil
}

// searchParallel fills ledgers and errs, one slot per file. Each worker
// checks a Finder out of a fixed pool since parsers are not goroutine safe.
func searchParallel(ctx context.Context, files []scanner.FileInfo, workers int, opts Options, ledgers []*types.Ledger, errs []error) error {
	pool := make(chan *inspection.Finder, workers)
	for range workers {
		pool <- inspection.NewFinder(opts.finderOptions())
	}
	defer func() {
		close(pool)
		for f := range pool {
			f.Close()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f := <-pool
			defer func() { pool <- f }()
			ledgers[i], errs[i] = inspectFile(gctx, f, file, opts)
			return nil
		})
	}
	return g.Wait()
}

func inspectFile(ctx context.Context, f *inspection.Finder, file scanner.FileInfo, opts Options) (*types.Ledger, error) {
	if file.Kind == scanner.KindNotebook {
		return notebookLedger(ctx, f, file.FullPath, opts.logger())
	}
	return f.ParseFile(ctx, file.FullPath)
}
