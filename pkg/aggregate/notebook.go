package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/l3aro/go-depfinder/internal/log"
	"github.com/l3aro/go-depfinder/pkg/inspection"
	"github.com/l3aro/go-depfinder/pkg/types"
)

// cellSource accepts both the list-of-lines and the single string forms.
type cellSource []string

func (s *cellSource) UnmarshalJSON(data []byte) error {
	var lines []string
	if err := json.Unmarshal(data, &lines); err == nil {
		*s = lines
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	*s = []string{text}
	return nil
}

type notebookCell struct {
	CellType string     `json:"cell_type"`
	Source   cellSource `json:"source"`
	Input    cellSource `json:"input"` // nbformat 3
}

type notebook struct {
	Cells      []notebookCell `json:"cells"`
	Worksheets []struct {
		Cells []notebookCell `json:"cells"`
	} `json:"worksheets"`
}

// codeCells returns the source of every code cell in document order.
func codeCells(data []byte) ([]string, error) {
	var nb notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, fmt.Errorf("decoding notebook: %w", err)
	}

	cells := nb.Cells
	for _, ws := range nb.Worksheets {
		cells = append(cells, ws.Cells...)
	}

	var out []string
	for _, c := range cells {
		if c.CellType != "code" {
			continue
		}
		src := c.Source
		if len(src) == 0 {
			src = c.Input
		}
		out = append(out, strings.Join(src, ""))
	}
	return out, nil
}

// stripShellLines blanks IPython shell escapes and magics, which are not
// Python syntax.
func stripShellLines(code string) string {
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "!") || strings.HasPrefix(trimmed, "%") {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}

// notebookLedger classifies each code cell on its own and merges the results.
// Line numbers count from the first line of the first code cell.
func notebookLedger(ctx context.Context, f *inspection.Finder, path string, logger log.Logger) (*types.Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cells, err := codeCells(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ledgers := make([]*types.Ledger, 0, len(cells))
	offset := 0
	for i, cell := range cells {
		ledger, err := f.FromSource(ctx, path, []byte(stripShellLines(cell)))
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		ledgers = append(ledgers, shiftLines(ledger, offset))
		offset += strings.Count(cell, "\n") + 1
	}
	logger.Debug("inspected notebook", "path", path, "code_cells", len(cells))

	merged := Merge(ledgers...)
	merged.Filename = path
	return merged, nil
}

func shiftLines(l *types.Ledger, offset int) *types.Ledger {
	if offset == 0 {
		return l
	}
	imports := make(types.ImportMap, len(l.Imports))
	for name, occ := range l.Imports {
		for _, md := range occ {
			md.Line += offset
			imports.Add(name, md)
		}
	}
	l.Imports = imports
	return l
}

// SearchNotebook classifies the code cells of a Jupyter notebook.
func SearchNotebook(ctx context.Context, path string, opts Options) (*Result, error) {
	f := inspection.NewFinder(opts.finderOptions())
	defer f.Close()

	ledger, err := notebookLedger(ctx, f, path, opts.logger())
	if err != nil {
		return nil, err
	}
	return &Result{Ledger: ledger, Files: []string{path}}, nil
}
