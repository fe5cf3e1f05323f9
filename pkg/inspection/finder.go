// Package inspection finds the imports of a Python source file and
// classifies each as required, questionable, builtin or relative.
package inspection

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/l3aro/go-depfinder/internal/log"
	"github.com/l3aro/go-depfinder/pkg/stdlib"
	"github.com/l3aro/go-depfinder/pkg/types"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Options configures a Finder.
type Options struct {
	// Builtins is the standard-library name set. Defaults to stdlib.Default().
	Builtins types.Set
	// Namespaces holds dotted names that are distributions on their own.
	Namespaces types.Set
	// CustomNamespaces are caller supplied namespaces, see NewNamer.
	CustomNamespaces []string
	// Policy picks the questionable constructs. nil means DefaultPolicy.
	Policy *Policy
	Logger log.Logger
}

// Finder parses Python source with tree-sitter and builds a Ledger of its
// imports. A Finder owns a parser and must not be used concurrently.
type Finder struct {
	parser   *sitter.Parser
	namer    *Namer
	builtins types.Set
	policy   Policy
	logger   log.Logger
}

// NewFinder creates a Finder.
func NewFinder(opts Options) *Finder {
	builtins := opts.Builtins
	if builtins == nil {
		builtins = stdlib.Default()
	}
	policy := DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default().Named("inspection")
	}

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	return &Finder{
		parser:   parser,
		namer:    NewNamer(opts.Namespaces, builtins, opts.CustomNamespaces),
		builtins: builtins,
		policy:   policy,
		logger:   logger,
	}
}

// Close releases the parser.
func (f *Finder) Close() {
	f.parser.Close()
}

// ParseFile reads and classifies a file.
func (f *Finder) ParseFile(ctx context.Context, path string) (*types.Ledger, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return f.FromSource(ctx, path, src)
}

// FromSource classifies src. Lines starting with '%' (notebook magics) are
// blanked first. A source that fails to parse is retried once without a
// leading UTF-8 byte-order mark.
func (f *Finder) FromSource(ctx context.Context, filename string, src []byte) (*types.Ledger, error) {
	src = stripMagics(src)

	tree, err := f.parse(ctx, filename, src)
	if err != nil && bytes.HasPrefix(src, utf8BOM) {
		f.logger.Debug("retrying without byte-order mark", "file", filename)
		src = src[len(utf8BOM):]
		tree, err = f.parse(ctx, filename, src)
	}
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	v := &visitor{
		finder:  f,
		src:     src,
		ledger:  types.NewLedger(filename),
		tracker: NewTracker(f.policy),
	}
	v.walk(tree.RootNode())
	return v.ledger, nil
}

func (f *Finder) parse(ctx context.Context, filename string, src []byte) (*sitter.Tree, error) {
	tree, err := f.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	root := tree.RootNode()
	if root.HasError() {
		line := firstErrorLine(root)
		tree.Close()
		return nil, &ParseError{Filename: filename, Line: line, Err: ErrSyntax}
	}
	return tree, nil
}

// firstErrorLine returns the 1-based line of the first ERROR or MISSING node.
func firstErrorLine(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	if n.Type() == "ERROR" || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.HasError() {
			if line := firstErrorLine(child); line > 0 {
				return line
			}
		}
	}
	return int(n.StartPoint().Row) + 1
}

func stripMagics(src []byte) []byte {
	if !bytes.Contains(src, []byte("%")) {
		return src
	}
	lines := bytes.Split(src, []byte("\n"))
	for i, line := range lines {
		if bytes.HasPrefix(line, []byte("%")) {
			lines[i] = nil
		}
	}
	return bytes.Join(lines, []byte("\n"))
}

// visitor holds the state of one walk.
type visitor struct {
	finder  *Finder
	src     []byte
	ledger  *types.Ledger
	tracker *Tracker
}

func (v *visitor) walk(n *sitter.Node) {
	if n == nil {
		return
	}

	switch n.Type() {
	case "import_statement":
		v.visitImport(n)
		return
	case "import_from_statement", "future_import_statement":
		v.visitImportFrom(n)
		return
	}

	if c, ok := constructOf(n); ok && v.tracker.Enter(c) {
		defer v.tracker.Exit()
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		v.walk(n.Child(i))
	}
}

// constructOf maps a tree-sitter node to the construct it opens.
func constructOf(n *sitter.Node) (types.Construct, bool) {
	switch n.Type() {
	case "try_statement":
		return types.ConstructTry, true
	case "case_clause":
		return types.ConstructMatchCase, true
	case "function_definition":
		if isAsync(n) {
			return types.ConstructAsyncFunctionDef, true
		}
		return types.ConstructFunctionDef, true
	case "if_statement":
		return types.ConstructIf, true
	case "while_statement":
		return types.ConstructWhile, true
	case "for_statement":
		if isAsync(n) {
			return types.ConstructAsyncFor, true
		}
		return types.ConstructFor, true
	case "class_definition":
		return types.ConstructClassDef, true
	}
	return 0, false
}

func isAsync(n *sitter.Node) bool {
	first := n.Child(0)
	return first != nil && first.Type() == "async"
}

// visitImport handles `import a.b, c as d`.
func (v *visitor) visitImport(n *sitter.Node) {
	v.record(n)

	names := types.NewSet()
	for _, literal := range importedNames(n, v.src) {
		names.Add(v.finder.namer.TopLevel(literal))
	}
	for _, name := range names.Sorted() {
		v.classify(name)
	}
}

// visitImportFrom handles `from x import y`, `from .x import y` and
// `from __future__ import y`. `from . import y` names no module and is skipped.
func (v *visitor) visitImportFrom(n *sitter.Node) {
	module, level := fromModule(n, v.src)
	if module == "" {
		return
	}
	name := v.finder.namer.TopLevel(module)
	if level > 0 {
		v.ledger.Add(types.Relative, name)
		return
	}
	v.record(n)
	v.classify(name)
}

func (v *visitor) classify(name string) {
	switch {
	case v.finder.builtins.Has(name):
		v.ledger.Add(types.Builtin, name)
	case v.tracker.Questionable():
		v.ledger.Add(types.Questionable, name)
	default:
		v.ledger.Add(types.Required, name)
	}
}

// record stores the occurrence under every literal module it names.
func (v *visitor) record(n *sitter.Node) {
	md := types.ImportMetadata{
		Filename:  v.ledger.Filename,
		Line:      int(n.StartPoint().Row) + 1,
		ExactLine: strings.Join(strings.Fields(n.Content(v.src)), " "),
		Flags:     v.tracker.Flags(),
	}

	switch n.Type() {
	case "import_statement":
		md.Kind = types.ImportNormal
		md.Modules = types.NewSet(importedNames(n, v.src)...).Sorted()
	case "import_from_statement", "future_import_statement":
		md.Kind = types.ImportFrom
		module, level := fromModule(n, v.src)
		md.Level = level
		if module != "" {
			md.Modules = []string{module}
		}
	default:
		panic(fmt.Sprintf("inspection: cannot record %q node as an import", n.Type()))
	}

	for _, name := range md.Modules {
		v.ledger.Imports.Add(name, md)
	}
}

// importedNames returns the literal dotted names of an import_statement.
func importedNames(n *sitter.Node, src []byte) []string {
	var names []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			names = append(names, dottedName(child, src))
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				names = append(names, dottedName(name, src))
			}
		}
	}
	return names
}

// fromModule returns the module of a from-import and its relative level.
func fromModule(n *sitter.Node, src []byte) (string, int) {
	if n.Type() == "future_import_statement" {
		return "__future__", 0
	}

	mod := n.ChildByFieldName("module_name")
	if mod == nil {
		return "", 0
	}
	if mod.Type() == "dotted_name" {
		return dottedName(mod, src), 0
	}

	// relative_import: import_prefix followed by an optional dotted_name.
	level, module := 0, ""
	for i := 0; i < int(mod.ChildCount()); i++ {
		child := mod.Child(i)
		switch child.Type() {
		case "import_prefix":
			level = strings.Count(child.Content(src), ".")
		case "dotted_name":
			module = dottedName(child, src)
		}
	}
	return module, level
}

// dottedName joins the identifiers of a dotted_name, dropping any whitespace
// or comments between segments.
func dottedName(n *sitter.Node, src []byte) string {
	parts := make([]string, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "identifier" {
			parts = append(parts, child.Content(src))
		}
	}
	if len(parts) == 0 {
		return n.Content(src)
	}
	return strings.Join(parts, ".")
}
