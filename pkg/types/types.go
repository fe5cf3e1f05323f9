// Package types defines the core data structures shared by the import finder,
// the aggregator and the package resolver.
package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Bucket names a classification bucket.
type Bucket string

const (
	Required     Bucket = "required"
	Questionable Bucket = "questionable"
	Builtin      Bucket = "builtin"
	Relative     Bucket = "relative"

	// Only produced by the package resolver.
	RequiredNoMatch     Bucket = "required no match"
	QuestionableNoMatch Bucket = "questionable no match"
)

// ClassificationBuckets lists the buckets produced by the import finder, in display order.
var ClassificationBuckets = []Bucket{Required, Questionable, Builtin, Relative}

// ReportBuckets lists the buckets produced by the package resolver, in display order.
var ReportBuckets = []Bucket{Required, Questionable, Builtin, QuestionableNoMatch, RequiredNoMatch}

// ImportKind distinguishes the two import statement shapes.
type ImportKind int

const (
	ImportUnset ImportKind = iota
	ImportNormal
	ImportFrom
)

func (k ImportKind) String() string {
	switch k {
	case ImportNormal:
		return "import"
	case ImportFrom:
		return "from"
	default:
		return "unset"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ImportKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Construct is a syntactic construct that can enclose an import.
type Construct uint8

const (
	ConstructTry Construct = iota
	ConstructMatchCase
	ConstructFunctionDef
	ConstructAsyncFunctionDef
	ConstructIf
	ConstructWhile
	ConstructFor
	ConstructAsyncFor
	ConstructClassDef

	numConstructs
)

var constructNames = [numConstructs]string{
	ConstructTry:              "try",
	ConstructMatchCase:        "match_case",
	ConstructFunctionDef:      "function_def",
	ConstructAsyncFunctionDef: "async_function_def",
	ConstructIf:               "if",
	ConstructWhile:            "while",
	ConstructFor:              "for",
	ConstructAsyncFor:         "async_for",
	ConstructClassDef:         "class_def",
}

func (c Construct) String() string {
	if c < numConstructs {
		return constructNames[c]
	}
	return fmt.Sprintf("construct(%d)", uint8(c))
}

// AllConstructs returns every known construct kind.
func AllConstructs() []Construct {
	out := make([]Construct, 0, numConstructs)
	for c := Construct(0); c < numConstructs; c++ {
		out = append(out, c)
	}
	return out
}

// ParseConstruct maps a config name such as "try" or "async_for" to a Construct.
func ParseConstruct(name string) (Construct, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c := Construct(0); c < numConstructs; c++ {
		if constructNames[c] == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown construct %q", name)
}

// Flags is the set of enclosing constructs active at an import.
type Flags uint16

// With returns f with c set.
func (f Flags) With(c Construct) Flags {
	return f | 1<<c
}

// Has reports whether c is set.
func (f Flags) Has(c Construct) bool {
	return f&(1<<c) != 0
}

// Any reports whether any construct is set.
func (f Flags) Any() bool {
	return f != 0
}

// Constructs returns the set constructs in declaration order.
func (f Flags) Constructs() []Construct {
	var out []Construct
	for c := Construct(0); c < numConstructs; c++ {
		if f.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the set construct names.
func (f Flags) Names() []string {
	names := make([]string, 0)
	for _, c := range f.Constructs() {
		names = append(names, c.String())
	}
	return names
}

// MarshalJSON renders the flags as a list of construct names.
func (f Flags) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Names())
}

// MarshalYAML renders the flags as a list of construct names.
func (f Flags) MarshalYAML() (interface{}, error) {
	return f.Names(), nil
}

// Location identifies one import occurrence inside a project.
type Location struct {
	Filename string `json:"filename" yaml:"filename"`
	Line     int    `json:"line" yaml:"line"`
}

// ImportMetadata describes a single import statement.
type ImportMetadata struct {
	Filename  string     `json:"filename" yaml:"filename"`
	Line      int        `json:"line" yaml:"line"`
	ExactLine string     `json:"exact_line" yaml:"exact_line"`
	Kind      ImportKind `json:"import_type" yaml:"import_type"`
	Level     int        `json:"level" yaml:"level"`
	Modules   []string   `json:"imported_modules" yaml:"imported_modules"`
	Flags     Flags      `json:"flags" yaml:"flags"`
}

// Location returns the (file, line) key of the occurrence.
func (m ImportMetadata) Location() Location {
	return Location{Filename: m.Filename, Line: m.Line}
}

// ImportMap maps a literal imported name to its occurrences.
type ImportMap map[string]map[Location]ImportMetadata

// Add records md under name. Existing entries are kept.
func (m ImportMap) Add(name string, md ImportMetadata) {
	occ, ok := m[name]
	if !ok {
		occ = make(map[Location]ImportMetadata)
		m[name] = occ
	}
	loc := md.Location()
	if _, exists := occ[loc]; !exists {
		occ[loc] = md
	}
}

// Names returns the imported names in sorted order.
func (m ImportMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set is an unordered collection of names.
type Set map[string]struct{}

// NewSet builds a set from names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts name.
func (s Set) Add(name string) {
	s[name] = struct{}{}
}

// Has reports whether name is present.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Union adds every member of other to s.
func (s Set) Union(other Set) {
	for n := range other {
		s[n] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Ledger is the classification of one file (or a merge of many).
type Ledger struct {
	Filename string
	Buckets  map[Bucket]Set
	// Imports keys every non-relative occurrence by the literal module name.
	Imports ImportMap
}

// NewLedger returns an empty ledger for filename.
func NewLedger(filename string) *Ledger {
	l := &Ledger{
		Filename: filename,
		Buckets:  make(map[Bucket]Set, len(ClassificationBuckets)),
		Imports:  make(ImportMap),
	}
	for _, b := range ClassificationBuckets {
		l.Buckets[b] = make(Set)
	}
	return l
}

// Add files name under bucket b.
func (l *Ledger) Add(b Bucket, name string) {
	set, ok := l.Buckets[b]
	if !ok {
		set = make(Set)
		l.Buckets[b] = set
	}
	set.Add(name)
}

// Bucket returns the names in b; never nil.
func (l *Ledger) Bucket(b Bucket) Set {
	if set, ok := l.Buckets[b]; ok {
		return set
	}
	return Set{}
}

// Describe returns the non-empty buckets as sorted name lists.
func (l *Ledger) Describe() map[string][]string {
	out := make(map[string][]string)
	for b, set := range l.Buckets {
		if len(set) > 0 {
			out[string(b)] = set.Sorted()
		}
	}
	return out
}
