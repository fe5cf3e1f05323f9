package inspection

import (
	"strings"

	"github.com/l3aro/go-depfinder/pkg/types"
)

// Namer reduces dotted import names to the name of the distribution that
// provides them.
type Namer struct {
	namespaces types.Set
	builtins   types.Set
	custom     types.Set
	wildcards  types.Set
}

// NewNamer builds a Namer. A custom namespace written "foo.*" keeps one
// segment below foo, so foo.bar.baz reduces to foo.bar.
func NewNamer(namespaces, builtins types.Set, custom []string) *Namer {
	n := &Namer{
		namespaces: namespaces,
		builtins:   builtins,
		custom:     types.NewSet(),
		wildcards:  types.NewSet(),
	}
	for _, c := range custom {
		c = strings.TrimSpace(c)
		if prefix, ok := strings.CutSuffix(c, ".*"); ok {
			n.wildcards.Add(prefix)
			continue
		}
		if c != "" {
			n.custom.Add(c)
		}
	}
	return n
}

// TopLevel strips trailing segments from name until it is a known namespace
// package, a custom namespace, a standard-library name, or has no dots left.
// The result is always a prefix of name.
func (n *Namer) TopLevel(name string) string {
	for {
		if n.isStop(name) {
			return name
		}
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return name
		}
		if n.wildcards.Has(name[:i]) {
			return name
		}
		name = name[:i]
	}
}

func (n *Namer) isStop(name string) bool {
	return n.namespaces.Has(name) || n.custom.Has(name) || n.builtins.Has(name)
}

// TopLevelName is a one-off form of Namer.TopLevel.
func TopLevelName(name string, namespaces, builtins types.Set, custom []string) string {
	return NewNamer(namespaces, builtins, custom).TopLevel(name)
}
