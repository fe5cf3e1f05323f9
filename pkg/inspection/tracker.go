package inspection

import "github.com/l3aro/go-depfinder/pkg/types"

// Policy is the set of constructs that make an enclosed import questionable.
type Policy struct {
	kinds types.Flags
}

// NewPolicy returns a policy covering exactly kinds.
func NewPolicy(kinds ...types.Construct) Policy {
	var p Policy
	for _, k := range kinds {
		p.kinds = p.kinds.With(k)
	}
	return p
}

// DefaultPolicy covers every construct except class bodies.
func DefaultPolicy() Policy {
	return NewPolicy(
		types.ConstructTry,
		types.ConstructMatchCase,
		types.ConstructFunctionDef,
		types.ConstructAsyncFunctionDef,
		types.ConstructIf,
		types.ConstructWhile,
		types.ConstructFor,
		types.ConstructAsyncFor,
	)
}

// Includes reports whether c is tracked by the policy.
func (p Policy) Includes(c types.Construct) bool {
	return p.kinds.Has(c)
}

// Constructs lists the tracked constructs.
func (p Policy) Constructs() []types.Construct {
	return p.kinds.Constructs()
}

// Tracker is a stack of the enclosing constructs at the current point of a
// tree walk. Enter and Exit must be strictly paired.
type Tracker struct {
	policy Policy
	stack  []types.Construct
}

// NewTracker creates an empty tracker for policy.
func NewTracker(policy Policy) *Tracker {
	return &Tracker{policy: policy}
}

// Enter pushes a frame for c if the policy tracks it and reports whether a
// frame was pushed. Callers Exit only when Enter returned true.
func (t *Tracker) Enter(c types.Construct) bool {
	if !t.policy.Includes(c) {
		return false
	}
	t.stack = append(t.stack, c)
	return true
}

// Exit pops the innermost frame.
func (t *Tracker) Exit() {
	if len(t.stack) == 0 {
		panic("inspection: Exit without matching Enter")
	}
	t.stack = t.stack[:len(t.stack)-1]
}

// Questionable is true while at least one frame is active.
func (t *Tracker) Questionable() bool {
	return len(t.stack) > 0
}

// Flags is the union of all active frames.
func (t *Tracker) Flags() types.Flags {
	var f types.Flags
	for _, c := range t.stack {
		f = f.With(c)
	}
	return f
}

// Depth is the number of active frames.
func (t *Tracker) Depth() int {
	return len(t.stack)
}
