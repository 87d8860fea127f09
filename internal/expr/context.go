package expr

import (
	"github.com/strataengine/strata/internal/ir"
)

// Context is the read-only evaluation environment. The maps are never
// written by the evaluator; the flow interpreter swaps in its working
// data copy as State between patches.
type Context struct {
	State    map[string]any
	Computed map[string]any
	Input    map[string]any
	Meta     map[string]any

	item    any
	hasItem bool
}

// WithItem returns a copy of the context with the item slot bound.
// Collection operators bind each element for the duration of its
// predicate/mapper evaluation.
func (c Context) WithItem(v any) Context {
	c.item = v
	c.hasItem = true
	return c
}

// Resolve walks a path against the context's namespaces. The boolean is
// false for a missing path; the evaluator maps that to null.
func (c Context) Resolve(p ir.Path) (any, bool) {
	rest := p.Rest()
	switch p.Root() {
	case ir.NSState:
		return resolveIn(c.State, rest)
	case ir.NSComputed:
		return resolveIn(c.Computed, rest)
	case ir.NSInput:
		return resolveIn(c.Input, rest)
	case ir.NSMeta:
		return resolveIn(c.Meta, rest)
	case ir.NSItem:
		if !c.hasItem {
			return nil, false
		}
		if len(rest) == 0 {
			return c.item, true
		}
		return ir.ValueAt(c.item, rest)
	default:
		return nil, false
	}
}

func resolveIn(ns map[string]any, rest []string) (any, bool) {
	if ns == nil || len(rest) == 0 {
		return nil, false
	}
	return ir.ValueAt(ns, rest)
}
