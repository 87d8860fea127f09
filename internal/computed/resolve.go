package computed

import (
	"fmt"
	"sort"

	"github.com/strataengine/strata/internal/expr"
	"github.com/strataengine/strata/internal/ir"
)

// Resolve evaluates every computed field over the given data and
// returns the full computed map. Evaluation order is a topological
// order of the declared dependency graph, so a field that reads another
// computed field sees that field's fresh value.
func Resolve(spec *ir.ComputedSpec, data map[string]any, meta map[string]any) (map[string]any, error) {
	if spec == nil || len(spec.Fields) == 0 {
		return map[string]any{}, nil
	}

	order := EvalOrder(spec)
	out := make(map[string]any, len(spec.Fields))
	ctx := expr.Context{
		State:    data,
		Computed: out,
		Meta:     meta,
	}

	for _, name := range order {
		field := spec.Fields[name]
		v, err := expr.Evaluate(field.Expr, ctx)
		if err != nil {
			return nil, fmt.Errorf("computed field %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// EvalOrder returns the field names in dependency order, with ties
// broken alphabetically so the order is stable across runs.
func EvalOrder(spec *ir.ComputedSpec) []string {
	graph := make(map[string][]string, len(spec.Fields))
	for name, field := range spec.Fields {
		var deps []string
		for _, dep := range field.Deps {
			p := ir.Path(dep)
			if p.Root() != ir.NSComputed {
				continue
			}
			rest := p.Rest()
			if len(rest) == 0 {
				continue
			}
			deps = append(deps, rest[0])
		}
		graph[name] = deps
	}
	return topoSort(graph)
}

func topoSort(graph map[string][]string) []string {
	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	visited := make(map[string]bool, len(graph))
	order := make([]string, 0, len(graph))

	var visit func(node string)
	visit = func(node string) {
		if visited[node] {
			return
		}
		visited[node] = true
		deps := append([]string(nil), graph[node]...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, declared := graph[dep]; declared {
				visit(dep)
			}
		}
		order = append(order, node)
	}

	for _, node := range nodes {
		visit(node)
	}
	return order
}

