package validator

import "sort"

// DetectCycles finds cycles in a directed graph via depth-first search
// with a recursion stack. Each cycle is reported once, as the node path
// around it with the entry node repeated at the end
// (["a", "b", "a"] for a 2-cycle, ["a", "a"] for a self-loop).
//
// Node visit order is sorted, so the same graph always yields the same
// cycles in the same order.
func DetectCycles(graph map[string][]string) [][]string {
	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	const (
		white = 0 // unvisited
		grey  = 1 // on the recursion stack
		black = 2 // fully explored
	)
	color := make(map[string]int, len(graph))
	var stack []string
	var cycles [][]string

	var visit func(node string)
	visit = func(node string) {
		color[node] = grey
		stack = append(stack, node)

		next := append([]string(nil), graph[node]...)
		sort.Strings(next)
		for _, succ := range next {
			switch color[succ] {
			case white:
				visit(succ)
			case grey:
				// Back edge: the cycle is the stack suffix from succ.
				start := len(stack) - 1
				for start >= 0 && stack[start] != succ {
					start--
				}
				cycle := append([]string(nil), stack[start:]...)
				cycle = append(cycle, succ)
				cycles = append(cycles, cycle)
			}
		}

		stack = stack[:len(stack)-1]
		color[node] = black
	}

	for _, node := range nodes {
		if color[node] == white {
			visit(node)
		}
	}

	return cycles
}

// TopoSort returns a topological order of the graph's nodes, with ties
// broken by name so the order is deterministic. The graph must be
// acyclic (edge A -> B means A depends on B; B sorts before A).
func TopoSort(graph map[string][]string) []string {
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
