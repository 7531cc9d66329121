package engine

import (
	"fmt"
	"sort"
	"strings"
)

// DependencySource supplies sections and their dependency sets. The config
// model satisfies this: Uses merges explicitly declared dependencies with
// sections referenced through interpolation.
type DependencySource interface {
	Sections() []string
	Uses(section string) ([]string, error)
}

// GraphBuilder builds the directed dependency graph over configuration
// sections and produces a deterministic topological execution order.
type GraphBuilder struct {
	// deps maps a section to the sections it must follow
	deps map[string][]string

	// dependents maps a section to the sections that must follow it
	dependents map[string][]string

	// inDegree tracks the number of unsatisfied dependencies per section
	inDegree map[string]int
}

// NewGraphBuilder creates an empty graph builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
		inDegree:   make(map[string]int),
	}
}

// Build collects edges from src and returns a total order in which every
// dependency precedes its dependents. Ties between independent sections are
// broken lexicographically so the order is reproducible for a given input.
func (b *GraphBuilder) Build(src DependencySource) ([]string, error) {
	sections := src.Sections()
	for _, s := range sections {
		b.deps[s] = nil
		b.dependents[s] = nil
		b.inDegree[s] = 0
	}

	for _, s := range sections {
		uses, err := src.Uses(s)
		if err != nil {
			return nil, NewConfigError("resolving dependencies", err).WithSection(s)
		}
		for _, dep := range uses {
			if dep == s {
				// Self-references are lookup sugar, not ordering edges.
				continue
			}
			if _, known := b.inDegree[dep]; !known {
				return nil, NewConfigError(
					fmt.Sprintf("section depends on undeclared section %q", dep), nil,
				).WithSection(s)
			}
			b.deps[s] = append(b.deps[s], dep)
			b.dependents[dep] = append(b.dependents[dep], s)
			b.inDegree[s]++
		}
	}

	if cycle := b.findCycle(sections); cycle != nil {
		return nil, NewConfigError(
			fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")), nil,
		).WithCode(ErrCodeCycle)
	}

	return b.order(sections)
}

// findCycle runs a depth-first search and returns the members of one cycle,
// or nil when the graph is acyclic.
func (b *GraphBuilder) findCycle(sections []string) []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var walk func(node string, path []string) []string
	walk = func(node string, path []string) []string {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range b.dependents[node] {
			if !visited[next] {
				if cycle := walk(next, path); cycle != nil {
					return cycle
				}
			} else if onStack[next] {
				for i, n := range path {
					if n == next {
						return append(path[i:], next)
					}
				}
			}
		}
		onStack[node] = false
		return nil
	}

	// Deterministic starting points keep the reported cycle stable.
	starts := append([]string(nil), sections...)
	sort.Strings(starts)
	for _, s := range starts {
		if !visited[s] {
			if cycle := walk(s, nil); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// order runs Kahn's algorithm with a sorted ready set.
func (b *GraphBuilder) order(sections []string) ([]string, error) {
	inDegree := make(map[string]int, len(b.inDegree))
	for s, d := range b.inDegree {
		inDegree[s] = d
	}

	var ready []string
	for _, s := range sections {
		if inDegree[s] == 0 {
			ready = append(ready, s)
		}
	}
	sort.Strings(ready)

	out := make([]string, 0, len(sections))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		out = append(out, node)

		for _, next := range b.dependents[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		sort.Strings(ready)
	}

	// Unreachable once findCycle has passed; kept as an invariant check.
	if len(out) != len(sections) {
		return nil, NewInternalError("topological order did not cover all sections", nil)
	}
	return out, nil
}
