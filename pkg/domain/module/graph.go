package module

import "slices"

// Graph is the dependency graph of a set of registered modules, keyed by name.
type Graph struct {
	deps map[string][]string
}

// NewGraph builds the dependency graph of modules.
func NewGraph(modules []*Module) *Graph {
	g := &Graph{deps: make(map[string][]string, len(modules))}
	for _, m := range modules {
		g.deps[m.Name()] = m.Dependencies()
	}
	return g
}

// Has reports whether a module with that name is registered.
func (g *Graph) Has(name string) bool {
	_, ok := g.deps[name]
	return ok
}

// Missing returns the direct dependencies of name that do not satisfy
// present, in declaration order.
func (g *Graph) Missing(name string, present func(dep string) bool) []string {
	var missing []string
	for _, dep := range g.deps[name] {
		if !present(dep) {
			missing = append(missing, dep)
		}
	}
	return missing
}

// Unregistered returns the direct dependencies of name that are not in the
// registry at all.
func (g *Graph) Unregistered(name string) []string {
	return g.Missing(name, g.Has)
}

// Cycle returns a dependency cycle reachable from name, starting and ending
// at the same module, or nil when there is none.
func (g *Graph) Cycle(name string) []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.deps))
	var stack []string
	var found []string

	var visit func(n string) bool
	visit = func(n string) bool {
		color[n] = grey
		stack = append(stack, n)
		for _, dep := range g.deps[n] {
			switch color[dep] {
			case grey:
				start := slices.Index(stack, dep)
				found = append(slices.Clone(stack[start:]), dep)
				return true
			case white:
				if g.Has(dep) && visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return false
	}

	if !g.Has(name) {
		return nil
	}
	visit(name)
	return found
}
