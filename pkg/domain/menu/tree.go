package menu

import (
	"cmp"
	"slices"

	"github.com/openctemio/console/pkg/domain/shared"
)

// Node is a menu placed in a forest.
type Node struct {
	Menu     *Menu
	Depth    int
	Children []*Node
}

// Index is a parent-id index over a set of menus. Build it once per request
// and reuse it for lookups and subtree walks.
type Index struct {
	byID     map[shared.ID]*Menu
	children map[shared.ID][]shared.ID
}

// NewIndex indexes menus by id and by parent id.
func NewIndex(menus []*Menu) *Index {
	ix := &Index{
		byID:     make(map[shared.ID]*Menu, len(menus)),
		children: make(map[shared.ID][]shared.ID),
	}
	for _, m := range menus {
		ix.byID[m.ID()] = m
	}
	for _, m := range menus {
		if m.ParentID() == m.ID() {
			continue
		}
		ix.children[m.ParentID()] = append(ix.children[m.ParentID()], m.ID())
	}
	for parent := range ix.children {
		slices.SortFunc(ix.children[parent], ix.compareIDs)
	}
	return ix
}

// Get returns the indexed menu with the given id.
func (ix *Index) Get(id shared.ID) (*Menu, bool) {
	m, ok := ix.byID[id]
	return m, ok
}

// Len returns the number of indexed menus.
func (ix *Index) Len() int { return len(ix.byID) }

// Descendants returns every menu below id, breadth first. The walk never
// revisits a node, so corrupt parent cycles terminate.
func (ix *Index) Descendants(id shared.ID) []shared.ID {
	var out []shared.ID
	seen := shared.NewIDSet(id)
	queue := []shared.ID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range ix.children[cur] {
			if seen.Has(child) {
				continue
			}
			seen.Add(child)
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// WithDescendants expands ids with all of their descendants, keeping the
// given ids first and dropping duplicates.
func (ix *Index) WithDescendants(ids []shared.ID) []shared.ID {
	out := make([]shared.ID, 0, len(ids))
	out = append(out, ids...)
	for _, id := range ids {
		out = append(out, ix.Descendants(id)...)
	}
	return shared.UniqueIDs(out)
}

func (ix *Index) compareIDs(a, b shared.ID) int {
	ma, mb := ix.byID[a], ix.byID[b]
	if ma == nil || mb == nil {
		return cmp.Compare(a, b)
	}
	return compareMenus(ma, mb)
}

func compareMenus(a, b *Menu) int {
	if c := cmp.Compare(a.Sort(), b.Sort()); c != 0 {
		return c
	}
	return cmp.Compare(a.ID(), b.ID())
}

// BuildForest arranges menus into trees by parent id. A menu whose parent is
// not part of the input becomes a root. Siblings are ordered by sort then id.
// Members of a parent cycle are cut loose at their lowest id and promoted to
// roots so that every input menu appears exactly once.
func BuildForest(menus []*Menu) []*Node {
	arena := make([]Node, len(menus))
	pos := make(map[shared.ID]int, len(menus))
	for i, m := range menus {
		arena[i] = Node{Menu: m}
		pos[m.ID()] = i
	}

	parent := make([]int, len(menus))
	for i, m := range menus {
		parent[i] = -1
		if p, ok := pos[m.ParentID()]; ok && p != i && !m.IsRoot() {
			parent[i] = p
		}
	}

	order := make([]int, len(menus))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return compareMenus(menus[a], menus[b]) })

	kids := make([][]int, len(menus))
	var roots []int
	for _, i := range order {
		if parent[i] < 0 {
			roots = append(roots, i)
			continue
		}
		kids[parent[i]] = append(kids[parent[i]], i)
	}

	visited := make([]bool, len(menus))
	var attach func(i, depth int) *Node
	attach = func(i, depth int) *Node {
		visited[i] = true
		n := &arena[i]
		n.Depth = depth
		n.Children = nil
		for _, k := range kids[i] {
			if visited[k] {
				continue
			}
			n.Children = append(n.Children, attach(k, depth+1))
		}
		return n
	}

	forest := make([]*Node, 0, len(roots))
	for _, r := range roots {
		forest = append(forest, attach(r, 0))
	}

	// Whatever is left sits on a parent cycle.
	for _, i := range sortedByID(menus, visited) {
		if visited[i] {
			continue
		}
		forest = append(forest, attach(i, 0))
	}
	slices.SortStableFunc(forest, func(a, b *Node) int { return compareMenus(a.Menu, b.Menu) })
	return forest
}

func sortedByID(menus []*Menu, visited []bool) []int {
	var out []int
	for i := range menus {
		if !visited[i] {
			out = append(out, i)
		}
	}
	slices.SortFunc(out, func(a, b int) int { return cmp.Compare(menus[a].ID(), menus[b].ID()) })
	return out
}

// Walk visits every node depth first in display order.
func Walk(forest []*Node, fn func(*Node)) {
	for _, n := range forest {
		fn(n)
		Walk(n.Children, fn)
	}
}

// CountNodes returns the number of nodes in a forest.
func CountNodes(forest []*Node) int {
	total := 0
	Walk(forest, func(*Node) { total++ })
	return total
}
