package schema

// Module is one navigation group of the portal menu as served by the
// backend: `[{label, items:[{label, icon, to, entity, items?}]}]`.
type Module struct {
	Label string     `json:"label"`
	Items []MenuItem `json:"items"`
}

// MenuItem is one entry of a module; nested groups carry Items.
type MenuItem struct {
	Label  string     `json:"label"`
	Icon   string     `json:"icon,omitempty"`
	To     string     `json:"to,omitempty"`
	Entity string     `json:"entity,omitempty"`
	Items  []MenuItem `json:"items,omitempty"`
}

// MaxMenuDepth bounds arena construction; deeper subtrees are dropped.
const MaxMenuDepth = 16

// MenuNode is one entry of the flattened navigation arena. Parent/child
// links are indices into the arena, never pointers into nested structures.
type MenuNode struct {
	Label    string
	Icon     string
	To       string
	Entity   string
	Parent   int // -1 for roots
	Children []int
	Depth    int
}

// MenuArena is the portal menu flattened into an indexed node arena, built
// and traversed iteratively.
type MenuArena struct {
	Nodes []MenuNode
	Roots []int
}

type menuFrame struct {
	item   MenuItem
	parent int
	depth  int
}

// BuildMenuArena flattens served modules into an arena. Traversal is an
// explicit stack; subtrees beyond MaxMenuDepth are dropped.
func BuildMenuArena(modules []Module) *MenuArena {
	arena := &MenuArena{}

	var stack []menuFrame
	for i := len(modules) - 1; i >= 0; i-- {
		m := modules[i]
		idx := len(arena.Nodes)
		arena.Nodes = append(arena.Nodes, MenuNode{
			Label:  m.Label,
			Parent: -1,
			Depth:  0,
		})
		arena.Roots = append(arena.Roots, idx)
		for j := len(m.Items) - 1; j >= 0; j-- {
			stack = append(stack, menuFrame{item: m.Items[j], parent: idx, depth: 1})
		}
	}
	// Roots were appended in reverse; restore declaration order.
	for l, r := 0, len(arena.Roots)-1; l < r; l, r = l+1, r-1 {
		arena.Roots[l], arena.Roots[r] = arena.Roots[r], arena.Roots[l]
	}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if frame.depth > MaxMenuDepth {
			continue
		}

		idx := len(arena.Nodes)
		arena.Nodes = append(arena.Nodes, MenuNode{
			Label:  frame.item.Label,
			Icon:   frame.item.Icon,
			To:     frame.item.To,
			Entity: frame.item.Entity,
			Parent: frame.parent,
			Depth:  frame.depth,
		})
		arena.Nodes[frame.parent].Children = append(arena.Nodes[frame.parent].Children, idx)

		for j := len(frame.item.Items) - 1; j >= 0; j-- {
			stack = append(stack, menuFrame{item: frame.item.Items[j], parent: idx, depth: frame.depth + 1})
		}
	}

	return arena
}

// Walk visits every node depth-first in declaration order.
func (a *MenuArena) Walk(visit func(idx int, node MenuNode)) {
	stack := make([]int, 0, len(a.Roots))
	for i := len(a.Roots) - 1; i >= 0; i-- {
		stack = append(stack, a.Roots[i])
	}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(idx, a.Nodes[idx])
		children := a.Nodes[idx].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// FindEntity returns the first node navigating to the given entity, or -1.
func (a *MenuArena) FindEntity(entity string) int {
	found := -1
	a.Walk(func(idx int, node MenuNode) {
		if found == -1 && node.Entity == entity {
			found = idx
		}
	})
	return found
}
