package tree

import "github.com/tarmac-trace/ttu/internal/arena"

// Order selects traversal order for Walk, mirroring disktree.hh's WalkOrder.
type Order int

const (
	PreOrder Order = iota
	InOrder
	PostOrder
)

// Visitor is invoked once per node during a Walk.
type Visitor[P any, A any] func(payload P, ann A, offset arena.Offset)

// Walk traverses the subtree rooted at root in the given order.
func (t *Tree[P, A]) Walk(root arena.Offset, order Order, visit Visitor[P, A]) {
	if root == arena.Null {
		return
	}
	n := t.get(root)
	if n.lc != arena.Null && order != PreOrder {
		t.Walk(n.lc, order, visit)
	}
	if n.rc != arena.Null && order == PostOrder {
		t.Walk(n.rc, order, visit)
	}
	visit(n.payload, n.annotation, root)
	if n.lc != arena.Null && order == PreOrder {
		t.Walk(n.lc, order, visit)
	}
	if n.rc != arena.Null && order != PostOrder {
		t.Walk(n.rc, order, visit)
	}
}

// FindBufferLimit returns the leftmost and rightmost payloads in the tree
// (spec.md §4.F "find_buffer_limit"), i.e. the min and max by Compare order.
func (t *Tree[P, A]) FindBufferLimit(root arena.Offset) (min, max P, ok bool) {
	if root == arena.Null {
		return min, max, false
	}
	off := root
	for {
		n := t.get(off)
		if n.lc == arena.Null {
			min = n.payload
			break
		}
		off = n.lc
	}
	off = root
	for {
		n := t.get(off)
		if n.rc == arena.Null {
			max = n.payload
			break
		}
		off = n.rc
	}
	return min, max, true
}
