package tree

import "github.com/tarmac-trace/ttu/internal/arena"

// refTable is the in-memory reference-count overlay described in the
// Open Question decision recorded in DESIGN.md: the on-arena `refcount`
// field is written once (as 1) at node allocation and never rewritten in
// place afterwards, since a node below the high-water mark must stay
// byte-for-byte immutable (spec.md §4.B). Explicit multi-root sharing via
// CloneRoot/FreeRoot is instead tracked here, keyed by root offset, and
// never gates the COW fork decision in rewrite — that decision is driven
// solely by the high-water mark, which is what actually guarantees
// historical roots are never mutated in place.
type refTable map[arena.Offset]int32

// CloneRoot registers an additional logical owner of root, matching
// spec.md's "clone_tree(root) incrementing the root's refcount". The
// returned offset is identical to root: cloning does not allocate.
func (t *Tree[P, A]) CloneRoot(root arena.Offset) arena.Offset {
	if root == arena.Null {
		return root
	}
	if t.refs == nil {
		t.refs = make(refTable)
	}
	t.refs[root]++
	return root
}

// FreeRoot decrements root's logical owner count and, once it drops to
// zero additional owners, recursively walks the subtree decrementing
// children. Because the arena never reclaims bytes, this is bookkeeping
// only: it lets callers (notably internal/fold's per-view RAM trees) know
// when a root is logically dead, without implying any storage is reused.
func (t *Tree[P, A]) FreeRoot(root arena.Offset) {
	if root == arena.Null {
		return
	}
	if t.refs != nil && t.refs[root] > 0 {
		t.refs[root]--
		return
	}
	n := t.get(root)
	t.FreeRoot(n.lc)
	t.FreeRoot(n.rc)
}

// IsLive reports whether root still has at least one registered owner via
// CloneRoot (roots that were never cloned are always considered live,
// since their lifetime is managed by whoever holds the offset externally —
// e.g. internal/indexer's SeqOrderPayload.memory_root fields).
func (t *Tree[P, A]) IsLive(root arena.Offset) bool {
	if t.refs == nil {
		return true
	}
	return t.refs[root] >= 0
}
