package tree

import "github.com/tarmac-trace/ttu/internal/arena"

// Find returns the payload whose key compares equal to keyfinder, if any.
func (t *Tree[P, A]) Find(root arena.Offset, keyfinder KeyComparable[P]) (P, bool) {
	off := root
	for off != arena.Null {
		n := t.get(off)
		cmp := keyfinder.Compare(n.payload)
		if cmp == 0 {
			return n.payload, true
		} else if cmp < 0 {
			off = n.lc
		} else {
			off = n.rc
		}
	}
	var zero P
	return zero, false
}

// FindLeftmost returns the first (leftmost) of possibly several payloads
// comparing equal to keyfinder under a relaxed ordering — used when P's
// Compare is a tie-breaking total order but callers search by a coarser
// KeyComparable (spec.md §4.B).
func (t *Tree[P, A]) FindLeftmost(root arena.Offset, keyfinder KeyComparable[P]) (P, bool) {
	var found P
	var ok bool
	t.findLeftmostMain(root, keyfinder, &found, &ok)
	return found, ok
}

func (t *Tree[P, A]) findLeftmostMain(off arena.Offset, keyfinder KeyComparable[P], found *P, ok *bool) bool {
	if off == arena.Null {
		return false
	}
	n := t.get(off)
	cmp := keyfinder.Compare(n.payload)
	if cmp == 0 {
		if !t.findLeftmostMain(n.lc, keyfinder, found, ok) {
			*found, *ok = n.payload, true
		}
		return true
	} else if cmp < 0 {
		return t.findLeftmostMain(n.lc, keyfinder, found, ok)
	}
	return t.findLeftmostMain(n.rc, keyfinder, found, ok)
}

// FindRightmost is the mirror of FindLeftmost.
func (t *Tree[P, A]) FindRightmost(root arena.Offset, keyfinder KeyComparable[P]) (P, bool) {
	var found P
	var ok bool
	t.findRightmostMain(root, keyfinder, &found, &ok)
	return found, ok
}

func (t *Tree[P, A]) findRightmostMain(off arena.Offset, keyfinder KeyComparable[P], found *P, ok *bool) bool {
	if off == arena.Null {
		return false
	}
	n := t.get(off)
	cmp := keyfinder.Compare(n.payload)
	if cmp == 0 {
		if !t.findRightmostMain(n.rc, keyfinder, found, ok) {
			*found, *ok = n.payload, true
		}
		return true
	} else if cmp < 0 {
		return t.findRightmostMain(n.lc, keyfinder, found, ok)
	}
	return t.findRightmostMain(n.rc, keyfinder, found, ok)
}

// Succ returns the strict successor of keyfinder: the smallest payload
// comparing greater than it.
func (t *Tree[P, A]) Succ(root arena.Offset, keyfinder KeyComparable[P]) (P, bool) {
	var found P
	var ok bool
	ok = t.predsuccMain(root, keyfinder, &found, +1)
	return found, ok
}

// Pred returns the strict predecessor of keyfinder: the largest payload
// comparing less than it.
func (t *Tree[P, A]) Pred(root arena.Offset, keyfinder KeyComparable[P]) (P, bool) {
	var found P
	var ok bool
	ok = t.predsuccMain(root, keyfinder, &found, -1)
	return found, ok
}

func (t *Tree[P, A]) predsuccMain(off arena.Offset, keyfinder KeyComparable[P], found *P, sign int) bool {
	if off == arena.Null {
		return false
	}
	n := t.get(off)
	cmp := keyfinder.Compare(n.payload)
	if cmp == 0 {
		cmp = sign
	}
	if cmp < 0 {
		ret := t.predsuccMain(n.lc, keyfinder, found, sign)
		if sign > 0 {
			if !ret {
				*found = n.payload
			}
			return true
		}
		return ret
	}
	ret := t.predsuccMain(n.rc, keyfinder, found, sign)
	if sign < 0 {
		if !ret {
			*found = n.payload
		}
		return true
	}
	return ret
}

// Searcher is the general tri-valued descent protocol from spec.md §4.B:
// given the left-sibling annotation (or nil), the payload/annotation at the
// current node, and the right-sibling annotation (or nil), it returns -1 to
// descend left, +1 to descend right, or 0 to stop here.
type Searcher[P any, A any] func(leftAnn *A, payload P, ann A, rightAnn *A) int

// Search implements the general annotation-consulting descent used for
// rank/select and for fold-aware line translation (internal/navigator,
// internal/fold).
func (t *Tree[P, A]) Search(root arena.Offset, searcher Searcher[P, A]) (P, bool) {
	off := root
	for off != arena.Null {
		n := t.get(off)
		var lca, rca *A
		if n.lc != arena.Null {
			a := t.get(n.lc).annotation
			lca = &a
		}
		if n.rc != arena.Null {
			a := t.get(n.rc).annotation
			rca = &a
		}
		dir := searcher(lca, n.payload, n.annotation, rca)
		if dir < 0 {
			off = n.lc
		} else if dir > 0 {
			off = n.rc
		} else {
			return n.payload, true
		}
	}
	var zero P
	return zero, false
}
