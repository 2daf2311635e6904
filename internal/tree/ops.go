package tree

import "github.com/tarmac-trace/ttu/internal/arena"

// Insert adds payload under root, returning the new root offset. It
// rebalances with the same four AVL cases as the teacher's recurInsert
// (beelog/avl.go), generalized to return ErrDuplicateKey rather than a bare
// bool when the key already exists.
func (t *Tree[P, A]) Insert(root arena.Offset, payload P) (arena.Offset, error) {
	n := diskNode[P, A]{payload: payload, height: 1}
	n = t.allocNode(n)
	n = t.rewrite(n, arena.Null, arena.Null)

	newRoot, dup := t.insertMain(root, n.offset)
	if dup {
		return root, ErrDuplicateKey
	}
	t.size++
	return newRoot, nil
}

func (t *Tree[P, A]) insertMain(rootOff, nodeOff arena.Offset) (arena.Offset, bool) {
	if rootOff == arena.Null {
		return nodeOff, false
	}

	root := t.get(rootOff)
	node := t.get(nodeOff)
	cmp := t.codec.Compare(root.payload, node.payload)
	if cmp == 0 {
		return rootOff, true
	}

	lc, rc := root.lc, root.rc
	var dup bool

	if cmp > 0 {
		lc, dup = t.insertMain(lc, nodeOff)
		if dup {
			return rootOff, true
		}
		root = t.rewrite(root, lc, rc)
		k := t.height(rc)

		if t.height(lc) == k+2 {
			lcNode := t.get(lc)
			if t.height(lcNode.rc) == k+1 {
				lcNode = t.rotateLeft(lcNode)
				root = t.rewrite(root, lcNode.offset, rc)
			}
			return t.rotateRight(root).offset, false
		}
	} else {
		rc, dup = t.insertMain(rc, nodeOff)
		if dup {
			return rootOff, true
		}
		root = t.rewrite(root, lc, rc)
		k := t.height(lc)

		if t.height(rc) == k+2 {
			rcNode := t.get(rc)
			if t.height(rcNode.lc) == k+1 {
				rcNode = t.rotateRight(rcNode)
				root = t.rewrite(root, lc, rcNode.offset)
			}
			return t.rotateLeft(root).offset, false
		}
	}
	return root.offset, false
}

func (t *Tree[P, A]) rotateLeft(n diskNode[P, A]) diskNode[P, A] {
	rc := t.get(n.rc)
	t0, t1, t2 := n.lc, rc.lc, rc.rc
	n = t.rewrite(n, t0, t1)
	rc = t.rewrite(rc, n.offset, t2)
	return rc
}

func (t *Tree[P, A]) rotateRight(n diskNode[P, A]) diskNode[P, A] {
	lc := t.get(n.lc)
	t0, t1, t2 := lc.lc, lc.rc, n.rc
	n = t.rewrite(n, t1, t2)
	lc = t.rewrite(lc, t0, n.offset)
	return lc
}

// Remove deletes the entry matching key, if any, returning the new root
// offset, the removed payload, and whether anything was found. A missing
// key is a silent no-op, per spec.md §4.B.
func (t *Tree[P, A]) Remove(root arena.Offset, key KeyComparable[P]) (newRoot arena.Offset, removed P, found bool) {
	newRoot, removed, found = t.removeMain(root, key, true)
	if found {
		t.size--
	}
	return
}

func (t *Tree[P, A]) removeMain(rootOff arena.Offset, key KeyComparable[P], useKey bool) (arena.Offset, P, bool) {
	if rootOff == arena.Null {
		var zero P
		return rootOff, zero, false
	}

	root := t.get(rootOff)
	lc, rc := root.lc, root.rc

	var cmp int
	if useKey {
		cmp = key.Compare(root.payload)
	} else if lc != arena.Null {
		cmp = -1
	} else {
		cmp = 0
	}

	if cmp < 0 {
		oldlc := lc
		var removed P
		var found bool
		lc, removed, found = t.removeMain(lc, key, useKey)
		if lc == oldlc && !found {
			return rootOff, removed, false
		}
		root = t.rewrite(root, lc, rc)
		k := t.height(lc)
		if t.height(rc) == k+2 {
			rcNode := t.get(rc)
			if t.height(rcNode.lc) > t.height(rcNode.rc) {
				rcNode = t.rotateRight(rcNode)
				root = t.rewrite(root, lc, rcNode.offset)
			}
			return t.rotateLeft(root).offset, removed, found
		}
		return root.offset, removed, found
	}

	if cmp > 0 {
		oldrc := rc
		var removed P
		var found bool
		rc, removed, found = t.removeMain(rc, key, useKey)
		if rc == oldrc && !found {
			return rootOff, removed, false
		}
		root = t.rewrite(root, lc, rc)
		k := t.height(rc)
		if t.height(lc) == k+2 {
			lcNode := t.get(lc)
			if t.height(lcNode.rc) > t.height(lcNode.lc) {
				lcNode = t.rotateLeft(lcNode)
				root = t.rewrite(root, lcNode.offset, rc)
			}
			return t.rotateRight(root).offset, removed, found
		}
		return root.offset, removed, found
	}

	// Found the node to remove.
	removedPayload := root.payload
	if lc == arena.Null && rc == arena.Null {
		return arena.Null, removedPayload, true
	} else if lc == arena.Null {
		return rc, removedPayload, true
	} else if rc == arena.Null {
		return lc, removedPayload, true
	}

	// Two children: splice in the in-order successor (leftmost of rc).
	newRc, successorPayload, _ := t.removeMain(rc, nil, false)
	root.payload = successorPayload
	root = t.rewrite(root, lc, newRc)
	k := t.height(newRc)
	if t.height(lc) == k+2 {
		lcNode := t.get(lc)
		if t.height(lcNode.rc) > t.height(lcNode.lc) {
			lcNode = t.rotateLeft(lcNode)
			root = t.rewrite(root, lcNode.offset, newRc)
		}
		return t.rotateRight(root).offset, removedPayload, true
	}
	return root.offset, removedPayload, true
}
