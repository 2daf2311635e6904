// Package tree implements the persistent, copy-on-write AVL tree engine
// described in spec.md §4.B: a generic ordered map over an arena.Arena,
// parameterized by a comparable Payload and a subtree Annotation, with
// reference-counted nodes and a commit high-water mark that makes every
// mutation above it copy-on-write.
//
// The rotation logic is adapted from the teacher's in-memory
// implementation (beelog/avl.go: recurInsert/leftRotate/rightRotate) and
// generalized to arena-backed, refcounted, annotated nodes per
// original_source/include/libtarmac/disktree.hh.
package tree

import (
	"github.com/pkg/errors"

	"github.com/tarmac-trace/ttu/internal/arena"
)

// ErrDuplicateKey is returned by Insert when the payload compares equal to
// an existing entry — a contract violation per spec.md §4.B ("insert
// requires the payload to compare strictly unequal to every existing
// payload").
var ErrDuplicateKey = errors.New("tree: duplicate key on insert")

// ErrUncommitted names the "reading uncommitted tree" contract violation
// from spec.md §7. No function in this package returns it: CloneRoot and
// the read operations do not check whether the tree has been committed.
var ErrUncommitted = errors.New("tree: operation on uncommitted root")

// Codec tells the tree engine how to lay out a fixed-size Payload/Annotation
// pair as bytes in the arena, how to order payloads, and how to fold
// annotations over a subtree. P and A must be plain, fixed-size value
// types: the tree stores them inline in each disk node, exactly as
// disktree.hh's `disknode` does with its templated Payload/Annotation
// fields.
type Codec[P any, A any] interface {
	PayloadSize() int
	AnnotationSize() int

	EncodePayload(buf []byte, p P)
	DecodePayload(buf []byte) P
	EncodeAnnotation(buf []byte, a A)
	DecodeAnnotation(buf []byte) A

	// Compare implements the payload's three-way cmp (spec.md §3).
	Compare(a, b P) int

	// Annotate constructs A(payload); Combine folds A(left, right). Both
	// take the tree's arena so a codec whose annotation carries its own
	// out-of-line data (e.g. SeqOrderCodec's call-depth array) can
	// allocate while folding.
	Annotate(ar arena.Arena, p P) A
	Combine(ar arena.Arena, left, right A) A
}

// ThreeWayCodec is an optional Codec extension for annotations that cannot
// be built from two independent pairwise Combine calls — spec.md §4.E's
// call-depth array is the motivating case, since its left_link/right_link
// entries must index into the child nodes' own arrays, not into an
// intermediate left-right merge. A Codec implementing this interface has
// rewrite fold the whole subtree (payload, left annotation, right
// annotation) in one call instead of two.
type ThreeWayCodec[P any, A any] interface {
	CombineThree(ar arena.Arena, p P, lc, rc *A) A
}

// KeyComparable is the general search-key interface from spec.md §4.B:
// "anything with cmp(payload) -> int" may be used for searches.
type KeyComparable[P any] interface {
	Compare(p P) int
}

const nodeHeaderSize = 8 + 8 + 4 + 4 // lc, rc, height, refcount

// Tree is a persistent AVL tree over an arena.Arena. The zero value is not
// usable; construct with New or Open.
type Tree[P any, A any] struct {
	ar    arena.Arena
	codec Codec[P, A]
	hwm   arena.Offset
	size  int
	refs  refTable
}

// Size returns the number of Insert calls that have succeeded minus the
// number of Remove calls that found something, across every root produced
// by this Tree instance. Roots sharing structure via COW all count toward
// the same engine-wide counter, matching the teacher's AVLTreeHT.len
// bookkeeping (beelog/avl.go) generalized across many roots.
func (t *Tree[P, A]) Size() int { return t.size }

// New creates a tree engine over ar. hwm should be ar.CurrOffset() at
// construction time for a brand-new tree; Open should be used to resume an
// existing arena at a recorded high-water mark.
func New[P any, A any](ar arena.Arena, codec Codec[P, A]) *Tree[P, A] {
	return &Tree[P, A]{ar: ar, codec: codec, hwm: ar.CurrOffset()}
}

// Open resumes a tree engine whose high-water mark was already established
// by a prior commit (e.g. when reopening an on-disk index for read-only
// navigation).
func Open[P any, A any](ar arena.Arena, codec Codec[P, A], hwm arena.Offset) *Tree[P, A] {
	return &Tree[P, A]{ar: ar, codec: codec, hwm: hwm}
}

// Commit raises the high-water mark to the arena's current end. Every node
// allocated before this call becomes immutable: a later update path that
// reaches it must fork a fresh node rather than mutate in place.
func (t *Tree[P, A]) Commit() {
	t.hwm = t.ar.CurrOffset()
}

// HighWaterMark returns the tree's current commit boundary.
func (t *Tree[P, A]) HighWaterMark() arena.Offset {
	return t.hwm
}

func (t *Tree[P, A]) nodeSize() int {
	return nodeHeaderSize + t.codec.PayloadSize() + t.codec.AnnotationSize()
}

// diskNode is the decoded in-memory view of one on-arena node, mirroring
// disktree.hh's `node`/`disknode` split: `get` decodes, `put` encodes, and
// `rewrite` is the sole place that performs copy-on-write forking.
type diskNode[P any, A any] struct {
	offset     arena.Offset
	lc, rc     arena.Offset
	height     int32
	refcount   int32
	payload    P
	annotation A
}

func (t *Tree[P, A]) get(off arena.Offset) diskNode[P, A] {
	var n diskNode[P, A]
	n.offset = off
	if off == arena.Null {
		return n
	}
	buf := t.ar.Bytes(off, t.nodeSize())
	n.lc = arena.GetOffset(buf[0:8])
	n.rc = arena.GetOffset(buf[8:16])
	n.height = int32(arena.GetUint32(buf[16:20]))
	n.refcount = int32(arena.GetUint32(buf[20:24]))
	psz := t.codec.PayloadSize()
	n.payload = t.codec.DecodePayload(buf[24 : 24+psz])
	n.annotation = t.codec.DecodeAnnotation(buf[24+psz:])
	return n
}

func (t *Tree[P, A]) put(n diskNode[P, A]) {
	buf := t.ar.Bytes(n.offset, t.nodeSize())
	arena.PutOffset(buf[0:8], n.lc)
	arena.PutOffset(buf[8:16], n.rc)
	arena.PutUint32(buf[16:20], uint32(n.height))
	arena.PutUint32(buf[20:24], uint32(n.refcount))
	psz := t.codec.PayloadSize()
	t.codec.EncodePayload(buf[24:24+psz], n.payload)
	t.codec.EncodeAnnotation(buf[24+psz:], n.annotation)
}

func (t *Tree[P, A]) allocNode(n diskNode[P, A]) diskNode[P, A] {
	off, err := t.ar.Alloc(t.nodeSize())
	if err != nil {
		// Arena growth failures are fatal per spec.md §4.A; the caller is
		// expected to have routed a Reporter in before reaching this
		// depth, so panicking here surfaces the same "terminate" contract
		// without threading an error return through every rotation.
		panic(errors.Wrap(err, "tree: node allocation failed"))
	}
	n.offset = off
	n.refcount = 1
	return n
}

func (t *Tree[P, A]) height(off arena.Offset) int32 {
	if off == arena.Null {
		return 0
	}
	return t.get(off).height
}

func (t *Tree[P, A]) immutable(off arena.Offset) bool {
	return off != arena.Null && off < t.hwm
}

// rewrite is the sole choke point for mutation: if n is immutable it
// allocates a replacement node before writing the new children, height and
// annotation, matching disktree.hh's `rewrite`.
func (t *Tree[P, A]) rewrite(n diskNode[P, A], newlc, newrc arena.Offset) diskNode[P, A] {
	if t.immutable(n.offset) {
		n = t.allocNode(n)
	}
	n.lc, n.rc = newlc, newrc
	n.height = max32(t.height(newlc), t.height(newrc)) + 1

	var lcAnn, rcAnn *A
	if newlc != arena.Null {
		a := t.get(newlc).annotation
		lcAnn = &a
	}
	if newrc != arena.Null {
		a := t.get(newrc).annotation
		rcAnn = &a
	}

	if tc, ok := t.codec.(ThreeWayCodec[P, A]); ok {
		n.annotation = tc.CombineThree(t.ar, n.payload, lcAnn, rcAnn)
	} else {
		n.annotation = t.codec.Annotate(t.ar, n.payload)
		if lcAnn != nil {
			n.annotation = t.codec.Combine(t.ar, *lcAnn, n.annotation)
		}
		if rcAnn != nil {
			n.annotation = t.codec.Combine(t.ar, n.annotation, *rcAnn)
		}
	}
	t.put(n)
	return n
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

// Len reports the number of reachable payloads under root, by walking (this
// is O(n); callers tracking live-insert counts should maintain their own
// counter instead).
func (t *Tree[P, A]) Len(root arena.Offset) int {
	n := 0
	t.Walk(root, InOrder, func(P, A, arena.Offset) {
		n++
	})
	return n
}

// RootAnnotation returns the annotation stored at root, or the zero value
// if root is Null.
func (t *Tree[P, A]) RootAnnotation(root arena.Offset) A {
	if root == arena.Null {
		var zero A
		return zero
	}
	return t.get(root).annotation
}
