package tree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarmac-trace/ttu/internal/arena"
)

// intPayload is a minimal fixed-size payload used to exercise the generic
// engine in isolation from any trace-domain payload.
type intPayload struct {
	key   int64
	value int64
}

type intKey int64

func (k intKey) Compare(p intPayload) int {
	switch {
	case int64(k) < p.key:
		return -1
	case int64(k) > p.key:
		return 1
	default:
		return 0
	}
}

// maxAnnotation folds the maximum value over a subtree, used to exercise
// Search/annotation combining the way MemoryAnnotation.latest does for real
// payloads (internal/indexer).
type maxAnnotation struct{ max int64 }

type intCodec struct{}

func (intCodec) PayloadSize() int    { return 16 }
func (intCodec) AnnotationSize() int { return 8 }

func (intCodec) EncodePayload(buf []byte, p intPayload) {
	arena.PutUint64(buf[0:8], uint64(p.key))
	arena.PutUint64(buf[8:16], uint64(p.value))
}
func (intCodec) DecodePayload(buf []byte) intPayload {
	return intPayload{key: int64(arena.GetUint64(buf[0:8])), value: int64(arena.GetUint64(buf[8:16]))}
}
func (intCodec) EncodeAnnotation(buf []byte, a maxAnnotation) {
	arena.PutUint64(buf[0:8], uint64(a.max))
}
func (intCodec) DecodeAnnotation(buf []byte) maxAnnotation {
	return maxAnnotation{max: int64(arena.GetUint64(buf[0:8]))}
}
func (intCodec) Compare(a, b intPayload) int {
	switch {
	case a.key < b.key:
		return -1
	case a.key > b.key:
		return 1
	default:
		return 0
	}
}
func (intCodec) Annotate(_ arena.Arena, p intPayload) maxAnnotation { return maxAnnotation{max: p.value} }
func (intCodec) Combine(_ arena.Arena, l, r maxAnnotation) maxAnnotation {
	if l.max > r.max {
		return l
	}
	return r
}

func newTestTree() (*Tree[intPayload, maxAnnotation], *arena.MemArena) {
	ar := arena.NewMem()
	return New[intPayload, maxAnnotation](ar, intCodec{}), ar
}

func TestInsertFind(t *testing.T) {
	tr, _ := newTestTree()
	root := arena.Null
	var err error
	for _, k := range []int64{5, 3, 8, 1, 4, 7, 9, 2, 6} {
		root, err = tr.Insert(root, intPayload{key: k, value: k * 10})
		require.NoError(t, err)
	}
	require.Equal(t, 9, tr.Size())

	for _, k := range []int64{5, 3, 8, 1, 4, 7, 9, 2, 6} {
		p, ok := tr.Find(root, intKey(k))
		require.True(t, ok)
		require.Equal(t, k*10, p.value)
	}

	_, ok := tr.Find(root, intKey(42))
	require.False(t, ok)
}

func TestInsertDuplicateRejected(t *testing.T) {
	tr, _ := newTestTree()
	root, err := tr.Insert(arena.Null, intPayload{key: 1, value: 1})
	require.NoError(t, err)
	_, err = tr.Insert(root, intPayload{key: 1, value: 2})
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestRemove(t *testing.T) {
	tr, _ := newTestTree()
	root := arena.Null
	var err error
	keys := []int64{5, 3, 8, 1, 4, 7, 9, 2, 6}
	for _, k := range keys {
		root, err = tr.Insert(root, intPayload{key: k, value: k})
		require.NoError(t, err)
	}

	root, removed, found := tr.Remove(root, intKey(4))
	require.True(t, found)
	require.Equal(t, int64(4), removed.value)
	require.Equal(t, 8, tr.Size())

	_, ok := tr.Find(root, intKey(4))
	require.False(t, ok)

	for _, k := range []int64{5, 3, 8, 1, 7, 9, 2, 6} {
		_, ok := tr.Find(root, intKey(k))
		require.True(t, ok)
	}

	// Removing an absent key is a silent no-op.
	newRoot, _, found := tr.Remove(root, intKey(999))
	require.False(t, found)
	require.Equal(t, root, newRoot)
}

func TestWalkInOrderIsSorted(t *testing.T) {
	tr, _ := newTestTree()
	root := arena.Null
	keys := []int64{9, 1, 8, 2, 7, 3, 6, 4, 5}
	for _, k := range keys {
		var err error
		root, err = tr.Insert(root, intPayload{key: k})
		require.NoError(t, err)
	}

	var seen []int64
	tr.Walk(root, InOrder, func(p intPayload, _ maxAnnotation, _ arena.Offset) {
		seen = append(seen, p.key)
	})
	for i := 1; i < len(seen); i++ {
		require.True(t, seen[i-1] < seen[i])
	}
}

func TestAVLHeightBalanced(t *testing.T) {
	tr, ar := newTestTree()
	root := arena.Null
	for i := int64(0); i < 1000; i++ {
		var err error
		root, err = tr.Insert(root, intPayload{key: i, value: i})
		require.NoError(t, err)
	}
	_ = ar
	h := tr.get(root).height
	// AVL height bound: h <= 1.44 * log2(n+2). For n=1000 that's ~14.4.
	require.LessOrEqual(t, int(h), 16)
}

func TestCOWPersistenceAcrossCommit(t *testing.T) {
	tr, _ := newTestTree()
	root := arena.Null
	for _, k := range []int64{1, 2, 3, 4, 5} {
		var err error
		root, err = tr.Insert(root, intPayload{key: k, value: k})
		require.NoError(t, err)
	}
	tr.Commit()
	oldRoot := tr.CloneRoot(root)

	newRoot, _, found := tr.Remove(root, intKey(3))
	require.True(t, found)

	// The cloned (old) root must still see the removed element.
	_, ok := tr.Find(oldRoot, intKey(3))
	require.True(t, ok, "old root must be unaffected by mutation on the new root")

	// The new root must not.
	_, ok = tr.Find(newRoot, intKey(3))
	require.False(t, ok)

	// Every other key is visible from both roots.
	for _, k := range []int64{1, 2, 4, 5} {
		_, ok := tr.Find(oldRoot, intKey(k))
		require.True(t, ok)
		_, ok = tr.Find(newRoot, intKey(k))
		require.True(t, ok)
	}
}

func TestSearchFindsMaxBySubtreeAnnotation(t *testing.T) {
	tr, _ := newTestTree()
	root := arena.Null
	for _, k := range []int64{1, 2, 3, 4, 5, 6, 7} {
		var err error
		root, err = tr.Insert(root, intPayload{key: k, value: k})
		require.NoError(t, err)
	}

	// Search for the payload whose value equals the max of the whole tree,
	// exercising the tri-valued descent by consulting sibling annotations.
	p, ok := tr.Search(root, func(lca *maxAnnotation, payload intPayload, ann maxAnnotation, rca *maxAnnotation) int {
		if payload.value == ann.max && (lca == nil || lca.max < payload.value) && (rca == nil || rca.max < payload.value) {
			return 0
		}
		if rca != nil && rca.max == ann.max {
			return 1
		}
		return -1
	})
	require.True(t, ok)
	require.Equal(t, int64(7), p.value)
}

func TestFindLeftmostRightmostSuccPred(t *testing.T) {
	tr, _ := newTestTree()
	root := arena.Null
	for _, k := range []int64{10, 20, 30, 40, 50} {
		var err error
		root, err = tr.Insert(root, intPayload{key: k, value: k})
		require.NoError(t, err)
	}

	p, ok := tr.FindLeftmost(root, intKey(30))
	require.True(t, ok)
	require.Equal(t, int64(30), p.key)

	p, ok = tr.FindRightmost(root, intKey(30))
	require.True(t, ok)
	require.Equal(t, int64(30), p.key)

	p, ok = tr.Succ(root, intKey(20))
	require.True(t, ok)
	require.Equal(t, int64(30), p.key)

	p, ok = tr.Pred(root, intKey(30))
	require.True(t, ok)
	require.Equal(t, int64(20), p.key)

	_, ok = tr.Succ(root, intKey(50))
	require.False(t, ok)

	_, ok = tr.Pred(root, intKey(10))
	require.False(t, ok)
}

func TestRandomizedInsertRemoveInvariant(t *testing.T) {
	tr, _ := newTestTree()
	root := arena.Null
	present := map[int64]bool{}
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		k := r.Int63n(500)
		if present[k] {
			var found bool
			root, _, found = tr.Remove(root, intKey(k))
			require.True(t, found)
			present[k] = false
		} else {
			var err error
			root, err = tr.Insert(root, intPayload{key: k, value: k})
			require.NoError(t, err)
			present[k] = true
		}
	}

	for k, want := range present {
		_, ok := tr.Find(root, intKey(k))
		require.Equal(t, want, ok, "key %d", k)
	}
}
