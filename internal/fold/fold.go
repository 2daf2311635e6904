// Package fold implements the per-view fold engine described in
// spec.md §4.G: a small in-RAM AVL tree of non-overlapping fold
// regions tiling the physical line range, used to translate between
// physical and visible line numbers under a fold mask (hiding nested
// calls deeper than some range of call depths).
//
// Built on internal/tree's generic engine over a RAM arena
// (internal/arena.MemArena) — no second bespoke tree implementation is
// needed here. The line translations walk the regions in order rather
// than descending with a Searcher.
package fold

import (
	"github.com/tarmac-trace/ttu/internal/arena"
	"github.com/tarmac-trace/ttu/internal/navigator"
	"github.com/tarmac-trace/ttu/internal/tree"
)

// FoldStatePayload is one tile of the physical line range: a
// contiguous run of lines, folded to show only call depths within
// [MinDepth, MaxDepth).
type FoldStatePayload struct {
	FirstPhysicalLine uint32
	LastPhysicalLine  uint32 // inclusive
	MinDepth          int32
	MaxDepth          int32
	NPhysicalLines    uint32
	NVisibleLines     uint32
	FirstQuasivisLine uint32 // the one visible line standing in for a fully-folded region
}

func (p FoldStatePayload) Compare(q FoldStatePayload) int {
	switch {
	case p.FirstPhysicalLine < q.FirstPhysicalLine:
		return -1
	case p.FirstPhysicalLine > q.FirstPhysicalLine:
		return 1
	default:
		return 0
	}
}

// RangeKey is an interval-overlap search key over FoldStatePayload,
// used by SetFoldState to find every region overlapping a new one.
type RangeKey struct{ First, Last uint32 }

func (k RangeKey) Compare(p FoldStatePayload) int {
	switch {
	case k.Last < p.FirstPhysicalLine:
		return -1
	case k.First > p.LastPhysicalLine:
		return 1
	default:
		return 0
	}
}

// LineKey finds the region covering a single physical line.
type LineKey uint32

func (k LineKey) Compare(p FoldStatePayload) int {
	switch {
	case uint32(k) < p.FirstPhysicalLine:
		return -1
	case uint32(k) > p.LastPhysicalLine:
		return 1
	default:
		return 0
	}
}

// FoldStateAnnotation aggregates a subtree's total physical and visible
// line counts. PhysicalToVisibleLine and VisibleToPhysicalLine do not
// consult it: they walk every region in order, keeping a running total.
type FoldStateAnnotation struct {
	TotalPhysicalLines uint32
	TotalVisibleLines  uint32
}

type codec struct{}

func (codec) PayloadSize() int    { return 4 + 4 + 4 + 4 + 4 + 4 + 4 }
func (codec) AnnotationSize() int { return 4 + 4 }

func (codec) EncodePayload(buf []byte, p FoldStatePayload) {
	arena.PutUint32(buf[0:4], p.FirstPhysicalLine)
	arena.PutUint32(buf[4:8], p.LastPhysicalLine)
	arena.PutUint32(buf[8:12], uint32(p.MinDepth))
	arena.PutUint32(buf[12:16], uint32(p.MaxDepth))
	arena.PutUint32(buf[16:20], p.NPhysicalLines)
	arena.PutUint32(buf[20:24], p.NVisibleLines)
	arena.PutUint32(buf[24:28], p.FirstQuasivisLine)
}

func (codec) DecodePayload(buf []byte) FoldStatePayload {
	return FoldStatePayload{
		FirstPhysicalLine: arena.GetUint32(buf[0:4]),
		LastPhysicalLine:  arena.GetUint32(buf[4:8]),
		MinDepth:          int32(arena.GetUint32(buf[8:12])),
		MaxDepth:          int32(arena.GetUint32(buf[12:16])),
		NPhysicalLines:    arena.GetUint32(buf[16:20]),
		NVisibleLines:     arena.GetUint32(buf[20:24]),
		FirstQuasivisLine: arena.GetUint32(buf[24:28]),
	}
}

func (codec) EncodeAnnotation(buf []byte, a FoldStateAnnotation) {
	arena.PutUint32(buf[0:4], a.TotalPhysicalLines)
	arena.PutUint32(buf[4:8], a.TotalVisibleLines)
}

func (codec) DecodeAnnotation(buf []byte) FoldStateAnnotation {
	return FoldStateAnnotation{
		TotalPhysicalLines: arena.GetUint32(buf[0:4]),
		TotalVisibleLines:  arena.GetUint32(buf[4:8]),
	}
}

func (codec) Compare(a, b FoldStatePayload) int { return a.Compare(b) }

func (codec) Annotate(_ arena.Arena, p FoldStatePayload) FoldStateAnnotation {
	return FoldStateAnnotation{TotalPhysicalLines: p.NPhysicalLines, TotalVisibleLines: p.NVisibleLines}
}

func (codec) Combine(_ arena.Arena, l, r FoldStateAnnotation) FoldStateAnnotation {
	return FoldStateAnnotation{
		TotalPhysicalLines: l.TotalPhysicalLines + r.TotalPhysicalLines,
		TotalVisibleLines:  l.TotalVisibleLines + r.TotalVisibleLines,
	}
}

// View is one user's fold state over an index: a RAM-resident tree of
// FoldStatePayload tiling [1, lastLine].
type View struct {
	nav      *navigator.Navigator
	ar       arena.Arena
	t        *tree.Tree[FoldStatePayload, FoldStateAnnotation]
	root     arena.Offset
	lastLine uint32
}

// NewView opens a fresh, entirely-unfolded view over [1, lastLine]:
// the initial tile spans the whole file with depths [0, +inf), per
// spec.md §4.G's "initial tile covers lines 1..last with depths
// [0, ∞)".
func NewView(nav *navigator.Navigator, lastLine uint32) *View {
	ar := arena.NewMem()
	v := &View{
		nav:      nav,
		ar:       ar,
		t:        tree.New[FoldStatePayload, FoldStateAnnotation](ar, codec{}),
		lastLine: lastLine,
	}
	if lastLine == 0 {
		return v
	}
	initial := FoldStatePayload{
		FirstPhysicalLine: 1,
		LastPhysicalLine:  lastLine,
		MinDepth:          0,
		MaxDepth:          maxInt32,
		NPhysicalLines:    lastLine,
		NVisibleLines:     lastLine,
		FirstQuasivisLine: 1,
	}
	var err error
	v.root, err = v.t.Insert(v.root, initial)
	if err != nil {
		panic(err)
	}
	v.t.Commit()
	return v
}

const maxInt32 = int32(1<<31 - 1)

// SetFoldState retiles [first, last] to show only call depths in
// [mindepth, maxdepth), removing and splitting any existing regions
// that overlap, per spec.md §4.G.
func (v *View) SetFoldState(first, last uint32, mindepth, maxdepth int32) {
	key := RangeKey{First: first, Last: last}
	for {
		newRoot, old, found := v.t.Remove(v.root, key)
		if !found {
			break
		}
		v.root = newRoot
		if old.FirstPhysicalLine < first {
			prefix := old
			prefix.LastPhysicalLine = first - 1
			prefix.NVisibleLines = v.nav.LRTTranslateRange(prefix.FirstPhysicalLine, prefix.LastPhysicalLine+1, prefix.MinDepth, prefix.MaxDepth)
			prefix.FirstQuasivisLine = prefix.FirstPhysicalLine
			v.reinsert(prefix)
		}
		if old.LastPhysicalLine > last {
			suffix := old
			suffix.FirstPhysicalLine = last + 1
			suffix.NVisibleLines = v.nav.LRTTranslateRange(suffix.FirstPhysicalLine, suffix.LastPhysicalLine+1, suffix.MinDepth, suffix.MaxDepth)
			suffix.FirstQuasivisLine = suffix.FirstPhysicalLine
			v.reinsert(suffix)
		}
	}

	visible := v.nav.LRTTranslateRange(first, last+1, mindepth, maxdepth)
	region := FoldStatePayload{
		FirstPhysicalLine: first,
		LastPhysicalLine:  last,
		MinDepth:          mindepth,
		MaxDepth:          maxdepth,
		NPhysicalLines:    last - first + 1,
		NVisibleLines:     visible,
		FirstQuasivisLine: first,
	}
	v.reinsert(region)
	v.t.Commit()
}

func (v *View) reinsert(p FoldStatePayload) {
	p.NPhysicalLines = p.LastPhysicalLine - p.FirstPhysicalLine + 1
	var err error
	v.root, err = v.t.Insert(v.root, p)
	if err != nil {
		panic(err)
	}
}

// PhysicalToVisibleLine maps a physical line to the visible line
// number it's shown at: the sum of every wholly-preceding region's
// visible-line count, plus this line's own offset into its region (or
// nothing extra, if its region is entirely hidden — landing inside a
// fully-folded block reports the same visible line as the content
// right before it, per spec.md §4.G's round-trip invariant).
func (v *View) PhysicalToVisibleLine(physical uint32) uint32 {
	var total uint32
	var result uint32
	found := false
	v.t.Walk(v.root, tree.InOrder, func(p FoldStatePayload, _ FoldStateAnnotation, _ arena.Offset) {
		if found {
			return
		}
		if p.LastPhysicalLine < physical {
			total += p.NVisibleLines
			return
		}
		if p.FirstPhysicalLine > physical {
			return
		}
		found = true
		if p.NVisibleLines == 0 {
			result = total
			return
		}
		offset := physical - p.FirstPhysicalLine
		if offset >= p.NVisibleLines {
			offset = p.NVisibleLines - 1
		}
		result = total + offset + 1
	})
	return result
}

// VisibleToPhysicalLine is the inverse of PhysicalToVisibleLine: the
// physical line underlying visible line v.
func (v *View) VisibleToPhysicalLine(visible uint32) uint32 {
	var total uint32
	var result uint32
	found := false
	v.t.Walk(v.root, tree.InOrder, func(p FoldStatePayload, _ FoldStateAnnotation, _ arena.Offset) {
		if found {
			return
		}
		if total+p.NVisibleLines < visible {
			total += p.NVisibleLines
			return
		}
		found = true
		if p.NVisibleLines == 0 {
			result = p.FirstPhysicalLine
			return
		}
		offset := visible - total - 1
		if offset >= p.NPhysicalLines {
			offset = p.NPhysicalLines - 1
		}
		result = p.FirstPhysicalLine + offset
	})
	return result
}
