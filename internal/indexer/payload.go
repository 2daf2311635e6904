// Package indexer builds the persistent index structures described in
// spec.md §4.E from a stream of parsed Tarmac events: a time/line
// ordered sequence tree, a by-PC tree, and a memory tree tracking the
// latest known contents of every byte of memory and register state.
//
// Grounded on original_source/lib/index.cpp (the Index class) and
// include/libtarmac/memtree.hh's Payload/Annotation contract, adapted
// onto the arena-backed internal/tree engine instead of C++ templates.
package indexer

import (
	"github.com/pkg/errors"

	"github.com/tarmac-trace/ttu/internal/arena"
)

// SeqOrderPayload is one entry in the sequence tree: a contiguous,
// same-timestamp run of trace lines, in the order they occurred.
type SeqOrderPayload struct {
	FirstLine  uint32
	LastLine   uint32 // half-open: [FirstLine, LastLine)
	ByteStart  uint64
	ByteEnd    uint64
	ModTime    uint64
	MemoryRoot arena.Offset
	CallDepth  int32
}

func (p SeqOrderPayload) Compare(q SeqOrderPayload) int {
	switch {
	case p.FirstLine < q.FirstLine:
		return -1
	case p.FirstLine > q.FirstLine:
		return 1
	default:
		return 0
	}
}

// CallDepthSentinel terminates a node's call-depth array: an entry
// with this depth always comes last, and its CumulativeLines is the
// total physical line count of the subtree the array summarizes
// (spec.md §8's invariant #6).
const CallDepthSentinel = int32(1<<31 - 1)

// CallDepthEntry is one entry of a SeqOrderAnnotation's compact
// per-depth cumulative array: the line/instruction counts and
// left/right subtree indices current as of this call depth, ported
// from original_source/lib/index.cpp's CallDepthArrayEntry.
type CallDepthEntry struct {
	CallDepth       int32
	CumulativeLines uint32
	CumulativeInsns uint32
	LeftLink        uint32
	RightLink       uint32
}

const callDepthEntrySize = 4 + 4 + 4 + 4 + 4

func readCallDepthArray(ar arena.Arena, off arena.Offset, n uint32) []CallDepthEntry {
	if n == 0 {
		return nil
	}
	buf := ar.Bytes(off, int(n)*callDepthEntrySize)
	out := make([]CallDepthEntry, n)
	for i := range out {
		b := buf[i*callDepthEntrySize : (i+1)*callDepthEntrySize]
		out[i] = CallDepthEntry{
			CallDepth:       int32(arena.GetUint32(b[0:4])),
			CumulativeLines: arena.GetUint32(b[4:8]),
			CumulativeInsns: arena.GetUint32(b[8:12]),
			LeftLink:        arena.GetUint32(b[12:16]),
			RightLink:       arena.GetUint32(b[16:20]),
		}
	}
	return out
}

func writeCallDepthArray(ar arena.Arena, entries []CallDepthEntry) arena.Offset {
	if len(entries) == 0 {
		return arena.Null
	}
	off, err := ar.Alloc(len(entries) * callDepthEntrySize)
	if err != nil {
		panic(errors.Wrap(err, "indexer: call-depth array allocation failed"))
	}
	buf := ar.Bytes(off, len(entries)*callDepthEntrySize)
	for i, e := range entries {
		b := buf[i*callDepthEntrySize : (i+1)*callDepthEntrySize]
		arena.PutUint32(b[0:4], uint32(e.CallDepth))
		arena.PutUint32(b[4:8], e.CumulativeLines)
		arena.PutUint32(b[8:12], e.CumulativeInsns)
		arena.PutUint32(b[12:16], e.LeftLink)
		arena.PutUint32(b[16:20], e.RightLink)
	}
	return off
}

// mergeCallDepthArrays is the three-way merge at the heart of
// original_source/lib/index.cpp's CallDepthArrayTreeWalker: own is a
// node's own synthetic two-entry array (its depth, then a sentinel
// closing off its line/instruction count), lc/rc are its children's
// full arrays. leftlink/rightlink in each merged entry index straight
// into lc/rc, which is what lets LRTTranslate follow them across a
// tree descent instead of re-walking every node.
func mergeCallDepthArrays(ar arena.Arena, own, lc, rc []CallDepthEntry) (arena.Offset, uint32) {
	arrays := [3][]CallDepthEntry{own, lc, rc}

	var n uint32
	var idx [3]int
	for {
		next, any := nextCallDepth(arrays, idx)
		if !any {
			break
		}
		n++
		for i := range arrays {
			if idx[i] < len(arrays[i]) && arrays[i][idx[i]].CallDepth == next {
				idx[i]++
			}
		}
	}

	merged := make([]CallDepthEntry, 0, n)
	idx = [3]int{}
	var clines, cinsns uint32
	for {
		next, any := nextCallDepth(arrays, idx)
		if !any {
			break
		}
		merged = append(merged, CallDepthEntry{
			CallDepth:       next,
			CumulativeLines: clines,
			CumulativeInsns: cinsns,
			LeftLink:        uint32(idx[1]),
			RightLink:       uint32(idx[2]),
		})
		for i := range arrays {
			if idx[i] < len(arrays[i]) && arrays[i][idx[i]].CallDepth == next {
				if idx[i]+1 < len(arrays[i]) {
					clines += arrays[i][idx[i]+1].CumulativeLines - arrays[i][idx[i]].CumulativeLines
					cinsns += arrays[i][idx[i]+1].CumulativeInsns - arrays[i][idx[i]].CumulativeInsns
				}
				idx[i]++
			}
		}
	}

	return writeCallDepthArray(ar, merged), uint32(len(merged))
}

func nextCallDepth(arrays [3][]CallDepthEntry, idx [3]int) (int32, bool) {
	var next int32
	found := false
	for i := range arrays {
		if idx[i] < len(arrays[i]) {
			d := arrays[i][idx[i]].CallDepth
			if !found || d < next {
				next = d
				found = true
			}
		}
	}
	return next, found
}

// findDepthIndex is find_depth from original_source/lib/index.cpp's
// IndexLRTSearcher: the first array index whose call depth is >=
// depth, clamped to the array's last (sentinel) entry.
func findDepthIndex(arr []CallDepthEntry, depth int64) int {
	lo, hi := 0, len(arr)
	for hi > lo {
		mid := lo + (hi-lo)/2
		if int64(arr[mid].CallDepth) >= depth {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo >= len(arr) {
		lo = len(arr) - 1
	}
	return lo
}

// SeqOrderAnnotation aggregates a subtree of the sequence tree via its
// compact call-depth array (spec.md §3/§4.E): a run-length encoding of
// cumulative line/instruction counts against call depth, letting
// LRTTranslate count a whole subtree's lines in a depth band without
// visiting every entry. TotalLines and BandLines decode the whole array
// on each call, so each such lookup costs O(D) in the number of
// distinct depths D.
type SeqOrderAnnotation struct {
	DepthArray    arena.Offset
	DepthArrayLen uint32
}

// TotalLines returns the subtree's total physical line count: the
// call-depth array's sentinel entry, per spec.md §8's
// cumulative_lines[SENTINEL] invariant.
func (a SeqOrderAnnotation) TotalLines(ar arena.Arena) uint32 {
	if a.DepthArrayLen == 0 {
		return 0
	}
	arr := readCallDepthArray(ar, a.DepthArray, a.DepthArrayLen)
	return arr[len(arr)-1].CumulativeLines
}

// BandLines returns the physical line count of entries whose call
// depth falls in [mindepth, maxdepthExclusive), found via two
// find_depth binary searches into the array.
func (a SeqOrderAnnotation) BandLines(ar arena.Arena, mindepth, maxdepthExclusive int64) uint32 {
	if a.DepthArrayLen == 0 {
		return 0
	}
	arr := readCallDepthArray(ar, a.DepthArray, a.DepthArrayLen)
	lo := findDepthIndex(arr, mindepth)
	hi := findDepthIndex(arr, maxdepthExclusive)
	return arr[hi].CumulativeLines - arr[lo].CumulativeLines
}

// FindDepth returns the array index of the first entry whose call
// depth is >= depth, clamped to the final (sentinel) entry.
func (a SeqOrderAnnotation) FindDepth(ar arena.Arena, depth int64) int {
	arr := readCallDepthArray(ar, a.DepthArray, a.DepthArrayLen)
	return findDepthIndex(arr, depth)
}

// EntryAt returns the idx'th entry of the call-depth array.
func (a SeqOrderAnnotation) EntryAt(ar arena.Arena, idx int) CallDepthEntry {
	arr := readCallDepthArray(ar, a.DepthArray, a.DepthArrayLen)
	return arr[idx]
}

// SeqOrderCodec lays out SeqOrderPayload/SeqOrderAnnotation for the
// arena-backed tree engine.
type SeqOrderCodec struct{}

func (SeqOrderCodec) PayloadSize() int    { return 4 + 4 + 8 + 8 + 8 + 8 + 4 }
func (SeqOrderCodec) AnnotationSize() int { return 8 + 4 }

func (SeqOrderCodec) EncodePayload(buf []byte, p SeqOrderPayload) {
	arena.PutUint32(buf[0:4], p.FirstLine)
	arena.PutUint32(buf[4:8], p.LastLine)
	arena.PutUint64(buf[8:16], p.ByteStart)
	arena.PutUint64(buf[16:24], p.ByteEnd)
	arena.PutUint64(buf[24:32], p.ModTime)
	arena.PutOffset(buf[32:40], p.MemoryRoot)
	arena.PutUint32(buf[40:44], uint32(p.CallDepth))
}

func (SeqOrderCodec) DecodePayload(buf []byte) SeqOrderPayload {
	return SeqOrderPayload{
		FirstLine:  arena.GetUint32(buf[0:4]),
		LastLine:   arena.GetUint32(buf[4:8]),
		ByteStart:  arena.GetUint64(buf[8:16]),
		ByteEnd:    arena.GetUint64(buf[16:24]),
		ModTime:    arena.GetUint64(buf[24:32]),
		MemoryRoot: arena.GetOffset(buf[32:40]),
		CallDepth:  int32(arena.GetUint32(buf[40:44])),
	}
}

func (SeqOrderCodec) EncodeAnnotation(buf []byte, a SeqOrderAnnotation) {
	arena.PutOffset(buf[0:8], a.DepthArray)
	arena.PutUint32(buf[8:12], a.DepthArrayLen)
}

func (SeqOrderCodec) DecodeAnnotation(buf []byte) SeqOrderAnnotation {
	return SeqOrderAnnotation{
		DepthArray:    arena.GetOffset(buf[0:8]),
		DepthArrayLen: arena.GetUint32(buf[8:12]),
	}
}

func (SeqOrderCodec) Compare(a, b SeqOrderPayload) int { return a.Compare(b) }

// Annotate and Combine are never reached through the tree engine,
// since SeqOrderCodec implements ThreeWayCodec and rewrite prefers
// CombineThree; they're kept correct in isolation (Annotate as a
// leaf's CombineThree, Combine as a merge with no node of its own)
// only to satisfy the Codec interface.
func (c SeqOrderCodec) Annotate(ar arena.Arena, p SeqOrderPayload) SeqOrderAnnotation {
	return c.CombineThree(ar, p, nil, nil)
}

func (SeqOrderCodec) Combine(ar arena.Arena, l, r SeqOrderAnnotation) SeqOrderAnnotation {
	lArr := readCallDepthArray(ar, l.DepthArray, l.DepthArrayLen)
	rArr := readCallDepthArray(ar, r.DepthArray, r.DepthArrayLen)
	off, n := mergeCallDepthArrays(ar, nil, lArr, rArr)
	return SeqOrderAnnotation{DepthArray: off, DepthArrayLen: n}
}

// CombineThree builds this node's call-depth array by merging its own
// synthetic two-entry array with its children's, per
// original_source/lib/index.cpp's CallDepthArrayTreeWalker — the
// structure that lets LRTTranslate's tree descent take O(log N) steps
// of O(D) each instead of an O(N) walk (spec.md §4.E, §8 invariant #6).
func (SeqOrderCodec) CombineThree(ar arena.Arena, p SeqOrderPayload, lc, rc *SeqOrderAnnotation) SeqOrderAnnotation {
	own := []CallDepthEntry{
		{CallDepth: p.CallDepth, CumulativeLines: 0, CumulativeInsns: 0},
		{CallDepth: CallDepthSentinel, CumulativeLines: p.LastLine - p.FirstLine, CumulativeInsns: 1},
	}
	var lcArr, rcArr []CallDepthEntry
	if lc != nil {
		lcArr = readCallDepthArray(ar, lc.DepthArray, lc.DepthArrayLen)
	}
	if rc != nil {
		rcArr = readCallDepthArray(ar, rc.DepthArray, rc.DepthArrayLen)
	}
	off, n := mergeCallDepthArrays(ar, own, lcArr, rcArr)
	return SeqOrderAnnotation{DepthArray: off, DepthArrayLen: n}
}

// LineKey finds a SeqOrderPayload by its line range.
type LineKey uint32

func (k LineKey) Compare(p SeqOrderPayload) int {
	switch {
	case uint32(k) < p.FirstLine:
		return -1
	case uint32(k) >= p.LastLine:
		return 1
	default:
		return 0
	}
}

// TimeKey finds the rightmost SeqOrderPayload with ModTime <= the key,
// for node_at_time.
type TimeKey uint64

func (k TimeKey) Compare(p SeqOrderPayload) int {
	switch {
	case uint64(k) < p.ModTime:
		return -1
	default:
		return 0
	}
}

// ByPCPayload maps an executed address to the line that executed it,
// for address-oriented navigation (breakpoint lookups, disassembly
// views keyed by PC rather than by line).
type ByPCPayload struct {
	PC   uint64
	Line uint32
}

func (p ByPCPayload) Compare(q ByPCPayload) int {
	switch {
	case p.PC < q.PC:
		return -1
	case p.PC > q.PC:
		return 1
	case p.Line < q.Line:
		return -1
	case p.Line > q.Line:
		return 1
	default:
		return 0
	}
}

type ByPCCodec struct{}

func (ByPCCodec) PayloadSize() int    { return 12 }
func (ByPCCodec) AnnotationSize() int { return 1 }
func (ByPCCodec) EncodePayload(buf []byte, p ByPCPayload) {
	arena.PutUint64(buf[0:8], p.PC)
	arena.PutUint32(buf[8:12], p.Line)
}
func (ByPCCodec) DecodePayload(buf []byte) ByPCPayload {
	return ByPCPayload{PC: arena.GetUint64(buf[0:8]), Line: arena.GetUint32(buf[8:12])}
}
func (ByPCCodec) EncodeAnnotation([]byte, struct{})      {}
func (ByPCCodec) DecodeAnnotation([]byte) struct{}       { return struct{}{} }
func (ByPCCodec) Compare(a, b ByPCPayload) int           { return a.Compare(b) }
func (ByPCCodec) Annotate(arena.Arena, ByPCPayload) struct{}    { return struct{}{} }
func (ByPCCodec) Combine(arena.Arena, struct{}, struct{}) struct{} { return struct{}{} }

// PCKey looks an address up in the by-PC tree.
type PCKey uint64

func (k PCKey) Compare(p ByPCPayload) int {
	switch {
	case uint64(k) < p.PC:
		return -1
	case uint64(k) > p.PC:
		return 1
	default:
		return 0
	}
}

// MemoryPayload is one non-overlapping byte range of known (raw) or
// partially-known (sub) memory or register state, as of the line it
// was last written. Type distinguishes register space ('r') from
// traced memory ('m'), matching index.cpp's single shared tree for
// both.
type MemoryPayload struct {
	Type            byte
	Lo, Hi          uint64 // inclusive
	Raw             bool
	Contents        arena.Offset // raw bytes (Raw) or a MemorySubPayload subtree root (!Raw)
	TraceFileLine   uint32
}

func (p MemoryPayload) Compare(q MemoryPayload) int {
	if p.Type != q.Type {
		if p.Type < q.Type {
			return -1
		}
		return 1
	}
	switch {
	case p.Lo < q.Lo:
		return -1
	case p.Lo > q.Lo:
		return 1
	default:
		return 0
	}
}

// MemoryRangeKey is an interval-overlap search key: any MemoryPayload
// whose [Lo,Hi] intersects [Lo,Hi] compares equal, which is what lets
// delete_from_memtree-style code remove every overlapping node one at
// a time (original_source/lib/index.cpp's delete_from_memtree).
type MemoryRangeKey struct {
	Type   byte
	Lo, Hi uint64
}

func (k MemoryRangeKey) Compare(p MemoryPayload) int {
	if k.Type != p.Type {
		if k.Type < p.Type {
			return -1
		}
		return 1
	}
	switch {
	case k.Hi < p.Lo:
		return -1
	case k.Lo > p.Hi:
		return 1
	default:
		return 0
	}
}

// MemoryAnnotation folds the address extent and the most recent write
// line over a subtree. Nothing in this module reads it back:
// Navigator.FindNextMod visits every payload instead of pruning by it.
type MemoryAnnotation struct {
	MinLo      uint64
	MaxHi      uint64
	LatestLine uint32
}

type MemoryCodec struct{}

func (MemoryCodec) PayloadSize() int    { return 1 + 8 + 8 + 1 + 8 + 4 }
func (MemoryCodec) AnnotationSize() int { return 8 + 8 + 4 }

func (MemoryCodec) EncodePayload(buf []byte, p MemoryPayload) {
	buf[0] = p.Type
	arena.PutUint64(buf[1:9], p.Lo)
	arena.PutUint64(buf[9:17], p.Hi)
	if p.Raw {
		buf[17] = 1
	} else {
		buf[17] = 0
	}
	arena.PutOffset(buf[18:26], p.Contents)
	arena.PutUint32(buf[26:30], p.TraceFileLine)
}

func (MemoryCodec) DecodePayload(buf []byte) MemoryPayload {
	return MemoryPayload{
		Type:          buf[0],
		Lo:            arena.GetUint64(buf[1:9]),
		Hi:            arena.GetUint64(buf[9:17]),
		Raw:           buf[17] == 1,
		Contents:      arena.GetOffset(buf[18:26]),
		TraceFileLine: arena.GetUint32(buf[26:30]),
	}
}

func (MemoryCodec) EncodeAnnotation(buf []byte, a MemoryAnnotation) {
	arena.PutUint64(buf[0:8], a.MinLo)
	arena.PutUint64(buf[8:16], a.MaxHi)
	arena.PutUint32(buf[16:20], a.LatestLine)
}

func (MemoryCodec) DecodeAnnotation(buf []byte) MemoryAnnotation {
	return MemoryAnnotation{
		MinLo:      arena.GetUint64(buf[0:8]),
		MaxHi:      arena.GetUint64(buf[8:16]),
		LatestLine: arena.GetUint32(buf[16:20]),
	}
}

func (MemoryCodec) Compare(a, b MemoryPayload) int { return a.Compare(b) }

func (MemoryCodec) Annotate(_ arena.Arena, p MemoryPayload) MemoryAnnotation {
	return MemoryAnnotation{MinLo: p.Lo, MaxHi: p.Hi, LatestLine: p.TraceFileLine}
}

func (MemoryCodec) Combine(_ arena.Arena, l, r MemoryAnnotation) MemoryAnnotation {
	latest := l.LatestLine
	if r.LatestLine > latest {
		latest = r.LatestLine
	}
	lo := l.MinLo
	if r.MinLo < lo {
		lo = r.MinLo
	}
	hi := l.MaxHi
	if r.MaxHi > hi {
		hi = r.MaxHi
	}
	return MemoryAnnotation{MinLo: lo, MaxHi: hi, LatestLine: latest}
}

// MemorySubPayload tracks a known byte sub-range within a region whose
// containing MemoryPayload is otherwise of unknown content (e.g. after
// a semihosting call overwrote an unknown-sized buffer, but a later
// instruction re-read one known word of it).
type MemorySubPayload struct {
	Lo, Hi        uint64
	Contents      arena.Offset
	TraceFileLine uint32
}

func (p MemorySubPayload) Compare(q MemorySubPayload) int {
	switch {
	case p.Lo < q.Lo:
		return -1
	case p.Lo > q.Lo:
		return 1
	default:
		return 0
	}
}

type MemorySubRangeKey struct{ Lo, Hi uint64 }

func (k MemorySubRangeKey) Compare(p MemorySubPayload) int {
	switch {
	case k.Hi < p.Lo:
		return -1
	case k.Lo > p.Hi:
		return 1
	default:
		return 0
	}
}

type MemorySubCodec struct{}

func (MemorySubCodec) PayloadSize() int    { return 8 + 8 + 8 + 4 }
func (MemorySubCodec) AnnotationSize() int { return 1 }
func (MemorySubCodec) EncodePayload(buf []byte, p MemorySubPayload) {
	arena.PutUint64(buf[0:8], p.Lo)
	arena.PutUint64(buf[8:16], p.Hi)
	arena.PutOffset(buf[16:24], p.Contents)
	arena.PutUint32(buf[24:28], p.TraceFileLine)
}
func (MemorySubCodec) DecodePayload(buf []byte) MemorySubPayload {
	return MemorySubPayload{
		Lo:            arena.GetUint64(buf[0:8]),
		Hi:            arena.GetUint64(buf[8:16]),
		Contents:      arena.GetOffset(buf[16:24]),
		TraceFileLine: arena.GetUint32(buf[24:28]),
	}
}
func (MemorySubCodec) EncodeAnnotation([]byte, struct{})   {}
func (MemorySubCodec) DecodeAnnotation([]byte) struct{}    { return struct{}{} }
func (MemorySubCodec) Compare(a, b MemorySubPayload) int   { return a.Compare(b) }
func (MemorySubCodec) Annotate(arena.Arena, MemorySubPayload) struct{}      { return struct{}{} }
func (MemorySubCodec) Combine(arena.Arena, struct{}, struct{}) struct{}     { return struct{}{} }
