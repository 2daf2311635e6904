// Package navigator implements the read-only query API over a
// committed index described in spec.md §4.F, grounded on
// original_source/lib/index.cpp's IndexNavigator methods
// (node_at_time, node_at_line, get_previous_node/get_next_node,
// find_buffer_limit, find_next_mod, get_reg_value/get_reg_bytes,
// lrt_translate) and include/libtarmac/memtree.hh's Searcher contract.
//
// Every method here treats its trees as frozen: a Navigator never
// inserts or removes, only reads, mirroring the original's separation
// between the indexing pass (Index) and the query surface
// (IndexNavigator) built once indexing completes.
package navigator

import (
	"sort"

	"github.com/tarmac-trace/ttu/internal/arena"
	"github.com/tarmac-trace/ttu/internal/indexer"
	"github.com/tarmac-trace/ttu/internal/registers"
	"github.com/tarmac-trace/ttu/internal/tree"
)

// Navigator answers queries against a completed index.
type Navigator struct {
	ar         arena.Arena
	seqTree    *tree.Tree[indexer.SeqOrderPayload, indexer.SeqOrderAnnotation]
	byPCTree   *tree.Tree[indexer.ByPCPayload, struct{}]
	memTree    *tree.Tree[indexer.MemoryPayload, indexer.MemoryAnnotation]
	memSubTree *tree.Tree[indexer.MemorySubPayload, struct{}]
	seqRoot    arena.Offset
	byPCRoot   arena.Offset
}

// Open builds a Navigator over an already-committed index whose trees
// were engineered with the given arena and header-recorded roots.
func Open(ar arena.Arena, h indexer.Header) *Navigator {
	return &Navigator{
		ar:         ar,
		seqTree:    tree.Open[indexer.SeqOrderPayload, indexer.SeqOrderAnnotation](ar, indexer.SeqOrderCodec{}, ar.CurrOffset()),
		byPCTree:   tree.Open[indexer.ByPCPayload, struct{}](ar, indexer.ByPCCodec{}, ar.CurrOffset()),
		memTree:    tree.Open[indexer.MemoryPayload, indexer.MemoryAnnotation](ar, indexer.MemoryCodec{}, ar.CurrOffset()),
		memSubTree: tree.Open[indexer.MemorySubPayload, struct{}](ar, indexer.MemorySubCodec{}, ar.CurrOffset()),
		seqRoot:    h.SeqRoot,
		byPCRoot:   h.ByPCRoot,
	}
}

// NodeAtTime finds the rightmost sequence entry whose ModTime <= t,
// i.e. "what was current at this moment" (node_at_time in index.cpp).
func (n *Navigator) NodeAtTime(t uint64) (indexer.SeqOrderPayload, bool) {
	return n.seqTree.FindRightmost(n.seqRoot, indexer.TimeKey(t))
}

// NodeAtLine finds the sequence entry covering a trace file line
// (node_at_line).
func (n *Navigator) NodeAtLine(line uint32) (indexer.SeqOrderPayload, bool) {
	return n.seqTree.Find(n.seqRoot, indexer.LineKey(line))
}

// GetPreviousNode returns the sequence entry immediately before in,
// i.e. covering the line just before in's first line.
func (n *Navigator) GetPreviousNode(in indexer.SeqOrderPayload) (indexer.SeqOrderPayload, bool) {
	if in.FirstLine == 0 {
		return indexer.SeqOrderPayload{}, false
	}
	return n.seqTree.Find(n.seqRoot, indexer.LineKey(in.FirstLine-1))
}

// GetNextNode returns the sequence entry immediately after in.
func (n *Navigator) GetNextNode(in indexer.SeqOrderPayload) (indexer.SeqOrderPayload, bool) {
	return n.seqTree.Find(n.seqRoot, indexer.LineKey(in.LastLine))
}

// FindBufferLimit returns the first or last sequence entry in the
// whole trace (find_buffer_limit): end=false for the start, end=true
// for the end.
func (n *Navigator) FindBufferLimit(end bool) (indexer.SeqOrderPayload, bool) {
	min, max, ok := n.seqTree.FindBufferLimit(n.seqRoot)
	if !ok {
		return indexer.SeqOrderPayload{}, false
	}
	if end {
		return max, true
	}
	return min, true
}

// ByPC finds the most recent trace file line that executed address pc.
func (n *Navigator) ByPC(pc uint64) (uint32, bool) {
	p, ok := n.byPCTree.FindRightmost(n.byPCRoot, indexer.PCKey(pc))
	if !ok {
		return 0, false
	}
	return p.Line, true
}

// GetMemBytes reconstructs [addr, addr+size) as of memroot, returning
// ok=false if any byte in the range has never been written (get_mem's
// "undefined" case). Ported from original_source/lib/index.cpp's
// getmem/getmem_next: walks every MemoryPayload overlapping the range
// in address order, copying raw bytes directly and, for a sub region
// (Raw false), recursing into its MemorySubPayload subtree for just
// the overlapping portion — any byte not covered by a recorded sub
// entry is undefined, same as a byte outside every region.
func (n *Navigator) GetMemBytes(memroot arena.Offset, typ byte, addr uint64, size int) ([]byte, bool) {
	if size <= 0 {
		return nil, false
	}
	hi := addr + uint64(size) - 1
	out := make([]byte, size)
	cursor := addr
	for {
		p, ok := n.memTree.Find(memroot, indexer.MemoryRangeKey{Type: typ, Lo: cursor, Hi: hi})
		if !ok || p.Lo > cursor {
			return nil, false
		}
		regLo, regHi := cursor, p.Hi
		if regHi > hi {
			regHi = hi
		}

		if p.Raw {
			src := n.ar.Bytes(p.Contents, int(p.Hi-p.Lo+1))
			rel := regLo - p.Lo
			copy(out[regLo-addr:regHi-addr+1], src[rel:rel+(regHi-regLo+1)])
		} else if !n.copySubRange(p.Contents, regLo, regHi, addr, out) {
			return nil, false
		}

		if regHi >= hi || regHi == ^uint64(0) {
			return out, true
		}
		cursor = regHi + 1
	}
}

// copySubRange fills out[lo-base : hi-base+1] from the MemorySubPayload
// entries overlapping [lo, hi] rooted at subRoot, returning false if
// any byte in that range isn't covered by a recorded entry.
func (n *Navigator) copySubRange(subRoot arena.Offset, lo, hi, base uint64, out []byte) bool {
	type interval struct{ lo, hi uint64 }
	var covered []interval
	n.memSubTree.Walk(subRoot, tree.InOrder, func(p indexer.MemorySubPayload, _ struct{}, _ arena.Offset) {
		if p.Hi < lo || p.Lo > hi {
			return
		}
		l, h := p.Lo, p.Hi
		if l < lo {
			l = lo
		}
		if h > hi {
			h = hi
		}
		covered = append(covered, interval{l, h})
		src := n.ar.Bytes(p.Contents, int(p.Hi-p.Lo+1))
		rel := l - p.Lo
		copy(out[l-base:h-base+1], src[rel:rel+(h-l+1)])
	})
	sort.Slice(covered, func(i, j int) bool { return covered[i].lo < covered[j].lo })
	cursor := lo
	for _, c := range covered {
		if c.lo > cursor {
			return false
		}
		if c.hi+1 > cursor {
			cursor = c.hi + 1
		}
	}
	return cursor > hi
}

// GetRegBytes reads a register's raw little-endian bytes as of memroot.
func (n *Navigator) GetRegBytes(memroot arena.Offset, reg registers.ID, iflags uint32) ([]byte, bool) {
	off := registers.Offset(reg, iflags)
	size := int(registers.Size(reg))
	return n.GetMemBytes(memroot, 'r', off, size)
}

// GetRegValue reads a register as a little-endian integer.
func (n *Navigator) GetRegValue(memroot arena.Offset, reg registers.ID, iflags uint32) (uint64, bool) {
	bytes, ok := n.GetRegBytes(memroot, reg, iflags)
	if !ok {
		return 0, false
	}
	var v uint64
	for i := len(bytes) - 1; i >= 0; i-- {
		v = (v << 8) | uint64(bytes[i])
	}
	return v, true
}

// GetIFlags reads internal_flags, defaulting to 0 when undefined (the
// very start of the trace, before any instruction has run).
func (n *Navigator) GetIFlags(memroot arena.Offset) uint32 {
	v, ok := n.GetRegValue(memroot, registers.IFlags, 0)
	if !ok {
		return 0
	}
	return uint32(v)
}

// FindNextMod looks for the nearest byte range of type typ touching
// addr whose last write happened on or after minline, searching
// forward (sign > 0) or backward (sign < 0) from addr. Unlike
// index.cpp's two-pass RegMemChangesSearcher, this walks every
// MemoryPayload under memroot in order in a single pass, without
// consulting MemoryAnnotation to prune subtrees, so its cost is linear
// in the size of the memory tree.
func (n *Navigator) FindNextMod(memroot arena.Offset, typ byte, addr uint64, minline uint32, sign int) (lo, hi uint64, ok bool) {
	var best indexer.MemoryPayload
	var found bool
	n.memTree.Walk(memroot, tree.InOrder, func(p indexer.MemoryPayload, _ indexer.MemoryAnnotation, _ arena.Offset) {
		if p.Type != typ || p.TraceFileLine < minline {
			return
		}
		if sign > 0 {
			if p.Lo <= addr {
				return
			}
			if !found || p.Lo < best.Lo {
				best, found = p, true
			}
		} else {
			if p.Hi >= addr {
				return
			}
			if !found || p.Hi > best.Hi {
				best, found = p, true
			}
		}
	})
	if !found {
		return 0, 0, false
	}
	return best.Lo, best.Hi, true
}

// LRTTranslate counts sequence-tree lines before line whose CallDepth
// falls within [mindepth, maxdepth), the "logical record translation"
// spec.md §4.F describes for call-stack-depth filtered line
// navigation. Ported from original_source/lib/index.cpp's
// IndexLRTSearcher, specialized to the single-band case (the "input"
// depth band — which offset to seek to — covers every depth; only the
// "output" band being summed is restricted). Each step of the descent
// decodes the visited children's call-depth arrays in full and then
// consults them with two find_depth binary searches, so a step costs
// O(D) in the number of distinct depths D and the whole walk is
// O(log N · D) rather than visiting every sequence entry.
func (n *Navigator) LRTTranslate(line uint32, mindepth, maxdepth int32) uint32 {
	target := int64(line) - 1
	if target < 0 {
		target = 0
	}
	mind := int64(mindepth)
	maxdExcl := int64(maxdepth)
	var output uint32

	n.seqTree.Search(n.seqRoot, func(lc *indexer.SeqOrderAnnotation, p indexer.SeqOrderPayload, _ indexer.SeqOrderAnnotation, rc *indexer.SeqOrderAnnotation) int {
		if lc != nil {
			linesLeft := int64(lc.TotalLines(n.ar))
			if target < linesLeft {
				return -1
			}
			target -= linesLeft
			output += lc.BandLines(n.ar, mind, maxdExcl)
		}

		ownLines := int64(p.LastLine - p.FirstLine)
		inBand := int64(p.CallDepth) >= mind && int64(p.CallDepth) < maxdExcl
		if target < ownLines || (target == ownLines && rc == nil) {
			if inBand {
				output += uint32(target)
			}
			return 0
		}
		target -= ownLines
		if inBand {
			output += uint32(ownLines)
		}

		if rc != nil {
			linesRight := int64(rc.TotalLines(n.ar))
			if target <= linesRight {
				return +1
			}
			target -= linesRight
			output += rc.BandLines(n.ar, mind, maxdExcl)
		}

		// line lies beyond the tree's total span; nothing further to add.
		return 0
	})

	return output
}

// LRTTranslateRange reports how many lines within [linestart, lineend)
// fall within the given call-depth band (lrt_translate_range).
func (n *Navigator) LRTTranslateRange(linestart, lineend uint32, mindepth, maxdepth int32) uint32 {
	return n.LRTTranslate(lineend, mindepth, maxdepth) - n.LRTTranslate(linestart, mindepth, maxdepth)
}
