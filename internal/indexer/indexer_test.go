package indexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarmac-trace/ttu/internal/arena"
	"github.com/tarmac-trace/ttu/internal/parser"
	"github.com/tarmac-trace/ttu/internal/registers"
	"github.com/tarmac-trace/ttu/internal/reporter"
)

func feedLine(t *testing.T, ix *Indexer, p *parser.LineParser, lineno uint32, byteOff uint64, line string) {
	t.Helper()
	ix.BeginLine(lineno, byteOff)
	require.NoError(t, p.Parse(line))
}

func TestFlushOnTimestampChangeProducesOneEntryPerTimestamp(t *testing.T) {
	ar := arena.NewMem()
	ix := New(ar, false, reporter.Nop{})
	p := parser.NewLineParser(false, ix)

	feedLine(t, ix, p, 1, 0, "1 IT 1000 e1a00000 A USR : NOP")
	feedLine(t, ix, p, 2, 10, "2 IT 1004 e1a00000 A USR : NOP")
	h := ix.Finalize("trace.tarmac")

	require.NotEqual(t, arena.Null, h.SeqRoot)
	require.Equal(t, 2, ix.SeqTree.Len(h.SeqRoot))
}

func TestFlushCoalescesRepeatedTimestamp(t *testing.T) {
	ar := arena.NewMem()
	ix := New(ar, false, reporter.Nop{})
	p := parser.NewLineParser(false, ix)

	feedLine(t, ix, p, 1, 0, "1 R r0 00000001")
	feedLine(t, ix, p, 2, 10, "1 IT 1000 e1a00000 A USR : NOP")
	h := ix.Finalize("trace.tarmac")

	require.Equal(t, 1, ix.SeqTree.Len(h.SeqRoot))
}

func TestRegisterWriteIsQueryableByLatestRead(t *testing.T) {
	ar := arena.NewMem()
	ix := New(ar, false, reporter.Nop{})
	p := parser.NewLineParser(false, ix)

	feedLine(t, ix, p, 1, 0, "1 R r0 000000ff")
	_, ok := ix.readMemRegValue(ix.regSP())
	require.False(t, ok) // sp untouched

	r0Val, ok := ix.readMemValue('r', registers.Offset(registers.R0_32), 4)
	require.True(t, ok)
	require.Equal(t, uint64(0xff), r0Val)
}

func TestCallReturnHeuristicAssignsIncreasedDepth(t *testing.T) {
	ar := arena.NewMem()
	ix := New(ar, false, reporter.Nop{})
	p := parser.NewLineParser(false, ix)

	// Set up sp so the heuristic has something to compare against.
	feedLine(t, ix, p, 1, 0, "1 R sp 00001000")
	feedLine(t, ix, p, 2, 1, "1 R lr 00008100")

	// A call: branch from 0x8000 to 0x9000, LR set to the expected
	// return address (0x8004) within tolerance.
	feedLine(t, ix, p, 3, 2, "2 IT 00008000 e1a00000 A USR : NOP")
	feedLine(t, ix, p, 4, 3, "2 R lr 00008004")
	feedLine(t, ix, p, 5, 4, "3 IT 00009000 e1a00000 A USR : NOP")

	// A return: branch back to the expected LR (0x8004).
	feedLine(t, ix, p, 6, 5, "4 IT 00008004 e1a00000 A USR : NOP")

	h := ix.Finalize("trace.tarmac")
	require.NotEqual(t, arena.Null, h.SeqRoot)
	require.Greater(t, ix.SeqTree.Len(h.SeqRoot), 0)

	// The callee's line sits one level deeper than the line the call
	// returns to.
	callee, ok := ix.SeqTree.Find(h.SeqRoot, LineKey(5))
	require.True(t, ok)
	require.Equal(t, int32(1), callee.CallDepth)
	after, ok := ix.SeqTree.Find(h.SeqRoot, LineKey(6))
	require.True(t, ok)
	require.Equal(t, int32(0), after.CallDepth)
}

func TestMemoryWriteOverlapDeletesOldRange(t *testing.T) {
	ar := arena.NewMem()
	ix := New(ar, false, reporter.Nop{})

	ix.BeginLine(1, 0)
	ix.rawMemWrite('m', 0x2000, 8, 0x1122334455667788)
	v, ok := ix.readMemValue('m', 0x2000, 8)
	require.True(t, ok)
	require.Equal(t, uint64(0x1122334455667788), v)

	ix.BeginLine(2, 8)
	ix.rawMemWrite('m', 0x2004, 4, 0xAABBCCDD)
	_, ok = ix.readMemValue('m', 0x2000, 8)
	require.False(t, ok) // old 8-byte span no longer intact

	v2, ok := ix.readMemValue('m', 0x2004, 4)
	require.True(t, ok)
	require.Equal(t, uint64(0xAABBCCDD), v2)
}

func TestSemihostingReadMarksBufferUnknown(t *testing.T) {
	ar := arena.NewMem()
	ix := New(ar, false, reporter.Nop{})

	ix.BeginLine(1, 0)
	ix.rawMemWrite('m', 0x3000, 4, 0xDEADBEEF)
	_, ok := ix.readMemValue('m', 0x3000, 4)
	require.True(t, ok)

	ix.semihostingMarksUnknown(0x3000, 4)
	_, ok = ix.readMemValue('m', 0x3000, 4)
	require.False(t, ok)
}

func TestUnwrittenMemoryStartsInsideASubRegion(t *testing.T) {
	ar := arena.NewMem()
	ix := New(ar, false, reporter.Nop{})

	p, ok := ix.MemTree.Find(ix.memRoot, MemoryRangeKey{Type: 'm', Lo: 0x1234, Hi: 0x1234})
	require.True(t, ok, "every memory address starts inside the initial whole-space sub region")
	require.False(t, p.Raw)
	require.Equal(t, uint64(0), p.Lo)
	require.Equal(t, ^uint64(0), p.Hi)
}

func TestSemihostingThenKnownRereadFillsOnlyTheReadPortion(t *testing.T) {
	ar := arena.NewMem()
	ix := New(ar, false, reporter.Nop{})

	ix.BeginLine(1, 0)
	ix.rawMemWrite('m', 0x3000, 8, 0x1122334455667788)
	ix.semihostingMarksUnknown(0x3000, 8)

	_, ok := ix.readMemValue('m', 0x3000, 8)
	require.False(t, ok, "whole range is unknown again after the semihosting touch")

	// A later known read of just the first 4 bytes should teach us only
	// those bytes, via a MemorySubPayload entry in the sub region — the
	// remaining 4 bytes stay undefined.
	ix.updateMemtreeFromRead('m', 0x3000, 4, 0xCAFEBABE)

	v, ok := readSubBytes(t, ix, 0x3000, 4)
	require.True(t, ok)
	require.Equal(t, uint32(0xCAFEBABE), v)

	_, ok = readSubBytes(t, ix, 0x3004, 4)
	require.False(t, ok, "bytes outside the known read stay undefined")
}

// readSubBytes reads size little-endian bytes out of the live memory
// tree, walking a !Raw region's MemorySubPayload subtree the same way
// internal/navigator.GetMemBytes does, for tests that need to look past
// readMemValue's raw-only check.
func readSubBytes(t *testing.T, ix *Indexer, addr uint64, size int) (uint32, bool) {
	t.Helper()
	p, ok := ix.MemTree.Find(ix.memRoot, MemoryRangeKey{Type: 'm', Lo: addr, Hi: addr + uint64(size) - 1})
	if !ok || p.Raw || p.Lo > addr || p.Hi < addr+uint64(size)-1 {
		return 0, false
	}
	sub, ok := ix.MemSubTree.Find(p.Contents, MemorySubRangeKey{Lo: addr, Hi: addr + uint64(size) - 1})
	if !ok || sub.Lo > addr || sub.Hi < addr+uint64(size)-1 {
		return 0, false
	}
	buf := ix.ar.Bytes(sub.Contents, int(sub.Hi-sub.Lo+1))
	rel := addr - sub.Lo
	var v uint32
	for i := size - 1; i >= 0; i-- {
		v = (v << 8) | uint32(buf[rel+uint64(i)])
	}
	return v, true
}
