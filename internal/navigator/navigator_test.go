package navigator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarmac-trace/ttu/internal/arena"
	"github.com/tarmac-trace/ttu/internal/indexer"
	"github.com/tarmac-trace/ttu/internal/parser"
	"github.com/tarmac-trace/ttu/internal/reporter"
)

func buildIndex(t *testing.T, lines []string) (arena.Arena, indexer.Header) {
	t.Helper()
	ar := arena.NewMem()
	ix := indexer.New(ar, false, reporter.Nop{})
	p := parser.NewLineParser(false, ix)
	for i, line := range lines {
		ix.BeginLine(uint32(i+1), uint64(i*10))
		require.NoError(t, p.Parse(line))
	}
	return ar, ix.Finalize("trace.tarmac")
}

func TestNodeAtLineAndNeighbors(t *testing.T) {
	ar, h := buildIndex(t, []string{
		"1 IT 1000 e1a00000 A USR : NOP",
		"2 IT 1004 e1a00000 A USR : NOP",
		"3 IT 1008 e1a00000 A USR : NOP",
	})
	nav := Open(ar, h)

	mid, ok := nav.NodeAtLine(2)
	require.True(t, ok)
	require.LessOrEqual(t, mid.FirstLine, uint32(2))
	require.Greater(t, mid.LastLine, uint32(2))

	prev, ok := nav.GetPreviousNode(mid)
	require.True(t, ok)
	require.Less(t, prev.FirstLine, mid.FirstLine)

	next, ok := nav.GetNextNode(mid)
	require.True(t, ok)
	require.GreaterOrEqual(t, next.FirstLine, mid.LastLine)
}

func TestFindBufferLimit(t *testing.T) {
	ar, h := buildIndex(t, []string{
		"1 IT 1000 e1a00000 A USR : NOP",
		"2 IT 1004 e1a00000 A USR : NOP",
	})
	nav := Open(ar, h)

	start, ok := nav.FindBufferLimit(false)
	require.True(t, ok)
	require.Equal(t, uint32(1), start.FirstLine)

	end, ok := nav.FindBufferLimit(true)
	require.True(t, ok)
	require.GreaterOrEqual(t, end.FirstLine, start.FirstLine)
}

func TestGetMemBytesRoundTrip(t *testing.T) {
	ar, h := buildIndex(t, []string{
		"1 MW4 00002000 CAFEBABE",
	})
	nav := Open(ar, h)

	node, ok := nav.NodeAtLine(1)
	require.True(t, ok)

	b, ok := nav.GetMemBytes(node.MemoryRoot, 'm', 0x2000, 4)
	require.True(t, ok)
	require.Equal(t, []byte{0xBE, 0xBA, 0xFE, 0xCA}, b)
}

func TestGetMemBytesUndefinedReturnsFalse(t *testing.T) {
	ar, h := buildIndex(t, []string{
		"1 IT 1000 e1a00000 A USR : NOP",
	})
	nav := Open(ar, h)

	node, ok := nav.NodeAtLine(1)
	require.True(t, ok)

	_, ok = nav.GetMemBytes(node.MemoryRoot, 'm', 0x9999, 4)
	require.False(t, ok)
}

// TestGetMemBytesWalksSubRegionForPartiallyKnownRange drives GotMemory
// directly (rather than through trace-line text) to set up: a raw
// 8-byte write, an unknown-effect event re-opening that range as a
// sub region (the same path a semihosting call's buffer write takes),
// then a known 4-byte re-read of just the first half. GetMemBytes must
// walk the resulting MemorySubPayload subtree to recover the known
// half and report the other half as still undefined.
func TestGetMemBytesWalksSubRegionForPartiallyKnownRange(t *testing.T) {
	ar := arena.NewMem()
	ix := indexer.New(ar, false, reporter.Nop{})

	ix.BeginLine(1, 0)
	ix.GotMemory(parser.MemoryEvent{Event: parser.Event{Time: 1}, Read: false, Known: true, Size: 8, Addr: 0x4000, Contents: 0x1122334455667788})

	ix.BeginLine(2, 10)
	ix.GotMemory(parser.MemoryEvent{Event: parser.Event{Time: 2}, Read: false, Known: false, Size: 8, Addr: 0x4000})

	ix.BeginLine(3, 20)
	ix.GotMemory(parser.MemoryEvent{Event: parser.Event{Time: 3}, Read: true, Known: true, Size: 4, Addr: 0x4000, Contents: 0xCAFEBABE})

	h := ix.Finalize("trace.tarmac")
	nav := Open(ar, h)

	node, ok := nav.NodeAtLine(3)
	require.True(t, ok)

	b, ok := nav.GetMemBytes(node.MemoryRoot, 'm', 0x4000, 4)
	require.True(t, ok)
	require.Equal(t, []byte{0xBE, 0xBA, 0xFE, 0xCA}, b)

	_, ok = nav.GetMemBytes(node.MemoryRoot, 'm', 0x4004, 4)
	require.False(t, ok)
}

func TestLRTTranslateCountsWithinDepthBand(t *testing.T) {
	ar, h := buildIndex(t, []string{
		"1 IT 1000 e1a00000 A USR : NOP",
		"2 IT 1004 e1a00000 A USR : NOP",
		"3 IT 1008 e1a00000 A USR : NOP",
	})
	nav := Open(ar, h)
	// All entries are at depth 0 absent any call/return activity, so
	// the depth-0 band [0, 1) should count every line before the probe.
	count := nav.LRTTranslate(3, 0, 1)
	require.Equal(t, uint32(2), count)
}
