package fold

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tarmac-trace/ttu/internal/arena"
	"github.com/tarmac-trace/ttu/internal/indexer"
	"github.com/tarmac-trace/ttu/internal/navigator"
	"github.com/tarmac-trace/ttu/internal/parser"
	"github.com/tarmac-trace/ttu/internal/reporter"
)

func buildNav(t *testing.T, nLines int) *navigator.Navigator {
	t.Helper()
	ar := arena.NewMem()
	ix := indexer.New(ar, false, reporter.Nop{})
	p := parser.NewLineParser(false, ix)
	for i := 0; i < nLines; i++ {
		ix.BeginLine(uint32(i+1), uint64(i*10))
		require.NoError(t, p.Parse(
			"1 IT "+hexLine(i)+" e1a00000 A USR : NOP",
		))
	}
	h := ix.Finalize("trace.tarmac")
	return navigator.Open(ar, h)
}

func hexLine(i int) string {
	const hexDigits = "0123456789abcdef"
	addr := 0x1000 + i*4
	b := []byte("00000000")
	for pos := 7; pos >= 0 && addr > 0; pos-- {
		b[pos] = hexDigits[addr%16]
		addr /= 16
	}
	return string(b)
}

func TestInitialViewIsWhollyUnfolded(t *testing.T) {
	nav := buildNav(t, 5)
	v := NewView(nav, 5)

	for line := uint32(1); line <= 5; line++ {
		require.Equal(t, line, v.PhysicalToVisibleLine(line))
	}
}

func TestSetFoldStateHidingUnoccupiedDepthCollapsesRange(t *testing.T) {
	nav := buildNav(t, 5)
	v := NewView(nav, 5)

	// Every line in this trace sits at call depth 0 (no call/return
	// activity), so asking to show only depth 1 hides the whole
	// region: it collapses to its single quasi-visible line.
	v.SetFoldState(2, 4, 1, 2)

	require.Equal(t, uint32(1), v.PhysicalToVisibleLine(1))
	require.Equal(t, v.PhysicalToVisibleLine(2), v.PhysicalToVisibleLine(4))
	require.Greater(t, v.PhysicalToVisibleLine(5), v.PhysicalToVisibleLine(4))
}

func TestSetFoldStateShowingOccupiedDepthLeavesRangeUnfolded(t *testing.T) {
	nav := buildNav(t, 5)
	v := NewView(nav, 5)

	v.SetFoldState(2, 4, 0, 1)

	// depth 0 is what every line in this trace occupies, so nothing
	// is actually hidden: each physical line keeps its own visible
	// line.
	require.NotEqual(t, v.PhysicalToVisibleLine(2), v.PhysicalToVisibleLine(4))
}

func TestVisibleToPhysicalRoundTripsOnUnfoldedLine(t *testing.T) {
	nav := buildNav(t, 5)
	v := NewView(nav, 5)

	v.SetFoldState(2, 4, 1, 2)

	last := v.PhysicalToVisibleLine(5)
	require.Equal(t, uint32(5), v.VisibleToPhysicalLine(last))
}
