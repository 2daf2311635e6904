package symbols

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupSymbolFindsExactName(t *testing.T) {
	tbl := NewTable(map[string]uint64{"main": 0x8000, "reset_handler": 0x0})

	addr, ok := tbl.LookupSymbol("main")
	require.True(t, ok)
	require.Equal(t, uint64(0x8000), addr)

	_, ok = tbl.LookupSymbol("nonexistent")
	require.False(t, ok)
}

func TestNameForAddressFindsNearestPrecedingSymbol(t *testing.T) {
	tbl := NewTable(map[string]uint64{
		"reset_handler": 0x0,
		"main":          0x8000,
	})

	name, offset, ok := tbl.NameForAddress(0x8010)
	require.True(t, ok)
	require.Equal(t, "main", name)
	require.Equal(t, uint64(0x10), offset)

	name, offset, ok = tbl.NameForAddress(0x10)
	require.True(t, ok)
	require.Equal(t, "reset_handler", name)
	require.Equal(t, uint64(0x10), offset)
}

func TestNameForAddressBelowEverySymbolFails(t *testing.T) {
	tbl := NewTable(map[string]uint64{"main": 0x8000})

	_, _, ok := tbl.NameForAddress(0x10)
	require.False(t, ok)
}
