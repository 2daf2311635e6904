package registers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupNameResolvesIndexedRegisters(t *testing.T) {
	id, err := LookupName("r0", 0)
	require.NoError(t, err)
	require.Equal(t, ID{Prefix: PrefixR, Index: 0}, id)

	id, err = LookupName("x30", 0)
	require.NoError(t, err)
	require.Equal(t, ID{Prefix: PrefixX, Index: 30}, id)

	id, err = LookupName("d12", 0)
	require.NoError(t, err)
	require.Equal(t, ID{Prefix: PrefixD, Index: 12}, id)
}

func TestLookupNameSPDisambiguatesOnWidth(t *testing.T) {
	id, err := LookupName("sp", 32)
	require.NoError(t, err)
	require.Equal(t, SP32, id)

	id, err = LookupName("sp", 64)
	require.NoError(t, err)
	require.Equal(t, SP64, id)
}

func TestLookupNameUnknownReturnsError(t *testing.T) {
	_, err := LookupName("notareg99", 0)
	require.ErrorIs(t, err, ErrUnknownRegister)
}

func TestLookupNameIndexOutOfRange(t *testing.T) {
	_, err := LookupName("r99", 0)
	require.ErrorIs(t, err, ErrUnknownRegister)
}

func TestSizeMatchesElementWidth(t *testing.T) {
	require.Equal(t, uint(4), Size(ID{Prefix: PrefixR, Index: 0}))
	require.Equal(t, uint(8), Size(ID{Prefix: PrefixX, Index: 0}))
	require.Equal(t, uint(16), Size(ID{Prefix: PrefixV, Index: 0}))
}

func TestNeedsIFlagsOnlyForAliasingClasses(t *testing.T) {
	require.True(t, NeedsIFlags(ID{Prefix: PrefixD, Index: 0}))
	require.True(t, NeedsIFlags(ID{Prefix: PrefixS, Index: 0}))
	require.False(t, NeedsIFlags(ID{Prefix: PrefixR, Index: 0}))
	require.False(t, NeedsIFlags(ID{Prefix: PrefixX, Index: 0}))
}

func TestOffsetDistinctAcrossXRegisters(t *testing.T) {
	o0 := Offset(ID{Prefix: PrefixX, Index: 0})
	o1 := Offset(ID{Prefix: PrefixX, Index: 1})
	require.NotEqual(t, o0, o1)
	require.Equal(t, uint64(8), o1-o0)
}

func TestOffsetModeDependentRequiresIFlags(t *testing.T) {
	require.Panics(t, func() {
		Offset(ID{Prefix: PrefixD, Index: 0})
	})
	require.NotPanics(t, func() {
		Offset(ID{Prefix: PrefixD, Index: 0}, IFlagAArch64)
	})
}
