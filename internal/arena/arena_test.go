package arena

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemArenaAllocIsStableAndAppendOnly(t *testing.T) {
	m := NewMem()

	off1, err := m.Alloc(8)
	require.NoError(t, err)
	require.NotEqual(t, Null, off1)

	PutUint64(m.Bytes(off1, 8), 0xDEADBEEF)

	// Force growth past the initial capacity.
	for i := 0; i < 10000; i++ {
		_, err := m.Alloc(8)
		require.NoError(t, err)
	}

	// off1's contents must survive every subsequent growth.
	require.Equal(t, uint64(0xDEADBEEF), GetUint64(m.Bytes(off1, 8)))
}

func TestMemArenaOffsetsMonotonic(t *testing.T) {
	m := NewMem()
	last := m.CurrOffset()
	for i := 0; i < 100; i++ {
		off, err := m.Alloc(16)
		require.NoError(t, err)
		require.True(t, off >= last)
		last = m.CurrOffset()
	}
}

func TestDiskArenaGrowthPreservesOffsets(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/index.ttu"

	d, err := NewDisk(path, true)
	require.NoError(t, err)

	off1, err := d.Alloc(8)
	require.NoError(t, err)
	PutUint64(d.Bytes(off1, 8), 0x1122334455667788)

	// Allocate enough to force at least one remap.
	big := make([]byte, 0)
	_ = big
	for i := 0; i < 2000; i++ {
		off, err := d.Alloc(4096)
		require.NoError(t, err)
		PutUint32(d.Bytes(off, 4), uint32(i))
	}

	require.Equal(t, uint64(0x1122334455667788), GetUint64(d.Bytes(off1, 8)))
	require.NoError(t, d.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestDiskArenaReopenReadOnly(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/index.ttu"

	d, err := NewDisk(path, true)
	require.NoError(t, err)
	off, err := d.Alloc(8)
	require.NoError(t, err)
	PutUint64(d.Bytes(off, 8), 42)
	require.NoError(t, d.Close())

	r, err := NewDisk(path, false)
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, uint64(42), GetUint64(r.Bytes(off, 8)))

	_, err = r.Alloc(8)
	require.Error(t, err)
}
