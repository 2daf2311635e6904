// Package arena implements the append-only byte store that backs every
// persistent tree in this module (see internal/tree). An Arena grows
// monotonically; offsets handed out by Alloc remain valid and stable for
// the Arena's entire lifetime, even across growth.
package arena

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Offset is a handle into an Arena. The zero Offset is reserved as the
// null pointer: Alloc never returns 0.
type Offset uint64

// Null is the reserved null offset. No allocation ever returns it.
const Null Offset = 0

// Arena is the append-only byte store. Two backends are provided:
// NewMem (pure RAM, doubling slice) and NewDisk (memory-mapped file,
// growing by ftruncate + remap). Both satisfy this interface so that
// internal/tree and internal/indexer are agnostic to the backing store.
type Arena interface {
	// Alloc reserves size bytes at the end of the arena and returns the
	// offset of the first byte. Offsets are never reused.
	Alloc(size int) (Offset, error)

	// Bytes returns a mutable view of the size bytes starting at off.
	// The slice is only valid until the next call to Alloc triggers a
	// grow; callers must not retain it across an Alloc call.
	Bytes(off Offset, size int) []byte

	// CurrOffset returns the arena's current end (i.e. the offset the
	// next Alloc will begin handing out growth from).
	CurrOffset() Offset

	// Close releases any OS resources (file handles, mappings). RAM
	// arenas treat this as a no-op.
	Close() error
}

// PutUint64 / GetUint64 / PutUint32 / GetUint32 implement the "disk-portable
// integer" requirement from spec.md §3: all integers stored in the arena
// are big-endian fixed-width, regardless of host byte order.
func PutUint64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }
func GetUint64(b []byte) uint64    { return binary.BigEndian.Uint64(b) }
func PutUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func GetUint32(b []byte) uint32    { return binary.BigEndian.Uint32(b) }

func PutOffset(b []byte, o Offset) { PutUint64(b, uint64(o)) }
func GetOffset(b []byte) Offset    { return Offset(GetUint64(b)) }

// ErrGrowthFailed wraps any OS-level error encountered while growing an
// Arena. Per spec.md §4.A this is always fatal: callers should surface it
// through a Reporter and terminate, not attempt to continue.
var ErrGrowthFailed = errors.New("arena: growth failed")
