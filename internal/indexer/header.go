package indexer

import (
	"github.com/google/uuid"

	"github.com/tarmac-trace/ttu/internal/arena"
)

// headerMagic and headerVersion identify the on-disk index file format
// (spec.md §4.A's "index files carry a header the navigator checks
// before trusting the rest of the arena").
const (
	headerMagic   = "TTUIDX01"
	headerVersion = 1
)

// Flag bits stored in the header, mirroring the BIGEND/AARCH64_USED/
// COMPLETE flags original_source keeps on its index file so a crashed
// or truncated index is never mistaken for a finished one.
const (
	FlagBigEnd      uint32 = 1 << 0
	FlagAArch64Used uint32 = 1 << 1
	FlagComplete    uint32 = 1 << 2
)

// Header is the fixed-size record written at the start of an index
// file, giving the navigator everything it needs to resume: the two
// persistent tree roots, the flags describing the trace's ISA
// conventions, and a session id tying the index back to the
// command-line invocation that produced it.
type Header struct {
	SeqRoot     arena.Offset
	ByPCRoot    arena.Offset
	BigEnd      bool
	AArch64Used bool
	Complete    bool
	SessionID   uuid.UUID
}

func (h Header) flags() uint32 {
	var f uint32
	if h.BigEnd {
		f |= FlagBigEnd
	}
	if h.AArch64Used {
		f |= FlagAArch64Used
	}
	if h.Complete {
		f |= FlagComplete
	}
	return f
}

const headerSize = 8 + 4 + 8 + 8 + 4 + 16 // magic + version + seqroot + bypcroot + flags + uuid

// HeaderOffset is where ReserveHeader's allocation lands when it's the
// very first call made against a fresh arena: both MemArena and
// DiskArena reserve exactly 8 bytes of padding (so Offset 0 can mean
// "null") before handing out their first real allocation. A browser
// reopening a finished index file can therefore seek straight to this
// offset instead of needing a side channel to learn where the header
// landed.
const HeaderOffset = arena.Offset(8)

// ReserveHeader allocates headerSize bytes for a Header, meant to be
// the very first allocation an indexing run makes so the header always
// lives at HeaderOffset.
func ReserveHeader(ar arena.Arena) (arena.Offset, error) {
	return ar.Alloc(headerSize)
}

// WriteHeader serializes h at off, normally the offset returned by an
// earlier ReserveHeader call.
func WriteHeader(ar arena.Arena, off arena.Offset, h Header) {
	buf := ar.Bytes(off, headerSize)
	copy(buf[0:8], headerMagic)
	arena.PutUint32(buf[8:12], headerVersion)
	arena.PutOffset(buf[12:20], h.SeqRoot)
	arena.PutOffset(buf[20:28], h.ByPCRoot)
	arena.PutUint32(buf[28:32], h.flags())
	sid, _ := h.SessionID.MarshalBinary()
	copy(buf[32:48], sid)
}

// ReadHeader decodes the header at off, reporting ok=false if the magic
// or version don't match (IndexWrongFormat in reporter.IndexUpdateCheck
// terms).
func ReadHeader(ar arena.Arena, off arena.Offset) (h Header, ok bool) {
	buf := ar.Bytes(off, headerSize)
	if string(buf[0:8]) != headerMagic {
		return Header{}, false
	}
	if arena.GetUint32(buf[8:12]) != headerVersion {
		return Header{}, false
	}
	h.SeqRoot = arena.GetOffset(buf[12:20])
	h.ByPCRoot = arena.GetOffset(buf[20:28])
	flags := arena.GetUint32(buf[28:32])
	h.BigEnd = flags&FlagBigEnd != 0
	h.AArch64Used = flags&FlagAArch64Used != 0
	h.Complete = flags&FlagComplete != 0
	_ = h.SessionID.UnmarshalBinary(buf[32:48])
	return h, true
}
