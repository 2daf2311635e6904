// Package parser implements the line-oriented Tarmac trace tokenizer
// described in spec.md §4.C, grounded on
// original_source/lib/parser.cpp and include/libtarmac/parser.hh: each
// input line is lexed into punctuation/word tokens and turned into one
// of a small set of typed events, with highlight spans reported
// alongside for syntax-coloured viewers.
package parser

import "github.com/tarmac-trace/ttu/internal/registers"

// Time is a trace timestamp. Lines without one inherit the previous
// line's.
type Time uint64

// Addr is a traced address.
type Addr uint64

// ISet is the instruction-set state a CPU was in when an instruction
// executed.
type ISet int

const (
	ISetARM ISet = iota
	ISetThumb
	ISetA64
)

// HighlightClass labels a half-open character span of the source line
// for syntax highlighting, per spec.md §4.C's closed set.
type HighlightClass int

const (
	HLNone HighlightClass = iota
	HLTimestamp
	HLEvent
	HLPC
	HLInstruction
	HLISet
	HLCPUMode
	HLCCFail
	HLDisassembly
	HLTextEvent
	HLPunct
	HLError
)

// Event is the common header every produced event embeds.
type Event struct {
	Time Time
}

// InstructionEvent reports one retired (or skipped) instruction.
type InstructionEvent struct {
	Event
	Executed     bool
	PC           Addr
	ISet         ISet
	Width        int // 16 or 32
	Instruction  uint32
	Disassembly  string
}

// RegisterEvent reports a register update. Bytes are already
// byte-reversed into this module's little-endian convention.
type RegisterEvent struct {
	Event
	Reg      registers.ID
	GotValue bool
	Value    uint64
	Bytes    []byte
}

// MemoryEvent reports one contiguous memory access.
type MemoryEvent struct {
	Event
	Read     bool
	Known    bool
	Size     int
	Addr     Addr
	Contents uint64
}

// TextOnlyEvent reports a line with no semantic effect the indexer
// models, but which is still worth keeping for display.
type TextOnlyEvent struct {
	Event
	Type string
	Msg  string
}

// Receiver is the sink for parsed events and highlight spans, the Go
// analogue of ParseReceiver: multiple independent receivers (the
// indexer, a syntax highlighter, a test dumper) can each implement it.
// Every method has a usable zero behaviour, so callers that only care
// about a subset of events can embed NopReceiver.
type Receiver interface {
	GotInstruction(InstructionEvent)
	GotRegister(RegisterEvent)
	GotMemory(MemoryEvent)
	GotTextOnly(TextOnlyEvent)

	// Highlight reports a half-open span [start, end) of the source
	// line and its class.
	Highlight(start, end int, class HighlightClass)

	// Warning is called for a recoverable condition; returning true
	// upgrades it to a parse error.
	Warning(msg string) bool
}

// NopReceiver implements Receiver with every method a no-op, for
// embedding in receivers that only care about some event kinds.
type NopReceiver struct{}

func (NopReceiver) GotInstruction(InstructionEvent)          {}
func (NopReceiver) GotRegister(RegisterEvent)                {}
func (NopReceiver) GotMemory(MemoryEvent)                    {}
func (NopReceiver) GotTextOnly(TextOnlyEvent)                {}
func (NopReceiver) Highlight(int, int, HighlightClass)       {}
func (NopReceiver) Warning(string) bool                      { return false }

// ParseError is a recoverable per-line error carrying the byte offset
// in the line at which parsing failed.
type ParseError struct {
	Msg string
	Pos int
}

func (e *ParseError) Error() string { return e.Msg }
