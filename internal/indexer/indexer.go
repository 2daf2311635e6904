package indexer

import (
	"sort"

	"github.com/google/uuid"

	"github.com/tarmac-trace/ttu/internal/arena"
	"github.com/tarmac-trace/ttu/internal/parser"
	"github.com/tarmac-trace/ttu/internal/registers"
	"github.com/tarmac-trace/ttu/internal/reporter"
	"github.com/tarmac-trace/ttu/internal/tree"
)

// lrWindowInstructions and lrToleranceBytes are the call/return
// heuristic's tuning constants from spec.md §4.E / §9: do not retune
// without re-validating against the corpus of traces the heuristic was
// designed against.
const (
	lrWindowInstructions = 8
	lrToleranceBytes     = 64
)

const noPC = ^uint64(0)

type pendingCall struct {
	sp, pc   uint64
	callLine uint32
}

type callReturn struct {
	line      uint32
	direction int32 // +1 = call, -1 = return
}

// Indexer consumes a stream of parser events for a single trace file
// and builds the persistent sequence/by-PC/memory trees described in
// spec.md §4.E. It implements parser.Receiver directly, the same
// relationship original_source/lib/index.cpp's Index class has with
// ParseReceiver.
type Indexer struct {
	ar  arena.Arena
	rep reporter.Reporter

	SeqTree    *tree.Tree[SeqOrderPayload, SeqOrderAnnotation]
	ByPCTree   *tree.Tree[ByPCPayload, struct{}]
	MemTree    *tree.Tree[MemoryPayload, MemoryAnnotation]
	MemSubTree *tree.Tree[MemorySubPayload, struct{}]

	seqRoot, byPCRoot, memRoot, lastMemRoot arena.Offset

	bigend       bool
	aarch64Used  bool
	currIFlags   uint32
	lastISet     parser.ISet

	started      bool
	currentTime  Time64
	seenInstrAtT bool

	trueLineno uint32 // 1-based line currently being processed
	prevLineno uint32
	flushFirstLine uint32
	flushByteStart uint64
	linePos        uint64

	currSP, lastSP       uint64
	currPC               uint64
	expectedNextPC       uint64
	expectedNextLR       uint64
	insnsSinceLRUpdate   uint32

	pendingCalls []pendingCall
	callRets     []callReturn

	seqEntries []SeqOrderPayload // accumulated until Finalize does the call-depth pass

	warnedUnknownRegs map[string]bool
}

// Time64 is a trace timestamp, kept distinct from parser.Time to avoid
// importing the parser package's Time into every call site.
type Time64 = uint64

// New builds an Indexer writing into ar. bigend selects the register
// and LD/ST endianness convention, matching TarmacLineParser's bigend
// flag.
func New(ar arena.Arena, bigend bool, rep reporter.Reporter) *Indexer {
	ix := &Indexer{
		ar:                ar,
		rep:               rep,
		bigend:            bigend,
		expectedNextPC:    noPC,
		warnedUnknownRegs: map[string]bool{},
	}
	ix.SeqTree = tree.New[SeqOrderPayload, SeqOrderAnnotation](ar, SeqOrderCodec{})
	ix.ByPCTree = tree.New[ByPCPayload, struct{}](ar, ByPCCodec{})
	ix.MemTree = tree.New[MemoryPayload, MemoryAnnotation](ar, MemoryCodec{})
	ix.MemSubTree = tree.New[MemorySubPayload, struct{}](ar, MemorySubCodec{})

	// Per spec.md §4.E / original_source/lib/index.cpp's Index
	// constructor (make_sub_memtree('m', 0, 0), relying on the
	// addr+size wraparound to cover the whole address space): the
	// entire memory address space starts out a single sub region, with
	// nothing yet recorded as known. Register space carries no such
	// region — an unwritten register is simply absent from MemTree.
	var err error
	ix.memRoot, err = ix.MemTree.Insert(ix.memRoot, MemoryPayload{Type: 'm', Lo: 0, Hi: ^uint64(0), Raw: false, Contents: arena.Null})
	if err != nil {
		ix.rep.Warnx("memory tree insert: %v", err)
	}
	return ix
}

// regSP/regLR pick the current-mode stack pointer / link register,
// matching Index::REG_sp()/REG_lr()'s AArch64-vs-legacy dispatch.
func (ix *Indexer) regSP() registers.ID {
	if ix.currIFlags&registers.IFlagAArch64 != 0 {
		return registers.SP64
	}
	return registers.SP32
}
func (ix *Indexer) regLR() registers.ID {
	if ix.currIFlags&registers.IFlagAArch64 != 0 {
		return registers.LR64
	}
	return registers.LR32
}

// BeginLine marks the start of processing for trace file line lineno,
// occupying bytes starting at byteOffset; callers (the driver loop in
// cmd/ttuindex) call this before handing the line to the parser.
func (ix *Indexer) BeginLine(lineno uint32, byteOffset uint64) {
	ix.trueLineno = lineno
	ix.linePos = byteOffset
	if ix.flushFirstLine == 0 {
		ix.flushFirstLine = lineno
		ix.flushByteStart = byteOffset
	}
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

func (ix *Indexer) updateSP(sp uint64) {
	ix.currSP = sp
	kept := ix.pendingCalls[:0]
	for _, c := range ix.pendingCalls {
		if c.sp < sp {
			continue // abandoned stack frame
		}
		kept = append(kept, c)
	}
	ix.pendingCalls = kept
}

func (ix *Indexer) readMemRegValue(reg registers.ID) (uint64, bool) {
	off := registers.Offset(reg, ix.currIFlags)
	size := registers.Size(reg)
	return ix.readMemValue('r', off, int(size))
}

// readMemValue looks up the latest raw bytes written for [addr, addr+size)
// in the live memory tree, without the full sub-region reconstruction
// the navigator's getmem performs; this is used internally only for
// register reads the call heuristic and semihosting handling need.
func (ix *Indexer) readMemValue(typ byte, addr uint64, size int) (uint64, bool) {
	if size == 0 || size > 8 {
		return 0, false
	}
	p, ok := ix.MemTree.Find(ix.memRoot, MemoryRangeKey{Type: typ, Lo: addr, Hi: addr + uint64(size) - 1})
	if !ok || !p.Raw || p.Lo > addr || p.Hi < addr+uint64(size)-1 {
		return 0, false
	}
	buf := ix.ar.Bytes(p.Contents, int(p.Hi-p.Lo+1))
	rel := addr - p.Lo
	var v uint64
	for i := size - 1; i >= 0; i-- {
		v = (v << 8) | uint64(buf[rel+uint64(i)])
	}
	return v, true
}

// updatePC implements the call/return heuristic from spec.md §4.E.
func (ix *Indexer) updatePC(pcNew, expectedNext uint64, iset parser.ISet) {
	if iset == parser.ISetA64 {
		ix.aarch64Used = true
	}

	if (pcNew^ix.expectedNextPC)&^1 != 0 {
		sp, ok := ix.readMemRegValue(ix.regSP())
		if !ok {
			sp = ^uint64(0)
		}

		matchedIdx := -1
		for i, c := range ix.pendingCalls {
			if c.sp == sp && c.pc == pcNew {
				matchedIdx = i
				break
			}
		}
		if matchedIdx >= 0 {
			c := ix.pendingCalls[matchedIdx]
			ix.callRets = append(ix.callRets, callReturn{line: c.callLine, direction: +1})
			ix.callRets = append(ix.callRets, callReturn{line: ix.prevLineno, direction: -1})
			ix.pendingCalls = append(ix.pendingCalls[:matchedIdx], ix.pendingCalls[matchedIdx+1:]...)
		} else if lr, ok := ix.readMemRegValue(ix.regLR()); ok &&
			ix.insnsSinceLRUpdate < lrWindowInstructions &&
			absDiff(lr, ix.expectedNextLR) < lrToleranceBytes {
			ix.pendingCalls = append(ix.pendingCalls, pendingCall{sp: sp, pc: lr, callLine: ix.prevLineno})
		}
	}

	ix.currPC = pcNew
	ix.expectedNextPC = expectedNext
	lrBit := uint64(0)
	if iset == parser.ISetThumb {
		lrBit = 1
	}
	ix.expectedNextLR = expectedNext | lrBit
}

func (ix *Indexer) updateIFlags(flags uint32) {
	ix.currIFlags = flags
	ix.rawMemWrite('r', registers.Offset(registers.IFlags), registers.Size(registers.IFlags), uint64(flags))
}

// rawMemWrite replaces [addr, addr+size) with contents, removing any
// overlapping entries first (delete_from_memtree in index.cpp), and
// trimming the surviving fragments of any payload that only partially
// overlapped.
func (ix *Indexer) rawMemWrite(typ byte, addr uint64, size uint, contents uint64) {
	ix.deleteOverlap(typ, addr, addr+uint64(size)-1)

	off, err := ix.ar.Alloc(int(size))
	if err != nil {
		ix.rep.Err(1, "arena allocation failed: %v", err)
	}
	buf := ix.ar.Bytes(off, int(size))
	if typ == 'm' && ix.bigend {
		for i := uint(0); i < size; i++ {
			buf[i] = byte(contents >> (8 * (size - 1 - i)))
		}
	} else {
		for i := uint(0); i < size; i++ {
			buf[i] = byte(contents >> (8 * i))
		}
	}

	p := MemoryPayload{Type: typ, Lo: addr, Hi: addr + uint64(size) - 1, Raw: true, Contents: off, TraceFileLine: ix.prevLineno}
	var insErr error
	ix.memRoot, insErr = ix.MemTree.Insert(ix.memRoot, p)
	if insErr != nil {
		ix.rep.Warnx("memory tree insert: %v", insErr)
	}
}

func (ix *Indexer) deleteOverlap(typ byte, lo, hi uint64) {
	key := MemoryRangeKey{Type: typ, Lo: lo, Hi: hi}
	for {
		newRoot, old, found := ix.MemTree.Remove(ix.memRoot, key)
		if !found {
			break
		}
		ix.memRoot = newRoot
		if old.Lo < lo {
			below := old
			below.Hi = lo - 1
			ix.memRoot, _ = ix.MemTree.Insert(ix.memRoot, below)
		}
		if old.Hi > hi {
			above := old
			if above.Raw {
				above.Contents = above.Contents + arena.Offset(hi+1-above.Lo)
			}
			above.Lo = hi + 1
			ix.memRoot, _ = ix.MemTree.Insert(ix.memRoot, above)
		}
	}
}

// makeSubMemtree replaces [lo, hi] with a single fresh sub region, of
// unknown content until update_memtree_from_read later fills part of
// it in, per original_source/lib/index.cpp's make_sub_memtree. Any
// existing knowledge of the range — raw or sub — is discarded first,
// same as delete_from_memtree.
func (ix *Indexer) makeSubMemtree(typ byte, lo, hi uint64) {
	ix.deleteOverlap(typ, lo, hi)
	p := MemoryPayload{Type: typ, Lo: lo, Hi: hi, Raw: false, Contents: arena.Null, TraceFileLine: ix.prevLineno}
	var err error
	ix.memRoot, err = ix.MemTree.Insert(ix.memRoot, p)
	if err != nil {
		ix.rep.Warnx("memory tree insert: %v", err)
	}
}

// semihostingMarksUnknown records that [addr, addr+size) is now of
// unknown content, e.g. after a semihosting call whose effect on
// memory we can't observe directly from the trace.
func (ix *Indexer) semihostingMarksUnknown(addr uint64, size uint64) {
	ix.makeSubMemtree('m', addr, addr+size-1)
}

// subtreeGaps returns the sub-ranges of [lo, hi] not already covered
// by any MemorySubPayload entry rooted at root, in ascending order.
func (ix *Indexer) subtreeGaps(root arena.Offset, lo, hi uint64) []MemorySubRangeKey {
	type interval struct{ lo, hi uint64 }
	var covered []interval
	ix.MemSubTree.Walk(root, tree.InOrder, func(p MemorySubPayload, _ struct{}, _ arena.Offset) {
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
	})
	sort.Slice(covered, func(i, j int) bool { return covered[i].lo < covered[j].lo })

	var gaps []MemorySubRangeKey
	cursor := lo
	for _, c := range covered {
		if c.lo > cursor {
			gaps = append(gaps, MemorySubRangeKey{Lo: cursor, Hi: c.lo - 1})
		}
		if c.hi+1 > cursor {
			cursor = c.hi + 1
		}
	}
	if cursor <= hi {
		gaps = append(gaps, MemorySubRangeKey{Lo: cursor, Hi: hi})
	}
	return gaps
}

// updateMemtreeFromRead folds a known read of [addr, addr+size) into
// the memory tree without overwriting anything already recorded,
// porting original_source/lib/index.cpp's update_memtree_from_read:
// regions that are already Raw are left untouched (a known read
// teaches us nothing new about memory we already fully track — the
// original carries the same FIXME), and !Raw sub regions gain new
// MemorySubPayload entries only for the gaps the read newly resolves.
// Reads spanning more than one overlapping region (a raw/sub boundary,
// or several adjacent sub regions) are folded one region at a time.
func (ix *Indexer) updateMemtreeFromRead(typ byte, addr uint64, size uint, contents uint64) {
	hi := addr + uint64(size) - 1
	cursor := addr
	for {
		region, found := ix.MemTree.Find(ix.memRoot, MemoryRangeKey{Type: typ, Lo: cursor, Hi: hi})
		if !found {
			return
		}
		regLo, regHi := region.Lo, region.Hi
		if regLo < cursor {
			regLo = cursor
		}
		if regHi > hi {
			regHi = hi
		}

		if !region.Raw {
			subRoot := region.Contents
			changed := false
			for _, g := range ix.subtreeGaps(subRoot, regLo, regHi) {
				sz := g.Hi - g.Lo + 1
				off, err := ix.ar.Alloc(int(sz))
				if err != nil {
					ix.rep.Err(1, "arena allocation failed: %v", err)
				}
				buf := ix.ar.Bytes(off, int(sz))
				for i := uint64(0); i < sz; i++ {
					byteShift := g.Lo - addr + i
					if typ == 'm' && ix.bigend {
						buf[i] = byte(contents >> (8 * (uint64(size) - 1 - byteShift)))
					} else {
						buf[i] = byte(contents >> (8 * byteShift))
					}
				}
				var insErr error
				subRoot, insErr = ix.MemSubTree.Insert(subRoot, MemorySubPayload{Lo: g.Lo, Hi: g.Hi, Contents: off, TraceFileLine: ix.prevLineno})
				if insErr != nil {
					ix.rep.Warnx("memory sub-tree insert: %v", insErr)
					continue
				}
				changed = true
			}
			if changed {
				ix.memRoot, _, _ = ix.MemTree.Remove(ix.memRoot, MemoryRangeKey{Type: region.Type, Lo: region.Lo, Hi: region.Hi})
				region.Contents = subRoot
				var err error
				ix.memRoot, err = ix.MemTree.Insert(ix.memRoot, region)
				if err != nil {
					ix.rep.Warnx("memory tree insert: %v", err)
				}
			}
		}

		if regHi >= hi || regHi == ^uint64(0) {
			return
		}
		cursor = regHi + 1
	}
}

// GotInstruction implements parser.Receiver.
func (ix *Indexer) GotInstruction(ev parser.InstructionEvent) {
	ix.gotEventCommon(uint64(ev.Time), true)

	ix.insnsSinceLRUpdate++

	adjustedPC := uint64(ev.PC)
	if ev.ISet == parser.ISetThumb {
		adjustedPC |= 1
	}

	if ev.Executed && isSemihostingCall(ev.ISet, ev.Instruction) {
		ix.handleSemihosting(ev.ISet)
	}

	var iflags uint32
	if ev.ISet == parser.ISetA64 {
		iflags |= registers.IFlagAArch64
	}
	if ix.bigend {
		iflags |= registers.IFlagBigEnd
	}
	ix.updateIFlags(iflags)

	ix.updatePC(adjustedPC, adjustedPC+uint64(ev.Width)/8, ev.ISet)
	ix.lastISet = ev.ISet

	byPCOff, err := ix.ByPCTree.Insert(ix.byPCRoot, ByPCPayload{PC: uint64(ev.PC), Line: ix.trueLineno})
	if err == nil {
		ix.byPCRoot = byPCOff
	}
}

// isSemihostingCall recognises the closed list of trap opcodes per ISA
// that indicate a semihosting call (spec.md §4.E), e.g. ARM SVC
// #0x123456 and AArch64 HLT #0xF000.
func isSemihostingCall(iset parser.ISet, instr uint32) bool {
	switch iset {
	case parser.ISetThumb:
		return instr == 0xbeab || instr == 0xdfab || instr == 0xbabc
	case parser.ISetARM:
		return instr&0x0fffffff == 0x0f123456 || instr&0x0fffffff == 0x010f0070
	case parser.ISetA64:
		return instr == 0xD45E0000
	}
	return false
}

func (ix *Indexer) handleSemihosting(iset parser.ISet) {
	opReg, blkReg, word := registers.R0_32, registers.R1_32, uint64(4)
	if iset == parser.ISetA64 {
		opReg, blkReg, word = registers.X0, registers.X1, 8
	}

	r0, ok := ix.readMemRegValue(opReg)
	if !ok {
		r0 = 0
	}

	readBlk := func() (uint64, bool) { return ix.readMemRegValue(blkReg) }
	readWord := func(addr uint64) (uint64, bool) { return ix.readMemValue('m', addr, int(word)) }

	switch r0 {
	case 0x06: // SYS_READ
		r1, ok := readBlk()
		if !ok {
			return
		}
		start, ok := readWord(r1 + word)
		if !ok {
			return
		}
		size, ok := readWord(r1 + 2*word)
		if !ok {
			return
		}
		ix.semihostingMarksUnknown(start, size)
	case 0x0D: // SYS_TMPNAM
		r1, ok := readBlk()
		if !ok {
			return
		}
		start, ok := readWord(r1)
		if !ok {
			return
		}
		size, ok := readWord(r1 + 2*word)
		if !ok {
			return
		}
		ix.semihostingMarksUnknown(start, size)
	case 0x15: // SYS_GET_CMDLINE
		r1, ok := readBlk()
		if !ok {
			return
		}
		start, ok := readWord(r1)
		if !ok {
			return
		}
		size, ok := readWord(r1 + word)
		if !ok {
			return
		}
		ix.semihostingMarksUnknown(start, size)
	case 0x16: // SYS_HEAPINFO
		r1, ok := readBlk()
		if !ok {
			return
		}
		start, ok := readWord(r1)
		if !ok {
			return
		}
		ix.semihostingMarksUnknown(start, 4*word)
	case 0x30: // SYS_ELAPSED
		r1, ok := readBlk()
		if !ok {
			return
		}
		ix.semihostingMarksUnknown(r1, 2*word)
	}
}

// GotRegister implements parser.Receiver.
func (ix *Indexer) GotRegister(ev parser.RegisterEvent) {
	ix.gotEventCommon(uint64(ev.Time), false)

	reg := ev.Reg
	if reg.Prefix == registers.PrefixS && ix.currIFlags&registers.IFlagAArch64 != 0 {
		reg.Prefix = registers.PrefixD
	}

	offset := registers.Offset(reg, ix.currIFlags)
	size := uint64(len(ev.Bytes))

	ix.rawMemWriteBytes(offset, ev.Bytes)

	spReg := ix.regSP()
	if regsOverlap(offset, size, spReg, ix.currIFlags) {
		if sp, ok := ix.readMemRegValue(spReg); ok {
			ix.updateSP(sp)
		}
	}
	lrReg := ix.regLR()
	if regsOverlap(offset, size, lrReg, ix.currIFlags) {
		ix.insnsSinceLRUpdate = 0
	}
}

func regsOverlap(offset, size uint64, reg registers.ID, iflags uint32) bool {
	regOff := registers.Offset(reg, iflags)
	regSize := uint64(registers.Size(reg))
	return !(offset+size <= regOff) && !(regOff+regSize <= offset)
}

func (ix *Indexer) rawMemWriteBytes(addr uint64, bytes []byte) {
	ix.deleteOverlap('r', addr, addr+uint64(len(bytes))-1)
	off, err := ix.ar.Alloc(len(bytes))
	if err != nil {
		ix.rep.Err(1, "arena allocation failed: %v", err)
	}
	copy(ix.ar.Bytes(off, len(bytes)), bytes)
	p := MemoryPayload{Type: 'r', Lo: addr, Hi: addr + uint64(len(bytes)) - 1, Raw: true, Contents: off, TraceFileLine: ix.prevLineno}
	var insErr error
	ix.memRoot, insErr = ix.MemTree.Insert(ix.memRoot, p)
	if insErr != nil {
		ix.rep.Warnx("register tree insert: %v", insErr)
	}
}

// GotMemory implements parser.Receiver.
func (ix *Indexer) GotMemory(ev parser.MemoryEvent) {
	ix.gotEventCommon(uint64(ev.Time), false)

	if !ev.Read {
		if ev.Known {
			ix.rawMemWrite('m', uint64(ev.Addr), uint(ev.Size), ev.Contents)
		} else {
			ix.semihostingMarksUnknown(uint64(ev.Addr), uint64(ev.Size))
		}
		return
	}
	if ev.Known {
		ix.updateMemtreeFromRead('m', uint64(ev.Addr), uint(ev.Size), ev.Contents)
	}
}

// GotTextOnly implements parser.Receiver.
func (ix *Indexer) GotTextOnly(ev parser.TextOnlyEvent) {
	ix.gotEventCommon(uint64(ev.Time), false)
}

func (ix *Indexer) Highlight(int, int, parser.HighlightClass) {}

func (ix *Indexer) Warning(msg string) bool {
	ix.rep.IndexingWarning("", ix.trueLineno, msg)
	return false
}

// gotEventCommon implements the flush rule from spec.md §4.E: flush
// whenever the timestamp changes, or whenever a second instruction
// lands on the same timestamp.
func (ix *Indexer) gotEventCommon(t Time64, isInstruction bool) {
	if !ix.started {
		ix.started = true
		ix.currentTime = t
	} else if (t != ix.currentTime) || (isInstruction && ix.seenInstrAtT) {
		ix.flush()
		ix.currentTime = t
		ix.seenInstrAtT = false
	}
	if isInstruction {
		ix.seenInstrAtT = true
	}
	ix.prevLineno = ix.trueLineno
}

// flush closes out the group of lines accumulated since the last
// flush. lastLine is the half-open upper bound: mid-stream callers
// pass the line that just triggered the flush (which belongs to the
// next group), while the final, end-of-file flush passes trueLineno+1
// since there is no following line to exclude up to.
func (ix *Indexer) flushUpTo(lastLine uint32) {
	if ix.flushFirstLine == 0 || lastLine <= ix.flushFirstLine {
		return
	}
	entry := SeqOrderPayload{
		FirstLine:  ix.flushFirstLine,
		LastLine:   lastLine,
		ByteStart:  ix.flushByteStart,
		ByteEnd:    ix.linePos,
		ModTime:    ix.currentTime,
		MemoryRoot: ix.memRoot,
	}
	ix.seqEntries = append(ix.seqEntries, entry)
	ix.lastMemRoot = ix.memRoot
	ix.MemTree.Commit()
	ix.flushFirstLine = lastLine
	ix.flushByteStart = ix.linePos
}

func (ix *Indexer) flush() {
	ix.flushUpTo(ix.trueLineno)
}

// Finalize resolves the call/return heuristic's accumulated events
// into a call_depth per sequence entry, builds the persistent sequence
// tree (whose subtree annotations aggregate depth automatically via
// SeqOrderCodec.CombineThree), and returns the file header; writing it
// to the arena is left to the caller.
func (ix *Indexer) Finalize(traceFilename string) Header {
	ix.flushUpTo(ix.trueLineno + 1)

	depthAt := make(map[uint32]int32, len(ix.callRets)*2)
	depth := int32(0)
	for _, cr := range sortedCallRets(ix.callRets) {
		depth += cr.direction
		depthAt[cr.line] = depth
	}

	curDepth := int32(0)
	for i := range ix.seqEntries {
		if d, ok := depthAt[ix.seqEntries[i].FirstLine]; ok {
			curDepth = d
		}
		ix.seqEntries[i].CallDepth = curDepth
	}

	for _, e := range ix.seqEntries {
		var err error
		ix.seqRoot, err = ix.SeqTree.Insert(ix.seqRoot, e)
		if err != nil {
			ix.rep.Warnx("sequence tree insert: %v", err)
		}
	}
	ix.SeqTree.Commit()
	ix.ByPCTree.Commit()

	h := Header{
		SeqRoot:     ix.seqRoot,
		ByPCRoot:    ix.byPCRoot,
		BigEnd:      ix.bigend,
		AArch64Used: ix.aarch64Used,
		Complete:    true,
		SessionID:   uuid.New(),
	}
	return h
}

func sortedCallRets(in []callReturn) []callReturn {
	out := make([]callReturn, len(in))
	copy(out, in)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].line > out[j].line; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
