package parser

import (
	"strconv"
	"strings"

	"github.com/tarmac-trace/ttu/internal/registers"
)

// textOnlyTypes is the closed set of event keywords that are known to
// carry no semantic weight for the indexer; anything else provokes a
// one-time warning so a genuinely unmodelled event doesn't pass
// silently.
var textOnlyTypes = map[string]bool{
	"CADI": true, "E": true, "P": true, "CACHE": true, "TTW": true,
	"BR": true, "INFO_EXCEPTION_REASON": true, "SIGNAL": true, "EXC": true,
}

var memAccessKeywords = map[string]bool{
	"MR1": true, "MR2": true, "MR4": true, "MR8": true,
	"MW1": true, "MW2": true, "MW4": true, "MW8": true,
	"MR1X": true, "MR2X": true, "MR4X": true, "MR8X": true,
	"MW1X": true, "MW2X": true, "MW4X": true, "MW8X": true,
	"R01": true, "R02": true, "R04": true, "R08": true,
	"W01": true, "W02": true, "W04": true, "W08": true,
}

// LineParser tokenises and interprets one line of Tarmac trace text at
// a time, dispatching typed events and highlight spans to a Receiver.
type LineParser struct {
	bigend        bool
	receiver      Receiver
	lastTimestamp Time

	warnedRegisters map[string]bool
	warnedSysOps    map[string]bool
	warnedEvents    map[string]bool
}

// NewLineParser constructs a parser. bigend selects the byte order used
// to interpret LD/ST diagrammatic memory dumps (spec.md §4.C).
func NewLineParser(bigend bool, receiver Receiver) *LineParser {
	return &LineParser{
		bigend:          bigend,
		receiver:        receiver,
		warnedRegisters: map[string]bool{},
		warnedSysOps:    map[string]bool{},
		warnedEvents:    map[string]bool{},
	}
}

func (p *LineParser) highlight(start, end int, cl HighlightClass) {
	p.receiver.Highlight(start, end, cl)
}

func (p *LineParser) highlightTok(t token, cl HighlightClass) {
	p.highlight(t.start, t.end, cl)
}

func (p *LineParser) warn(msg string) *ParseError {
	if p.receiver.Warning(msg) {
		return &ParseError{Msg: msg}
	}
	return nil
}

func parseErrorAt(t token, msg string) *ParseError {
	return &ParseError{Msg: msg, Pos: t.start}
}

func parseISetState(t token) (ISet, bool) {
	switch {
	case t.is("A"):
		return ISetARM, true
	case t.is("T"):
		return ISetThumb, true
	case t.is("O"):
		return ISetA64, true
	default:
		return 0, false
	}
}

// Parse interprets one trace line, dispatching zero or more events to
// the receiver. A non-nil error is always a *ParseError.
func (p *LineParser) Parse(line string) error {
	line = strings.TrimRight(line, "\r\n")
	lx := newLexer(line)

	tok, perr := lx.next()
	if perr != nil {
		p.highlight(perr.Pos, len(line), HLError)
		return perr
	}

	var t Time
	if tok.isDecimal() {
		v := tok.decimalValue()
		t = Time(v)
		p.highlightTok(tok, HLTimestamp)
		if tok, perr = lx.next(); perr != nil {
			return perr
		}

		switch tok.s {
		case "clk", "ns", "cs", "cyc", "tic":
			if tok, perr = lx.next(); perr != nil {
				return perr
			}
		}
		p.lastTimestamp = t
	} else {
		t = p.lastTimestamp
	}

	if tok.isWord() && strings.HasPrefix(tok.s, "cpu") {
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
	}

	p.highlightTok(tok, HLEvent)

	switch {
	case tok.is("IT") || tok.is("IS") || tok.is("ES"):
		return p.parseInstruction(line, lx, tok, t)
	case tok.is("R"):
		return p.parseRegister(lx, tok, t)
	case tok.isWord() && memAccessKeywords[tok.s]:
		return p.parseContiguousMemory(line, lx, tok, t)
	case tok.is("LD") || tok.is("ST"):
		return p.parseDiagrammaticMemory(lx, tok, t)
	case tok.is("Tarmac"):
		// Container header line ("Tarmac Text Rev N"); not part of the
		// event stream at all.
		return nil
	default:
		return p.parseTextOnly(line, lx, tok, t)
	}
}

func (p *LineParser) parseInstruction(line string, lx *lexer, tok token, t Time) error {
	executed := !tok.is("IS")
	isES := tok.is("ES")

	var perr *ParseError
	if tok, perr = lx.next(); perr != nil {
		return perr
	}

	if tok.is("EXC") || tok.is("Reset") {
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
		p.highlight(tok.start, len(line), HLTextEvent)
		p.receiver.GotTextOnly(TextOnlyEvent{Event: Event{Time: t}, Type: "EXC", Msg: line[tok.start:]})
		return nil
	}

	var address uint64
	var bitpattern uint64
	var width int

	if isES {
		if !tok.isPunct('(') {
			return parseErrorAt(tok, "expected '(' to introduce instruction address and bit pattern")
		}
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
		if !tok.isHex() {
			return parseErrorAt(tok, "expected a hex instruction address")
		}
		address = tok.hexValue()
		p.highlightTok(tok, HLPC)
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
		if !tok.isPunct(':') {
			return parseErrorAt(tok, "expected ':' between instruction address and bit pattern")
		}
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
		if !tok.isHex() {
			return parseErrorAt(tok, "expected a hex instruction bit pattern")
		}
		bitpattern = tok.hexValue()
		p.highlightTok(tok, HLInstruction)
		width = tok.length() * 4
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
		if !tok.isPunct(')') {
			return parseErrorAt(tok, "expected ')' after instruction address and bit pattern")
		}
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
	} else {
		var bracketed token
		haveBracket := false
		if tok.isPunct('(') {
			if tok, perr = lx.next(); perr != nil {
				return perr
			}
			if !tok.isDecimal() && !tok.isHex() {
				return parseErrorAt(tok, "expected a hex or decimal number")
			}
			bracketed = tok
			haveBracket = true
			if tok, perr = lx.next(); perr != nil {
				return perr
			}
			if !tok.isPunct(')') {
				return parseErrorAt(tok, "expected ')' after bracketed value")
			}
			if tok, perr = lx.next(); perr != nil {
				return perr
			}
		}

		if !tok.isHex() {
			return parseErrorAt(tok, "expected a hex value")
		}
		postBracket := tok
		address = tok.hexValue()
		p.highlightTok(tok, HLPC)
		if tok, perr = lx.next(); perr != nil {
			return perr
		}

		if tok.isPunct(':') {
			if tok, perr = lx.next(); perr != nil {
				return perr
			}
			if !tok.isHexWithOptionalNamespace() {
				return parseErrorAt(tok, "expected a hex address after ':'")
			}
			if tok, perr = lx.next(); perr != nil {
				return perr
			}
			if tok.isPunct(',') {
				if tok, perr = lx.next(); perr != nil {
					return perr
				}
				if !tok.isHexWithOptionalNamespace() {
					return parseErrorAt(tok, "expected a hex address after ','")
				}
				if tok, perr = lx.next(); perr != nil {
					return perr
				}
			}
		}

		var instruction token
		if _, ok := parseISetState(tok); ok && haveBracket {
			// The bracketed value was the address all along, and what
			// we parsed as the address was really the bit pattern.
			address = bracketed.hexValue()
			p.highlightTok(bracketed, HLPC)
			instruction = postBracket
		} else {
			if !tok.isHex() {
				return parseErrorAt(tok, "expected a hex instruction bit pattern")
			}
			instruction = tok
			if tok, perr = lx.next(); perr != nil {
				return perr
			}
		}
		bitpattern = instruction.hexValue()
		p.highlightTok(instruction, HLInstruction)
		width = instruction.length() * 4
	}

	iset, ok := parseISetState(tok)
	if !ok {
		return parseErrorAt(tok, "expected instruction-set state")
	}
	p.highlightTok(tok, HLISet)
	if tok, perr = lx.next(); perr != nil {
		return perr
	}

	if !tok.isWord() {
		return parseErrorAt(tok, "expected CPU mode")
	}
	p.highlightTok(tok, HLCPUMode)
	if tok, perr = lx.next(); perr != nil {
		return perr
	}

	if !tok.isPunct(':') {
		return parseErrorAt(tok, "expected ':' before instruction")
	}
	if tok, perr = lx.next(); perr != nil {
		return perr
	}

	if isES && tok.is("CCFAIL") {
		executed = false
		p.highlightTok(tok, HLCCFail)
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
	}

	p.highlight(tok.start, len(line), HLDisassembly)
	p.receiver.GotInstruction(InstructionEvent{
		Event:       Event{Time: t},
		Executed:    executed,
		PC:          Addr(address),
		ISet:        iset,
		Width:       width,
		Instruction: uint32(bitpattern),
		Disassembly: line[tok.start:],
	})
	return nil
}

func (p *LineParser) parseRegister(lx *lexer, tok token, t Time) error {
	var perr *ParseError
	if tok, perr = lx.next(); perr != nil {
		return perr
	}
	if !tok.isWord() {
		return parseErrorAt(tok, "expected register name")
	}
	regname := tok.s
	if tok, perr = lx.next(); perr != nil {
		return perr
	}

	switch regname {
	case "DC", "IC", "TLBI", "AT":
		if !p.warnedSysOps[regname] {
			p.warnedSysOps[regname] = true
			if w := p.warn("unsupported system operation '" + regname + "'"); w != nil {
				return w
			}
		}
		return nil
	}

	if tok.isPunct('(') {
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
		if !tok.isWord() {
			return parseErrorAt(tok, "expected extra register identification details")
		}
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
		if !tok.isPunct(')') {
			return parseErrorAt(tok, "expected ')' after extra register identification details")
		}
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
	}

	var contents strings.Builder
	consume := func(t token) {
		contents.WriteString(removeChars(t.s, "_"))
	}

	isSP := strings.EqualFold(regname, "sp") || len(regname) > 3 && strings.EqualFold(regname[:3], "sp_")
	reg, gotReg := registers.ID{}, false
	if r, err := registers.LookupName(regname, 0); err == nil {
		reg, gotReg = r, true
	}
	isFPCR := gotReg && reg.Prefix == registers.PrefixFPCR
	special := isFPCR || isSP

	if gotReg && !special {
		expected := 2 * int(registers.Size(reg))
		for contents.Len() < expected {
			if !tok.isWordOf(hexDigitsUS) {
				return parseErrorAt(tok, "expected register contents")
			}
			consume(tok)
			if tok, perr = lx.next(); perr != nil {
				return perr
			}
			if tok.isPunct(':') {
				if tok, perr = lx.next(); perr != nil {
					return perr
				}
			}
		}
	} else if special {
		if !tok.isWordOf(hexDigitsUS) {
			return parseErrorAt(tok, "expected register contents")
		}
		consume(tok)
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
		if tok.isPunct(':') {
			if tok, perr = lx.next(); perr != nil {
				return perr
			}
			if !tok.isWordOf(hexDigitsUS) {
				return parseErrorAt(tok, "expected additional register contents after ':'")
			}
			consume(tok)
		}

		if isSP {
			switch contents.Len() {
			case 8:
				reg, gotReg = registers.SP32, true
			case 16:
				reg, gotReg = registers.SP64, true
			}
		}
	}

	text := contents.String()
	bits := len(text) * 4
	if bits%8 != 0 {
		return parseErrorAt(tok, "expected register contents to be an integer number of bytes")
	}

	bytes := make([]byte, 0, bits/8)
	for pos := 0; pos+2 <= len(text); pos += 2 {
		v, _ := strconv.ParseUint(text[pos:pos+2], 16, 8)
		bytes = append(bytes, byte(v))
	}

	if !gotReg {
		if !p.warnedRegisters[regname] {
			p.warnedRegisters[regname] = true
			// Most unrecognised names at this point are untracked
			// system registers rather than a real omission, so this is
			// deliberately silent; see the historical note this mirrors
			// in the original parser.
		}
		return nil
	}

	// Trace files write register contents in reading order (big-endian);
	// our internal representation is little-endian.
	reverseBytes(bytes)

	if isFPCR {
		bytes = bytes[:min(len(bytes), int(registers.Size(reg)))]
	}

	p.receiver.GotRegister(RegisterEvent{Event: Event{Time: t}, Reg: reg, Bytes: bytes})
	return nil
}

func (p *LineParser) parseContiguousMemory(line string, lx *lexer, tok token, t Time) error {
	firstTok := tok
	s := tok.s
	idx := 0
	if s[idx] == 'M' {
		idx++
	}
	read := s[idx] == 'R'
	idx++
	size, _ := strconv.Atoi(strings.TrimSuffix(s[idx:], "X"))

	var perr *ParseError
	if tok, perr = lx.next(); perr != nil {
		return perr
	}

	if tok.is("X") {
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
	}

	if !tok.isHex() {
		return parseErrorAt(tok, "expected memory address")
	}
	addr := tok.hexValue()
	if tok, perr = lx.next(); perr != nil {
		return perr
	}

	if tok.isPunct(':') {
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
		if !tok.isHex() {
			return parseErrorAt(tok, "expected physical memory address after ':'")
		}
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
	}

	if tok.isPunct('(') {
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
		if tok.is("ABORTED") {
			tok2, perr := lx.next()
			if perr != nil {
				return perr
			}
			if !tok2.isPunct(')') {
				return parseErrorAt(tok2, "expected closing parenthesis")
			}
			p.highlight(tok.start, len(line), HLTextEvent)
			p.receiver.GotTextOnly(TextOnlyEvent{Event: Event{Time: t}, Type: tok.s, Msg: line[firstTok.start:]})
			return nil
		}
		return parseErrorAt(tok, "unrecognised parenthesised keyword")
	}

	text := removeChars(tok.s, "_")
	if !containsOnly(text, hexDigits) || text == "" {
		return parseErrorAt(tok, "expected memory contents in hex")
	}
	contents, _ := strconv.ParseUint(text, 16, 64)

	p.receiver.GotMemory(MemoryEvent{Event: Event{Time: t}, Read: read, Known: true, Size: size, Addr: Addr(addr), Contents: contents})
	return nil
}

const (
	diagUnused  = 0x100
	diagUnknown = 0x101
)

func (p *LineParser) parseDiagrammaticMemory(lx *lexer, tok token, t Time) error {
	read := tok.is("LD")

	var perr *ParseError
	if tok, perr = lx.next(); perr != nil {
		return perr
	}
	if !tok.isHex() {
		return parseErrorAt(tok, "expected load/store memory address")
	}
	baseAddr := tok.hexValue()
	if tok, perr = lx.next(); perr != nil {
		return perr
	}

	var bytes [16]int
	bytePos := 0
	for {
		if !tok.isWordOf("0123456789ABCDEFabcdef.#") {
			return parseErrorAt(tok, "expected a word of data bytes, '.' and '#'")
		}
		if len(tok.s)%2 != 0 {
			return parseErrorAt(tok, "expected data word to cover a whole number of bytes")
		}
		for i := 0; i < len(tok.s); i += 2 {
			pair := tok.s[i : i+2]
			if bytePos >= 16 {
				return parseErrorAt(tok, "expected exactly 16 data bytes")
			}
			switch {
			case pair == "..":
				bytes[bytePos] = diagUnused
			case pair == "##":
				bytes[bytePos] = diagUnknown
			case containsOnly(pair, hexDigits):
				v, _ := strconv.ParseUint(pair, 16, 8)
				bytes[bytePos] = int(v)
			default:
				return parseErrorAt(tok, "expected each byte to be only one of '.', '#' and hex")
			}
			bytePos++
		}
		if bytePos == 16 {
			break
		}
		if tok, perr = lx.next(); perr != nil {
			return perr
		}
	}

	for i := 0; i < 16; {
		switch bytes[i] {
		case diagUnused:
			i++
		case diagUnknown:
			j := i
			for j < 16 && bytes[j] == diagUnknown {
				j++
			}
			p.receiver.GotMemory(MemoryEvent{Event: Event{Time: t}, Read: read, Known: false, Size: j - i, Addr: Addr(baseAddr + 16 - uint64(j))})
			i = j
		default:
			j := i
			for j < 16 && j-i < 8 && bytes[j] < 0x100 {
				j++
			}
			var value uint64
			if p.bigend {
				for k := j; k > i; k-- {
					value = (value << 8) | uint64(bytes[k-1])
				}
			} else {
				for k := i; k < j; k++ {
					value = (value << 8) | uint64(bytes[k])
				}
			}
			p.receiver.GotMemory(MemoryEvent{Event: Event{Time: t}, Read: read, Known: true, Size: j - i, Addr: Addr(baseAddr + 16 - uint64(j)), Contents: value})
			i = j
		}
	}
	return nil
}

func (p *LineParser) parseTextOnly(line string, lx *lexer, tok token, t Time) error {
	eventType := tok.s
	if !textOnlyTypes[eventType] {
		if !p.warnedEvents[eventType] {
			p.warnedEvents[eventType] = true
			if w := p.warn("unknown Tarmac event type '" + eventType + "'"); w != nil {
				return w
			}
		}
	}

	tok, perr := lx.next()
	if perr != nil {
		return perr
	}
	p.highlight(tok.start, len(line), HLTextEvent)
	p.receiver.GotTextOnly(TextOnlyEvent{Event: Event{Time: t}, Type: eventType, Msg: line[tok.start:]})
	return nil
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
