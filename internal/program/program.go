// Package program implements the tokenized program store of spec §3
// "Program" and §4.E: line-indexed tokenized lines, DATA scanning and
// top-of-program bookkeeping.
package program

import (
	"encoding/binary"
	"sort"

	"basiccore/internal/lexer"
)

// Line is one stored program line: its number and tokenized body
// (Tokens includes the terminating 0x0D; callers that need the raw
// on-disk form with its length and line-number header use Encode).
type Line struct {
	Number  int
	Tokens  []byte // token stream, ending in 0x0D
	Library string // name of the INSTALLed library this line came from, "" for the main program
}

// Program is the line-indexed tokenized store. Lines are kept sorted
// by Number; PAGE..top-of-program is mutated only by immediate-mode
// editing (spec §5 "Shared resources").
type Program struct {
	lines     []Line
	fastSlots int // reserved fast-variable slot count from gettop (spec §4.E)
}

// Cursor addresses one token within the program: which line (by
// index, not line number) and which byte offset within that line's
// token stream. The executor and READ/RESTORE both navigate using
// Cursor rather than raw offsets so line boundaries stay explicit.
type Cursor struct {
	Line int
	Tok  int
}

// DataCursor returns the first DATA statement's cursor, i.e. what a
// bare RESTORE resets to (spec §4.E "DATA pointer").
func (p *Program) DataCursor() (Cursor, bool) {
	li, ti, ok := p.Search(0, lexer.TDATA)
	if !ok {
		return Cursor{}, false
	}
	return Cursor{Line: li, Tok: ti}, true
}

// NextDataCursor advances from a DATA/READ cursor to the next DATA
// statement at or after the given line, used by READ when it runs
// off the end of the current DATA statement's field list.
func (p *Program) NextDataCursor(from Cursor) (Cursor, bool) {
	li, ti, ok := p.Search(from.Line, lexer.TDATA)
	if !ok {
		return Cursor{}, false
	}
	if li == from.Line && ti <= from.Tok {
		li, ti, ok = p.Search(from.Line+1, lexer.TDATA)
		if !ok {
			return Cursor{}, false
		}
	}
	return Cursor{Line: li, Tok: ti}, true
}

// RestoreRelative implements `RESTORE +n`: advance n lines from
// `from` and find the next DATA statement at or after that point.
func (p *Program) RestoreRelative(from int, n int) (Cursor, bool) {
	target := from + n
	if target < 0 || target >= len(p.lines) {
		return Cursor{}, false
	}
	li, ti, ok := p.Search(target, lexer.TDATA)
	if !ok {
		return Cursor{}, false
	}
	return Cursor{Line: li, Tok: ti}, true
}

// RestoreToLine implements absolute `RESTORE lineno`.
func (p *Program) RestoreToLine(lineNo int) (Cursor, bool) {
	idx, ok := p.FindLine(lineNo)
	if !ok {
		return Cursor{}, false
	}
	li, ti, ok := p.Search(idx, lexer.TDATA)
	if !ok {
		return Cursor{}, false
	}
	return Cursor{Line: li, Tok: ti}, true
}

// New creates an empty program store.
func New() *Program { return &Program{} }

// SetLine inserts or replaces the tokenized line numbered n. Tokens
// of length 0 deletes the line (spec §3 "length==0 terminates" is the
// on-disk encoding; at the API level an empty Tokens slice means "no
// line").
func (p *Program) SetLine(n int, tokens []byte) {
	idx := p.indexOf(n)
	if idx < len(p.lines) && p.lines[idx].Number == n {
		if len(tokens) == 0 {
			p.lines = append(p.lines[:idx], p.lines[idx+1:]...)
			return
		}
		p.lines[idx].Tokens = tokens
		p.lines[idx].Library = "" // direct program edits always replace with a main-program line
		return
	}
	if len(tokens) == 0 {
		return
	}
	p.insertAt(idx, Line{Number: n, Tokens: tokens})
}

// insertAt inserts l at position idx, shifting later lines up.
func (p *Program) insertAt(idx int, l Line) {
	p.lines = append(p.lines, Line{})
	copy(p.lines[idx+1:], p.lines[idx:])
	p.lines[idx] = l
}

// InstallLibrary merges lib's lines into p under the given library
// name, implementing spec §3's "Library code loaded via INSTALL lives
// above HIMEM and is linked into the same line-number search space"
// and the SUPPLEMENTED FEATURES first-match-wins rule: each of lib's
// line numbers is added only if p has no line at that number yet —
// an existing line, from the main program or an earlier INSTALL, is
// never displaced. Grounded on the module cache in
// sentra/internal/module/module.go's ModuleLoader (load once, resolve
// names against what's already loaded before pulling in more).
func (p *Program) InstallLibrary(lib *Program, name string) {
	for _, l := range lib.lines {
		idx := p.indexOf(l.Number)
		if idx < len(p.lines) && p.lines[idx].Number == l.Number {
			continue
		}
		p.insertAt(idx, Line{Number: l.Number, Tokens: l.Tokens, Library: name})
	}
}

// indexOf returns the index of the first line with Number >= n
// (spec §4.E findLine's "binary-ish walk").
func (p *Program) indexOf(n int) int {
	return sort.Search(len(p.lines), func(i int) bool { return p.lines[i].Number >= n })
}

// FindLine implements findLine(n): the first line numbered >= n, or
// (-1, false) if n is past the end of the program.
func (p *Program) FindLine(n int) (int, bool) {
	idx := p.indexOf(n)
	if idx >= len(p.lines) {
		return -1, false
	}
	return idx, true
}

// LineAt returns the line stored at a given index into the program
// (not a line number — a program-internal cursor, matching the
// "Cursor" type below).
func (p *Program) LineAt(idx int) (Line, bool) {
	if idx < 0 || idx >= len(p.lines) {
		return Line{}, false
	}
	return p.lines[idx], true
}

// Len returns the number of stored lines.
func (p *Program) Len() int { return len(p.lines) }

// Lines exposes the line list read-only, for LIST/RENUMBER.
func (p *Program) Lines() []Line { return p.lines }

// GetTop validates program integrity (spec §4.E "gettop"): every
// stored line must have Tokens ending in 0x0D and a non-decreasing
// Number sequence (guaranteed by SetLine's insertion). It only checks
// the terminators; the fast-variable slot count is not computed here
// and is set separately through SetFastSlotCount.
func (p *Program) GetTop() error {
	for _, l := range p.lines {
		if len(l.Tokens) == 0 || l.Tokens[len(l.Tokens)-1] != 0x0D {
			return &MalformedLineError{Number: l.Number}
		}
	}
	return nil
}

// MalformedLineError reports spec invariant 2's violation: a stored
// line without a proper 0x0D terminator.
type MalformedLineError struct{ Number int }

func (e *MalformedLineError) Error() string {
	return "program: malformed line " + itoa(e.Number)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// SetFastSlotCount records the reserved fast-variable slot count
// (spec §4.E).
func (p *Program) SetFastSlotCount(n int) { p.fastSlots = n }

// FastSlotCount returns the reserved fast-variable slot count.
func (p *Program) FastSlotCount() int { return p.fastSlots }

// Encode serializes the whole program to the raw on-disk byte
// sequence of spec §3 "Program": `[length:1, lineno:2, tokens...,
// 0x0D]` per line, terminated by a zero length byte (spec §6.2).
func (p *Program) Encode() []byte {
	var out []byte
	for _, l := range p.lines {
		length := len(l.Tokens) + 3 // length byte itself + 2-byte lineno
		if length > 255 {
			length = 255 // spec's length byte is 1 byte; overflow lines are host-layer concern
		}
		out = append(out, byte(length))
		var lnBuf [2]byte
		binary.BigEndian.PutUint16(lnBuf[:], uint16(l.Number))
		out = append(out, lnBuf[:]...)
		out = append(out, l.Tokens...)
	}
	out = append(out, 0) // length==0 terminator
	return out
}

// Decode parses the raw on-disk byte sequence Encode produces back
// into a Program.
func Decode(data []byte) (*Program, error) {
	p := New()
	i := 0
	for i < len(data) {
		length := int(data[i])
		if length == 0 {
			break
		}
		if i+3 > len(data) {
			return nil, &MalformedLineError{Number: -1}
		}
		num := int(binary.BigEndian.Uint16(data[i+1 : i+3]))
		tokEnd := i + length
		if tokEnd > len(data) {
			return nil, &MalformedLineError{Number: num}
		}
		tokens := data[i+3 : tokEnd]
		p.lines = append(p.lines, Line{Number: num, Tokens: tokens})
		i = tokEnd
	}
	return p, nil
}

// Search implements spec §4.E's search(start, tok): scan forward from
// cursor start for any occurrence of tok (not only at the start of a
// statement), skipping string literals and honouring REM's
// line-terminating effect
// (REM consumes the rest of its line, so a search never looks inside
// it — modeled here simply as scanning token-by-token since Tokens
// already encodes REM bodies as raw bytes that cannot collide with a
// keyword byte >= 0x80).
func (p *Program) Search(lineIdx int, tok lexer.Tok) (int, int, bool) {
	for li := lineIdx; li < len(p.lines); li++ {
		toks := p.lines[li].Tokens
		inString := false
		for ti, b := range toks {
			if b == '"' {
				inString = !inString
				continue
			}
			if inString {
				continue
			}
			if lexer.Tok(b) == tok {
				return li, ti, true
			}
		}
	}
	return 0, 0, false
}
