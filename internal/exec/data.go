package exec

import (
	"strconv"
	"strings"

	"basiccore/internal/errors"
	"basiccore/internal/lexer"
	"basiccore/internal/program"
	"basiccore/internal/symbols"
	"basiccore/internal/value"
)

// ensureDataPos lazily establishes the DATA pointer at the first DATA
// statement in the program, the first time it's needed (spec §4.E
// "DATA pointer").
func (ex *Executor) ensureDataPos() bool {
	if ex.hasData {
		return true
	}
	if c, ok := ex.Prog.DataCursor(); ok {
		ex.dataPos = c
		ex.hasData = true
		return true
	}
	return false
}

// execRead implements `READ name[,name2...]` (spec §4.E): each target
// is assigned the next comma-separated field from the DATA stream,
// advancing past DATA statement boundaries and raising OutOfData when
// the stream is exhausted.
func (ex *Executor) execRead() error {
	toks := ex.currentTokens()
	for {
		ex.skipSpaces(toks)
		name, pos := readNameAt(toks, ex.cur.Tok)
		if name == "" {
			return errors.New(errors.TypeMismatch, ex.lineNumber())
		}
		ex.cur.Tok = pos
		raw, err := ex.readOneDatum()
		if err != nil {
			return err
		}
		v := ex.coerceDatum(name, raw)
		if err := ex.SetVar(name, v); err != nil {
			return err
		}
		toks = ex.currentTokens()
		ex.skipSpaces(toks)
		if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ',' {
			ex.cur.Tok++
			continue
		}
		break
	}
	return nil
}

// readOneDatum consumes and returns the next DATA field as a string
// (per BBC BASIC, DATA items are untyped text; the assignment target
// coerces via SetVar/VAL semantics).
func (ex *Executor) readOneDatum() (v valueResult, err error) {
	if !ex.ensureDataPos() {
		return valueResult{}, errors.New(errors.OutOfData, ex.lineNumber())
	}
	line, ok := ex.Prog.LineAt(ex.dataPos.Line)
	if !ok {
		return valueResult{}, errors.New(errors.OutOfData, ex.lineNumber())
	}
	toks := line.Tokens
	pos := ex.dataPos.Tok
	// pos sits at the TDATA token itself only on the first visit to
	// this statement; skip the keyword byte and any leading space
	// exactly once, never on subsequent fields.
	if pos < len(toks) && lexer.Tok(toks[pos]) == lexer.TDATA {
		pos++
		for pos < len(toks) && toks[pos] == ' ' {
			pos++
		}
	}
	if pos >= len(toks) || toks[pos] == 0x0D {
		next, ok := ex.Prog.NextDataCursor(program.Cursor{Line: ex.dataPos.Line, Tok: pos})
		if !ok {
			return valueResult{}, errors.New(errors.OutOfData, ex.lineNumber())
		}
		ex.dataPos = next
		return ex.readOneDatum()
	}

	start := pos
	inString := toks[pos] == '"'
	if inString {
		pos++
		start = pos
		for pos < len(toks) && toks[pos] != '"' {
			pos++
		}
		field := string(toks[start:pos])
		if pos < len(toks) {
			pos++
		}
		for pos < len(toks) && toks[pos] == ' ' {
			pos++
		}
		if pos < len(toks) && toks[pos] == ',' {
			pos++
		}
		ex.dataPos = program.Cursor{Line: ex.dataPos.Line, Tok: pos}
		return valueResult{s: field}, nil
	}
	for pos < len(toks) && toks[pos] != ',' && toks[pos] != 0x0D {
		pos++
	}
	field := string(toks[start:pos])
	if pos < len(toks) && toks[pos] == ',' {
		pos++
	}
	ex.dataPos = program.Cursor{Line: ex.dataPos.Line, Tok: pos}
	return valueResult{s: trimSpaceBoth(field)}, nil
}

// valueResult is a raw DATA field pending coercion to the target
// variable's type (coerceDatum parses numeric fields with
// strconv.ParseInt/ParseFloat; string fields pass through verbatim).
type valueResult struct{ s string }

// coerceDatum converts a raw DATA field to the Value its destination
// variable expects (spec §4.E: DATA items are untyped text until
// READ's target type picks a coercion).
func (ex *Executor) coerceDatum(name string, raw valueResult) value.Value {
	if symbols.TypeOf(name) == symbols.TypeString {
		return value.Str(raw.s)
	}
	s := strings.TrimSpace(raw.s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if i, ierr := strconv.ParseInt(s, 10, 64); ierr == nil {
			return value.Int(i)
		}
		return value.Float(f)
	}
	return value.Int(0)
}

func trimSpaceBoth(s string) string {
	i, j := 0, len(s)
	for i < j && s[i] == ' ' {
		i++
	}
	for j > i && s[j-1] == ' ' {
		j--
	}
	return s[i:j]
}

// execRestore implements `RESTORE [lineno | +n]` / bare RESTORE (spec
// §4.E): repositions the DATA pointer without affecting control flow.
func (ex *Executor) execRestore() error {
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	if ex.cur.Tok >= len(toks) || toks[ex.cur.Tok] == ':' || toks[ex.cur.Tok] == 0x0D {
		c, ok := ex.Prog.DataCursor()
		if !ok {
			return errors.New(errors.OutOfData, ex.lineNumber())
		}
		ex.dataPos, ex.hasData = c, true
		return nil
	}
	if toks[ex.cur.Tok] == '+' {
		ex.cur.Tok++
		ev := ex.newEvaluator()
		v, err := ev.Eval()
		ex.adoptEvaluator(ev)
		if err != nil {
			return err
		}
		n, err := v.AsInt(ex.lineNumber())
		if err != nil {
			return err
		}
		c, ok := ex.Prog.RestoreRelative(ex.cur.Line, int(n))
		if !ok {
			return errors.New(errors.OutOfData, ex.lineNumber())
		}
		ex.dataPos, ex.hasData = c, true
		return nil
	}
	target, err := ex.evalLineTarget()
	if err != nil {
		return err
	}
	c, ok := ex.Prog.RestoreToLine(target)
	if !ok {
		return errors.New(errors.NoSuchLine, ex.lineNumber())
	}
	ex.dataPos, ex.hasData = c, true
	return nil
}
