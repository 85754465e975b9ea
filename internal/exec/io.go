package exec

import (
	"strconv"
	"strings"

	"basiccore/internal/errors"
	"basiccore/internal/lexer"
	"basiccore/internal/symbols"
	"basiccore/internal/value"
)

// execPrint implements PRINT: a comma/semicolon-separated list of
// expressions, field separators controlling spacing (spec §6.1, the
// SUPPLEMENTED FEATURES @% format word controlling numeric width).
func (ex *Executor) execPrint() error {
	toks := ex.currentTokens()
	suppressNewline := false
	for {
		ex.skipSpaces(toks)
		if ex.cur.Tok >= len(toks) || toks[ex.cur.Tok] == ':' || toks[ex.cur.Tok] == 0x0D {
			break
		}
		if lexer.Tok(toks[ex.cur.Tok]) == lexer.TELSE {
			break
		}
		switch toks[ex.cur.Tok] {
		case ',':
			ex.cur.Tok++
			ex.padToNextField()
			suppressNewline = true
			continue
		case ';':
			ex.cur.Tok++
			suppressNewline = true
			continue
		case '~':
			ex.cur.Tok++
			ev := ex.newEvaluator()
			v, err := ev.Eval()
			ex.adoptEvaluator(ev)
			if err != nil {
				return err
			}
			iv, err := v.AsInt(ex.lineNumber())
			if err != nil {
				return err
			}
			ex.Out.WriteString(strconv.FormatInt(iv, 16))
			suppressNewline = false
			continue
		}
		ev := ex.newEvaluator()
		v, err := ev.Eval()
		ex.adoptEvaluator(ev)
		if err != nil {
			return err
		}
		ex.Out.WriteString(ex.formatPrintValue(v))
		suppressNewline = false
		toks = ex.currentTokens()
	}
	if !suppressNewline {
		ex.Out.WriteString("\n")
	}
	return nil
}

// formatPrintValue renders v per @%'s width/decimals/mode (spec
// SUPPLEMENTED FEATURES), falling back to Value.String's default
// formatting when @% is zero (general format, BBC's default).
func (ex *Executor) formatPrintValue(v value.Value) string {
	width, decimals, mode := ex.PrintFormat()
	if v.IsString() || (width == 0 && decimals == 0 && mode == 0) {
		return v.String()
	}
	var s string
	switch mode {
	case 1:
		s = strconv.FormatFloat(v.AsFloat(), 'E', decimals, 64)
	case 2:
		s = strconv.FormatFloat(v.AsFloat(), 'f', decimals, 64)
	default:
		s = v.String()
	}
	if width > len(s) {
		s = strings.Repeat(" ", width-len(s)) + s
	}
	return s
}

// padToNextField separates comma-separated PRINT items by writing a
// single tab character. The output column is not tracked, so items
// are not aligned to the @% field width.
func (ex *Executor) padToNextField() {
	ex.Out.WriteString("\t")
}

// execInput implements `INPUT [prompt,] name[,name2...]` (spec
// §6.1): reads whitespace/comma-separated fields from the host input
// stream, coercing each to its target's type.
func (ex *Executor) execInput() error {
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == '"' {
		ev := ex.newEvaluator()
		prompt, err := ev.Eval()
		ex.adoptEvaluator(ev)
		if err != nil {
			return err
		}
		ex.Out.WriteString(prompt.String())
		ex.Out.Flush()
		toks = ex.currentTokens()
		ex.skipSpaces(toks)
		if ex.cur.Tok < len(toks) && (toks[ex.cur.Tok] == ',' || toks[ex.cur.Tok] == ';') {
			ex.cur.Tok++
		}
	}
	for {
		ex.skipSpaces(toks)
		name, pos := readNameAt(toks, ex.cur.Tok)
		if name == "" {
			return errors.New(errors.TypeMismatch, ex.lineNumber())
		}
		ex.cur.Tok = pos
		field, err := ex.readInputField()
		if err != nil {
			return err
		}
		v := ex.coerceInputField(name, field)
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

func (ex *Executor) coerceInputField(name, field string) value.Value {
	if symbols.TypeOf(name) == symbols.TypeString {
		return value.Str(field)
	}
	field = strings.TrimSpace(field)
	if i, err := strconv.ParseInt(field, 10, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(field, 64); err == nil {
		return value.Float(f)
	}
	return value.Int(0)
}

// readInputField reads one line of host input, splitting repeated
// INPUT statements' fields on commas (a simplification of BBC BASIC's
// line-buffered INPUT editor, adequate for a non-interactive host).
func (ex *Executor) readInputField() (string, error) {
	if ex.pendingInputLine == "" {
		line, err := ex.In.ReadString('\n')
		if err != nil && line == "" {
			return "", errors.Wrap(errors.NoSuchVariable, ex.lineNumber(), err, "INPUT")
		}
		ex.pendingInputLine = strings.TrimRight(line, "\r\n")
	}
	idx := strings.IndexByte(ex.pendingInputLine, ',')
	if idx < 0 {
		field := ex.pendingInputLine
		ex.pendingInputLine = ""
		return field, nil
	}
	field := ex.pendingInputLine[:idx]
	ex.pendingInputLine = ex.pendingInputLine[idx+1:]
	return field, nil
}

// execGet implements the GET statement: reads a single raw byte from
// the host input stream (no line buffering, unlike INPUT) and returns
// it as a numeric key code, which the statement dispatcher discards.
// There is no GET$ string form.
func (ex *Executor) execGet() (value.Value, error) {
	if ex.pendingInputLine != "" {
		b := ex.pendingInputLine[0]
		ex.pendingInputLine = ex.pendingInputLine[1:]
		return value.Int(int64(b)), nil
	}
	b, err := ex.In.ReadByte()
	if err != nil {
		return value.Value{}, errors.Wrap(errors.NoSuchVariable, ex.lineNumber(), err, "GET")
	}
	return value.Int(int64(b)), nil
}
