// Package eval implements the operator-precedence expression
// evaluator of spec §4.F over the tokenized statement body, plus the
// builtin function dispatch table and element-wise array expression
// support.
package eval

import (
	"math"
	"strconv"
	"strings"

	"basiccore/internal/errors"
	"basiccore/internal/lexer"
	"basiccore/internal/symbols"
	"basiccore/internal/value"
)

// Context is the host the evaluator needs to resolve names, call
// FN definitions and raise errors. internal/exec implements it.
type Context interface {
	ResolveVar(name string) (value.Value, error)
	// CallFn invokes a DEF FN by name. actualNames[i] is the bare
	// variable name the i'th actual was written as, or "" if it was
	// any other expression — the RETURN formal write-back spec §4.G
	// step 3 requires needs a name to write back into, so only a bare
	// actual can bind to a RETURN formal.
	CallFn(name string, args []value.Value, actualNames []string) (value.Value, error)
	Accumulate(s string) string // stabilizes a transient string result (spec §4.F accumulator contract)
	Line() int
	ResolveArray(name string) (*symbols.Array, error)
}

// Evaluator parses and evaluates expressions over a single
// statement's token bytes. One Evaluator is created per statement;
// Pos tracks the read cursor (spec §4.F "recursive descent with
// precedence levels").
type Evaluator struct {
	toks []byte
	pos  int
	ctx  Context
}

// New creates an evaluator positioned at the start of toks.
func New(toks []byte, pos int, ctx Context) *Evaluator {
	return &Evaluator{toks: toks, pos: pos, ctx: ctx}
}

// Pos returns the current read position, so callers (the statement
// executor) can continue tokenizing after the expression.
func (e *Evaluator) Pos() int { return e.pos }

func (e *Evaluator) atEnd() bool { return e.pos >= len(e.toks) }

func (e *Evaluator) peek() byte {
	if e.atEnd() {
		return 0
	}
	return e.toks[e.pos]
}

func (e *Evaluator) skipSpaces() {
	for !e.atEnd() && (e.toks[e.pos] == ' ' || e.toks[e.pos] == '\t') {
		e.pos++
	}
}

// Eval parses and evaluates a full expression at precedence level 7
// (lowest: OR/EOR), the entry point spec §4.F names.
func (e *Evaluator) Eval() (value.Value, error) {
	return e.orLevel()
}

// orLevel: `OR EOR` (lowest precedence).
func (e *Evaluator) orLevel() (value.Value, error) {
	left, err := e.andLevel()
	if err != nil {
		return value.Value{}, err
	}
	for {
		e.skipSpaces()
		switch lexer.Tok(e.peek()) {
		case lexer.TOR:
			e.pos++
			right, err := e.andLevel()
			if err != nil {
				return value.Value{}, err
			}
			left, err = value.Or(left, right, e.ctx.Line())
			if err != nil {
				return value.Value{}, err
			}
		case lexer.TEOR:
			e.pos++
			right, err := e.andLevel()
			if err != nil {
				return value.Value{}, err
			}
			left, err = value.Eor(left, right, e.ctx.Line())
			if err != nil {
				return value.Value{}, err
			}
		default:
			return left, nil
		}
	}
}

// andLevel: `AND`.
func (e *Evaluator) andLevel() (value.Value, error) {
	left, err := e.relLevel()
	if err != nil {
		return value.Value{}, err
	}
	for {
		e.skipSpaces()
		if lexer.Tok(e.peek()) != lexer.TAND {
			return left, nil
		}
		e.pos++
		right, err := e.relLevel()
		if err != nil {
			return value.Value{}, err
		}
		left, err = value.And(left, right, e.ctx.Line())
		if err != nil {
			return value.Value{}, err
		}
	}
}

// relLevel: non-chaining relational operators.
func (e *Evaluator) relLevel() (value.Value, error) {
	left, err := e.addLevel()
	if err != nil {
		return value.Value{}, err
	}
	e.skipSpaces()
	op, width := e.matchRelOp()
	if op == "" {
		return left, nil
	}
	e.pos += width
	right, err := e.addLevel()
	if err != nil {
		return value.Value{}, err
	}
	return value.Compare(left, right, op, e.ctx.Line())
}

func (e *Evaluator) matchRelOp() (string, int) {
	rest := e.toks[e.pos:]
	two := func(s string) bool { return len(rest) >= 2 && string(rest[:2]) == s }
	switch {
	case two(">>>"[:2]) && len(rest) >= 3 && rest[2] == '>':
		return ">>>", 3
	case two("<="):
		return "<=", 2
	case two(">="):
		return ">=", 2
	case two("<>"):
		return "<>", 2
	case two("<<"):
		return "<<", 2
	case two(">>"):
		return ">>", 2
	case len(rest) >= 1 && rest[0] == '=':
		return "=", 1
	case len(rest) >= 1 && rest[0] == '<':
		return "<", 1
	case len(rest) >= 1 && rest[0] == '>':
		return ">", 1
	default:
		return "", 0
	}
}

// addLevel: `+ - SUM` (string `+` concatenates).
func (e *Evaluator) addLevel() (value.Value, error) {
	left, err := e.mulLevel()
	if err != nil {
		return value.Value{}, err
	}
	for {
		e.skipSpaces()
		switch e.peek() {
		case '+':
			e.pos++
			right, err := e.mulLevel()
			if err != nil {
				return value.Value{}, err
			}
			left, err = value.Add(left, right, e.ctx.Line())
			if err != nil {
				return value.Value{}, err
			}
		case '-':
			e.pos++
			right, err := e.mulLevel()
			if err != nil {
				return value.Value{}, err
			}
			left, err = value.Sub(left, right, e.ctx.Line())
			if err != nil {
				return value.Value{}, err
			}
		default:
			return left, nil
		}
	}
}

// mulLevel: `* / MOD DIV`.
func (e *Evaluator) mulLevel() (value.Value, error) {
	left, err := e.powLevel()
	if err != nil {
		return value.Value{}, err
	}
	for {
		e.skipSpaces()
		switch {
		case e.peek() == '*':
			e.pos++
			right, err := e.powLevel()
			if err != nil {
				return value.Value{}, err
			}
			left, err = value.Mul(left, right, e.ctx.Line())
			if err != nil {
				return value.Value{}, err
			}
		case e.peek() == '/':
			e.pos++
			right, err := e.powLevel()
			if err != nil {
				return value.Value{}, err
			}
			left, err = value.Div(left, right, e.ctx.Line())
			if err != nil {
				return value.Value{}, err
			}
		case lexer.Tok(e.peek()) == lexer.TDIV:
			e.pos++
			right, err := e.powLevel()
			if err != nil {
				return value.Value{}, err
			}
			left, err = value.IntDiv(left, right, e.ctx.Line())
			if err != nil {
				return value.Value{}, err
			}
		case lexer.Tok(e.peek()) == lexer.TMOD:
			e.pos++
			right, err := e.powLevel()
			if err != nil {
				return value.Value{}, err
			}
			left, err = value.Mod(left, right, e.ctx.Line())
			if err != nil {
				return value.Value{}, err
			}
		default:
			return left, nil
		}
	}
}

// powLevel: `^` (right-associative).
func (e *Evaluator) powLevel() (value.Value, error) {
	left, err := e.unary()
	if err != nil {
		return value.Value{}, err
	}
	e.skipSpaces()
	if e.peek() != '^' {
		return left, nil
	}
	e.pos++
	right, err := e.powLevel() // right-associative
	if err != nil {
		return value.Value{}, err
	}
	return value.Pow(left, right, e.ctx.Line())
}

// unary handles unary +/-, NOT and falls through to primary.
func (e *Evaluator) unary() (value.Value, error) {
	e.skipSpaces()
	switch {
	case e.peek() == '-':
		e.pos++
		v, err := e.unary()
		if err != nil {
			return value.Value{}, err
		}
		return value.Neg(v, e.ctx.Line())
	case e.peek() == '+':
		e.pos++
		return e.unary()
	case lexer.Tok(e.peek()) == lexer.TNOT:
		e.pos++
		v, err := e.unary()
		if err != nil {
			return value.Value{}, err
		}
		return value.Not(v, e.ctx.Line())
	default:
		return e.primary()
	}
}

// primary: literal, variable, `(expr)`, builtin function call.
func (e *Evaluator) primary() (value.Value, error) {
	e.skipSpaces()
	if e.atEnd() {
		return value.Value{}, errors.New(errors.TypeMismatch, e.ctx.Line())
	}
	c := e.peek()
	switch {
	case c == '(':
		e.pos++
		v, err := e.Eval()
		if err != nil {
			return value.Value{}, err
		}
		e.skipSpaces()
		if e.peek() == ')' {
			e.pos++
		}
		return v, nil
	case c == '"':
		return e.stringLiteral()
	case c == '&':
		return e.hexLiteral()
	case isDigit(c):
		return e.numberLiteral()
	case lexer.Tok(c) == lexer.TTRUE:
		e.pos++
		return value.Bool(true), nil
	case lexer.Tok(c) == lexer.TFALSE:
		e.pos++
		return value.Bool(false), nil
	case lexer.Tok(c) == lexer.TFN:
		return e.fnCall()
	case isBuiltinTok(lexer.Tok(c)):
		return e.builtinCall()
	case isIdentStart(c):
		return e.variableRef()
	default:
		return value.Value{}, errors.New(errors.TypeMismatch, e.ctx.Line())
	}
}

func (e *Evaluator) stringLiteral() (value.Value, error) {
	e.pos++ // opening quote
	start := e.pos
	for !e.atEnd() && e.toks[e.pos] != '"' {
		e.pos++
	}
	s := string(e.toks[start:e.pos])
	if !e.atEnd() {
		e.pos++ // closing quote
	}
	return value.Str(s), nil
}

func (e *Evaluator) hexLiteral() (value.Value, error) {
	start := e.pos
	e.pos++
	for !e.atEnd() && isHexDigit(e.toks[e.pos]) {
		e.pos++
	}
	n, err := strconv.ParseInt(string(e.toks[start+1:e.pos]), 16, 64)
	if err != nil {
		return value.Value{}, errors.New(errors.TypeMismatch, e.ctx.Line())
	}
	return value.Int(n), nil
}

func (e *Evaluator) numberLiteral() (value.Value, error) {
	start := e.pos
	isFloat := false
	for !e.atEnd() && (isDigit(e.toks[e.pos]) || e.toks[e.pos] == '.') {
		if e.toks[e.pos] == '.' {
			isFloat = true
		}
		e.pos++
	}
	if !e.atEnd() && (e.toks[e.pos] == 'E' || e.toks[e.pos] == 'e') {
		isFloat = true
		e.pos++
		if !e.atEnd() && (e.toks[e.pos] == '+' || e.toks[e.pos] == '-') {
			e.pos++
		}
		for !e.atEnd() && isDigit(e.toks[e.pos]) {
			e.pos++
		}
	}
	text := string(e.toks[start:e.pos])
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return value.Value{}, errors.New(errors.NumberTooBig, e.ctx.Line())
		}
		return value.Float(f), nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(text, 64)
		if ferr != nil {
			return value.Value{}, errors.New(errors.NumberTooBig, e.ctx.Line())
		}
		return value.Float(f), nil
	}
	return value.Int(n), nil
}

// variableRef reads a name (with optional sigil) and, if followed
// immediately by `(`, treats it as array indexing.
func (e *Evaluator) variableRef() (value.Value, error) {
	name := e.readName()
	e.skipSpaces()
	if !e.atEnd() && e.peek() == '(' {
		arr, err := e.ctx.ResolveArray(name)
		if err != nil {
			return value.Value{}, err
		}
		e.pos++ // '('
		var subs []int
		for {
			v, err := e.Eval()
			if err != nil {
				return value.Value{}, err
			}
			iv, err := v.AsInt(e.ctx.Line())
			if err != nil {
				return value.Value{}, err
			}
			subs = append(subs, int(iv))
			e.skipSpaces()
			if !e.atEnd() && e.peek() == ',' {
				e.pos++
				continue
			}
			break
		}
		e.skipSpaces()
		if !e.atEnd() && e.peek() == ')' {
			e.pos++
		}
		off, ok := arr.Index(subs)
		if !ok {
			return value.Value{}, errors.New(errors.BadUseOfArray, e.ctx.Line())
		}
		return arr.Data[off], nil
	}
	return e.ctx.ResolveVar(name)
}

func (e *Evaluator) readName() string {
	start := e.pos
	for !e.atEnd() && isIdentPart(e.toks[e.pos]) {
		e.pos++
	}
	for !e.atEnd() && strings.ContainsRune("%$#&", rune(e.toks[e.pos])) {
		e.pos++
	}
	if e.pos+1 <= len(e.toks) && e.pos > start && e.toks[e.pos-1] == '%' && !e.atEnd() && e.toks[e.pos] == '%' {
		e.pos++ // %% int64 suffix
	}
	return string(e.toks[start:e.pos])
}

func (e *Evaluator) fnCall() (value.Value, error) {
	e.pos++ // FN token
	name := "FN" + e.readName()
	var args []value.Value
	var actualNames []string
	e.skipSpaces()
	if !e.atEnd() && e.peek() == '(' {
		e.pos++
		for {
			e.skipSpaces()
			if !e.atEnd() && e.peek() == ')' {
				break
			}
			bare := e.peekBareArgName()
			v, err := e.Eval()
			if err != nil {
				return value.Value{}, err
			}
			args = append(args, v)
			actualNames = append(actualNames, bare)
			e.skipSpaces()
			if !e.atEnd() && e.peek() == ',' {
				e.pos++
				continue
			}
			break
		}
		e.skipSpaces()
		if !e.atEnd() && e.peek() == ')' {
			e.pos++
		}
	}
	return e.ctx.CallFn(name, args, actualNames)
}

// peekBareArgName looks ahead from the current position, without
// moving the cursor, to see whether the upcoming FN actual is a bare
// variable reference — a name token with nothing else before the
// closing `,`/`)` — the only form a RETURN formal (spec §4.G step 3)
// can write back into. Anything else (an expression, an array
// element) reports "".
func (e *Evaluator) peekBareArgName() string {
	pos := e.pos
	start := pos
	for pos < len(e.toks) && isIdentPart(e.toks[pos]) {
		pos++
	}
	if pos == start {
		return ""
	}
	for pos < len(e.toks) && strings.ContainsRune("%$#&", rune(e.toks[pos])) {
		pos++
	}
	name := string(e.toks[start:pos])
	for pos < len(e.toks) && e.toks[pos] == ' ' {
		pos++
	}
	if pos < len(e.toks) && (e.toks[pos] == ',' || e.toks[pos] == ')') {
		return name
	}
	return ""
}

func isDigit(c byte) bool    { return c >= '0' && c <= '9' }
func isHexDigit(c byte) bool { return isDigit(c) || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f') }
func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '@'
}
func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

// isBuiltinTok reports whether t is one of the single-byte builtin
// function tokens recognized by the evaluator's builtin table.
func isBuiltinTok(t lexer.Tok) bool {
	return t >= lexer.TABS && t <= lexer.TPI
}

func roundForInt(f float64) int64 { return int64(math.Floor(f)) }
