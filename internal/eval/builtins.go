package eval

import (
	"math"
	"strconv"
	"strings"

	"basiccore/internal/errors"
	"basiccore/internal/lexer"
	"basiccore/internal/value"
)

// builtinFn evaluates one builtin given its already-tokenized
// argument list (already-evaluated Values, since every builtin here
// takes value arguments rather than raw token streams).
type builtinFn func(e *Evaluator, args []value.Value) (value.Value, error)

// builtins is the dispatch table keyed on the leading token byte: a
// map holding one entry per builtin token, not a full 256-slot array.
var builtins = map[lexer.Tok]builtinArity{
	lexer.TABS:     {1, builtinAbs},
	lexer.TSGN:     {1, builtinSgn},
	lexer.TSQR:     {1, builtinSqr},
	lexer.TSIN:     {1, builtinSin},
	lexer.TCOS:     {1, builtinCos},
	lexer.TTAN:     {1, builtinTan},
	lexer.TASN:     {1, builtinAsn},
	lexer.TACS:     {1, builtinAcs},
	lexer.TATN:     {1, builtinAtn},
	lexer.TLOG:     {1, builtinLog},
	lexer.TLN:      {1, builtinLn},
	lexer.TEXP:     {1, builtinExp},
	lexer.TINT:     {1, builtinInt},
	lexer.TRND:     {-1, builtinRnd}, // -1: arity varies (RND or RND(n))
	lexer.TSTRS:    {1, builtinStrS},
	lexer.TCHRS:    {1, builtinChrS},
	lexer.TLEFTS:   {-1, builtinLeftS},
	lexer.TRIGHTS:  {-1, builtinRightS},
	lexer.TMIDS:    {-1, builtinMidS},
	lexer.TLEN:     {1, builtinLen},
	lexer.TVAL:     {1, builtinVal},
	lexer.TASC:     {1, builtinAsc},
	lexer.TSUM:     {1, builtinSum},
	lexer.TERR:     {0, builtinErr},
	lexer.TERL:     {0, builtinErl},
	lexer.TREPORTS: {0, builtinReportS},
	lexer.TTIME:    {0, builtinTime},
	lexer.TPI:      {0, builtinPi},
}

// trySumArray recognizes `SUM(name())` — a whole-array reference,
// which the scalar expression grammar can't parse as an ordinary
// argument — and evaluates it via SumArray instead of the generic
// builtin arg list. handled is false when the parenthesized content
// doesn't match that shape, leaving the position untouched so the
// generic scalar-arg path can run instead.
func (e *Evaluator) trySumArray() (value.Value, bool, error) {
	save := e.pos
	e.skipSpaces()
	if e.atEnd() || e.peek() != '(' {
		return value.Value{}, false, nil
	}
	e.pos++
	e.skipSpaces()
	if e.atEnd() || !isIdentStart(e.peek()) {
		e.pos = save
		return value.Value{}, false, nil
	}
	name := e.readName()
	e.skipSpaces()
	if e.atEnd() || e.peek() != '(' {
		e.pos = save
		return value.Value{}, false, nil
	}
	e.pos++
	e.skipSpaces()
	if e.atEnd() || e.peek() != ')' {
		e.pos = save
		return value.Value{}, false, nil
	}
	e.pos++
	e.skipSpaces()
	if e.atEnd() || e.peek() != ')' {
		e.pos = save
		return value.Value{}, false, nil
	}
	e.pos++
	arr, err := e.ctx.ResolveArray(name)
	if err != nil {
		return value.Value{}, true, err
	}
	v, err := SumArray(arr, e.ctx.Line())
	return v, true, err
}

type builtinArity struct {
	arity int // -1 means variable, read with parens until ')'
	fn    builtinFn
}

// builtinCall parses `NAME(args...)` or `NAME` (0-arity pseudo-vars
// like PI, TIME, ERR) and dispatches through the table.
func (e *Evaluator) builtinCall() (value.Value, error) {
	tok := lexer.Tok(e.peek())
	e.pos++
	entry, ok := builtins[tok]
	if !ok {
		return value.Value{}, errors.New(errors.TypeMismatch, e.ctx.Line())
	}
	if tok == lexer.TSUM {
		if v, handled, err := e.trySumArray(); handled {
			return v, err
		}
	}

	var args []value.Value
	e.skipSpaces()
	if !e.atEnd() && e.peek() == '(' {
		e.pos++
		for {
			e.skipSpaces()
			if !e.atEnd() && e.peek() == ')' {
				break
			}
			v, err := e.Eval()
			if err != nil {
				return value.Value{}, err
			}
			args = append(args, v)
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
	if entry.arity >= 0 && len(args) != entry.arity {
		return value.Value{}, errors.New(errors.IncorrectArguments, e.ctx.Line())
	}
	return entry.fn(e, args)
}

func builtinAbs(e *Evaluator, a []value.Value) (value.Value, error) {
	v := a[0]
	if v.IsString() {
		return value.Value{}, errors.New(errors.TypeMismatch, e.ctx.Line())
	}
	if v.Tag == value.TagInt {
		if v.I < 0 {
			return value.Int(-v.I), nil
		}
		return v, nil
	}
	return value.Float(math.Abs(v.F)), nil
}

func builtinSgn(e *Evaluator, a []value.Value) (value.Value, error) {
	f := a[0].AsFloat()
	switch {
	case f > 0:
		return value.Int(1), nil
	case f < 0:
		return value.Int(-1), nil
	default:
		return value.Int(0), nil
	}
}

func builtinSqr(e *Evaluator, a []value.Value) (value.Value, error) {
	f := a[0].AsFloat()
	if f < 0 {
		return value.Value{}, errors.New(errors.NegativeRoot, e.ctx.Line())
	}
	return value.Float(math.Sqrt(f)), nil
}

func builtinSin(e *Evaluator, a []value.Value) (value.Value, error) { return value.Float(math.Sin(a[0].AsFloat())), nil }
func builtinCos(e *Evaluator, a []value.Value) (value.Value, error) { return value.Float(math.Cos(a[0].AsFloat())), nil }
func builtinTan(e *Evaluator, a []value.Value) (value.Value, error) { return value.Float(math.Tan(a[0].AsFloat())), nil }
func builtinAsn(e *Evaluator, a []value.Value) (value.Value, error) { return value.Float(math.Asin(a[0].AsFloat())), nil }
func builtinAcs(e *Evaluator, a []value.Value) (value.Value, error) { return value.Float(math.Acos(a[0].AsFloat())), nil }
func builtinAtn(e *Evaluator, a []value.Value) (value.Value, error) { return value.Float(math.Atan(a[0].AsFloat())), nil }

func builtinLog(e *Evaluator, a []value.Value) (value.Value, error) {
	f := a[0].AsFloat()
	if f <= 0 {
		return value.Value{}, errors.New(errors.LogarithmRange, e.ctx.Line())
	}
	return value.Float(math.Log10(f)), nil
}

func builtinLn(e *Evaluator, a []value.Value) (value.Value, error) {
	f := a[0].AsFloat()
	if f <= 0 {
		return value.Value{}, errors.New(errors.LogarithmRange, e.ctx.Line())
	}
	return value.Float(math.Log(f)), nil
}

func builtinExp(e *Evaluator, a []value.Value) (value.Value, error) {
	r := math.Exp(a[0].AsFloat())
	if math.IsInf(r, 0) {
		return value.Value{}, errors.New(errors.ExponentRange, e.ctx.Line())
	}
	return value.Float(r), nil
}

func builtinInt(e *Evaluator, a []value.Value) (value.Value, error) {
	v := a[0]
	if v.Tag == value.TagInt {
		return v, nil
	}
	return value.Int(roundForInt(v.AsFloat())), nil
}

func builtinRnd(e *Evaluator, a []value.Value) (value.Value, error) {
	if len(a) == 0 {
		return value.Float(e.rngFloat()), nil
	}
	n, err := a[0].AsInt(e.ctx.Line())
	if err != nil {
		return value.Value{}, err
	}
	switch {
	case n > 0:
		return value.Int(1 + int64(e.rngFloat()*float64(n))), nil
	case n == 0:
		return value.Float(e.rngFloat()), nil
	default:
		e.seedRng(n)
		return value.Int(0), nil
	}
}

func builtinStrS(e *Evaluator, a []value.Value) (value.Value, error) {
	return value.Str(e.ctx.Accumulate(a[0].String())), nil
}

func builtinChrS(e *Evaluator, a []value.Value) (value.Value, error) {
	n, err := a[0].AsInt(e.ctx.Line())
	if err != nil {
		return value.Value{}, err
	}
	return value.Str(e.ctx.Accumulate(string(rune(byte(n))))), nil
}

func builtinLeftS(e *Evaluator, a []value.Value) (value.Value, error) {
	if len(a) < 1 || len(a) > 2 || !a[0].IsString() {
		return value.Value{}, errors.New(errors.IncorrectArguments, e.ctx.Line())
	}
	s := a[0].S
	n := len(s) - 1
	if len(a) == 2 {
		iv, err := a[1].AsInt(e.ctx.Line())
		if err != nil {
			return value.Value{}, err
		}
		n = int(iv)
	}
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}
	return value.Str(e.ctx.Accumulate(s[:n])), nil
}

func builtinRightS(e *Evaluator, a []value.Value) (value.Value, error) {
	if len(a) < 1 || len(a) > 2 || !a[0].IsString() {
		return value.Value{}, errors.New(errors.IncorrectArguments, e.ctx.Line())
	}
	s := a[0].S
	n := 1
	if len(a) == 2 {
		iv, err := a[1].AsInt(e.ctx.Line())
		if err != nil {
			return value.Value{}, err
		}
		n = int(iv)
	}
	if n < 0 {
		n = 0
	}
	if n > len(s) {
		n = len(s)
	}
	return value.Str(e.ctx.Accumulate(s[len(s)-n:])), nil
}

func builtinMidS(e *Evaluator, a []value.Value) (value.Value, error) {
	if len(a) < 2 || len(a) > 3 || !a[0].IsString() {
		return value.Value{}, errors.New(errors.IncorrectArguments, e.ctx.Line())
	}
	s := a[0].S
	start, err := a[1].AsInt(e.ctx.Line())
	if err != nil {
		return value.Value{}, err
	}
	idx := int(start) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(s) {
		idx = len(s)
	}
	n := len(s) - idx
	if len(a) == 3 {
		iv, err := a[2].AsInt(e.ctx.Line())
		if err != nil {
			return value.Value{}, err
		}
		n = int(iv)
	}
	if n < 0 {
		n = 0
	}
	if idx+n > len(s) {
		n = len(s) - idx
	}
	return value.Str(e.ctx.Accumulate(s[idx : idx+n])), nil
}

func builtinLen(e *Evaluator, a []value.Value) (value.Value, error) {
	if !a[0].IsString() {
		return value.Value{}, errors.New(errors.TypeMismatch, e.ctx.Line())
	}
	return value.Int(int64(len(a[0].S))), nil
}

func builtinVal(e *Evaluator, a []value.Value) (value.Value, error) {
	if !a[0].IsString() {
		return value.Value{}, errors.New(errors.TypeMismatch, e.ctx.Line())
	}
	s := strings.TrimSpace(a[0].S)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i), nil
	}
	f, _ := strconv.ParseFloat(s, 64)
	return value.Float(f), nil
}

func builtinAsc(e *Evaluator, a []value.Value) (value.Value, error) {
	if !a[0].IsString() {
		return value.Value{}, errors.New(errors.TypeMismatch, e.ctx.Line())
	}
	if a[0].S == "" {
		return value.Int(-1), nil
	}
	return value.Int(int64(a[0].S[0])), nil
}

// builtinSum is SUM's table entry. SUM(a()) needs the array itself,
// not a Value, so builtinCall first tries trySumArray; this stub is
// reached only when that does not apply, and reports Bad use of array.
func builtinSum(e *Evaluator, a []value.Value) (value.Value, error) {
	return value.Value{}, errors.New(errors.BadUseOfArray, e.ctx.Line())
}

func builtinErr(e *Evaluator, a []value.Value) (value.Value, error)      { return e.ctx.(ErrContext).LastErrKind(), nil }
func builtinErl(e *Evaluator, a []value.Value) (value.Value, error)      { return e.ctx.(ErrContext).LastErrLine(), nil }
func builtinReportS(e *Evaluator, a []value.Value) (value.Value, error)  { return e.ctx.(ErrContext).LastErrReport(), nil }
func builtinTime(e *Evaluator, a []value.Value) (value.Value, error)     { return e.ctx.(ClockContext).Centiseconds(), nil }
func builtinPi(e *Evaluator, a []value.Value) (value.Value, error)       { return value.Float(math.Pi), nil }

// ErrContext is implemented by internal/exec's executor to answer
// ERR/ERL/REPORT$ (spec §7 "User-visible behavior").
type ErrContext interface {
	LastErrKind() value.Value
	LastErrLine() value.Value
	LastErrReport() value.Value
}

// ClockContext is implemented by internal/exec to answer TIME (spec
// §6.1 getime/putime).
type ClockContext interface {
	Centiseconds() value.Value
}

// rngFloat/seedRng are satisfied via a small interface so the
// evaluator doesn't import math/rand directly; internal/exec owns
// the PRNG state since RND(-n) reseeding is a statement-visible
// side effect shared across the whole program.
type rngContext interface {
	RndFloat() float64
	RndSeed(n int64)
}

func (e *Evaluator) rngFloat() float64 {
	if r, ok := e.ctx.(rngContext); ok {
		return r.RndFloat()
	}
	return 0
}

func (e *Evaluator) seedRng(n int64) {
	if r, ok := e.ctx.(rngContext); ok {
		r.RndSeed(n)
	}
}
