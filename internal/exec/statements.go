package exec

import (
	"basiccore/internal/errors"
	"basiccore/internal/lexer"
	"basiccore/internal/program"
)

// execStatement executes exactly one statement at the current cursor,
// advancing the cursor past it (to the next statement, or the next
// line if this was the line's last statement). This is the core of
// spec §4.G's dispatch loop.
func (ex *Executor) execStatement() error {
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	for ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ':' {
		ex.cur.Tok++
		ex.skipSpaces(toks)
	}
	if ex.cur.Tok >= len(toks) || toks[ex.cur.Tok] == 0x0D {
		ex.advanceLine()
		return nil
	}

	tok := lexer.Tok(toks[ex.cur.Tok])
	switch tok {
	case lexer.TEND:
		ex.cur.Tok++
		return errEnd
	case lexer.TPRINT:
		ex.cur.Tok++
		return ex.execPrint()
	case lexer.TINPUT:
		ex.cur.Tok++
		return ex.execInput()
	case lexer.TFOR:
		ex.cur.Tok++
		return ex.execFor()
	case lexer.TNEXT:
		ex.cur.Tok++
		return ex.execNext()
	case lexer.TREPEAT:
		ex.cur.Tok++
		return ex.execRepeat()
	case lexer.TUNTIL:
		ex.cur.Tok++
		return ex.execUntil()
	case lexer.TWHILE:
		ex.cur.Tok++
		return ex.execWhile()
	case lexer.TENDWHILE:
		ex.cur.Tok++
		return ex.execEndWhile()
	case lexer.TIF:
		ex.cur.Tok++
		return ex.execIf()
	case lexer.TELSE:
		ex.cur.Tok++
		return ex.execElseFallthrough()
	case lexer.TENDIF:
		ex.cur.Tok++
		return ex.execEndifFallthrough()
	case lexer.TCASE:
		ex.cur.Tok++
		return ex.execCase()
	case lexer.TWHEN, lexer.TOTHERWISE:
		// Reached by running off the end of the matched clause's body:
		// skip the remaining clauses up to the matching ENDCASE.
		for lexer.Tok(toks[ex.cur.Tok]) != lexer.TENDCASE {
			ex.skipToEol(toks)
			if err := ex.skipCaseClauseBody(); err != nil {
				return err
			}
			toks = ex.currentTokens()
		}
		fallthrough
	case lexer.TENDCASE:
		ex.cur.Tok++
		return nil
	case lexer.TGOTO:
		ex.cur.Tok++
		return ex.execGoto()
	case lexer.TGOSUB:
		ex.cur.Tok++
		return ex.execGosub()
	case lexer.TRETURN:
		ex.cur.Tok++
		return ex.execReturn()
	case lexer.TPROC:
		ex.cur.Tok++
		_, err := ex.execProcCall()
		return err
	case lexer.TDEF:
		return ex.skipDef()
	case lexer.TLOCAL:
		ex.cur.Tok++
		return ex.execLocal()
	case lexer.TPRIVATE:
		ex.cur.Tok++
		return ex.execPrivate()
	case lexer.TDIM:
		ex.cur.Tok++
		return ex.execDim()
	case lexer.TREAD:
		ex.cur.Tok++
		return ex.execRead()
	case lexer.TDATA:
		// DATA is inert when reached by normal flow; skip to EOL.
		ex.skipToEol(toks)
		return nil
	case lexer.TRESTORE:
		ex.cur.Tok++
		return ex.execRestore()
	case lexer.TON:
		ex.cur.Tok++
		return ex.execOn()
	case lexer.TERROR:
		ex.cur.Tok++
		return ex.execError()
	case lexer.TEXIT:
		ex.cur.Tok++
		return ex.execExit()
	case lexer.TGET:
		ex.cur.Tok++
		_, err := ex.execGet()
		return err
	case lexer.TREM:
		ex.skipToEol(toks)
		return nil
	case lexer.TINSTALL:
		ex.cur.Tok++
		return ex.execInstall()
	default:
		return ex.execAssignOrCall()
	}
}

func (ex *Executor) skipToEol(toks []byte) {
	for ex.cur.Tok < len(toks) && toks[ex.cur.Tok] != 0x0D {
		ex.cur.Tok++
	}
	ex.advanceLine()
}

// skipDef skips over a DEF FN/DEF PROC body when execution reaches it
// by falling through rather than being CALLed (the body must never
// run except via CallFn/callDef). For DEF PROC it scans forward to the
// ENDPROC that closes this definition and resumes on the line after
// it; a DEF FN is treated as a single-line body and skipped to the
// end of its line.
func (ex *Executor) skipDef() error {
	toks := ex.currentTokens()
	j := ex.cur.Tok + 1
	for j < len(toks) && toks[j] == ' ' {
		j++
	}
	isProc := j < len(toks) && lexer.Tok(toks[j]) == lexer.TPROC
	if !isProc {
		ex.skipToEol(toks)
		return nil
	}
	// DEF PROC ... body ... ENDPROC : scan forward for ENDPROC at
	// nesting depth 0 (PROC calls inside don't start a new DEF).
	depth := 0
	li, ti := ex.cur.Line, j // start past this DEF so it is not counted
	for {
		line, ok := ex.Prog.LineAt(li)
		if !ok {
			ex.cur = program.Cursor{Line: ex.Prog.Len()}
			return nil
		}
		for ti < len(line.Tokens) {
			switch lexer.Tok(line.Tokens[ti]) {
			case lexer.TDEF:
				depth++
			case lexer.TENDPROC:
				if depth == 0 {
					ex.cur = program.Cursor{Line: li, Tok: ti + 1}
					ex.advanceLine()
					return nil
				}
				depth--
			}
			ti++
		}
		li++
		ti = 0
	}
}

// execAssignOrCall handles the `name = expr`, `name(subs) = expr` and
// `name() = expr(s)` assignment forms. Structure (`name{...}`)
// assignment and statement-level FN calls are not handled; they raise
// Type mismatch.
func (ex *Executor) execAssignOrCall() error {
	toks := ex.currentTokens()
	start := ex.cur.Tok
	name, pos := readNameAt(toks, start)
	if name == "" {
		return errors.New(errors.TypeMismatch, ex.lineNumber())
	}
	ex.cur.Tok = pos
	ex.skipSpaces(toks)

	if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == '(' {
		// array element assignment or whole-array expression
		save := ex.cur.Tok
		ex.cur.Tok++
		ex.skipSpaces(toks)
		if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ')' {
			ex.cur.Tok++
			ex.skipSpaces(toks)
			if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == '=' {
				ex.cur.Tok++
				return ex.execWholeArrayAssign(name)
			}
			ex.cur.Tok = save
		} else {
			ex.cur.Tok = save
		}
		return ex.execArrayElementAssign(name)
	}

	if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == '=' {
		ex.cur.Tok++
		ev := ex.newEvaluator()
		v, err := ev.Eval()
		ex.adoptEvaluator(ev)
		if err != nil {
			return err
		}
		if err := ex.SetVar(name, v); err != nil {
			return err
		}
		return nil
	}

	return errors.New(errors.TypeMismatch, ex.lineNumber())
}

func (ex *Executor) execWholeArrayAssign(name string) error {
	arr, err := ex.ResolveArray(name)
	if err != nil {
		return err
	}
	ev := ex.newEvaluator()
	err = ev.EvalArrayExpr(arr)
	ex.adoptEvaluator(ev)
	return err
}

func (ex *Executor) execArrayElementAssign(name string) error {
	arr, err := ex.ResolveArray(name)
	if err != nil {
		return err
	}
	toks := ex.currentTokens()
	ex.cur.Tok++ // '('
	var subs []int
	for {
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
		subs = append(subs, int(iv))
		ex.skipSpaces(toks)
		if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ',' {
			ex.cur.Tok++
			continue
		}
		break
	}
	ex.skipSpaces(toks)
	if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ')' {
		ex.cur.Tok++
	}
	ex.skipSpaces(toks)
	if ex.cur.Tok >= len(toks) || toks[ex.cur.Tok] != '=' {
		return errors.New(errors.TypeMismatch, ex.lineNumber())
	}
	ex.cur.Tok++
	ev := ex.newEvaluator()
	v, err := ev.Eval()
	ex.adoptEvaluator(ev)
	if err != nil {
		return err
	}
	off, ok := arr.Index(subs)
	if !ok {
		return errors.New(errors.BadUseOfArray, ex.lineNumber())
	}
	arr.Data[off] = v
	return nil
}
