package exec

import (
	"basiccore/internal/errors"
	"basiccore/internal/lexer"
	"basiccore/internal/stack"
)

// execOn implements `ON ERROR ...`, `ON expr GOTO l1,l2,...`, `ON expr
// GOSUB l1,l2,...` and `ON expr PROC1,PROC2,... [ELSE stmts]` (spec
// §4.G, §7).
func (ex *Executor) execOn() error {
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	if ex.cur.Tok < len(toks) && lexer.Tok(toks[ex.cur.Tok]) == lexer.TERROR {
		ex.cur.Tok++
		return ex.execOnError()
	}

	ev := ex.newEvaluator()
	sel, err := ev.Eval()
	ex.adoptEvaluator(ev)
	if err != nil {
		return err
	}
	n, err := sel.AsInt(ex.lineNumber())
	if err != nil {
		return err
	}

	toks = ex.currentTokens()
	ex.skipSpaces(toks)
	if ex.cur.Tok >= len(toks) {
		return errors.New(errors.TypeMismatch, ex.lineNumber())
	}
	switch lexer.Tok(toks[ex.cur.Tok]) {
	case lexer.TGOTO, lexer.TGOSUB:
		isGosub := lexer.Tok(toks[ex.cur.Tok]) == lexer.TGOSUB
		ex.cur.Tok++
		targets, err := ex.parseTargetList()
		if err != nil {
			return err
		}
		if n < 1 || int(n) > len(targets) {
			return nil // out of range: falls through, per spec's ON...no ELSE behavior
		}
		idx, ok := ex.Prog.FindLine(targets[n-1])
		if !ok {
			return errors.New(errors.NoSuchLine, ex.lineNumber())
		}
		if isGosub {
			if err := ex.Stk.Push(stack.Frame{Marker: stack.MarkerGosub, ReturnCursor: ex.cur}, ex.lineNumber()); err != nil {
				return err
			}
		}
		ex.cur.Line, ex.cur.Tok = idx, 0
		return nil
	case lexer.TPROC:
		return ex.execOnProc(int(n))
	default:
		return errors.New(errors.TypeMismatch, ex.lineNumber())
	}
}

// parseTargetList parses a comma-separated list of line-number
// targets (TLINO-encoded or plain) following ON expr GOTO/GOSUB.
func (ex *Executor) parseTargetList() ([]int, error) {
	var targets []int
	for {
		n, err := ex.evalLineTarget()
		if err != nil {
			return nil, err
		}
		targets = append(targets, n)
		toks := ex.currentTokens()
		ex.skipSpaces(toks)
		if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ',' {
			ex.cur.Tok++
			continue
		}
		break
	}
	return targets, nil
}

// execOnProc implements `ON expr PROC1,PROC2,... [ELSE stmts]`: calls
// the nth listed PROC and then skips any ELSE clause, or falls through
// to the ELSE clause (or the next statement, if none) when out of range.
func (ex *Executor) execOnProc(n int) error {
	var names []string
	for {
		toks := ex.currentTokens()
		ex.skipSpaces(toks)
		if ex.cur.Tok >= len(toks) || lexer.Tok(toks[ex.cur.Tok]) != lexer.TPROC {
			return errors.New(errors.TypeMismatch, ex.lineNumber())
		}
		ex.cur.Tok++
		name, pos := readNameAt(toks, ex.cur.Tok)
		if name == "" {
			return errors.New(errors.TypeMismatch, ex.lineNumber())
		}
		ex.cur.Tok = pos
		names = append(names, name)
		toks = ex.currentTokens()
		ex.skipSpaces(toks)
		if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ',' {
			ex.cur.Tok++
			continue
		}
		break
	}
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	hasElse := ex.cur.Tok < len(toks) && lexer.Tok(toks[ex.cur.Tok]) == lexer.TELSE
	if hasElse {
		ex.cur.Tok++
	}
	if n < 1 || n > len(names) {
		return nil
	}
	_, err := ex.callDef(names[n-1], nil, nil, false)
	if err == nil && hasElse {
		ex.skipToEol(ex.currentTokens())
	}
	return err
}

// execOnError implements `ON ERROR [LOCAL] | OFF` (spec §7): installs
// or clears the active error handler, remembering the stack depth to
// unwind to on trap (HandlerAnchor) and the previous handler so a
// nested ON ERROR LOCAL can be restored when its scope unwinds.
func (ex *Executor) execOnError() error {
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	if ex.cur.Tok < len(toks) && lexer.Tok(toks[ex.cur.Tok]) == lexer.TOFF {
		ex.cur.Tok++
		ex.haveHandler = false
		return nil
	}
	isLocal := false
	if ex.cur.Tok < len(toks) && lexer.Tok(toks[ex.cur.Tok]) == lexer.TLOCAL {
		isLocal = true
		ex.cur.Tok++
	}
	toks = ex.currentTokens()
	ex.skipSpaces(toks)
	handlerCur := ex.cur

	if isLocal {
		if err := ex.Stk.Push(stack.Frame{
			Marker:          stack.MarkerOnError,
			SavedHandler:    ex.onError.SavedHandler,
			SavedHandlerSet: ex.haveHandler,
			HandlerAnchor:   ex.onError.HandlerAnchor,
		}, ex.lineNumber()); err != nil {
			return err
		}
	}
	ex.onError = stack.Frame{Marker: stack.MarkerOnError, SavedHandler: handlerCur, HandlerAnchor: ex.Stk.Depth()}
	ex.haveHandler = true
	// The handler body follows inline; skip over it during normal
	// (non-error) flow so it only ever runs via the error jump.
	ex.skipToEol(ex.currentTokens())
	return nil
}

// execError implements the `ERROR code, message` statement (spec §7
// user errors): raises a BasicError that propagates exactly like a
// built-in error.
func (ex *Executor) execError() error {
	ev := ex.newEvaluator()
	codeV, err := ev.Eval()
	ex.adoptEvaluator(ev)
	if err != nil {
		return err
	}
	code, err := codeV.AsInt(ex.lineNumber())
	if err != nil {
		return err
	}
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	msg := ""
	if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ',' {
		ex.cur.Tok++
		ev := ex.newEvaluator()
		msgV, err := ev.Eval()
		ex.adoptEvaluator(ev)
		if err != nil {
			return err
		}
		msg = msgV.String()
	}
	return errors.User(int(code), msg, ex.lineNumber())
}
