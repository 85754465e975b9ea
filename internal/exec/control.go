package exec

import (
	"basiccore/internal/errors"
	"basiccore/internal/lexer"
	"basiccore/internal/program"
	"basiccore/internal/stack"
	"basiccore/internal/value"
)

// execFor implements `FOR var = start TO limit [STEP step]` (spec
// §4.G): the loop variable is assigned, a FOR frame records the body
// cursor and limit/step, and execution falls through into the body.
func (ex *Executor) execFor() error {
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	name, pos := readNameAt(toks, ex.cur.Tok)
	if name == "" {
		return errors.New(errors.TypeMismatch, ex.lineNumber())
	}
	ex.cur.Tok = pos
	ex.skipSpaces(toks)
	if ex.cur.Tok >= len(toks) || toks[ex.cur.Tok] != '=' {
		return errors.New(errors.TypeMismatch, ex.lineNumber())
	}
	ex.cur.Tok++

	ev := ex.newEvaluator()
	start, err := ev.Eval()
	ex.adoptEvaluator(ev)
	if err != nil {
		return err
	}
	toks = ex.currentTokens()
	ex.skipSpaces(toks)
	if ex.cur.Tok >= len(toks) || lexer.Tok(toks[ex.cur.Tok]) != lexer.TTO {
		return errors.New(errors.TypeMismatch, ex.lineNumber())
	}
	ex.cur.Tok++

	ev = ex.newEvaluator()
	limit, err := ev.Eval()
	ex.adoptEvaluator(ev)
	if err != nil {
		return err
	}

	step := value.Int(1)
	toks = ex.currentTokens()
	ex.skipSpaces(toks)
	if ex.cur.Tok < len(toks) && lexer.Tok(toks[ex.cur.Tok]) == lexer.TSTEP {
		ex.cur.Tok++
		ev = ex.newEvaluator()
		step, err = ev.Eval()
		ex.adoptEvaluator(ev)
		if err != nil {
			return err
		}
	}

	if err := ex.SetVar(name, start); err != nil {
		return err
	}

	sign := 1
	if step.AsFloat() < 0 {
		sign = -1
	}
	if loopDone(start, limit, sign) {
		// zero-trip loop: skip straight past the matching NEXT.
		return ex.skipForBody(name)
	}

	f := stack.Frame{
		Marker:     stack.MarkerFor,
		BodyCursor: ex.cur,
		StepSign:   sign,
		Limit:      limit,
		Step:       step,
		VarName:    name,
	}
	return ex.Stk.Push(f, ex.lineNumber())
}

func loopDone(cur, limit value.Value, sign int) bool {
	if sign >= 0 {
		return cur.AsFloat() > limit.AsFloat()
	}
	return cur.AsFloat() < limit.AsFloat()
}

// skipForBody scans forward from the cursor to the NEXT that closes
// this FOR, for the zero-trip case (start already past limit).
func (ex *Executor) skipForBody(name string) error {
	depth := 0
	li, ti := ex.cur.Line, ex.cur.Tok
	for {
		line, ok := ex.Prog.LineAt(li)
		if !ok {
			return errors.New(errors.JumpOutOfRange, ex.lineNumber())
		}
		for ti < len(line.Tokens) {
			switch lexer.Tok(line.Tokens[ti]) {
			case lexer.TFOR:
				depth++
			case lexer.TNEXT:
				if depth == 0 {
					ex.cur = program.Cursor{Line: li, Tok: ti + 1}
					ex.skipNextVarList()
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

func (ex *Executor) skipNextVarList() {
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	for ex.cur.Tok < len(toks) {
		name, pos := readNameAt(toks, ex.cur.Tok)
		if name == "" {
			break
		}
		ex.cur.Tok = pos
		ex.skipSpaces(toks)
		if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ',' {
			ex.cur.Tok++
			ex.skipSpaces(toks)
			continue
		}
		break
	}
}

// execNext implements NEXT [var[,var2...]]: advances the loop
// variable by its step, and if still within range jumps back to the
// body cursor; otherwise pops the frame and falls through.
func (ex *Executor) execNext() error {
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	if ex.cur.Tok >= len(toks) || toks[ex.cur.Tok] == ':' || toks[ex.cur.Tok] == 0x0D {
		return ex.nextOne("")
	}
	for {
		name, pos := readNameAt(toks, ex.cur.Tok)
		if name == "" {
			break
		}
		ex.cur.Tok = pos
		if err := ex.nextOne(name); err != nil {
			return err
		}
		toks = ex.currentTokens()
		ex.skipSpaces(toks)
		if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ',' {
			ex.cur.Tok++
			ex.skipSpaces(toks)
			continue
		}
		break
	}
	return nil
}

func (ex *Executor) nextOne(name string) error {
	off, ok := ex.Stk.FindTopMatching(stack.MarkerFor)
	if !ok {
		return &stack.UnwindError{Expected: "NEXT without FOR"}
	}
	ex.Stk.TruncateTo(ex.Stk.Depth()-off, ex.unwindFrame)
	f, _ := ex.Pop()
	if name != "" && f.VarName != name {
		return &stack.UnwindError{Expected: "NEXT variable mismatch"}
	}
	cur, err := ex.ResolveVar(f.VarName)
	if err != nil {
		return err
	}
	next := value.Float(cur.AsFloat() + f.Step.AsFloat())
	if cur.Tag == value.TagInt && f.Step.Tag == value.TagInt {
		next = value.Int(cur.I + f.Step.I)
	}
	if err := ex.SetVar(f.VarName, next); err != nil {
		return err
	}
	if loopDone(next, f.Limit, f.StepSign) {
		return nil
	}
	if err := ex.Stk.Push(f, ex.lineNumber()); err != nil {
		return err
	}
	ex.cur = f.BodyCursor
	return nil
}

// Pop exposes the control stack pop for this package's statement
// handlers.
func (ex *Executor) Pop() (stack.Frame, bool) { return ex.Stk.Pop() }

// execRepeat pushes a REPEAT frame remembering the loop top.
func (ex *Executor) execRepeat() error {
	return ex.Stk.Push(stack.Frame{Marker: stack.MarkerRepeat, CondCursor: ex.cur}, ex.lineNumber())
}

// execUntil evaluates its condition; false repeats the loop, true
// pops the frame and falls through.
func (ex *Executor) execUntil() error {
	ev := ex.newEvaluator()
	cond, err := ev.Eval()
	ex.adoptEvaluator(ev)
	if err != nil {
		return err
	}
	off, ok := ex.Stk.FindTopMatching(stack.MarkerRepeat)
	if !ok {
		return &stack.UnwindError{Expected: "UNTIL without REPEAT"}
	}
	ex.Stk.TruncateTo(ex.Stk.Depth()-off, ex.unwindFrame)
	f, _ := ex.Pop()
	if !value.Truthy(cond) {
		ex.cur = f.CondCursor
		return ex.Stk.Push(f, ex.lineNumber())
	}
	return nil
}

// execWhile evaluates its condition; false skips to the matching
// ENDWHILE, true pushes a frame remembering the condition cursor.
func (ex *Executor) execWhile() error {
	start := ex.cur
	start.Tok-- // back up to the WHILE token so re-entry re-dispatches through execStatement
	ev := ex.newEvaluator()
	cond, err := ev.Eval()
	ex.adoptEvaluator(ev)
	if err != nil {
		return err
	}
	if !value.Truthy(cond) {
		return ex.skipWhileBody()
	}
	return ex.Stk.Push(stack.Frame{Marker: stack.MarkerWhile, CondCursor: start}, ex.lineNumber())
}

func (ex *Executor) skipWhileBody() error {
	depth := 0
	li, ti := ex.cur.Line, ex.cur.Tok
	for {
		line, ok := ex.Prog.LineAt(li)
		if !ok {
			return errors.New(errors.JumpOutOfRange, ex.lineNumber())
		}
		for ti < len(line.Tokens) {
			switch lexer.Tok(line.Tokens[ti]) {
			case lexer.TWHILE:
				depth++
			case lexer.TENDWHILE:
				if depth == 0 {
					ex.cur = program.Cursor{Line: li, Tok: ti + 1}
					ex.advanceIfEol()
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

func (ex *Executor) advanceIfEol() {
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	if ex.cur.Tok >= len(toks) || toks[ex.cur.Tok] == 0x0D {
		ex.advanceLine()
	}
}

// execEndWhile pops back to the condition cursor for re-evaluation.
func (ex *Executor) execEndWhile() error {
	off, ok := ex.Stk.FindTopMatching(stack.MarkerWhile)
	if !ok {
		return &stack.UnwindError{Expected: "ENDWHILE without WHILE"}
	}
	ex.Stk.TruncateTo(ex.Stk.Depth()-off, ex.unwindFrame)
	f, _ := ex.Pop()
	ex.cur = f.CondCursor
	return nil
}

// execIf implements both single-line `IF cond THEN stmts [ELSE
// stmts]` and multi-line `IF cond THEN / ELSE / ENDIF` blocks (spec
// §4.G).
func (ex *Executor) execIf() error {
	ev := ex.newEvaluator()
	cond, err := ev.Eval()
	ex.adoptEvaluator(ev)
	if err != nil {
		return err
	}
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	if ex.cur.Tok >= len(toks) || lexer.Tok(toks[ex.cur.Tok]) != lexer.TTHEN {
		return errors.New(errors.TypeMismatch, ex.lineNumber())
	}
	ex.cur.Tok++
	toks = ex.currentTokens()
	ex.skipSpaces(toks)
	multiLine := ex.cur.Tok >= len(toks) || toks[ex.cur.Tok] == 0x0D

	if value.Truthy(cond) {
		if multiLine {
			ex.advanceLine()
			// Mark the true branch active so the ELSE/ENDIF that closes
			// it, reached by normal fallthrough once the body finishes,
			// is recognized as this IF's (not mistaken for a bare
			// statement) and the ELSE clause is skipped rather than run.
			return ex.Stk.Push(stack.Frame{Marker: stack.MarkerIfTrue}, ex.lineNumber())
		}
		return nil
	}
	if multiLine {
		return ex.skipMultiLineIf()
	}
	return ex.skipSingleLineThen(toks)
}

// execElseFallthrough handles an ELSE token reached by normal
// statement flow: either the true branch of a multi-line IF just
// finished (a MarkerIfTrue frame is on top, popped here) and the ELSE
// clause must be skipped to the matching ENDIF, or it's a single-line
// IF's ELSE reached after running the THEN statement, which just ends
// the line.
func (ex *Executor) execElseFallthrough() error {
	if f, ok := ex.Stk.Top(); ok && f.Marker == stack.MarkerIfTrue {
		ex.Pop()
		return ex.skipToMatchingEndif()
	}
	toks := ex.currentTokens()
	ex.skipToEol(toks)
	return nil
}

// execEndifFallthrough handles an ENDIF token reached by normal
// statement flow: the true branch of a multi-line IF with no ELSE
// clause just finished: pop its MarkerIfTrue frame and continue.
func (ex *Executor) execEndifFallthrough() error {
	if f, ok := ex.Stk.Top(); ok && f.Marker == stack.MarkerIfTrue {
		ex.Pop()
	}
	ex.advanceIfEol()
	return nil
}

// skipToMatchingEndif scans forward from the cursor (just past an
// ELSE) for the matching ENDIF at nesting depth 0.
func (ex *Executor) skipToMatchingEndif() error {
	depth := 0
	li, ti := ex.cur.Line, ex.cur.Tok
	for {
		line, ok := ex.Prog.LineAt(li)
		if !ok {
			return errors.New(errors.JumpOutOfRange, ex.lineNumber())
		}
		for ti < len(line.Tokens) {
			switch lexer.Tok(line.Tokens[ti]) {
			case lexer.TIF:
				depth++
			case lexer.TENDIF:
				if depth == 0 {
					ex.cur = program.Cursor{Line: li, Tok: ti + 1}
					ex.advanceIfEol()
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

// skipSingleLineThen scans to a statement-level ELSE on the same
// line, or to end of line if none.
func (ex *Executor) skipSingleLineThen(toks []byte) error {
	inString := false
	for ex.cur.Tok < len(toks) {
		b := toks[ex.cur.Tok]
		if b == '"' {
			inString = !inString
			ex.cur.Tok++
			continue
		}
		if !inString && lexer.Tok(b) == lexer.TELSE {
			ex.cur.Tok++
			return nil
		}
		if !inString && b == 0x0D {
			break
		}
		ex.cur.Tok++
	}
	ex.advanceLine()
	return nil
}

// skipMultiLineIf scans forward for this IF's matching ELSE/ENDIF at
// nesting depth 0.
func (ex *Executor) skipMultiLineIf() error {
	depth := 0
	li, ti := ex.cur.Line, ex.cur.Tok
	for {
		line, ok := ex.Prog.LineAt(li)
		if !ok {
			return errors.New(errors.JumpOutOfRange, ex.lineNumber())
		}
		for ti < len(line.Tokens) {
			switch lexer.Tok(line.Tokens[ti]) {
			case lexer.TIF:
				depth++
			case lexer.TELSE:
				if depth == 0 {
					ex.cur = program.Cursor{Line: li, Tok: ti + 1}
					return nil
				}
			case lexer.TENDIF:
				if depth == 0 {
					ex.cur = program.Cursor{Line: li, Tok: ti + 1}
					ex.advanceIfEol()
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

// execCase implements CASE expr OF WHEN v1[,v2...]: stmts ...
// OTHERWISE: stmts ENDCASE (spec §4.G).
func (ex *Executor) execCase() error {
	ev := ex.newEvaluator()
	subject, err := ev.Eval()
	ex.adoptEvaluator(ev)
	if err != nil {
		return err
	}
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	if ex.cur.Tok >= len(toks) || lexer.Tok(toks[ex.cur.Tok]) != lexer.TOF {
		return errors.New(errors.TypeMismatch, ex.lineNumber())
	}
	ex.cur.Tok++

	for {
		if err := ex.advanceToClause(); err != nil {
			return err
		}
		toks = ex.currentTokens()
		ex.skipSpaces(toks)
		if ex.cur.Tok >= len(toks) {
			return errors.New(errors.JumpOutOfRange, ex.lineNumber())
		}
		switch lexer.Tok(toks[ex.cur.Tok]) {
		case lexer.TWHEN:
			ex.cur.Tok++
			matched := false
			for {
				ev := ex.newEvaluator()
				v, err := ev.Eval()
				ex.adoptEvaluator(ev)
				if err != nil {
					return err
				}
				if valuesEqual(subject, v) {
					matched = true
				}
				toks = ex.currentTokens()
				ex.skipSpaces(toks)
				if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ',' {
					ex.cur.Tok++
					continue
				}
				break
			}
			if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ':' {
				ex.cur.Tok++
			}
			if matched {
				return nil
			}
			if err := ex.skipCaseClauseBody(); err != nil {
				return err
			}
		case lexer.TOTHERWISE:
			ex.cur.Tok++
			if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ':' {
				ex.cur.Tok++
			}
			return nil
		case lexer.TENDCASE:
			ex.cur.Tok++
			ex.advanceIfEol()
			return nil
		default:
			return errors.New(errors.TypeMismatch, ex.lineNumber())
		}
	}
}

func valuesEqual(a, b value.Value) bool {
	if a.IsString() || b.IsString() {
		return a.S == b.S
	}
	return a.AsFloat() == b.AsFloat()
}

func (ex *Executor) advanceToClause() error {
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	for ex.cur.Tok >= len(toks) || toks[ex.cur.Tok] == 0x0D {
		ex.advanceLine()
		toks = ex.currentTokens()
		if toks == nil {
			return errors.New(errors.JumpOutOfRange, ex.lineNumber())
		}
		ex.skipSpaces(toks)
	}
	return nil
}

// skipCaseClauseBody scans forward (honoring nested CASE blocks) to
// the next WHEN/OTHERWISE/ENDCASE at this nesting depth.
func (ex *Executor) skipCaseClauseBody() error {
	depth := 0
	for {
		if err := ex.advanceToClause(); err != nil {
			return err
		}
		toks := ex.currentTokens()
		switch lexer.Tok(toks[ex.cur.Tok]) {
		case lexer.TCASE:
			depth++
			ex.skipToEol(toks)
		case lexer.TWHEN, lexer.TOTHERWISE:
			if depth == 0 {
				return nil
			}
			ex.skipToEol(toks)
		case lexer.TENDCASE:
			if depth == 0 {
				return nil
			}
			depth--
			ex.cur.Tok++
			ex.advanceIfEol()
		default:
			ex.skipToEol(toks)
		}
	}
}

// execGoto implements GOTO lineno.
func (ex *Executor) execGoto() error {
	target, err := ex.evalLineTarget()
	if err != nil {
		return err
	}
	idx, ok := ex.Prog.FindLine(target)
	if !ok {
		return errors.New(errors.NoSuchLine, ex.lineNumber())
	}
	ex.cur = program.Cursor{Line: idx, Tok: 0}
	return nil
}

// execGosub implements GOSUB lineno: pushes a GOSUB return frame then
// jumps.
func (ex *Executor) execGosub() error {
	ret := ex.cur
	target, err := ex.evalLineTarget()
	if err != nil {
		return err
	}
	idx, ok := ex.Prog.FindLine(target)
	if !ok {
		return errors.New(errors.NoSuchLine, ex.lineNumber())
	}
	toks := ex.currentTokens()
	ret.Tok = ex.cur.Tok
	_ = toks
	if err := ex.Stk.Push(stack.Frame{Marker: stack.MarkerGosub, ReturnCursor: ret}, ex.lineNumber()); err != nil {
		return err
	}
	ex.cur = program.Cursor{Line: idx, Tok: 0}
	return nil
}

// evalLineTarget parses a TLINO-encoded or plain numeric line number
// target following GOTO/GOSUB/RESTORE.
func (ex *Executor) evalLineTarget() (int, error) {
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	if ex.cur.Tok < len(toks) && lexer.Tok(toks[ex.cur.Tok]) == lexer.TLINO {
		n := lexer.DecodeTLINO(toks[ex.cur.Tok+1 : ex.cur.Tok+4])
		ex.cur.Tok += 4
		return int(n), nil
	}
	ev := ex.newEvaluator()
	v, err := ev.Eval()
	ex.adoptEvaluator(ev)
	if err != nil {
		return 0, err
	}
	iv, err := v.AsInt(ex.lineNumber())
	if err != nil {
		return 0, err
	}
	return int(iv), nil
}

// execReturn implements RETURN (the GOSUB return statement — distinct
// from a `RETURN formal` FN/PROC binding, which parseDefHeader
// parses).
func (ex *Executor) execReturn() error {
	off, ok := ex.Stk.FindTopMatching(stack.MarkerGosub)
	if !ok {
		return &stack.UnwindError{Expected: "RETURN without GOSUB"}
	}
	ex.Stk.TruncateTo(ex.Stk.Depth()-off, ex.unwindFrame)
	f, _ := ex.Pop()
	ex.cur = f.ReturnCursor
	return nil
}

// execExit implements `EXIT FOR|REPEAT|WHILE`: unwinds straight past
// the nearest matching loop frame without re-testing its condition.
func (ex *Executor) execExit() error {
	toks := ex.currentTokens()
	ex.skipSpaces(toks)
	if ex.cur.Tok >= len(toks) {
		return errors.New(errors.TypeMismatch, ex.lineNumber())
	}
	var marker stack.Marker
	switch lexer.Tok(toks[ex.cur.Tok]) {
	case lexer.TFOR:
		marker = stack.MarkerFor
	case lexer.TREPEAT:
		marker = stack.MarkerRepeat
	case lexer.TWHILE:
		marker = stack.MarkerWhile
	default:
		return errors.New(errors.TypeMismatch, ex.lineNumber())
	}
	ex.cur.Tok++
	off, ok := ex.Stk.FindTopMatching(marker)
	if !ok {
		return &stack.UnwindError{Expected: "EXIT without matching loop"}
	}
	ex.Stk.TruncateTo(ex.Stk.Depth()-off-1, ex.unwindFrame)
	switch marker {
	case stack.MarkerFor:
		return ex.skipForBody("")
	case stack.MarkerRepeat:
		return ex.skipRepeatBody()
	default:
		return ex.skipWhileBody()
	}
}

func (ex *Executor) skipRepeatBody() error {
	depth := 0
	li, ti := ex.cur.Line, ex.cur.Tok
	for {
		line, ok := ex.Prog.LineAt(li)
		if !ok {
			return errors.New(errors.JumpOutOfRange, ex.lineNumber())
		}
		for ti < len(line.Tokens) {
			switch lexer.Tok(line.Tokens[ti]) {
			case lexer.TREPEAT:
				depth++
			case lexer.TUNTIL:
				if depth == 0 {
					ex.cur = program.Cursor{Line: li, Tok: ti + 1}
					return ex.skipExprToEol()
				}
				depth--
			}
			ti++
		}
		li++
		ti = 0
	}
}

func (ex *Executor) skipExprToEol() error {
	toks := ex.currentTokens()
	ex.skipToEol(toks)
	return nil
}
