package exec

import (
	"fmt"

	"basiccore/internal/errors"
	"basiccore/internal/lexer"
	"basiccore/internal/program"
	"basiccore/internal/stack"
	"basiccore/internal/symbols"
	"basiccore/internal/value"
)

// formalSpec is one DEF FN/PROC formal parameter (spec §4.G): a plain
// by-value formal, or one marked RETURN for pass-by-reference
// write-back on exit.
type formalSpec struct {
	Name     string
	IsReturn bool
}

// parseDefHeader reads the `DEF FN name(...)` / `DEF PROC name(...)`
// header stored at program line idx and returns the cursor just past
// it (the body's first statement) plus the formal parameter list.
func (ex *Executor) parseDefHeader(idx int, isFn bool) (program.Cursor, []formalSpec, error) {
	line, ok := ex.Prog.LineAt(idx)
	if !ok {
		return program.Cursor{}, nil, errors.New(errors.NoSuchFnProc, ex.lineNumber())
	}
	toks := line.Tokens
	i := 0
	for i < len(toks) && toks[i] == ' ' {
		i++
	}
	if i >= len(toks) || lexer.Tok(toks[i]) != lexer.TDEF {
		return program.Cursor{}, nil, errors.New(errors.NoSuchFnProc, ex.lineNumber())
	}
	i++
	for i < len(toks) && toks[i] == ' ' {
		i++
	}
	want := lexer.TPROC
	if isFn {
		want = lexer.TFN
	}
	if i >= len(toks) || lexer.Tok(toks[i]) != want {
		return program.Cursor{}, nil, errors.New(errors.NoSuchFnProc, ex.lineNumber())
	}
	i++
	_, i = readNameAt(toks, i)
	for i < len(toks) && toks[i] == ' ' {
		i++
	}

	var formals []formalSpec
	if i < len(toks) && toks[i] == '(' {
		i++
		for {
			for i < len(toks) && toks[i] == ' ' {
				i++
			}
			isReturn := false
			if i < len(toks) && lexer.Tok(toks[i]) == lexer.TRETURN {
				isReturn = true
				i++
				for i < len(toks) && toks[i] == ' ' {
					i++
				}
			}
			name, ni := readNameAt(toks, i)
			if name == "" {
				break
			}
			i = ni
			formals = append(formals, formalSpec{Name: name, IsReturn: isReturn})
			for i < len(toks) && toks[i] == ' ' {
				i++
			}
			if i < len(toks) && toks[i] == ',' {
				i++
				continue
			}
			break
		}
		for i < len(toks) && toks[i] == ' ' {
			i++
		}
		if i < len(toks) && toks[i] == ')' {
			i++
		}
	}
	return program.Cursor{Line: idx, Tok: i}, formals, nil
}

// saveLocal pushes a LOCAL frame remembering name's current binding so
// it can be restored when the frame unwinds (spec §4.G call frames /
// §4.H LOCAL marker).
func (ex *Executor) saveLocal(name string) error {
	var saved value.Value
	if idx, ok := symbols.StaticIndex(name); ok {
		saved = ex.Sym.GetStatic(idx)
	} else if n, ok := ex.Sym.Lookup(name); ok {
		saved = n.Scalar
	} else {
		saved = zeroValueFor(name)
	}
	return ex.Stk.Push(stack.Frame{Marker: stack.MarkerLocal, VarName: name, SavedValue: saved}, ex.lineNumber())
}

// callDef invokes a DEF FN or DEF PROC by name with already-evaluated
// arguments (spec §4.G): formals are bound as LOCAL-shadowed
// variables, a return-marker frame is pushed, and for FN the body runs
// to completion inline so a value can be handed back to the caller's
// expression evaluator. actualNames[i], if non-empty, names the bare
// variable the i'th actual was written as; a RETURN formal paired with
// one gets the same write-back-on-exit treatment execProcCall gives
// PROC's RETURN formals (spec §4.G step 3, spec §8 scenario 6) — FN
// calls are expressions reachable from anywhere eval.Eval is, so this
// is the one call path shared by both DEF FN and ON ... PROC.
func (ex *Executor) callDef(name string, args []value.Value, actualNames []string, isFn bool) (value.Value, error) {
	var idx int
	var ok bool
	if isFn {
		idx, ok = ex.Sym.LookupFn("FN" + name)
	} else {
		idx, ok = ex.Sym.LookupProc("PROC" + name)
	}
	if !ok {
		return value.Value{}, errors.New(errors.NoSuchFnProc, ex.lineNumber())
	}
	bodyStart, formals, err := ex.parseDefHeader(idx, isFn)
	if err != nil {
		return value.Value{}, err
	}
	if len(args) != len(formals) {
		return value.Value{}, errors.New(errors.IncorrectArguments, ex.lineNumber())
	}

	baseDepth := ex.Stk.Depth()

	defLine, _ := ex.Prog.LineAt(idx)
	if err := ex.Stk.Push(stack.Frame{Marker: stack.MarkerModule, ModuleName: ex.currentModule, ModuleBase: ex.currentModuleBase}, ex.lineNumber()); err != nil {
		return value.Value{}, err
	}
	ex.currentModule = defLine.Library
	ex.currentModuleBase = idx

	var bindings []stack.ReturnBinding
	for i, f := range formals {
		if err := ex.saveLocal(f.Name); err != nil {
			return value.Value{}, err
		}
		if err := ex.SetVar(f.Name, args[i]); err != nil {
			return value.Value{}, err
		}
		if f.IsReturn && i < len(actualNames) && actualNames[i] != "" {
			bindings = append(bindings, stack.ReturnBinding{FormalName: f.Name, ActualName: actualNames[i]})
		}
	}
	if len(bindings) > 0 {
		if err := ex.Stk.Push(stack.Frame{Marker: stack.MarkerReturnInfo, ReturnInfo: bindings}, ex.lineNumber()); err != nil {
			return value.Value{}, err
		}
	}
	marker := stack.MarkerFnReturn
	if !isFn {
		marker = stack.MarkerProcReturn
	}
	savedCur := ex.cur
	if err := ex.Stk.Push(stack.Frame{Marker: marker, ReturnCursor: savedCur}, ex.lineNumber()); err != nil {
		return value.Value{}, err
	}
	ex.cur = bodyStart
	result, err := ex.runCallBody(baseDepth, isFn)
	ex.cur = savedCur
	return result, err
}

// runCallBody drives statement execution inline for the duration of
// one FN/PROC call, returning when it sees the call's own `=expr`
// (FN) or ENDPROC (PROC). A nested FN/PROC call reached along the way
// runs to completion via its own recursive runCallBody before control
// returns here, so any such token this loop's cursor lands on
// directly always belongs to this call, never a nested one — frames
// a LOCAL/PRIVATE/DIM in this same body left open (still above
// baseDepth) don't change that, so the match doesn't gate on depth.
func (ex *Executor) runCallBody(baseDepth int, isFn bool) (value.Value, error) {
	for {
		if ex.cur.Line >= ex.Prog.Len() {
			return value.Value{}, errors.New(errors.NoSuchFnProc, ex.lineNumber())
		}
		toks := ex.currentTokens()
		ex.skipSpaces(toks)
		for ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ':' {
			ex.cur.Tok++
			ex.skipSpaces(toks)
		}
		if ex.cur.Tok >= len(toks) || toks[ex.cur.Tok] == 0x0D {
			ex.advanceLine()
			continue
		}
		if isFn && toks[ex.cur.Tok] == '=' {
			ex.cur.Tok++
			ev := ex.newEvaluator()
			v, err := ev.Eval()
			ex.adoptEvaluator(ev)
			if err != nil {
				return value.Value{}, err
			}
			ex.Stk.TruncateTo(baseDepth, ex.unwindFrame)
			return v, nil
		}
		if !isFn && lexer.Tok(toks[ex.cur.Tok]) == lexer.TENDPROC {
			ex.cur.Tok++
			ex.Stk.TruncateTo(baseDepth, ex.unwindFrame)
			return value.Value{}, nil
		}
		if err := ex.execStatement(); err != nil {
			return value.Value{}, err
		}
	}
}

// execProcCall implements a PROC call used as a statement (spec
// §4.G): unlike FN calls (which always return a value to an
// expression), a statement-level PROC call also supports `RETURN`
// formals — actuals bound to RETURN formals must themselves be bare
// variable references, captured here before evaluation so their
// values can be written back on ENDPROC.
func (ex *Executor) execProcCall() (value.Value, error) {
	toks := ex.currentTokens()
	name, pos := readNameAt(toks, ex.cur.Tok)
	if name == "" {
		return value.Value{}, errors.New(errors.NoSuchFnProc, ex.lineNumber())
	}
	ex.cur.Tok = pos

	idx, ok := ex.Sym.LookupProc("PROC" + name)
	if !ok {
		return value.Value{}, errors.New(errors.NoSuchFnProc, ex.lineNumber())
	}
	bodyStart, formals, err := ex.parseDefHeader(idx, false)
	if err != nil {
		return value.Value{}, err
	}

	toks = ex.currentTokens()
	ex.skipSpaces(toks)
	var args []value.Value
	var actualNames []string
	if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == '(' {
		ex.cur.Tok++
		for i := 0; ; i++ {
			toks = ex.currentTokens()
			ex.skipSpaces(toks)
			wantsRef := i < len(formals) && formals[i].IsReturn
			if wantsRef {
				aname, apos := readNameAt(toks, ex.cur.Tok)
				if aname == "" {
					return value.Value{}, errors.New(errors.TypeMismatch, ex.lineNumber())
				}
				ex.cur.Tok = apos
				actualNames = append(actualNames, aname)
				v, verr := ex.ResolveVar(aname)
				if verr != nil {
					return value.Value{}, verr
				}
				args = append(args, v)
			} else {
				ev := ex.newEvaluator()
				v, verr := ev.Eval()
				ex.adoptEvaluator(ev)
				if verr != nil {
					return value.Value{}, verr
				}
				args = append(args, v)
				actualNames = append(actualNames, "")
			}
			toks = ex.currentTokens()
			ex.skipSpaces(toks)
			if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ',' {
				ex.cur.Tok++
				continue
			}
			break
		}
		toks = ex.currentTokens()
		ex.skipSpaces(toks)
		if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ')' {
			ex.cur.Tok++
		}
	}
	if len(args) != len(formals) {
		return value.Value{}, errors.New(errors.IncorrectArguments, ex.lineNumber())
	}

	baseDepth := ex.Stk.Depth()

	defLine, _ := ex.Prog.LineAt(idx)
	if err := ex.Stk.Push(stack.Frame{Marker: stack.MarkerModule, ModuleName: ex.currentModule, ModuleBase: ex.currentModuleBase}, ex.lineNumber()); err != nil {
		return value.Value{}, err
	}
	ex.currentModule = defLine.Library
	ex.currentModuleBase = idx

	var bindings []stack.ReturnBinding
	for i, f := range formals {
		if err := ex.saveLocal(f.Name); err != nil {
			return value.Value{}, err
		}
		if err := ex.SetVar(f.Name, args[i]); err != nil {
			return value.Value{}, err
		}
		if f.IsReturn && actualNames[i] != "" {
			bindings = append(bindings, stack.ReturnBinding{FormalName: f.Name, ActualName: actualNames[i]})
		}
	}
	if len(bindings) > 0 {
		if err := ex.Stk.Push(stack.Frame{Marker: stack.MarkerReturnInfo, ReturnInfo: bindings}, ex.lineNumber()); err != nil {
			return value.Value{}, err
		}
	}
	savedCur := ex.cur
	if err := ex.Stk.Push(stack.Frame{Marker: stack.MarkerProcReturn, ReturnCursor: savedCur}, ex.lineNumber()); err != nil {
		return value.Value{}, err
	}
	ex.cur = bodyStart
	_, err = ex.runCallBody(baseDepth, false)
	ex.cur = savedCur
	if err != nil {
		return value.Value{}, err
	}
	return value.Value{}, nil
}

// execLocal implements `LOCAL name[,name2...]` (spec §4.G): each
// named variable's current value is saved on the control stack and
// restored when the enclosing call frame unwinds.
func (ex *Executor) execLocal() error {
	toks := ex.currentTokens()
	for {
		ex.skipSpaces(toks)
		name, pos := readNameAt(toks, ex.cur.Tok)
		if name == "" {
			break
		}
		ex.cur.Tok = pos
		if err := ex.saveLocal(name); err != nil {
			return err
		}
		if err := ex.SetVar(name, zeroValueFor(name)); err != nil {
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

// execPrivate implements `PRIVATE name[,name2...]` (spec §4.G): the
// named variable is shadowed for the call like LOCAL, but its value is
// preserved in ex.privateStore across separate calls reaching this
// same PRIVATE statement, only resetting to zero the first time it
// runs (static-local semantics, distinct from LOCAL's always-zeroed
// shadow).
func (ex *Executor) execPrivate() error {
	toks := ex.currentTokens()
	stmtLine := ex.cur.Line
	for {
		ex.skipSpaces(toks)
		name, pos := readNameAt(toks, ex.cur.Tok)
		if name == "" {
			break
		}
		ex.cur.Tok = pos
		if err := ex.saveLocal(name); err != nil {
			return err
		}
		key := fmt.Sprintf("%d:%s", stmtLine, name)
		if f, ok := ex.Pop(); ok {
			f.Marker = stack.MarkerPrivate
			f.PrivateKey = key
			if err := ex.Stk.Push(f, ex.lineNumber()); err != nil {
				return err
			}
		}
		stored, had := ex.privateStore[key]
		if !had {
			stored = zeroValueFor(name)
		}
		if err := ex.SetVar(name, stored); err != nil {
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

// execDim implements DIM for numeric/string arrays: `DIM name(d1[,d2...])`
// (spec §4.D "array"). The structure form (`DIM name{...}`) and the
// address-only form (`DIM p% n`) are not handled: a name not followed
// by `(` raises Bad use of array.
func (ex *Executor) execDim() error {
	toks := ex.currentTokens()
	for {
		ex.skipSpaces(toks)
		name, pos := readNameAt(toks, ex.cur.Tok)
		if name == "" {
			return errors.New(errors.TypeMismatch, ex.lineNumber())
		}
		ex.cur.Tok = pos
		toks = ex.currentTokens()
		ex.skipSpaces(toks)
		if ex.cur.Tok >= len(toks) || toks[ex.cur.Tok] != '(' {
			return errors.New(errors.BadUseOfArray, ex.lineNumber())
		}
		ex.cur.Tok++
		var dims []int
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
			if iv < 0 {
				return errors.New(errors.BadUseOfArray, ex.lineNumber())
			}
			dims = append(dims, int(iv))
			toks = ex.currentTokens()
			ex.skipSpaces(toks)
			if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ',' {
				ex.cur.Tok++
				continue
			}
			break
		}
		if ex.cur.Tok < len(toks) && toks[ex.cur.Tok] == ')' {
			ex.cur.Tok++
		}
		n := ex.Sym.GetOrCreate(name)
		n.Array = symbols.NewArray(dims)
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

// unwindFrame is the callback passed to Stack.TruncateTo: it restores
// whatever state a popped frame was shadowing (spec §4.H "Unwinders
// traverse the stack popping each frame according to its marker").
func (ex *Executor) unwindFrame(f stack.Frame) {
	switch f.Marker {
	case stack.MarkerLocal:
		_ = ex.SetVar(f.VarName, f.SavedValue)
	case stack.MarkerPrivate:
		if v, err := ex.ResolveVar(f.VarName); err == nil {
			ex.privateStore[f.PrivateKey] = v
		}
		_ = ex.SetVar(f.VarName, f.SavedValue)
	case stack.MarkerOnError:
		ex.onError = stack.Frame{Marker: stack.MarkerOnError, SavedHandler: f.SavedHandler, HandlerAnchor: f.HandlerAnchor}
		ex.haveHandler = f.SavedHandlerSet
	case stack.MarkerLocalData:
		ex.dataPos = f.SavedData
		ex.hasData = true
	case stack.MarkerReturnInfo:
		for _, b := range f.ReturnInfo {
			v, err := ex.ResolveVar(b.FormalName)
			if err == nil {
				_ = ex.SetVar(b.ActualName, v)
			}
		}
	case stack.MarkerDimStack:
		// LOCAL-DIM'd arrays are Go-GC-managed Node.Array slices; nothing
		// to release explicitly beyond the frame itself.
	case stack.MarkerModule:
		ex.currentModule = f.ModuleName
		ex.currentModuleBase = f.ModuleBase
	}
}
