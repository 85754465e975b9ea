// Package exec implements the statement dispatch loop of spec §4.G:
// control flow, FN/PROC calls, LOCAL/PRIVATE scoping, DIM, READ/DATA,
// ON ERROR and I/O statements, driven over the tokenized program
// store, the symbol table, the heap and the control stack.
package exec

import (
	"bufio"
	"io"
	"math/rand"
	"strings"

	"basiccore/internal/errors"
	"basiccore/internal/eval"
	"basiccore/internal/events"
	"basiccore/internal/heap"
	"basiccore/internal/lexer"
	"basiccore/internal/program"
	"basiccore/internal/stack"
	"basiccore/internal/symbols"
	"basiccore/internal/value"
)

// Options configure liston bits (spec §4.C, §6.3 star commands).
type Options struct {
	Float     bool // *FLOAT n selects float precision mode
	Hex       bool
	Lowercase bool
	Opt       int
}

// Executor is the statement dispatch loop: it owns the running
// program's cursor and drives eval.Evaluator for expressions, the
// control stack for GOSUB/FOR/REPEAT/WHILE/FN/PROC frames, the heap
// for string storage, and the event dispatcher for ESC/timer polling
// between statements (spec §4.I).
type Executor struct {
	Prog *program.Program
	Sym  *symbols.Table
	Heap *heap.Heap
	Stk  *stack.Stack

	cur     program.Cursor
	dataPos program.Cursor
	hasData bool

	onError    stack.Frame
	haveHandler bool

	lastErr *errors.BasicError

	accumulator string
	rng         *rand.Rand

	Out *bufio.Writer
	In  *bufio.Reader

	Events *events.Dispatcher

	halted bool
	exitCode int

	Options Options

	fnScanned bool

	sysVars systemVars

	pendingInputLine string

	// privateStore holds the persisted value of each PRIVATE variable,
	// keyed by its declaring statement's program line plus name — a
	// PRIVATE's value survives across separate calls to the same
	// DEF, unlike LOCAL's (spec §4.G).
	privateStore map[string]value.Value

	// installedLibs caches INSTALL by resolved file path so installing
	// the same library twice is a no-op (spec GLOSSARY "Library
	// (INSTALL)").
	installedLibs map[string]bool

	// currentModule/currentModuleBase name the INSTALLed library the
	// cursor is currently executing inside, restored by the
	// MarkerModule control-stack frame on call exit; both are zero
	// while running main-program code.
	currentModule     string
	currentModuleBase int
}

// New creates an executor over an already-populated program.
func New(prog *program.Program, out io.Writer, in io.Reader) *Executor {
	ex := &Executor{
		Prog:          prog,
		Sym:           symbols.New(),
		Stk:           stack.New(),
		rng:           rand.New(rand.NewSource(1)),
		Out:           bufio.NewWriter(out),
		In:            bufio.NewReader(in),
		Events:        events.NewDispatcher(),
		privateStore:  make(map[string]value.Value),
		installedLibs: make(map[string]bool),
	}
	ex.Heap = heap.New(1<<20, func() int { return 1 << 24 })
	return ex
}

// Run executes the whole program from its first line, implementing
// the RUN immediate-mode command. It performs the whole-program DEF
// FN/PROC scan up front (spec §9 "recommended" alternative to lazy
// first-call scanning).
func (ex *Executor) Run() error {
	ex.scanDefs()
	if ex.Prog.Len() == 0 {
		return nil
	}
	ex.cur = program.Cursor{Line: 0, Tok: 0}
	return ex.loop()
}

// scanDefs performs the whole-program DEF FN/PROC scan spec §9
// recommends over the lazy first-call alternative: every DEF FN/DEF
// PROC header is located and registered before execution starts.
func (ex *Executor) scanDefs() {
	if ex.fnScanned {
		return
	}
	ex.fnScanned = true
	ex.scanDefsIn(ex.Prog.Lines(), false)
}

// scanLibraryDefs registers DEF FN/PROC headers contributed by an
// INSTALLed library, skipping any name already resolved against the
// main program or an earlier library (SUPPLEMENTED FEATURES
// first-match-wins, same rule InstallLibrary applies at the line
// level).
func (ex *Executor) scanLibraryDefs() {
	ex.scanDefsIn(ex.Prog.Lines(), true)
}

// scanDefsIn registers every DEF FN/DEF PROC header found in lines.
// When skipExisting is set, a name already in the symbol table keeps
// its existing binding instead of being overwritten.
func (ex *Executor) scanDefsIn(lines []program.Line, skipExisting bool) {
	for idx, line := range lines {
		toks := line.Tokens
		for i := 0; i < len(toks); i++ {
			if lexer.Tok(toks[i]) != lexer.TDEF {
				continue
			}
			j := i + 1
			for j < len(toks) && toks[j] == ' ' {
				j++
			}
			if j >= len(toks) {
				continue
			}
			switch lexer.Tok(toks[j]) {
			case lexer.TFN:
				name, _ := readNameAt(toks, j+1)
				full := "FN" + name
				if skipExisting {
					if _, ok := ex.Sym.LookupFn(full); ok {
						continue
					}
				}
				ex.Sym.DefineFn(full, idx)
			case lexer.TPROC:
				name, _ := readNameAt(toks, j+1)
				full := "PROC" + name
				if skipExisting {
					if _, ok := ex.Sym.LookupProc(full); ok {
						continue
					}
				}
				ex.Sym.DefineProc(full, idx)
			}
		}
	}
}

func readNameAt(toks []byte, pos int) (string, int) {
	start := pos
	for pos < len(toks) && isIdentPart(toks[pos]) {
		pos++
	}
	for pos < len(toks) && strings.ContainsRune("%$#&", rune(toks[pos])) {
		pos++
	}
	return string(toks[start:pos]), pos
}

func isIdentPart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '@'
}

// Halted reports whether execution stopped at END, on a KILL, or by
// running past the last line.
func (ex *Executor) Halted() bool { return ex.halted }

// ExitCode is the process exit code: -1 after a KILL, 0 otherwise.
// The executor has no QUIT statement, so QUIT n never sets it.
func (ex *Executor) ExitCode() int { return ex.exitCode }

// loop is the main per-statement dispatch cycle (spec §4.G).
func (ex *Executor) loop() error {
	for {
		if ex.cur.Line >= ex.Prog.Len() {
			ex.halted = true
			ex.Out.Flush()
			return nil
		}
		if err := ex.Events.Poll(); err != nil {
			if err == events.ErrKilled {
				ex.halted = true
				ex.exitCode = -1
				ex.Out.Flush()
				return nil
			}
			if handled := ex.handleError(err); handled {
				continue
			}
			ex.Out.Flush()
			return err
		}
		if err := ex.execStatement(); err != nil {
			if err == errEnd {
				ex.halted = true
				ex.Out.Flush()
				return nil
			}
			if handled := ex.handleError(err); handled {
				continue
			}
			ex.Out.Flush()
			return err
		}
		if ex.halted {
			ex.Out.Flush()
			return nil
		}
	}
}

// handleError applies spec §7's propagation rule: if ON ERROR is
// active and its saved anchor is at or below the current stack
// depth, resume at the handler with the stack restored to the
// anchor; otherwise the error is terminal.
func (ex *Executor) handleError(err error) bool {
	be, ok := err.(*errors.BasicError)
	if !ok {
		be = &errors.BasicError{Kind: errors.NumberTooBig, Message: err.Error(), Line: ex.lineNumber()}
	}
	ex.lastErr = be
	if be.Module == "" && ex.currentModule != "" {
		be.WithModule(ex.currentModule)
	}
	if !ex.haveHandler || ex.onError.HandlerAnchor > ex.Stk.Depth() {
		return false
	}
	ex.Stk.TruncateTo(ex.onError.HandlerAnchor, ex.unwindFrame)
	ex.cur = ex.onError.SavedHandler
	return true
}

var errEnd = &errors.BasicError{Kind: -1000, Message: "END"}

// lineNumber returns the BASIC line number at the current cursor, for
// ERL and error reporting.
func (ex *Executor) lineNumber() int {
	if l, ok := ex.Prog.LineAt(ex.cur.Line); ok {
		return l.Number
	}
	return 0
}

// currentTokens returns the token slice for the current line.
func (ex *Executor) currentTokens() []byte {
	l, ok := ex.Prog.LineAt(ex.cur.Line)
	if !ok {
		return nil
	}
	return l.Tokens
}

func (ex *Executor) skipSpaces(toks []byte) {
	for ex.cur.Tok < len(toks) && (toks[ex.cur.Tok] == ' ' || toks[ex.cur.Tok] == '\t') {
		ex.cur.Tok++
	}
}

// advanceLine moves the cursor to the start of the next stored line.
func (ex *Executor) advanceLine() {
	ex.cur.Line++
	ex.cur.Tok = 0
}

// newEvaluator builds an eval.Evaluator positioned at the executor's
// current cursor, bound to this Executor as its Context.
func (ex *Executor) newEvaluator() *eval.Evaluator {
	return eval.New(ex.currentTokens(), ex.cur.Tok, ex)
}

func (ex *Executor) adoptEvaluator(e *eval.Evaluator) { ex.cur.Tok = e.Pos() }
