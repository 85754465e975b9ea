// Package repl implements the interactive immediate-mode loop,
// grounded on sentra/internal/repl.Start's shape (bufio.Scanner over
// stdin, a program store kept across lines) but generalized to BBC
// BASIC's program-or-immediate-statement grammar: a numbered input
// line edits the stored program, an unnumbered line runs immediately
// as a one-line program of its own.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"basiccore/internal/exec"
	"basiccore/internal/lexer"
	"basiccore/internal/program"
)

// REPL owns the one program store that persists across input lines.
// No executor persists: RUN and each immediate-mode line get a fresh
// Executor.
type REPL struct {
	prog *program.Program
	out  io.Writer
	in   io.Reader

	interactive bool
}

// New creates a REPL reading from in and writing to out. interactive
// controls whether a ">" prompt is printed before each read; callers
// normally pass isatty.IsTerminal on the input file descriptor.
func New(in io.Reader, out io.Writer, interactive bool) *REPL {
	return &REPL{prog: program.New(), in: in, out: out, interactive: interactive}
}

// Start runs the standard CLI REPL against stdin/stdout, deciding
// interactivity from whether stdin is a terminal or a pipe, the way
// the teacher's CLI branches before REPL startup.
func Start() {
	r := New(os.Stdin, os.Stdout, isatty.IsTerminal(os.Stdin.Fd()))
	r.Run()
}

// Run reads lines until EOF or an immediate QUIT, feeding each either
// into the program store (numbered lines) or to runImmediate
// (unnumbered lines).
func (r *REPL) Run() {
	fmt.Fprintln(r.out, "BBC BASIC | type BYE to quit")
	scanner := bufio.NewScanner(r.in)
	for {
		if r.interactive {
			fmt.Fprint(r.out, "> ")
		}
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.EqualFold(trimmed, "BYE") || strings.EqualFold(trimmed, "QUIT") {
			return
		}

		if isNumberedLine(trimmed) {
			if err := r.editLine(trimmed); err != nil {
				fmt.Fprintf(r.out, "%v\n", err)
			}
			continue
		}

		r.runImmediate(trimmed)
	}
}

func isNumberedLine(s string) bool {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i > 0
}

// editLine stores or deletes one numbered program line: "10 PRINT x"
// replaces line 10, bare "10" deletes it.
func (r *REPL) editLine(s string) error {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	num, err := strconv.Atoi(s[:i])
	if err != nil {
		return err
	}
	body := strings.TrimLeft(s[i:], " \t")
	if body == "" {
		r.prog.SetLine(num, nil)
		return nil
	}
	toks, err := lexer.Tokenize(body)
	if err != nil {
		return err
	}
	r.prog.SetLine(num, toks)
	return nil
}

// runImmediate tokenizes an unnumbered line as a one-line program
// (line 0) and runs it on its own in a fresh Executor, so it does not
// see the stored program's variables or DEFs; RUN executes the whole
// stored program from the top, and LIST prints it.
func (r *REPL) runImmediate(s string) {
	if strings.EqualFold(s, "RUN") {
		ex := exec.New(r.prog, r.out, r.in)
		if err := ex.Run(); err != nil {
			fmt.Fprintf(r.out, "%v\n", err)
		}
		return
	}
	if strings.EqualFold(s, "LIST") {
		for _, l := range r.prog.Lines() {
			fmt.Fprintf(r.out, "%d %s\n", l.Number, lexer.Detokenize(l.Tokens))
		}
		return
	}
	toks, err := lexer.Tokenize(s)
	if err != nil {
		fmt.Fprintf(r.out, "%v\n", err)
		return
	}
	tmp := program.New()
	tmp.SetLine(0, toks)
	ex := exec.New(tmp, r.out, r.in)
	if err := ex.Run(); err != nil {
		fmt.Fprintf(r.out, "%v\n", err)
	}
}
