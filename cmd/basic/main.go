// Command basic is the reference CLI for the interpreter core,
// structured after cmd/sentra/main.go's subcommand/alias dispatch:
// `run <file>`, `repl`, `list <file>`, `version`.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mattn/go-isatty"

	"basiccore/internal/exec"
	"basiccore/internal/lexer"
	"basiccore/internal/program"
	"basiccore/internal/repl"
)

const version = "0.1.0"

var commandAliases = map[string]string{
	"r": "run",
	"i": "repl",
	"l": "list",
	"v": "version",
}

var debug bool

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	// -debug may appear anywhere after the subcommand, gating the
	// operational logging SPEC_FULL.md's AMBIENT STACK section
	// describes (the interpreter core itself never logs).
	rest := args[1:]
	filtered := rest[:0]
	for _, a := range rest {
		if a == "-debug" || a == "--debug" {
			debug = true
			continue
		}
		filtered = append(filtered, a)
	}
	rest = filtered
	if !debug {
		log.SetOutput(os.Stderr)
	}

	switch cmd {
	case "run":
		if len(rest) < 1 {
			log.Fatal("usage: basic run <file> [-debug]")
		}
		runFile(rest[0])
	case "list":
		if len(rest) < 1 {
			log.Fatal("usage: basic list <file>")
		}
		listFile(rest[0])
	case "repl":
		repl.Start()
	case "version", "--version", "-v":
		fmt.Println("basic", version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`usage: basic <command> [args]

commands:
  run <file>    tokenize and execute a BASIC program
  repl          start the interactive immediate-mode loop
  list <file>   detokenize and print a program
  version       print the interpreter version`)
}

func runFile(path string) {
	src, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("basic: %v", err)
	}
	prog := program.New()
	if err := program.LoadSource(prog, string(src)); err != nil {
		log.Fatalf("basic: tokenizing %s: %v", path, err)
	}
	if debug {
		log.Printf("basic: loaded %d lines from %s", prog.Len(), path)
	}

	ex := exec.New(prog, os.Stdout, os.Stdin)
	if err := ex.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if ex.Halted() && ex.ExitCode() != 0 {
		os.Exit(ex.ExitCode())
	}
}

func listFile(path string) {
	src, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("basic: %v", err)
	}
	prog := program.New()
	if err := program.LoadSource(prog, string(src)); err != nil {
		log.Fatalf("basic: tokenizing %s: %v", path, err)
	}
	for _, l := range prog.Lines() {
		fmt.Printf("%5d %s\n", l.Number, lexer.Detokenize(l.Tokens))
	}
}

// isTerminalStdin reports whether stdin is attached to a terminal.
// internal/repl.Start makes the same check itself with isatty.
func isTerminalStdin() bool {
	return isatty.IsTerminal(os.Stdin.Fd())
}
