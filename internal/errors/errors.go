// Package errors implements the BASIC error taxonomy (spec §7).
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind is the numeric error code surfaced to BASIC via ERR.
type Kind int

// Canonical error kinds from spec §7.
const (
	NoRoom            Kind = 0
	JumpOutOfRange     Kind = 1
	TypeMismatch       Kind = 6
	BadUseOfArray      Kind = 14
	Escape             Kind = 17
	DivisionByZero     Kind = 18
	StringTooLong      Kind = 19
	NumberTooBig       Kind = 20
	NegativeRoot       Kind = 21
	LogarithmRange     Kind = 22
	ExponentRange      Kind = 24
	NoSuchVariable     Kind = 26
	NoSuchFnProc       Kind = 29
	IncorrectArguments Kind = 31
	NoSuchLine         Kind = 41
	OutOfData          Kind = 42
	UserError          Kind = 255
)

var kindText = map[Kind]string{
	NoRoom:             "No room",
	JumpOutOfRange:     "Jump out of range",
	TypeMismatch:       "Type mismatch",
	BadUseOfArray:      "Bad use of array",
	Escape:             "Escape",
	DivisionByZero:     "Division by zero",
	StringTooLong:      "String too long",
	NumberTooBig:       "Number too big",
	NegativeRoot:       "Negative root",
	LogarithmRange:     "Logarithm range",
	ExponentRange:      "Exponent range",
	NoSuchVariable:     "No such variable",
	NoSuchFnProc:       "No such FN/PROC",
	IncorrectArguments: "Incorrect arguments",
	NoSuchLine:         "No such line",
	OutOfData:          "Out of DATA",
	UserError:          "User error",
}

// Text returns the canonical message for a kind, or "Unknown error".
func Text(k Kind) string {
	if t, ok := kindText[k]; ok {
		return t
	}
	return "Unknown error"
}

// BasicError is the error type raised by the interpreter core. It
// carries everything ERR, ERL and REPORT$ need to answer.
type BasicError struct {
	Kind    Kind
	Message string // overrides Text(Kind) when set, e.g. for user ERROR n,msg
	Line    int    // ERL: line number where the error occurred, 0 in immediate mode
	Module  string // originating INSTALLed library name, empty for the main program
	Cause   error  // wrapped low-level cause, if any
}

func (e *BasicError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = Text(e.Kind)
	}
	if e.Module != "" {
		return fmt.Sprintf("%s at line %d in %s", msg, e.Line, e.Module)
	}
	return fmt.Sprintf("%s at line %d", msg, e.Line)
}

func (e *BasicError) Unwrap() error { return e.Cause }

// Report formats REPORT$'s value: the message, plus module if any.
func (e *BasicError) Report() string {
	msg := e.Message
	if msg == "" {
		msg = Text(e.Kind)
	}
	if e.Module != "" {
		return fmt.Sprintf("%s in module %s", msg, e.Module)
	}
	return msg
}

// New builds a BasicError for a canonical kind at the given line.
func New(k Kind, line int) *BasicError {
	return &BasicError{Kind: k, Line: line}
}

// Newf builds a BasicError for a canonical kind with a formatted
// message suffix (e.g. naming the offending variable).
func Newf(k Kind, line int, format string, args ...interface{}) *BasicError {
	return &BasicError{Kind: k, Line: line, Message: fmt.Sprintf("%s: %s", Text(k), fmt.Sprintf(format, args...))}
}

// User builds the error for a BASIC-level `ERROR n, msg` statement.
func User(code int, msg string, line int) *BasicError {
	return &BasicError{Kind: Kind(code), Message: msg, Line: line}
}

// Wrap attaches a low-level cause (host I/O, driver error) to a
// BasicError, recording the cause via github.com/pkg/errors so the
// original stack/context survives for diagnostics.
func Wrap(k Kind, line int, cause error, context string) *BasicError {
	return &BasicError{
		Kind:    k,
		Message: fmt.Sprintf("%s: %s", Text(k), context),
		Line:    line,
		Cause:   pkgerrors.Wrap(cause, context),
	}
}

// WithModule annotates an error as having originated inside an
// INSTALLed library.
func (e *BasicError) WithModule(name string) *BasicError {
	e.Module = name
	return e
}

// Cause unwraps to the deepest wrapped error, mirroring
// github.com/pkg/errors.Cause for callers that don't use errors.Is.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}

// IsKind reports whether err is a *BasicError of the given kind.
func IsKind(err error, k Kind) bool {
	be, ok := err.(*BasicError)
	return ok && be.Kind == k
}
