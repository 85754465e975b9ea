package exec

import (
	"strings"

	"basiccore/internal/errors"
	"basiccore/internal/heap"
	"basiccore/internal/symbols"
	"basiccore/internal/value"
)

// ResolveVar implements eval.Context: resolves a scalar name to its
// current value, consulting the static A%..Z% slots, then the bucket
// tables (spec §4.D resolution order). @-system names are answered
// from the host/options layer.
func (ex *Executor) ResolveVar(name string) (value.Value, error) {
	if symbols.IsSystemName(name) {
		return ex.resolveSystemVar(name)
	}
	if idx, ok := symbols.StaticIndex(name); ok {
		return ex.Sym.GetStatic(idx), nil
	}
	n, ok := ex.Sym.Lookup(name)
	if !ok {
		return zeroValueFor(name), nil
	}
	return ex.nodeValue(n), nil
}

func (ex *Executor) nodeValue(n *symbols.Node) value.Value {
	if n.Type == symbols.TypeString {
		return n.Scalar
	}
	return n.Scalar
}

// zeroValueFor returns the default value for a never-assigned name:
// 0 for numerics, "" for strings (implicit LET-creation semantics).
func zeroValueFor(name string) value.Value {
	if symbols.TypeOf(name) == symbols.TypeString {
		return value.Str("")
	}
	return value.Int(0)
}

// SetVar assigns v to name, creating the binding if needed. Used by
// plain `LET`/assignment statements.
func (ex *Executor) SetVar(name string, v value.Value) error {
	if idx, ok := symbols.StaticIndex(name); ok {
		iv, err := v.AsInt(ex.lineNumber())
		if err != nil {
			return err
		}
		ex.Sym.SetStatic(idx, value.Int(iv))
		return nil
	}
	if symbols.IsSystemName(name) {
		return ex.setSystemVar(name, v)
	}
	n := ex.Sym.GetOrCreate(name)
	if n.Type == symbols.TypeInt32 || n.Type == symbols.TypeInt64 || n.Type == symbols.TypeByte {
		iv, err := v.AsInt(ex.lineNumber())
		if err != nil {
			return err
		}
		n.Scalar = value.Int(iv)
		return nil
	}
	if n.Type == symbols.TypeString {
		if !v.IsString() {
			return errors.New(errors.TypeMismatch, ex.lineNumber())
		}
		if len(v.S) > 0xFFFF {
			return errors.New(errors.StringTooLong, ex.lineNumber())
		}
		if n.StrDesc == nil {
			n.StrDesc = &heap.Descriptor{}
		}
		buf, err := ex.Heap.Allocate(n.StrDesc, len(v.S))
		if err != nil {
			return err
		}
		copy(buf, v.S)
		n.Scalar = v
		return nil
	}
	n.Scalar = v
	return nil
}

// ResolveArray implements eval.Context: looks up a DIMmed array by
// name, erroring NoSuchVariable if it was never DIMmed.
func (ex *Executor) ResolveArray(name string) (*symbols.Array, error) {
	n, ok := ex.Sym.Lookup(name)
	if !ok || n.Array == nil {
		return nil, errors.New(errors.NoSuchVariable, ex.lineNumber())
	}
	return n.Array, nil
}

// Accumulate implements eval.Context's accumulator contract (spec
// §4.F/§5): a builtin's transient string result is copied into the
// per-context scratch buffer so it stays stable until the next
// accumulator-using call, per spec's "Shared resources" rule.
func (ex *Executor) Accumulate(s string) string {
	ex.accumulator = s
	return ex.accumulator
}

// Line implements eval.Context.
func (ex *Executor) Line() int { return ex.lineNumber() }

// CallFn implements eval.Context: invokes a DEF FN by name (spec
// §4.G "Call frames"), honoring RETURN formals the same way a PROC
// call does (spec §4.G step 3, spec §8 scenario 6). name arrives with
// its "FN" prefix (as eval reads it); callDef adds the prefix itself.
func (ex *Executor) CallFn(name string, args []value.Value, actualNames []string) (value.Value, error) {
	return ex.callDef(strings.TrimPrefix(name, "FN"), args, actualNames, true)
}

// RndFloat / RndSeed implement eval's rngContext for the RND builtin.
func (ex *Executor) RndFloat() float64 { return ex.rng.Float64() }
func (ex *Executor) RndSeed(n int64)   { ex.rng = newSeededRand(n) }

// LastErrKind / LastErrLine / LastErrReport implement eval's
// ErrContext for ERR/ERL/REPORT$ (spec §7).
func (ex *Executor) LastErrKind() value.Value {
	if ex.lastErr == nil {
		return value.Int(0)
	}
	return value.Int(int64(ex.lastErr.Kind))
}

func (ex *Executor) LastErrLine() value.Value {
	if ex.lastErr == nil {
		return value.Int(0)
	}
	return value.Int(int64(ex.lastErr.Line))
}

func (ex *Executor) LastErrReport() value.Value {
	if ex.lastErr == nil {
		return value.Str("")
	}
	return value.Str(ex.lastErr.Report())
}

// Centiseconds implements eval's ClockContext for TIME (spec §6.1
// getime): a monotonically increasing counter driven by the event
// dispatcher's tick source rather than wall-clock time, so repeated
// runs stay deterministic in tests.
func (ex *Executor) Centiseconds() value.Value {
	return value.Int(ex.Events.Ticks())
}
