package eval

import (
	"basiccore/internal/errors"
	"basiccore/internal/symbols"
	"basiccore/internal/value"
)

// EvalArrayExpr implements spec §4.F's whole-array expression form:
// `a() = b() + c() * d`. It is invoked by internal/exec once it has
// recognized `name() =` at the start of a statement and consumed the
// `=`; the evaluator is positioned at the start of the right-hand side.
//
// Rules (spec §4.F):
//  1. parse the RHS once;
//  2. if the RHS names another whole array, apply the operator
//     element-wise with matching rank;
//  3. support an optional dot product `a() = b() . c()` between a
//     (rows×k) and (k×cols) matrix, result size must match;
//  4. support a trailing `, expr, expr, …` initializer list truncated
//     to the array size.
func (e *Evaluator) EvalArrayExpr(target *symbols.Array) error {
	e.skipSpaces()

	// Initializer list: `a()=1,2,3,4`
	if e.looksLikeInitList() {
		for i := range target.Data {
			if e.atEnd() {
				break
			}
			v, err := e.Eval()
			if err != nil {
				return err
			}
			target.Data[i] = v
			e.skipSpaces()
			if !e.atEnd() && e.peek() == ',' {
				e.pos++
				e.skipSpaces()
				continue
			}
			break
		}
		return nil
	}

	// `b()` or `b() <op> c()` or `b() . c()` (dot product) or `b() <op> scalar`.
	leftName, leftIsArray, err := e.peekArrayRef()
	if err != nil {
		return err
	}
	if !leftIsArray {
		return errors.New(errors.BadUseOfArray, e.ctx.Line())
	}
	left, err := e.ctx.ResolveArray(leftName)
	if err != nil {
		return err
	}
	e.consumeArrayRef()
	e.skipSpaces()

	if e.atEnd() {
		return copyArray(target, left)
	}

	switch {
	case e.peek() == '.':
		e.pos++
		e.skipSpaces()
		rightName, _, err := e.peekArrayRef()
		if err != nil {
			return err
		}
		right, err := e.ctx.ResolveArray(rightName)
		if err != nil {
			return err
		}
		e.consumeArrayRef()
		return dotProduct(target, left, right, e.ctx.Line())
	case e.peek() == '+' || e.peek() == '-' || e.peek() == '*' || e.peek() == '/':
		op := e.peek()
		e.pos++
		e.skipSpaces()
		rightName, rightIsArray, err := e.peekArrayRef()
		if err == nil && rightIsArray {
			right, err := e.ctx.ResolveArray(rightName)
			if err != nil {
				return err
			}
			e.consumeArrayRef()
			return elementwiseArrays(target, left, right, op, e.ctx.Line())
		}
		scalar, err := e.Eval()
		if err != nil {
			return err
		}
		return elementwiseScalar(target, left, scalar, op, e.ctx.Line())
	default:
		return copyArray(target, left)
	}
}

// looksLikeInitList reports whether the cursor is at a bare
// expression list rather than a `name()` reference, i.e. the next
// non-space byte is not an identifier immediately followed by `(`.
func (e *Evaluator) looksLikeInitList() bool {
	save := e.pos
	defer func() { e.pos = save }()
	if e.atEnd() || !isIdentStart(e.peek()) {
		return true
	}
	_, isArray, err := e.peekArrayRef()
	return err != nil || !isArray
}

// peekArrayRef reads (without consuming, except internally tracked
// via a saved/restored position) a `name()` reference and reports
// whether it is one.
func (e *Evaluator) peekArrayRef() (name string, isArray bool, err error) {
	save := e.pos
	defer func() { e.pos = save }()
	name = e.readName()
	e.skipSpaces()
	if e.atEnd() || e.peek() != '(' {
		return name, false, nil
	}
	e.pos++
	e.skipSpaces()
	if e.atEnd() || e.peek() != ')' {
		return name, false, nil
	}
	return name, true, nil
}

// consumeArrayRef re-reads and actually advances past `name()`.
func (e *Evaluator) consumeArrayRef() {
	e.readName()
	e.skipSpaces()
	if !e.atEnd() && e.peek() == '(' {
		e.pos++
		e.skipSpaces()
		if !e.atEnd() && e.peek() == ')' {
			e.pos++
		}
	}
}

func sameRank(a, b *symbols.Array) bool {
	if len(a.Dims) != len(b.Dims) {
		return false
	}
	for i := range a.Dims {
		if a.Dims[i] != b.Dims[i] {
			return false
		}
	}
	return true
}

func copyArray(dst, src *symbols.Array) error {
	if !sameRank(dst, src) {
		return errors.New(errors.BadUseOfArray, 0)
	}
	copy(dst.Data, src.Data)
	return nil
}

func elementwiseArrays(dst, a, b *symbols.Array, op byte, line int) error {
	if !sameRank(a, b) || !sameRank(a, dst) {
		return errors.New(errors.BadUseOfArray, line)
	}
	for i := range dst.Data {
		v, err := applyOp(a.Data[i], b.Data[i], op, line)
		if err != nil {
			return err
		}
		dst.Data[i] = v
	}
	return nil
}

func elementwiseScalar(dst, a *symbols.Array, scalar value.Value, op byte, line int) error {
	if !sameRank(a, dst) {
		return errors.New(errors.BadUseOfArray, line)
	}
	for i := range dst.Data {
		v, err := applyOp(a.Data[i], scalar, op, line)
		if err != nil {
			return err
		}
		dst.Data[i] = v
	}
	return nil
}

func applyOp(a, b value.Value, op byte, line int) (value.Value, error) {
	switch op {
	case '+':
		return value.Add(a, b, line)
	case '-':
		return value.Sub(a, b, line)
	case '*':
		return value.Mul(a, b, line)
	case '/':
		return value.Div(a, b, line)
	default:
		return value.Value{}, errors.New(errors.TypeMismatch, line)
	}
}

// dotProduct implements `a() = b() . c()`: b is (rows×k), c is
// (k×cols), result must match a's size (rows×cols), spec §4.F rule
// (iii).
func dotProduct(dst, b, c *symbols.Array, line int) error {
	if len(b.Dims) != 2 || len(c.Dims) != 2 {
		return errors.New(errors.BadUseOfArray, line)
	}
	rows, k1 := b.Dims[0]+1, b.Dims[1]+1
	k2, cols := c.Dims[0]+1, c.Dims[1]+1
	if k1 != k2 {
		return errors.New(errors.BadUseOfArray, line)
	}
	if len(dst.Data) != rows*cols {
		return errors.New(errors.BadUseOfArray, line)
	}
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			var sum value.Value = value.Int(0)
			for k := 0; k < k1; k++ {
				bv := b.Data[r*k1+k]
				cv := c.Data[k*cols+col]
				prod, err := value.Mul(bv, cv, line)
				if err != nil {
					return err
				}
				sum, err = value.Add(sum, prod, line)
				if err != nil {
					return err
				}
			}
			dst.Data[r*cols+col] = sum
		}
	}
	return nil
}

// SumArray implements the SUM(a()) builtin (spec §4.F), summing every
// element of the array.
func SumArray(a *symbols.Array, line int) (value.Value, error) {
	var sum value.Value = value.Int(0)
	for _, v := range a.Data {
		var err error
		sum, err = value.Add(sum, v, line)
		if err != nil {
			return value.Value{}, err
		}
	}
	return sum, nil
}
