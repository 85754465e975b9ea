package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basiccore/internal/errors"
	"basiccore/internal/lexer"
	"basiccore/internal/symbols"
	"basiccore/internal/value"
)

// fakeCtx is a minimal eval.Context backed by a flat variable map, for
// exercising the evaluator without a full Executor.
type fakeCtx struct {
	vars map[string]value.Value
	fns  map[string]func([]value.Value) (value.Value, error)
}

func newFakeCtx() *fakeCtx {
	return &fakeCtx{vars: map[string]value.Value{}, fns: map[string]func([]value.Value) (value.Value, error){}}
}

func (f *fakeCtx) ResolveVar(name string) (value.Value, error) {
	if v, ok := f.vars[name]; ok {
		return v, nil
	}
	return value.Int(0), nil
}

func (f *fakeCtx) CallFn(name string, args []value.Value, actualNames []string) (value.Value, error) {
	if fn, ok := f.fns[name]; ok {
		return fn(args)
	}
	return value.Value{}, errors.New(errors.NoSuchVariable, 0)
}

func (f *fakeCtx) Accumulate(s string) string { return s }
func (f *fakeCtx) Line() int                  { return 0 }
func (f *fakeCtx) ResolveArray(name string) (*symbols.Array, error) {
	return nil, errors.New(errors.BadUseOfArray, 0)
}

func evalExpr(t *testing.T, src string, ctx *fakeCtx) value.Value {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	require.NoError(t, err)
	v, err := New(toks, 0, ctx).Eval()
	require.NoError(t, err)
	return v
}

func TestArithmeticPrecedence(t *testing.T) {
	v := evalExpr(t, "2+3*4", newFakeCtx())
	assert.Equal(t, int64(14), v.I)
}

func TestParenthesesOverridePrecedence(t *testing.T) {
	v := evalExpr(t, "(2+3)*4", newFakeCtx())
	assert.Equal(t, int64(20), v.I)
}

func TestPowerIsRightAssociative(t *testing.T) {
	v := evalExpr(t, "2^3^2", newFakeCtx())
	assert.Equal(t, float64(512), v.AsFloat(), "2^(3^2) = 2^9 = 512, not (2^3)^2 = 64")
}

func TestUnaryMinusAndNot(t *testing.T) {
	v := evalExpr(t, "-5+3", newFakeCtx())
	assert.Equal(t, int64(-2), v.I)

	v = evalExpr(t, "NOT TRUE", newFakeCtx())
	assert.False(t, value.Truthy(v))
}

func TestStringConcatenation(t *testing.T) {
	v := evalExpr(t, `"AB"+"CD"`, newFakeCtx())
	assert.Equal(t, "ABCD", v.S)
}

func TestRelationalAndLogical(t *testing.T) {
	v := evalExpr(t, "3<5 AND 5<10", newFakeCtx())
	assert.True(t, value.Truthy(v))

	v = evalExpr(t, "3>5 OR 1=1", newFakeCtx())
	assert.True(t, value.Truthy(v))
}

func TestVariableResolution(t *testing.T) {
	ctx := newFakeCtx()
	ctx.vars["X%"] = value.Int(7)
	v := evalExpr(t, "X%*2", ctx)
	assert.Equal(t, int64(14), v.I)
}

func TestHexLiteral(t *testing.T) {
	v := evalExpr(t, "&FF", newFakeCtx())
	assert.Equal(t, int64(255), v.I)
}

func TestFnCallDispatchesThroughContext(t *testing.T) {
	ctx := newFakeCtx()
	ctx.fns["FNDOUBLE"] = func(args []value.Value) (value.Value, error) {
		return value.Int(args[0].I * 2), nil
	}
	v := evalExpr(t, "FNDOUBLE(21)", ctx)
	assert.Equal(t, int64(42), v.I)
}

func TestDivisionByZeroRaisesError(t *testing.T) {
	toks, err := lexer.Tokenize("1/0")
	require.NoError(t, err)
	_, err = New(toks, 0, newFakeCtx()).Eval()
	require.Error(t, err)
}
