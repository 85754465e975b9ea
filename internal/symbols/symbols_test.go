package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basiccore/internal/value"
)

func TestTypeOfSigils(t *testing.T) {
	cases := map[string]VarType{
		"X":   TypeFloat,
		"X%":  TypeInt32,
		"X%%": TypeInt64,
		"X#":  TypeFloat64,
		"X$":  TypeString,
		"X&":  TypeByte,
	}
	for name, want := range cases {
		assert.Equal(t, want, TypeOf(name), "TypeOf(%q)", name)
	}
}

func TestStaticIndexOnlySingleLetterPercent(t *testing.T) {
	idx, ok := StaticIndex("A%")
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = StaticIndex("Z%")
	require.True(t, ok)
	assert.Equal(t, 25, idx)

	_, ok = StaticIndex("AB%")
	assert.False(t, ok)
	_, ok = StaticIndex("A$")
	assert.False(t, ok)
}

func TestGetOrCreateThenLookupPromotesToHead(t *testing.T) {
	tbl := New()
	n := tbl.GetOrCreate("FOO%")
	n.Scalar = value.Int(42)

	_, existed := tbl.Lookup("FOO%")
	assert.True(t, existed)

	tbl.GetOrCreate("BAR%")
	found, ok := tbl.Lookup("FOO%")
	require.True(t, ok)
	assert.Equal(t, int64(42), found.Scalar.I)
}

func TestLookupMissDoesNotCreate(t *testing.T) {
	tbl := New()
	_, ok := tbl.Lookup("NEVERSEEN%")
	assert.False(t, ok)
}

func TestClearPreservesStaticSlots(t *testing.T) {
	tbl := New()
	tbl.SetStatic(0, value.Int(7))
	tbl.GetOrCreate("FOO%").Scalar = value.Int(1)

	tbl.Clear()

	assert.Equal(t, int64(7), tbl.GetStatic(0).I)
	_, ok := tbl.Lookup("FOO%")
	assert.False(t, ok)
}

func TestArrayIndexRowMajor(t *testing.T) {
	a := NewArray([]int{2, 3}) // DIM A(2,3): 3x4 = 12 slots
	off, ok := a.Index([]int{1, 2})
	require.True(t, ok)
	assert.Equal(t, 1*4+2, off)

	_, ok = a.Index([]int{3, 0})
	assert.False(t, ok, "subscript beyond DIM bound must fail")
}

func TestDefineAndLookupFnProc(t *testing.T) {
	tbl := New()
	tbl.DefineFn("FNSQUARE", 3)
	tbl.DefineProc("PROCGREET", 7)

	cur, ok := tbl.LookupFn("FNSQUARE")
	require.True(t, ok)
	assert.Equal(t, 3, cur)

	cur, ok = tbl.LookupProc("PROCGREET")
	require.True(t, ok)
	assert.Equal(t, 7, cur)

	_, ok = tbl.LookupFn("FNMISSING")
	assert.False(t, ok)
}
