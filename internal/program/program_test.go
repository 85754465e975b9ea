package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLineKeepsSortedOrder(t *testing.T) {
	p := New()
	p.SetLine(30, []byte{0x0D})
	p.SetLine(10, []byte{0x0D})
	p.SetLine(20, []byte{0x0D})

	require.Equal(t, 3, p.Len())
	for i, want := range []int{10, 20, 30} {
		l, ok := p.LineAt(i)
		require.True(t, ok)
		assert.Equal(t, want, l.Number)
	}
}

func TestSetLineEmptyTokensDeletes(t *testing.T) {
	p := New()
	p.SetLine(10, []byte{0x0D})
	p.SetLine(10, nil)
	assert.Equal(t, 0, p.Len())
}

func TestFindLineFindsNextHighestWhenExactMissing(t *testing.T) {
	p := New()
	p.SetLine(10, []byte{0x0D})
	p.SetLine(30, []byte{0x0D})

	idx, ok := p.FindLine(20)
	require.True(t, ok)
	l, _ := p.LineAt(idx)
	assert.Equal(t, 30, l.Number)

	_, ok = p.FindLine(40)
	assert.False(t, ok)
}

func TestGetTopRejectsMalformedLine(t *testing.T) {
	p := New()
	p.SetLine(10, []byte{'X'}) // missing 0x0D terminator
	err := p.GetTop()
	require.Error(t, err)
	var malformed *MalformedLineError
	assert.ErrorAs(t, err, &malformed)
}

func TestLoadSourceTokenizesNumberedLines(t *testing.T) {
	p := New()
	err := LoadSource(p, "10 PRINT \"HI\"\n20 GOTO 10\n")
	require.NoError(t, err)
	require.Equal(t, 2, p.Len())

	l0, _ := p.LineAt(0)
	assert.Equal(t, 10, l0.Number)
	l1, _ := p.LineAt(1)
	assert.Equal(t, 20, l1.Number)
}

func TestDataCursorFindsFirstDataStatement(t *testing.T) {
	p := New()
	require.NoError(t, LoadSource(p, "10 PRINT 1\n20 DATA 1,2,3\n30 DATA 4\n"))

	cur, ok := p.DataCursor()
	require.True(t, ok)
	assert.Equal(t, 1, cur.Line)
}

func TestInstallLibraryMergesLinesIntoSearchSpace(t *testing.T) {
	p := New()
	require.NoError(t, LoadSource(p, "10 PRINT 1\n20 END\n"))

	lib := New()
	require.NoError(t, LoadSource(lib, "1000 DEF PROCGREET\n1010 PRINT \"HI\"\n1020 ENDPROC\n"))

	p.InstallLibrary(lib, "GREET")
	require.Equal(t, 5, p.Len())

	idx, ok := p.FindLine(1000)
	require.True(t, ok)
	l, _ := p.LineAt(idx)
	assert.Equal(t, 1000, l.Number)
	assert.Equal(t, "GREET", l.Library)

	main0, _ := p.LineAt(0)
	assert.Equal(t, "", main0.Library)
}

func TestInstallLibraryFirstMatchWinsOnLineNumberCollision(t *testing.T) {
	p := New()
	require.NoError(t, LoadSource(p, "10 PRINT 1\n"))

	lib := New()
	require.NoError(t, LoadSource(lib, "10 PRINT 2\n20 PRINT 3\n"))

	p.InstallLibrary(lib, "OTHER")
	require.Equal(t, 2, p.Len())

	idx, ok := p.FindLine(10)
	require.True(t, ok)
	l, _ := p.LineAt(idx)
	assert.Equal(t, "", l.Library) // main program's line 10 kept, library's discarded

	idx, ok = p.FindLine(20)
	require.True(t, ok)
	l, _ = p.LineAt(idx)
	assert.Equal(t, "OTHER", l.Library)
}

func TestInstallLibraryTwiceIsIdempotentAtLineLevel(t *testing.T) {
	p := New()
	require.NoError(t, LoadSource(p, "10 PRINT 1\n"))

	lib := New()
	require.NoError(t, LoadSource(lib, "1000 PRINT 2\n"))

	p.InstallLibrary(lib, "L")
	p.InstallLibrary(lib, "L")
	assert.Equal(t, 2, p.Len())
}
