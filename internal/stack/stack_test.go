package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basiccore/internal/value"
)

func TestPushPopOrder(t *testing.T) {
	s := New()
	require.NoError(t, s.Push(Frame{Marker: MarkerGosub}, 0))
	require.NoError(t, s.Push(Frame{Marker: MarkerFor, VarName: "I%"}, 0))

	f, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, MarkerFor, f.Marker)
	assert.Equal(t, "I%", f.VarName)

	f, ok = s.Pop()
	require.True(t, ok)
	assert.Equal(t, MarkerGosub, f.Marker)

	_, ok = s.Pop()
	assert.False(t, ok)
}

func TestFindTopMatchingSkipsNonMatching(t *testing.T) {
	s := New()
	require.NoError(t, s.Push(Frame{Marker: MarkerFor, VarName: "I%"}, 0))
	require.NoError(t, s.Push(Frame{Marker: MarkerLocal, VarName: "X%"}, 0))
	require.NoError(t, s.Push(Frame{Marker: MarkerLocal, VarName: "Y%"}, 0))

	offset, found := s.FindTopMatching(MarkerFor)
	require.True(t, found)
	assert.Equal(t, 2, offset)
}

func TestTruncateToCallsUnwindInPopOrder(t *testing.T) {
	s := New()
	require.NoError(t, s.Push(Frame{Marker: MarkerLocal, VarName: "A%", SavedValue: value.Int(1)}, 0))
	require.NoError(t, s.Push(Frame{Marker: MarkerLocal, VarName: "B%", SavedValue: value.Int(2)}, 0))
	require.NoError(t, s.Push(Frame{Marker: MarkerLocal, VarName: "C%", SavedValue: value.Int(3)}, 0))

	var unwound []string
	s.TruncateTo(0, func(f Frame) { unwound = append(unwound, f.VarName) })

	assert.Equal(t, []string{"C%", "B%", "A%"}, unwound)
	assert.Equal(t, 0, s.Depth())
}

func TestPushRefusesPastMaxCapacity(t *testing.T) {
	s := &Stack{frames: make([]Frame, maxCapacity)}
	err := s.Push(Frame{Marker: MarkerGosub}, 42)
	assert.Error(t, err)
}
