package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basiccore/internal/heap"
	"basiccore/internal/stack"
)

func TestStatusFormatsSessionHeapAndStackDepth(t *testing.T) {
	h := heap.New(1<<20, func() int { return 1 << 24 })
	s := stack.New()

	require.NoError(t, s.Push(stack.Frame{Marker: stack.MarkerGosub}, 10))
	require.NoError(t, s.Push(stack.Frame{Marker: stack.MarkerFor}, 20))

	out := Status(h, s, "sess-1")
	assert.Contains(t, out, "session sess-1:")
	assert.Contains(t, out, "stack depth 2")
}
