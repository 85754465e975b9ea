package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateWritesAndReads(t *testing.T) {
	h := New(1024, func() int { return 1024 })
	var d Descriptor

	buf, err := h.Allocate(&d, 5)
	require.NoError(t, err)
	copy(buf, "hello")

	assert.Equal(t, "hello", string(h.Read(d)))
}

func TestAllocateShrinkSameClassReusesBlock(t *testing.T) {
	h := New(1024, func() int { return 1024 })
	var d Descriptor

	buf, err := h.Allocate(&d, 3)
	require.NoError(t, err)
	copy(buf, "abc")
	offBefore := d.Offset

	buf, err = h.Allocate(&d, 2)
	require.NoError(t, err)
	copy(buf, "xy")
	assert.Equal(t, offBefore, d.Offset, "same size class should keep the block in place")
	assert.Equal(t, "xy", string(h.Read(d)))
}

func TestFreeReturnsBlockToFreeList(t *testing.T) {
	h := New(1024, func() int { return 1024 })
	var d1, d2 Descriptor

	_, err := h.Allocate(&d1, 10)
	require.NoError(t, err)
	watermarkAfterFirst := h.Watermark()

	h.Free(&d1)
	_, err = h.Allocate(&d2, 10)
	require.NoError(t, err)

	assert.Equal(t, watermarkAfterFirst, h.Watermark(), "reusing a freed same-class block must not bump the watermark")
}

func TestBumpRefusesToCollideWithStack(t *testing.T) {
	h := New(64, func() int { return 32 })
	var d Descriptor

	_, err := h.Allocate(&d, 1000)
	assert.Error(t, err)
}

func TestStatsReportsWatermarkAndFreeBlocks(t *testing.T) {
	h := New(1024, func() int { return 1024 })
	var d Descriptor

	_, err := h.Allocate(&d, 4)
	require.NoError(t, err)
	h.Free(&d)

	st := h.Stats()
	assert.Equal(t, 1, st.FreeBlocks)
	assert.Greater(t, st.Watermark, 0)
}
