package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"basiccore/internal/errors"
)

func TestPollIdleReturnsNil(t *testing.T) {
	d := NewDispatcher()
	assert.NoError(t, d.Poll())
}

func TestRequestEscapeRaisesOnce(t *testing.T) {
	d := NewDispatcher()
	d.RequestEscape()

	err := d.Poll()
	require.Error(t, err)
	be, ok := err.(*errors.BasicError)
	require.True(t, ok)
	assert.Equal(t, errors.Escape, be.Kind)

	assert.NoError(t, d.Poll(), "ESC flag must clear after being observed once")
}

func TestRequestKillReturnsErrKilled(t *testing.T) {
	d := NewDispatcher()
	d.RequestKill()
	assert.Equal(t, ErrKilled, d.Poll())
}

func TestKillTakesPriorityOverEscape(t *testing.T) {
	d := NewDispatcher()
	d.RequestEscape()
	d.RequestKill()
	assert.Equal(t, ErrKilled, d.Poll())
}

func TestPostAndTrapDispatch(t *testing.T) {
	d := NewDispatcher()
	var got Event
	d.InstallTrap(KindTimer, func(e Event) error {
		got = e
		return nil
	})

	d.Post(Event{Kind: KindTimer, Arg: 42})
	require.NoError(t, d.Poll())
	assert.Equal(t, int64(42), got.Arg)
}

func TestPostOverflowDropsOldest(t *testing.T) {
	d := NewDispatcher()
	for i := 0; i < ringCapacity+5; i++ {
		d.Post(Event{Kind: KindSys, Arg: int64(i)})
	}

	var seen []int64
	d.InstallTrap(KindSys, func(e Event) error {
		seen = append(seen, e.Arg)
		return nil
	})
	for i := 0; i < ringCapacity; i++ {
		require.NoError(t, d.Poll())
	}
	require.NotEmpty(t, seen)
	assert.Equal(t, int64(5), seen[0], "oldest 5 entries should have been dropped")
}

func TestTickAccumulates(t *testing.T) {
	d := NewDispatcher()
	d.Tick(10)
	d.Tick(5)
	assert.Equal(t, int64(15), d.Ticks())
}
