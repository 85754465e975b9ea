// Package events implements the event dispatcher of spec §4.I: a
// cooperative flags byte {KILL, PAUSE, ALERT, ESC} plus a small ring
// buffer of host-posted events (TIMER, CLOSE, MOVE, SYS, MOUSE),
// polled once between every statement. Grounded on the teacher's
// concurrency primitives (sentra's network/websocket event feed and
// errgroup-coordinated background producers): the host posts into the
// queue from its own goroutine while the interpreter's single
// execution context only ever drains it at a statement boundary,
// exactly the producer/single-consumer shape sentra's websocket
// server uses for inbound frames.
package events

import (
	"sync"
	"sync/atomic"

	"basiccore/internal/errors"
)

// Kind identifies a host event's trap category (spec §4.I).
type Kind byte

const (
	KindTimer Kind = iota
	KindClose
	KindMove
	KindSys
	KindMouse
)

// Event is one host-posted ring-buffer entry.
type Event struct {
	Kind Kind
	Arg  int64
}

const ringCapacity = 64

// Dispatcher holds the cooperative flags byte and the event ring
// buffer. Safe for concurrent Post from a host goroutine while Poll
// runs on the interpreter's single execution context.
type Dispatcher struct {
	mu    sync.Mutex
	ring  []Event
	head  int
	count int

	escFlag   atomic.Bool
	killFlag  atomic.Bool
	pauseFlag atomic.Bool
	alertFlag atomic.Bool

	traps map[Kind]TrapHandler

	ticks atomic.Int64
}

// TrapHandler is called synchronously from Poll when an event whose
// kind has an installed trap is consumed.
type TrapHandler func(Event) error

// NewDispatcher creates an idle dispatcher with no traps installed.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{ring: make([]Event, ringCapacity), traps: make(map[Kind]TrapHandler)}
}

// RequestEscape sets the ESC flag (spec §5 "Cancellation"): observed
// by the executor at the next statement boundary.
func (d *Dispatcher) RequestEscape() { d.escFlag.Store(true) }

// RequestKill sets the KILL flag: terminates the interpreter with
// exit code -1 from the next statement boundary.
func (d *Dispatcher) RequestKill() { d.killFlag.Store(true) }

// SetPause sets or clears cooperative single-step suspension.
func (d *Dispatcher) SetPause(p bool) { d.pauseFlag.Store(p) }

// Paused reports whether the dispatcher is currently suspending
// execution (host single-step mode).
func (d *Dispatcher) Paused() bool { return d.pauseFlag.Load() }

// Resume clears pause, letting Poll return normally again.
func (d *Dispatcher) Resume() { d.pauseFlag.Store(false) }

// InstallTrap registers a handler for one event kind (spec §4.I
// "if a trap ... is installed").
func (d *Dispatcher) InstallTrap(k Kind, h TrapHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.traps[k] = h
}

// RemoveTrap clears a previously installed trap.
func (d *Dispatcher) RemoveTrap(k Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.traps, k)
}

// Post appends an event to the ring buffer and sets ALERT, from the
// host's goroutine. Oldest entries are dropped if the ring is full
// (spec doesn't define overflow behavior beyond "small ring buffer";
// dropping the oldest favors recency, matching a timer/mouse feed
// where only the latest samples matter).
func (d *Dispatcher) Post(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.count == len(d.ring) {
		d.head = (d.head + 1) % len(d.ring)
		d.count--
	}
	idx := (d.head + d.count) % len(d.ring)
	d.ring[idx] = e
	d.count++
	d.alertFlag.Store(true)
}

// Tick advances the monotonic centisecond counter TIME reads (spec
// §6.1), driven by the host's own clock goroutine rather than wall
// time so interpreter runs stay reproducible under test.
func (d *Dispatcher) Tick(centiseconds int64) { d.ticks.Add(centiseconds) }

// Ticks reports the current centisecond counter value (TIME).
func (d *Dispatcher) Ticks() int64 { return d.ticks.Load() }

// Poll implements spec §4.I's "between statements" check: ESC raises
// Escape, KILL raises a sentinel the caller translates to exit code
// -1, ALERT drains one event and, if a trap is installed for its
// kind, invokes it.
func (d *Dispatcher) Poll() error {
	if d.killFlag.Load() {
		return ErrKilled
	}
	if d.escFlag.Load() {
		d.escFlag.Store(false)
		return errors.New(errors.Escape, 0)
	}
	if !d.alertFlag.Load() {
		return nil
	}
	e, ok := d.pop()
	if !ok {
		d.alertFlag.Store(false)
		return nil
	}
	d.mu.Lock()
	h, has := d.traps[e.Kind]
	more := d.count > 0
	d.mu.Unlock()
	if !more {
		d.alertFlag.Store(false)
	}
	if !has {
		return nil
	}
	return h(e)
}

func (d *Dispatcher) pop() (Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.count == 0 {
		return Event{}, false
	}
	e := d.ring[d.head]
	d.head = (d.head + 1) % len(d.ring)
	d.count--
	return e, true
}

// ErrKilled is returned by Poll once RequestKill has been called; the
// executor maps it to exit code -1 without running an error handler.
var ErrKilled = &killError{}

type killError struct{}

func (*killError) Error() string { return "interpreter killed" }
