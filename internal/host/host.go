// Package host provides reference backends for the narrow interfaces
// spec §6 carves out of scope for the interpreter core: file-channel
// I/O, the event queue's external producers and a terminal driver.
// None of this is reachable from the core's statement dispatch (spec
// §1 excludes file-OS/windowing from the core); it exists so a CLI or
// test harness has at least one working implementation to plug in.
package host

import (
	"context"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"basiccore/internal/events"
)

// Host bundles the reference backends around one running interpreter:
// a database-backed channel manager for osopen/osbget/..., an optional
// WebSocket event producer, and a session id used in diagnostics.
// Grounded on sentra's NetworkModule/DatabaseModule pattern of a
// single module struct owning a map of live handles plus a mutex.
type Host struct {
	SessionID string

	Channels *ChannelManager
	Events   *events.Dispatcher

	ws *eventServer

	group  *errgroup.Group
	cancel context.CancelFunc

	Debug bool
}

// New creates a Host wired to an event dispatcher (normally
// exec.Executor.Events) and an empty channel manager.
func New(disp *events.Dispatcher) *Host {
	return &Host{
		SessionID: uuid.NewString(),
		Channels:  NewChannelManager(),
		Events:    disp,
	}
}

// logf logs an operational event the way cmd/sentra/main.go does,
// gated by -debug; the interpreter core itself never logs (spec
// SPEC_FULL.md AMBIENT STACK "Logging").
func (h *Host) logf(format string, args ...interface{}) {
	if h.Debug {
		log.Printf(format, args...)
	}
}

// Serve starts the background producers (websocket event server, and
// any future host-side producers) under one errgroup.Group so that a
// failure or shutdown request tears all of them down together, the
// way sentra coordinates concurrent goroutines with explicit
// cancellation rather than leaking them.
func (h *Host) Serve(ctx context.Context, wsAddr string) error {
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	h.group = g

	if wsAddr != "" {
		srv := newEventServer(wsAddr, h.Events, h.SessionID)
		h.ws = srv
		g.Go(func() error {
			h.logf("host[%s]: websocket event server listening on %s", h.SessionID, wsAddr)
			return srv.run(ctx)
		})
	}
	return nil
}

// Shutdown cancels every background producer and waits for them to
// return, then closes any open channels.
func (h *Host) Shutdown() error {
	if h.cancel != nil {
		h.cancel()
	}
	var err error
	if h.group != nil {
		err = h.group.Wait()
	}
	h.Channels.CloseAll()
	return err
}
