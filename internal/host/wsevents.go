package host

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/google/uuid"

	"basiccore/internal/events"
)

// inboundEvent is the wire shape a client posts to push a host event
// into the interpreter's event queue: {"kind":"timer","arg":5}.
type inboundEvent struct {
	Kind string `json:"kind"`
	Arg  int64  `json:"arg"`
}

var kindNames = map[string]events.Kind{
	"timer": events.KindTimer,
	"close": events.KindClose,
	"move":  events.KindMove,
	"sys":   events.KindSys,
	"mouse": events.KindMouse,
}

// eventServer is the reference §4.I/§6.1 event-queue backend: an
// external harness dials in over WebSocket and posts JSON event
// frames, which are translated into events.Dispatcher.Post calls.
// Structured after sentra's WebSocketServer: an Upgrader, a client
// map guarded by a mutex, and one handler goroutine per connection.
type eventServer struct {
	addr      string
	disp      *events.Dispatcher
	sessionID string

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

func newEventServer(addr string, disp *events.Dispatcher, sessionID string) *eventServer {
	return &eventServer{
		addr:      addr,
		disp:      disp,
		sessionID: sessionID,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*websocket.Conn),
	}
}

// run serves the event-ingest endpoint until ctx is cancelled.
func (s *eventServer) run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handle)

	srv := &http.Server{Addr: s.addr, Handler: mux}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.closeAll()
		return nil
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *eventServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	clientID := uuid.NewString()
	s.mu.Lock()
	s.clients[clientID] = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, clientID)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in inboundEvent
		if err := json.Unmarshal(msg, &in); err != nil {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bad event: `+strconv.Quote(err.Error())+`"}`))
			continue
		}
		kind, ok := kindNames[in.Kind]
		if !ok {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unknown kind `+strconv.Quote(in.Kind)+`"}`))
			continue
		}
		s.disp.Post(events.Event{Kind: kind, Arg: in.Arg})
	}
}

func (s *eventServer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		c.Close()
		delete(s.clients, id)
	}
}
