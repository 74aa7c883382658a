package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skyclans/detectx-audio-detector-manus-ui-sub001/internal/transport"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 4096
)

// Command is a client message on /v1/ws. Op names a transport action; the
// remaining fields are its arguments. "seek_marker" uses Index.
type Command struct {
	Op    string `json:"op"`
	Index int    `json:"index,omitempty"`
	TransportRequest
}

// Event is a server message on /v1/ws. Exactly one of State or Error is set.
type Event struct {
	Type  string              `json:"type"`
	State *transport.Snapshot `json:"state,omitempty"`
	Op    string              `json:"op,omitempty"`
	Error string              `json:"error,omitempty"`
}

// handleWebSocket pushes every published snapshot to the client and applies
// the commands it sends.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	snaps, unsubscribe := s.ctrl.Subscribe()
	defer unsubscribe()

	s.logger.Info("websocket client connected", "remote_addr", r.RemoteAddr)
	defer s.logger.Info("websocket client disconnected", "remote_addr", r.RemoteAddr)

	// Replies from the reader go through the writer so only one goroutine
	// writes to the connection.
	replies := make(chan Event, 8)
	done := make(chan struct{})
	go s.readCommands(conn, replies, done)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	first := s.ctrl.Snapshot()
	if err := writeEvent(conn, Event{Type: "state", State: &first}); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			if err := writeEvent(conn, Event{Type: "state", State: &snap}); err != nil {
				return
			}
		case ev := <-replies:
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) readCommands(conn *websocket.Conn, replies chan<- Event, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error", "error", err)
			}
			return
		}

		var err error
		if cmd.Op == "seek_marker" {
			err = s.ctrl.SeekToMarker(cmd.Index)
		} else {
			err = applyTransport(s.ctrl, cmd.Op, cmd.TransportRequest)
		}
		if err != nil {
			_, msg := transportError(err)
			select {
			case replies <- Event{Type: "error", Op: cmd.Op, Error: msg}:
			default:
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(ev)
}
