// Package api exposes the quote board over HTTP: the current snapshot,
// a manual refresh trigger, a WebSocket stream of published snapshots and
// Prometheus metrics.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"mervalboard/internal/board"
)

const (
	writeWait    = 10 * time.Second
	streamBuffer = 8
)

// Trigger starts a batch run on demand. A non-nil error explains why the
// request was ignored.
type Trigger interface {
	Trigger() error
}

// Server serves the board API.
type Server struct {
	board    *board.Board
	trigger  Trigger
	metrics  http.Handler
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates the API server. metrics may be nil.
func New(b *board.Board, trigger Trigger, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		board:   b,
		trigger: trigger,
		metrics: metrics,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// the board is public, read-only data
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/board", s.handleBoard)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Snapshot())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.trigger.Trigger(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "ignored", "reason": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.board.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"health":       snap.Health,
		"degraded":     snap.Health.Degraded(),
		"running":      snap.Running,
		"last_updated": snap.LastUpdated,
		"unavailable":  snap.Unavailable(),
	})
}

// handleStream sends the current snapshot, then every published one,
// until the client goes away or the board is closed.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := s.board.Subscribe(streamBuffer)
	defer cancel()

	// clients never send data; reading only surfaces close frames and errors
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := writeSnapshot(conn, s.board.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-gone:
			return
		case snap, ok := <-updates:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "board closed")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				return
			}
			if err := writeSnapshot(conn, snap); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, snap board.Snapshot) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
