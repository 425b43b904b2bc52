package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// healthStatus is the /health response document.
type healthStatus struct {
	Steps       int    `json:"steps"`
	Current     int    `json:"current"`
	Summary     string `json:"summary"`
	Capture     string `json:"capture"`
	StartedAt   string `json:"started"`
	CurrentSent string `json:"currentStepTimestamp"`
}

// Server exposes the replay over websocket plus a health endpoint. It
// only ever pushes captured bytes; nothing a client sends is interpreted.
type Server struct {
	logger   *slog.Logger
	session  *Session
	hub      *Hub
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

func NewServer(logger *slog.Logger, session *Session, hub *Hub) *Server {
	return &Server{
		logger:  logger,
		session: session,
		hub:     hub,
		upgrader: websocket.Upgrader{
			// Local tooling; any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the route set so tests can mount it on their own server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

// Start begins serving on addr. It returns once the listener fails or the
// server is shut down.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	err := s.httpSrv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("replay server: %w", err)
	}

	return nil
}

// Shutdown stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}

	return s.httpSrv.Shutdown(ctx)
}

// handleWS upgrades the connection and immediately pushes the current
// step so a late-joining client sees state without waiting for the next
// console command.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "error", err)

		return
	}
	s.hub.Add(conn)
	s.logger.Info("client connected", "total", s.hub.Count())

	step := s.session.Current()
	if err := conn.WriteMessage(websocket.TextMessage, step.Raw); err != nil {
		s.logger.Warn("initial send failed", "error", err)
		s.hub.Remove(conn)

		return
	}

	// Drain until the client goes away; inbound frames are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.hub.Remove(conn)
	s.logger.Info("client disconnected", "total", s.hub.Count())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	step := s.session.Current()
	status := healthStatus{
		Steps:       s.session.Len(),
		Current:     step.Index,
		Summary:     step.Summary,
		Capture:     s.session.CapturePath(),
		StartedAt:   s.session.StartedAt(),
		CurrentSent: step.Timestamp.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Warn("encode health response", "error", err)
	}
}
