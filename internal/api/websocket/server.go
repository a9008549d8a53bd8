package websocket

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fortuna/sibyl/internal/report"
)

// Server upgrades /ws/reports requests and publishes reports to the hub.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zerolog.Logger
}

// NewServer creates a server. allowedOrigins follows the REST API's CORS
// list; "*" or an empty list accepts any origin.
func NewServer(hub *Hub, allowedOrigins []string, logger *zerolog.Logger) *Server {
	s := &Server{hub: hub, logger: logger}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
	return s
}

// Hub returns the server's hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// HandleReports upgrades the connection and streams report.generated
// messages until the client goes away.
func (s *Server) HandleReports(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Failed to upgrade connection")
		return
	}

	client := NewClient(uuid.NewString(), s.hub, conn)
	if !s.hub.Register(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Name implements report.Sink.
func (s *Server) Name() string { return "websocket" }

// Write implements report.Sink by broadcasting the report.
func (s *Server) Write(ctx context.Context, r *report.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.hub.Broadcast(Message{
		Type:      MessageReportGenerated,
		Timestamp: time.Now().UTC(),
		Data:      r,
	})
	return nil
}
