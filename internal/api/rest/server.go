// Package rest serves generated reports over HTTP.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config configures the HTTP listener.
type Config struct {
	Addr           string
	AllowedOrigins []string
}

// Server represents the REST API server
type Server struct {
	server  *http.Server
	router  *mux.Router
	handler http.Handler
	logger  *zerolog.Logger
}

// NewServer builds the router. Extra routes (the websocket feed) can be
// added with Handle before Start.
func NewServer(cfg Config, handler *Handler, logger *zerolog.Logger) *Server {
	router := mux.NewRouter()

	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggingMiddleware(logger))

	router.HandleFunc("/health", handler.HealthCheck).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/status", handler.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/reports/latest", handler.GetLatestReport).Methods(http.MethodGet)
	api.HandleFunc("/reports/run", handler.RunReport).Methods(http.MethodPost)
	api.HandleFunc("/reports/{name}", handler.GetReport).Methods(http.MethodGet)

	// CORS wraps the router so preflight requests are answered before
	// method matching.
	h := CORSMiddleware(cfg.AllowedOrigins)(router)

	return &Server{
		router:  router,
		handler: h,
		logger:  logger,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handle mounts an extra GET route.
func (s *Server) Handle(path string, h http.HandlerFunc) {
	s.router.HandleFunc(path, h).Methods(http.MethodGet)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the REST API server. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
