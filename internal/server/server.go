// Package server is the read-only HTTP query API and websocket event feed.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/auctiondb/internal/server/handler"
	"github.com/alanyoungcy/auctiondb/internal/server/middleware"
	"github.com/alanyoungcy/auctiondb/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimit   float64
	RateBurst   int
}

// Handlers aggregates the HTTP handlers. Values and Cycles are nil when
// Redis or Postgres are disabled, and Pipeline is nil when no updater runs
// in this process.
type Handlers struct {
	Health   *handler.HealthHandler
	Status   *handler.StatusHandler
	Files    *handler.FileHandler
	Items    *handler.ItemHandler
	Values   *handler.ValueHandler
	Cycles   *handler.CycleHandler
	Pipeline *handler.PipelineHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (rate limit, logging, CORS, auth) and attaches the
// WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := NewMux(handlers, wsHub)

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.RateLimit(cfg.RateLimit, cfg.RateBurst)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger.With(slog.String("component", "server")),
	}
}

// NewMux registers every route whose handler is present.
func NewMux(handlers Handlers, wsHub *ws.Hub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}

	mux.HandleFunc("GET /api/files", handlers.Files.ListFiles)
	mux.HandleFunc("GET /api/namespaces/{namespace}", handlers.Files.GetMeta)
	mux.HandleFunc("GET /api/items/{id}", handlers.Items.GetItem)

	if handlers.Values != nil {
		mux.HandleFunc("GET /api/values/{file}/{item}", handlers.Values.GetValue)
	}
	if handlers.Cycles != nil {
		mux.HandleFunc("GET /api/cycles", handlers.Cycles.ListCycles)
	}
	if handlers.Pipeline != nil {
		mux.HandleFunc("POST /api/update/trigger", handlers.Pipeline.TriggerUpdate)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}
	return mux
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
