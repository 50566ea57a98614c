// Package api exposes the pipeline over a JSON HTTP API: chat turns,
// document ingestion, conversation log reads, and health probes.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger            *slog.Logger
	Chatter           Chatter        // Required
	Ingestor          Ingestor       // Required
	Exchanges         ExchangeLister // Required
	Pool              *pgxpool.Pool  // Optional: nil disables the database readiness check
	RequestsPerSecond float64        // Per-IP refill rate (0 = default 5)
	RateBurst         int            // Per-IP burst size (0 = default 20)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Chatter == nil {
		return nil, errors.New("chatter is required")
	}
	if cfg.Ingestor == nil {
		return nil, errors.New("ingestor is required")
	}
	if cfg.Exchanges == nil {
		return nil, errors.New("exchange lister is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &chatHandler{
		chatter:   cfg.Chatter,
		ingestor:  cfg.Ingestor,
		exchanges: cfg.Exchanges,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", h.chat)
	mux.HandleFunc("POST /api/documents", h.ingest)
	mux.HandleFunc("GET /api/exchanges", h.listExchanges)

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 20
	}
	rl := newRateLimiter(rps, burst)

	// Middleware stack, outermost first:
	//   Recovery → Logging → RateLimit → Routes
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
