package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultMaxMessages     = 50
	defaultMaxMessageChars = 8000
	defaultRateLimit       = 60
	defaultRateWindow      = time.Minute
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger     *slog.Logger
	Responder  Responder       // Required
	PG         pgPinger        // Optional: nil fails /ready
	Graph      graphVerifier   // Optional: nil fails /ready
	Docs       documentCounter // Optional: nil fails /stats
	TrustProxy bool            // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)

	RateLimit  int           // Requests per window per IP (0 = default 60)
	RateWindow time.Duration // Window length (0 = default 1m)

	MaxMessages     int // Max messages per request (0 = default 50)
	MaxMessageChars int // Max characters per message (0 = default 8000)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Responder == nil {
		return nil, errors.New("responder is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxMessages := cfg.MaxMessages
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	maxMessageChars := cfg.MaxMessageChars
	if maxMessageChars <= 0 {
		maxMessageChars = defaultMaxMessageChars
	}

	ch := &chatHandler{
		responder:       cfg.Responder,
		maxMessages:     maxMessages,
		maxMessageChars: maxMessageChars,
		logger:          logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", ch.send)

	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	window := cfg.RateWindow
	if window <= 0 {
		window = defaultRateWindow
	}
	rl := newRateLimiter(limit, window)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		handler.ServeHTTP(w, r)
	})

	// Health probes bypass the middleware stack so rate limiting never
	// starves Kubernetes probes.
	hh := &healthHandler{pg: cfg.PG, graph: cfg.Graph, docs: cfg.Docs, logger: logger}
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", hh.liveness)
	topMux.HandleFunc("GET /ready", hh.readiness)
	topMux.HandleFunc("GET /stats", hh.stats)
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
