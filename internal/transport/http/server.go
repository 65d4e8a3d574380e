// Package http provides the HTTP transport layer for tritierd.
//
// Routes (Go 1.22+ method-qualified patterns):
//
//	GET    /health
//	POST   /submit
//	GET    /stats
//	GET    /stats/ws     (only when stats.enabled)
//	GET    /exceptions
//	GET    /metrics      (only when a metrics registry is supplied)
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/arikfeldman/tritier/internal/config"
	"github.com/arikfeldman/tritier/internal/metrics"
	transportws "github.com/arikfeldman/tritier/internal/transport/websocket"
	"github.com/arikfeldman/tritier/pkg/tritier"
)

// Server wraps the stdlib HTTP server with tritierd's route wiring.
type Server struct {
	inner *http.Server
}

// New builds a Server around an Engine. The caller is responsible for
// calling ListenAndServe / Shutdown.
func New(engine *tritier.Engine, nodeID string, cfg *config.Config, reg *metrics.Registry) *Server {
	h := &Handler{engine: engine, nodeID: nodeID}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /submit", h.submit)
	mux.HandleFunc("GET /stats", h.stats)
	mux.HandleFunc("GET /exceptions", h.exceptions)
	if cfg.Stats.Enabled {
		mux.Handle("GET /stats/ws", transportws.NewHandler(engine, cfg.Stats.PushInterval()))
	}

	if reg != nil {
		mux.Handle("GET /metrics", reg.Handler())
	}

	authEnabled := cfg.Auth.Enabled
	apiKey := cfg.Auth.APIKey

	rps := float64(cfg.Producers.MaxRate)
	burst := cfg.Producers.Burst

	var handler http.Handler = mux
	handler = chain(handler,
		CORSMiddleware,
		MaxBodyMiddleware,
		LoggingMiddleware,
		AuthMiddleware(apiKey, authEnabled),
		RateLimitMiddleware(rps, burst),
	)

	return &Server{
		inner: &http.Server{
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Handler returns the composed http.Handler (useful for testing).
func (s *Server) Handler() http.Handler { return s.inner.Handler }

// ListenAndServe starts the server on the given address (e.g. ":8080").
// It returns when the server stops or encounters an error.
func (s *Server) ListenAndServe(addr string) error {
	s.inner.Addr = addr
	return s.inner.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting up to ctx's deadline for
// in-flight requests to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
