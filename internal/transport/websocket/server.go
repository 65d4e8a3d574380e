// Package websocket pushes live tritier.Statistics snapshots to connected
// observers.
//
// Clients open a WebSocket connection to:
//
//	GET /stats/ws
//
// The server pushes a fresh statistics frame on every tick, closing the
// connection once the request's context is cancelled. This is a one-way
// push: clients send no control frames, unlike the bidirectional ack/nack
// delivery protocol this is adapted from.
//
// Server → client message frame:
//
//	{"fast":{"queued":0,"executed":0},"slow":{...},"snail":{...}}
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/arikfeldman/tritier/pkg/tritier"
)

// urlParse is an alias so the upgrader closure can call it without shadowing
// the url package import.
var urlParse = url.Parse

var upgrader = gorillaws.Upgrader{
	// CheckOrigin rejects cross-origin WebSocket upgrade requests.
	// A request is considered same-origin when its Origin header matches the
	// Host header (scheme-agnostic).  Requests without an Origin header
	// (e.g. from native clients/curl) are always allowed.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser client, allow
		}
		parsed, err := parseHost(origin)
		if err != nil {
			return false
		}
		return parsed == r.Host
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// parseHost returns the host:port (or just host) portion of a URL string.
func parseHost(rawURL string) (string, error) {
	u, err := urlParse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid origin %q", rawURL)
	}
	return u.Host, nil
}

// Handler serves the live-statistics WebSocket endpoint.
type Handler struct {
	engine   *tritier.Engine
	interval time.Duration
}

// NewHandler builds a Handler that pushes engine.Statistics() once per
// interval. An interval <= 0 falls back to one second.
func NewHandler(engine *tritier.Engine, interval time.Duration) *Handler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Handler{engine: engine, interval: interval}
}

type tierFrame struct {
	Queued   int64 `json:"queued"`
	Executed int64 `json:"executed"`
}

type statsFrame struct {
	Fast  tierFrame `json:"fast"`
	Slow  tierFrame `json:"slow"`
	Snail tierFrame `json:"snail"`
}

func toFrame(s tritier.Statistics) statsFrame {
	return statsFrame{
		Fast:  tierFrame{Queued: s.Fast.Queued, Executed: s.Fast.Executed},
		Slow:  tierFrame{Queued: s.Slow.Queued, Executed: s.Slow.Executed},
		Snail: tierFrame{Queued: s.Snail.Queued, Executed: s.Snail.Executed},
	}
}

// ServeHTTP upgrades the connection and starts the push loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			frame := toFrame(h.engine.Statistics())
			data, err := json.Marshal(frame)
			if err != nil {
				slog.Warn("ws stats marshal failed", "err", err)
				continue
			}
			if writeErr := conn.WriteMessage(gorillaws.TextMessage, data); writeErr != nil {
				return
			}
		}
	}
}
