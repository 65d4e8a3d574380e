package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/arikfeldman/tritier/pkg/tritier"
)

// Handler groups all HTTP request handlers around an Engine.
type Handler struct {
	engine *tritier.Engine
	nodeID string
}

var startTime = time.Now()

// ─── DTOs ─────────────────────────────────────────────────────────────────────

type healthResp struct {
	Status   string `json:"status"`
	NodeID   string `json:"node_id"`
	Running  bool   `json:"running"`
	UptimeMs int64  `json:"uptime_ms"`
	Version  string `json:"version"`
}

type submitReq struct {
	Deadline time.Time `json:"deadline"`
	Payload  string    `json:"payload"`
}

type submitResp struct {
	Accepted bool `json:"accepted"`
}

type tierStatsResp struct {
	Queued   int64 `json:"queued"`
	Executed int64 `json:"executed"`
}

type statsResp struct {
	Fast  tierStatsResp `json:"fast"`
	Slow  tierStatsResp `json:"slow"`
	Snail tierStatsResp `json:"snail"`
}

type exceptionResp struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Tier       string    `json:"tier"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResp{
		Status:   "ok",
		NodeID:   h.nodeID,
		Running:  h.engine.IsRunning(),
		UptimeMs: time.Since(startTime).Milliseconds(),
		Version:  "1.0.0",
	})
}

// logItem is the WorkItem submitted through the HTTP transport: executing it
// is, for this demo server, logging the payload that was due.
type logItem struct {
	deadline time.Time
	payload  string
}

func (l logItem) Deadline() time.Time { return l.deadline }

func (l logItem) Execute() error {
	slog.Info("item executed", "payload", l.payload)
	return nil
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Deadline.IsZero() {
		writeError(w, http.StatusBadRequest, errors.New("deadline is required"))
		return
	}

	if err := h.engine.Submit(logItem{deadline: req.Deadline, payload: req.Payload}); err != nil {
		if errors.Is(err, tritier.ErrNotRunning) {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusAccepted, submitResp{Accepted: true})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	s := h.engine.Statistics()
	writeJSON(w, http.StatusOK, statsResp{
		Fast:  tierStatsResp{Queued: s.Fast.Queued, Executed: s.Fast.Executed},
		Slow:  tierStatsResp{Queued: s.Slow.Queued, Executed: s.Slow.Executed},
		Snail: tierStatsResp{Queued: s.Snail.Queued, Executed: s.Snail.Executed},
	})
}

func (h *Handler) exceptions(w http.ResponseWriter, r *http.Request) {
	records := h.engine.DrainExceptions()
	resp := make([]exceptionResp, 0, len(records))
	for _, rec := range records {
		msg := ""
		if rec.Err != nil {
			msg = rec.Err.Error()
		}
		resp = append(resp, exceptionResp{
			ID:         rec.ID,
			Kind:       string(rec.Kind),
			Tier:       rec.Tier,
			Message:    msg,
			OccurredAt: rec.OccurredAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── JSON helpers ─────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json: " + err.Error()})
		return false
	}
	return true
}
