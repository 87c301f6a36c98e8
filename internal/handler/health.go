package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/thenfour/CafeMarcheDB-sub005/internal/model"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and database reachability
type HealthHandler struct {
	db      Pinger
	timeout time.Duration
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db, timeout: 2 * time.Second}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		WriteError(w, model.NewServiceUnavailableError("database unreachable"))
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
