package handler

import (
	"context"
	"net/http"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// HealthGate - статусы бэкендов (engine.HealthGate).
type HealthGate interface {
	Snapshot() []domain.ServiceHealth
	CheckAll(ctx context.Context) []domain.ServiceHealth
}

type HealthHandler struct {
	gate HealthGate
}

func NewHealthHandler(g HealthGate) *HealthHandler {
	return &HealthHandler{gate: g}
}

// List - последние известные статусы без обращения к сервисам.
func (h *HealthHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"services": h.gate.Snapshot()})
}

// Check опрашивает все сервисы прямо сейчас.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"services": h.gate.CheckAll(r.Context())})
}
