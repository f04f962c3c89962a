package handler

import (
	"context"
	"net/http"

	"github.com/xela07ax/ricemarket-console/internal/console/service"
)

// DashboardService Описываем, что нам нужно от сервиса
type DashboardService interface {
	Stats(ctx context.Context) (*service.StatsView, error)
}

type DashboardHandler struct {
	service DashboardService
}

func NewDashboardHandler(s DashboardService) *DashboardHandler {
	return &DashboardHandler{service: s}
}

func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
