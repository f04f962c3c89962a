package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/ricemarket-console/internal/console/service"
)

type ForecastService interface {
	Forecast(ctx context.Context, in service.ForecastInput) (*service.ForecastView, error)
	Models(ctx context.Context) (json.RawMessage, error)
}

type ForecastHandler struct {
	service ForecastService
}

func NewForecastHandler(s ForecastService) *ForecastHandler {
	return &ForecastHandler{service: s}
}

func (h *ForecastHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	var in service.ForecastInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.service.Forecast(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *ForecastHandler) Models(w http.ResponseWriter, r *http.Request) {
	models, err := h.service.Models(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}
