package handler

import (
	"context"
	"net/http"

	"github.com/xela07ax/ricemarket-console/internal/console/service"
	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// QueryService описываем, что нам нужно от сервиса запросов
type QueryService interface {
	Submit(ctx context.Context, input string, mode domain.QueryMode, qctx map[string]any) (*service.QueryView, error)
	Latest() service.LatestView
	Agents(ctx context.Context) ([]domain.AgentInfo, error)
	AgentStatus(ctx context.Context) (map[string]any, error)
}

type QueryHandler struct {
	service QueryService
}

func NewQueryHandler(s QueryService) *QueryHandler {
	return &QueryHandler{service: s}
}

type submitRequest struct {
	Query string `json:"query"`
	// Mode: direct | orchestrated. UseAgent - короткая форма переключателя на странице.
	Mode     domain.QueryMode `json:"mode"`
	UseAgent bool             `json:"useAgent"`
	Context  map[string]any   `json:"context"`
}

func (h *QueryHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = domain.ModeDirect
		if req.UseAgent {
			mode = domain.ModeOrchestrated
		}
	}

	view, err := h.service.Submit(r.Context(), req.Query, mode, req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *QueryHandler) Latest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Latest())
}

func (h *QueryHandler) Agents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.service.Agents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents, "count": len(agents)})
}

func (h *QueryHandler) AgentStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.AgentStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
