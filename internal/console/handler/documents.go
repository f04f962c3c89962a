package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// maxUploadMemory - сколько multipart-формы держим в памяти, остальное уходит во временные файлы.
const maxUploadMemory = 32 << 20

type DocumentService interface {
	Search(ctx context.Context, query string, maxResults int) (*domain.SearchResult, error)
	Upload(ctx context.Context, name string, content io.Reader) (*domain.UploadResult, error)
	List(ctx context.Context) (*domain.DocumentList, error)
	Delete(ctx context.Context, name string) (map[string]any, error)
	Purge(ctx context.Context) (map[string]any, error)
	Stats(ctx context.Context) (map[string]any, error)
}

type DocumentHandler struct {
	service DocumentService
	// maxUpload - предел тела загрузки в байтах, 0 - без предела
	maxUpload int64
	logger    *zap.Logger
}

func NewDocumentHandler(s DocumentService, maxUpload int64, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{service: s, maxUpload: maxUpload, logger: logger.Named("documents-api")}
}

// Routes Маршруты для Chi
func (h *DocumentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Upload)
	r.Delete("/", h.Purge)
	r.Post("/search", h.Search)
	r.Get("/stats", h.Stats)
	r.Delete("/{name}", h.Delete)
	return r
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"maxResults"`
}

func (h *DocumentHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.service.Search(r.Context(), req.Query, req.MaxResults)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// uploadOutcome - итог по одному файлу: неудача одного не отменяет остальные.
type uploadOutcome struct {
	Name          string `json:"name"`
	Success       bool   `json:"success"`
	ChunksIndexed int    `json:"chunksIndexed"`
	Error         string `json:"error,omitempty"`
}

// Upload принимает один или несколько файлов в поле "file".
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
				Kind:  "validation",
			})
			return
		}
		writeError(w, &domain.ValidationError{Field: "file", Message: "multipart form expected"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, &domain.ValidationError{Field: "file", Message: "no files selected"})
		return
	}

	results := make([]uploadOutcome, 0, len(files))
	for _, fh := range files {
		out := uploadOutcome{Name: fh.Filename}
		f, err := fh.Open()
		if err != nil {
			out.Error = err.Error()
			results = append(results, out)
			continue
		}
		res, err := h.service.Upload(r.Context(), fh.Filename, f)
		f.Close()
		if err != nil {
			h.logger.Warn("upload failed", zap.String("name", fh.Filename), zap.Error(err))
			out.Error = err.Error()
		} else {
			out.Success = true
			out.ChunksIndexed = res.ChunksIndexed
		}
		results = append(results, out)
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	resp, err := h.service.Delete(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DocumentHandler) Purge(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Purge(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DocumentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
