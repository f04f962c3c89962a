package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит ошибку домена в HTTP-статус.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), errorBody{Error: err.Error(), Kind: domain.ErrorKind(err)})
}

func StatusFor(err error) int {
	var (
		vErr *domain.ValidationError
		nErr *domain.NetworkError
		sErr *domain.ServiceError
	)
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.As(err, &nErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &sErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody - пустое тело не ошибка, поля останутся нулевыми.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &domain.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}
