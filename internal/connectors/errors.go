package connectors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// maxErrorBody - сколько тела ошибки читаем в поисках detail
const maxErrorBody = 64 << 10

// errorBody - тело ошибки бэкендов (FastAPI кладет текст в detail).
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// errorMessage достает detail из тела ответа. detail бывает строкой
// или списком ошибок валидации, второе отдаем как сырой JSON.
func errorMessage(resp *http.Response, fallback string) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && len(body.Detail) > 0 && string(body.Detail) != "null" {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			if s != "" {
				return s
			}
		} else {
			return string(body.Detail)
		}
	}

	if fallback != "" {
		return fallback
	}
	return fmt.Sprintf("API Error: %d", resp.StatusCode)
}

// breakerSuccess решает, считается ли ошибка отказом сервиса для предохранителя.
// Ответы 4xx - ошибка запроса, а не сервиса, их не считаем.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var sErr *domain.ServiceError
	if errors.As(err, &sErr) {
		return sErr.StatusCode > 0 && sErr.StatusCode < 500
	}
	return false
}

// isBreakerReject - вызов не состоялся, предохранитель открыт или полуоткрыт и занят.
func isBreakerReject(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
