// Package connectors - HTTP-клиенты к бэкендам рынка риса:
// NL-SQL, координатор агентов, RAG и прогнозирование.
//
// Каждый клиент ходит JSON поверх HTTP с Bearer-токеном, ошибки приводятся
// к таксономии domain (NetworkError, ServiceError). Повторов нет: каждый вызов
// ровно одна попытка, предохранитель и лимитер только отсекают лишний трафик.
package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// TokenSource выдает Bearer-токен на каждый вызов.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken - фиксированный токен (тесты, ручная отладка).
type StaticToken string

func (t StaticToken) Token() (string, error) { return string(t), nil }

// Options - общие настройки всех клиентов.
type Options struct {
	HTTPClient *http.Client
	Tokens     TokenSource
	Logger     *zap.Logger

	RateLimit float64 // запросов в секунду, 0 - без ограничения
	RateBurst int

	CBMaxRequests uint32
	CBInterval    time.Duration
	CBTimeout     time.Duration
	CBFailures    uint32

	// OnBreakerChange вызывается при смене состояния предохранителя (метрики).
	OnBreakerChange func(service string, from, to gobreaker.State)
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return http.DefaultClient
}

func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

// baseClient - общая часть: адрес, токен, предохранитель, разбор ошибок.
type baseClient struct {
	service string
	baseURL string
	http    *http.Client
	tokens  TokenSource
	guard   *guard
	logger  *zap.Logger
}

func newBaseClient(service, baseURL string, o Options) *baseClient {
	return &baseClient{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    o.httpClient(),
		tokens:  o.Tokens,
		guard:   newGuard(service, o),
		logger:  o.logger().Named("connector").With(zap.String("mod", service)),
	}
}

// request описывает один вызов бэкенда.
type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	// fallback - сообщение, если сервер не прислал detail
	fallback string
}

// doJSON отправляет in как JSON (nil - без тела) и раскладывает ответ в out.
func (c *baseClient) doJSON(ctx context.Context, method, path string, in, out any, fallback string) error {
	req := request{method: method, path: path, fallback: fallback}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", c.service, err)
		}
		req.body = bytes.NewReader(payload)
		req.contentType = "application/json"
	}
	return c.do(ctx, req, out)
}

func (c *baseClient) do(ctx context.Context, req request, out any) error {
	return c.guard.run(ctx, func() error {
		return c.roundTrip(ctx, req, true, out)
	})
}

// roundTrip - одна попытка без предохранителя. withAuth=false для
// health-проверок сервисов, которые принимают их без токена.
func (c *baseClient) roundTrip(ctx context.Context, req request, withAuth bool, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, req.body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.service, err)
	}
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	if withAuth && c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("%s: token: %w", c.service, err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("backend unreachable",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Error(err))
		return &domain.NetworkError{Service: c.service, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("backend call",
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.ServiceError{
			Service:    c.service,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp, req.fallback),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &domain.ServiceError{
			Service:    c.service,
			StatusCode: resp.StatusCode,
			Message:    "malformed response",
			Err:        err,
		}
	}
	return nil
}

// healthBody - ответ GET /health любого сервиса.
type healthBody struct {
	Status string `json:"status"`
}

// Health - одна попытка GET /health. Предохранитель не участвует:
// проверка должна видеть сервис, даже когда трафик к нему отсечен.
func (c *baseClient) Health(ctx context.Context, withAuth bool) (string, error) {
	var body healthBody
	err := c.roundTrip(ctx, request{method: http.MethodGet, path: "/health", fallback: "health check failed"}, withAuth, &body)
	if err != nil {
		return "", err
	}
	return body.Status, nil
}

// Service - имя сервиса клиента (nl_sql, agent, rag, forecast).
func (c *baseClient) Service() string { return c.service }
