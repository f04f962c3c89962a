package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/ricemarket-console/internal/connectors"
	"github.com/xela07ax/ricemarket-console/internal/decoder"
	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// SQLBackend - прямой путь: вопрос в NL-SQL.
type SQLBackend interface {
	Query(ctx context.Context, question string) (*connectors.NLSQLResponse, error)
}

// AgentBackend - путь через координатор агентов.
type AgentBackend interface {
	Execute(ctx context.Context, query string, qctx map[string]any) (*connectors.ExecuteResponse, error)
}

// Gate - проверка доступности сервиса перед отправкой.
type Gate interface {
	Allow(service string) error
}

// QueryClient отправляет запрос оператора в одном из двух режимов
// и приводит ответ к domain.QueryResult.
// Безопасен для параллельных вызовов: отправки друг друга не ждут.
type QueryClient struct {
	sql     SQLBackend
	agent   AgentBackend
	gate    Gate
	board   *ResultBoard
	metrics *Metrics
	logger  *zap.Logger

	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

type ClientOption func(*QueryClient)

// WithTimeout ограничивает время одного вызова. 0 - ждать сколько угодно.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *QueryClient) { c.timeout = d }
}

func WithBoard(b *ResultBoard) ClientOption {
	return func(c *QueryClient) { c.board = b }
}

func WithMetrics(m *Metrics) ClientOption {
	return func(c *QueryClient) { c.metrics = m }
}

func NewQueryClient(sql SQLBackend, agent AgentBackend, gate Gate, logger *zap.Logger, opts ...ClientOption) *QueryClient {
	c := &QueryClient{
		sql:    sql,
		agent:  agent,
		gate:   gate,
		board:  NewResultBoard(),
		logger: logger.With(zap.String("mod", "query")),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c
}

// Board - состояние экрана, которое обновляет каждый Submit.
func (c *QueryClient) Board() *ResultBoard { return c.board }

// Submit отправляет запрос. Пустой ввод отклоняется без сетевого вызова.
func (c *QueryClient) Submit(ctx context.Context, input string, mode domain.QueryMode, qctx map[string]any) (*domain.QueryResult, error) {
	service, err := c.admit(input, mode)
	if err != nil {
		c.metrics.ObserveError(err)
		c.metrics.ObserveQuery(mode, domain.ErrorKind(err), 0)
		c.board.reject(err)
		return nil, err
	}

	id := c.newID()
	logger := c.logger.With(
		zap.String("query_id", id),
		zap.String("mode", string(mode)),
		zap.String("trace_id", TraceID(ctx)))

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.board.begin()
	start := time.Now()

	var res *domain.QueryResult
	switch mode {
	case domain.ModeDirect:
		res, err = c.direct(ctx, input)
	case domain.ModeOrchestrated:
		res, err = c.orchestrated(ctx, input, qctx)
	}
	took := time.Since(start)

	if err != nil {
		logger.Warn("query failed", zap.String("service", service), zap.Duration("took", took), zap.Error(err))
		c.metrics.ObserveError(err)
		c.metrics.ObserveQuery(mode, domain.ErrorKind(err), took)
		c.board.complete(nil, err)
		return nil, err
	}

	res.ID = id
	res.Mode = mode
	res.Query = input
	res.CompletedAt = c.now()

	status := "ok"
	if w := res.Warning(); w != "" {
		status = "warning"
		logger.Warn("orchestrator reported partial failure", zap.Strings("agents", res.Orchestrated.AgentsUsed))
	}
	logger.Info("query completed", zap.Duration("took", took), zap.String("status", status))
	c.metrics.ObserveQuery(mode, status, took)
	c.board.complete(res, nil)
	return res, nil
}

// admit - проверки до сети: ввод, режим, доступность сервиса.
func (c *QueryClient) admit(input string, mode domain.QueryMode) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", &domain.ValidationError{Field: "query", Message: "Please enter a query"}
	}

	var service string
	switch mode {
	case domain.ModeDirect:
		service = domain.ServiceNLSQL
	case domain.ModeOrchestrated:
		service = domain.ServiceAgent
	default:
		return "", &domain.ValidationError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", mode)}
	}

	if c.gate != nil {
		if err := c.gate.Allow(service); err != nil {
			return service, err
		}
	}
	return service, nil
}

func (c *QueryClient) direct(ctx context.Context, input string) (*domain.QueryResult, error) {
	resp, err := c.sql.Query(ctx, input)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		// подробности сервера оператору не показываем
		return nil, &domain.ServiceError{
			Service: domain.ServiceNLSQL,
			Message: domain.ErrQueryFailed.Error(),
			Err:     domain.ErrQueryFailed,
		}
	}

	rows := resp.Results
	if rows == nil {
		rows = []domain.Row{}
	}
	return &domain.QueryResult{Direct: &domain.DirectResult{
		SQLQuery: resp.SQLQuery,
		Rows:     rows,
		RowCount: resp.RowCount,
	}}, nil
}

func (c *QueryClient) orchestrated(ctx context.Context, input string, qctx map[string]any) (*domain.QueryResult, error) {
	resp, err := c.agent.Execute(ctx, input, qctx)
	if err != nil {
		return nil, err
	}

	// success=false не ошибка: частичный ответ агентов все равно разбираем
	return &domain.QueryResult{Orchestrated: &domain.OrchestratedResult{
		Decoded:    decoder.Decode(resp.Response),
		AgentsUsed: resp.AgentsUsed,
		Success:    resp.Success,
		Response:   resp.Response,
	}}, nil
}

// IsQueryFailed - NL-SQL ответил success=false.
func IsQueryFailed(err error) bool {
	return errors.Is(err, domain.ErrQueryFailed)
}
