package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// HealthProbe - то, что умеет спросить у сервиса /health.
// Реализуется клиентами из connectors.
type HealthProbe interface {
	Service() string
	Health(ctx context.Context, withAuth bool) (string, error)
}

type probeEntry struct {
	probe    HealthProbe
	withAuth bool
}

// HealthGate хранит трехзначный статус каждого сервиса и решает,
// можно ли отправлять запрос. До первой проверки статус "checking".
type HealthGate struct {
	mu     sync.RWMutex
	states map[string]domain.ServiceHealth
	probes map[string]probeEntry
	order  []string

	timeout time.Duration
	now     func() time.Time
	metrics *Metrics
	logger  *zap.Logger
}

func NewHealthGate(logger *zap.Logger, metrics *Metrics, timeout time.Duration) *HealthGate {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &HealthGate{
		states:  make(map[string]domain.ServiceHealth),
		probes:  make(map[string]probeEntry),
		timeout: timeout,
		now:     time.Now,
		metrics: metrics,
		logger:  logger.With(zap.String("mod", "health")),
	}
}

// Register добавляет сервис. withAuth - прикладывать ли токен к /health.
func (g *HealthGate) Register(p HealthProbe, withAuth bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := p.Service()
	if _, ok := g.probes[name]; !ok {
		g.order = append(g.order, name)
	}
	g.probes[name] = probeEntry{probe: p, withAuth: withAuth}
	g.states[name] = domain.ServiceHealth{Name: name, State: domain.HealthChecking}
	g.metrics.ObserveHealth(name, domain.HealthChecking)
}

// Check - одна попытка без повторов. Ошибок наружу не отдает:
// любой сбой, не-2xx или статус не "healthy" означают offline.
func (g *HealthGate) Check(ctx context.Context, service string) domain.HealthState {
	g.mu.RLock()
	entry, ok := g.probes[service]
	g.mu.RUnlock()
	if !ok {
		g.logger.Warn("health check for unknown service", zap.String("service", service))
		return domain.HealthOffline
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	state := domain.HealthOnline
	status, err := entry.probe.Health(ctx, entry.withAuth)
	switch {
	case err != nil:
		state = domain.HealthOffline
		g.logger.Debug("health check failed", zap.String("service", service), zap.Error(err))
	case status != "healthy":
		state = domain.HealthOffline
		g.logger.Debug("service reports unhealthy", zap.String("service", service), zap.String("status", status))
	}

	g.set(service, state)
	return state
}

// CheckAll опрашивает все сервисы параллельно.
func (g *HealthGate) CheckAll(ctx context.Context) []domain.ServiceHealth {
	var eg errgroup.Group
	for _, name := range g.Services() {
		eg.Go(func() error {
			g.Check(ctx, name)
			return nil
		})
	}
	_ = eg.Wait()
	return g.Snapshot()
}

// Poll проверяет сразу и затем каждые interval, пока жив ctx.
// interval <= 0 - один проход.
func (g *HealthGate) Poll(ctx context.Context, interval time.Duration) {
	g.CheckAll(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.CheckAll(ctx)
		}
	}
}

func (g *HealthGate) Status(service string) domain.HealthState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if s, ok := g.states[service]; ok {
		return s.State
	}
	return domain.HealthOffline
}

// Allow запрещает отправку только при offline: пока идет проверка, кнопка активна.
func (g *HealthGate) Allow(service string) error {
	if g.Status(service) == domain.HealthOffline {
		return &domain.ValidationError{
			Field:   "service",
			Message: fmt.Sprintf("%s service is offline", service),
		}
	}
	return nil
}

func (g *HealthGate) Services() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// Snapshot - статусы в порядке регистрации.
func (g *HealthGate) Snapshot() []domain.ServiceHealth {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]domain.ServiceHealth, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.states[name])
	}
	return out
}

func (g *HealthGate) set(service string, state domain.HealthState) {
	g.mu.Lock()
	prev := g.states[service]
	g.states[service] = domain.ServiceHealth{Name: service, State: state, CheckedAt: g.now()}
	g.mu.Unlock()

	g.metrics.ObserveHealth(service, state)
	if prev.State != state {
		g.logger.Info("service state changed",
			zap.String("service", service),
			zap.String("from", string(prev.State)),
			zap.String("to", string(state)))
	}
}
