package connectors

import (
	"context"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/xela07ax/ricemarket-console/internal/domain"
)

// guard - лимитер и предохранитель одного бэкенда. Повторов не делает.
type guard struct {
	service string
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func newGuard(service string, o Options) *guard {
	failures := o.CBFailures
	if failures == 0 {
		failures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: o.CBMaxRequests,
		Interval:    o.CBInterval,
		Timeout:     o.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if o.OnBreakerChange != nil {
				o.OnBreakerChange(name, from, to)
			}
		},
	})

	limit := rate.Inf
	if o.RateLimit > 0 {
		limit = rate.Limit(o.RateLimit)
	}
	burst := o.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &guard{
		service: service,
		cb:      cb,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (g *guard) run(ctx context.Context, call func() error) error {
	// 1. Rate Limiter
	if err := g.limiter.Wait(ctx); err != nil {
		return &domain.NetworkError{Service: g.service, Err: err}
	}

	// 2. Circuit Breaker
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, call()
	})
	if isBreakerReject(err) {
		return &domain.NetworkError{Service: g.service, Err: err}
	}
	return err
}

// State - текущее состояние предохранителя.
func (g *guard) State() gobreaker.State {
	return g.cb.State()
}
