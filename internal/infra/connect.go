package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"go.uber.org/zap"
)

// Pinger - любое хранилище, которое умеет проверить соединение.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc - адаптер для клиентов, у которых Ping возвращает не error (go-redis).
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// WaitReady дожидается доступности хранилища при старте (Redis и Postgres
// в docker-compose поднимаются дольше консоли). К запросам в бэкенды не применяется.
func WaitReady(ctx context.Context, name string, p Pinger, attempts uint, logger *zap.Logger) error {
	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
			logger.Warn("store not ready, retrying",
				zap.String("store", name),
				zap.Uint("attempt", n+1),
				zap.Error(err))
			return retry.BackOffDelay(n, err, config)
		}),
	).Do(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return p.Ping(pingCtx)
	})
	if err != nil {
		return fmt.Errorf("%s unreachable: %w", name, err)
	}
	return nil
}
