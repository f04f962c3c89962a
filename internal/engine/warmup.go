package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Warmup - прогрев кэша агрегатов при старте.
// Если есть Redis, берем распределенную блокировку (SetNX), чтобы при
// нескольких инстансах консоли агрегат посчитал только один. rdb может быть nil.
func Warmup(
	ctx context.Context,
	rdb redis.Cmdable,
	logger *zap.Logger,
	lockKey string,
	fill func(ctx context.Context) error,
) error {
	if rdb != nil {
		ok, err := rdb.SetNX(ctx, lockKey, "processing", 30*time.Second).Result()
		if err != nil {
			logger.Warn("could not take warm-up lock, warming anyway", zap.String("key", lockKey), zap.Error(err))
		} else if !ok {
			logger.Debug("another instance is warming the cache", zap.String("key", lockKey))
			return nil
		}
	}

	start := time.Now()
	if err := fill(ctx); err != nil {
		return err
	}
	logger.Info("cache warmed", zap.String("key", lockKey), zap.Duration("took", time.Since(start)))
	return nil
}
