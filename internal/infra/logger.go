package infra

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger собирает zap логгер по LoggerConfig.
// Уровень хранится в AtomicLevel, чтобы его можно было менять без перезапуска.
func NewLogger(cfg LoggerConfig) (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, level, fmt.Errorf("logger: bad level %q: %w", cfg.Level, err)
	}

	var zc zap.Config
	switch cfg.Format {
	case "console":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json", "":
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, level, fmt.Errorf("logger: unknown format %q", cfg.Format)
	}
	zc.Level = level

	logger, err := zc.Build()
	if err != nil {
		return nil, level, fmt.Errorf("logger: build: %w", err)
	}
	return logger, level, nil
}

// WatchLogLevel применяет logger.level из файла конфигурации на лету.
func WatchLogLevel(cfg *Config, level zap.AtomicLevel, logger *zap.Logger) {
	watching := cfg.Watch(func(e fsnotify.Event, next *Config, err error) {
		if err != nil {
			logger.Warn("config reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		applyLevel(level, next.Logger.Level, logger)
	})
	if !watching {
		logger.Debug("no config file, live reload disabled")
	}
}

func applyLevel(level zap.AtomicLevel, text string, logger *zap.Logger) {
	var next zapcore.Level
	if err := next.UnmarshalText([]byte(text)); err != nil {
		logger.Warn("ignoring bad log level", zap.String("level", text), zap.Error(err))
		return
	}
	if next == level.Level() {
		return
	}
	logger.Info("log level changed", zap.Stringer("from", level.Level()), zap.Stringer("to", next))
	level.SetLevel(next)
}
