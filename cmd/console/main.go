package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/ricemarket-console/internal/app"
	"github.com/xela07ax/ricemarket-console/internal/infra"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, level, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	infra.WatchLogLevel(cfg, level, logger)

	// Контекст жизни фоновых горутин: опрос здоровья сервисов
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Сборка зависимостей
	a, err := app.New(appCtx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to init console", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close resources", zap.Error(err))
		}
	}()

	// Первая проверка сразу, дальше опрос по таймеру. До ответа сервисы в checking и запросы пропускаются
	go a.Gate.Poll(appCtx, cfg.Health.PollInterval)

	// 3. Метрики для Prometheus
	metricsSrv := &http.Server{
		Addr:              cfg.Server.MetricsAddr,
		Handler:           promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// 4. HTTP API консоли
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      a.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 5. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("console API started", zap.String("addr", srv.Addr), zap.String("metrics", metricsSrv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// Прогрев в фоне, API отвечает сразу. При ошибке статистика посчитается на первом запросе
	go func() {
		if err := a.Warm(appCtx); err != nil {
			logger.Warn("cache warm-up failed", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("console stopping")
	cancel()

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("console exited properly")
}
