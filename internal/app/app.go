// Package app собирает зависимости консоли из конфигурации:
// коннекторы, HealthGate, кэш, сервисы. Используется и HTTP-консолью, и ricectl.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/ricemarket-console/internal/cache"
	"github.com/xela07ax/ricemarket-console/internal/connectors"
	"github.com/xela07ax/ricemarket-console/internal/console/handler"
	"github.com/xela07ax/ricemarket-console/internal/console/server"
	"github.com/xela07ax/ricemarket-console/internal/console/service"
	"github.com/xela07ax/ricemarket-console/internal/domain"
	"github.com/xela07ax/ricemarket-console/internal/engine"
	"github.com/xela07ax/ricemarket-console/internal/infra"
	"github.com/xela07ax/ricemarket-console/internal/infra/auth"
	"github.com/xela07ax/ricemarket-console/internal/repository/postgres"
)

// storeAttempts - сколько раз пингуем Redis/Postgres при старте.
const storeAttempts = 5

type App struct {
	Config   *infra.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *engine.Metrics

	Gate      *engine.HealthGate
	Client    *engine.QueryClient
	Queries   *service.QueryService
	Dashboard *service.DashboardService
	Forecast  *service.ForecastService
	Documents *service.DocumentService

	// Validator nil - API консоли открыт.
	Validator auth.TokenValidator

	rdb     *redis.Client
	closers []func() error
}

// New поднимает все зависимости. При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	a.Metrics = engine.NewMetrics(a.Registry)

	if cfg.Server.Demo {
		if err := a.startMock(); err != nil {
			return nil, err
		}
	}

	signer, err := auth.NewSigner(cfg.Auth.JWTSecret, cfg.Auth.PrivateKey, cfg.Auth.Subject, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("token signer: %w", err)
	}
	logger.Info("backend tokens", zap.String("alg", signer.Algorithm()), zap.String("sub", cfg.Auth.Subject))

	opts := connectors.Options{
		Tokens:          signer,
		Logger:          logger.Named("connectors"),
		RateLimit:       cfg.Backends.RateLimit,
		RateBurst:       cfg.Backends.RateBurst,
		CBMaxRequests:   cfg.Backends.CBMaxRequests,
		CBInterval:      cfg.Backends.CBInterval,
		CBTimeout:       cfg.Backends.CBTimeout,
		CBFailures:      cfg.Backends.CBFailures,
		OnBreakerChange: a.Metrics.ObserveBreaker,
	}
	nlsql := connectors.NewNLSQLClient(a.serviceURL(domain.ServiceNLSQL), opts)
	agent := connectors.NewAgentClient(a.serviceURL(domain.ServiceAgent), opts)
	rag := connectors.NewRAGClient(a.serviceURL(domain.ServiceRAG), opts)
	forecast := connectors.NewForecastClient(a.serviceURL(domain.ServiceForecast), opts)

	a.Gate = engine.NewHealthGate(logger, a.Metrics, cfg.Health.Timeout)
	for _, p := range []engine.HealthProbe{nlsql, agent, rag, forecast} {
		svc, _ := cfg.Service(p.Service())
		a.Gate.Register(p, svc.HealthAuth)
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	statsCache := cache.New[domain.DashboardStats](store,
		cache.WithLogger(logger),
		cache.WithObserver(a.Metrics))

	a.Client = engine.NewQueryClient(nlsql, agent, a.Gate, logger,
		engine.WithTimeout(cfg.Backends.RequestTimeout),
		engine.WithMetrics(a.Metrics))
	a.Queries = service.NewQueryService(a.Client, agent, logger)
	a.Dashboard = service.NewDashboardService(nlsql, statsCache, cfg.Cache.DashboardTTL, cfg.Dashboard.PriceChange, logger)
	a.Forecast = service.NewForecastService(forecast, a.Gate, logger)
	a.Documents = service.NewDocumentService(rag, a.Gate, logger)

	if cfg.Auth.ProtectAPI {
		a.Validator, err = newValidator(cfg.Auth)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Handler - chi-роутер консоли.
func (a *App) Handler() http.Handler {
	return server.NewConsoleServer(a.Logger, a.Validator,
		handler.NewHealthHandler(a.Gate),
		handler.NewQueryHandler(a.Queries),
		handler.NewDashboardHandler(a.Dashboard),
		handler.NewForecastHandler(a.Forecast),
		handler.NewDocumentHandler(a.Documents, a.Config.Documents.MaxUploadBytes, a.Logger),
	)
}

// Warm считает агрегат главной страницы заранее. При Redis-кэше
// прогрев делает только один инстанс. Ограничен cache.warm_timeout:
// зависший NL-SQL не должен держать старт.
func (a *App) Warm(ctx context.Context) error {
	if t := a.Config.Cache.WarmTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	var lock redis.Cmdable
	if a.rdb != nil {
		lock = a.rdb
	}
	return engine.Warmup(ctx, lock, a.Logger, infra.LockKey(infra.DashboardStatsKey), a.Dashboard.Warm)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) serviceURL(name string) string {
	svc, _ := a.Config.Service(name)
	return svc.URL
}

func (a *App) openStore(ctx context.Context) (cache.Store, error) {
	cfg := a.Config
	switch cfg.Cache.Backend {
	case "redis":
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, a.rdb.Close)
		ping := infra.PingFunc(func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() })
		if err := infra.WaitReady(ctx, "redis", ping, storeAttempts, a.Logger); err != nil {
			return nil, err
		}
		return cache.NewRedisStore(a.rdb), nil

	case "postgres":
		repo, err := postgres.NewCacheRepo(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, repo.Close)
		if err := infra.WaitReady(ctx, "postgres", repo, storeAttempts, a.Logger); err != nil {
			return nil, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	default:
		return cache.NewMemoryStore(), nil
	}
}

// startMock поднимает имитатор бэкендов на локальном порту и
// направляет на него все четыре сервиса.
func (a *App) startMock() error {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("demo backends: %w", err)
	}
	srv := &http.Server{
		Handler:           connectors.NewMockServer().Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("demo backends stopped", zap.Error(err))
		}
	}()
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	url := "http://" + lis.Addr().String()
	for name, svc := range a.Config.Services {
		svc.URL = url
		a.Config.Services[name] = svc
	}
	a.Logger.Warn("demo mode: backends are simulated", zap.String("url", url))
	return nil
}

func newValidator(cfg infra.AuthConfig) (auth.TokenValidator, error) {
	if len(cfg.PublicKey) > 0 {
		pub, err := auth.ParseRSAPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("public key: %w", err)
		}
		return auth.NewRSAValidator(pub), nil
	}
	return auth.NewHMACValidator(cfg.JWTSecret), nil
}
