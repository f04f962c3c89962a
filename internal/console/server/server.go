package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/ricemarket-console/internal/console/handler"
	"github.com/xela07ax/ricemarket-console/internal/engine"
	"github.com/xela07ax/ricemarket-console/internal/infra/auth"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// Проверка входящих токенов. nil - API открыт (auth.protect_api=false).
	authValidator auth.TokenValidator

	// Обработчики бизнес-доменов
	healthHandler    *handler.HealthHandler    // /api/v1/services
	queryHandler     *handler.QueryHandler     // /api/v1/query, /api/v1/agents
	dashHandler      *handler.DashboardHandler // /api/v1/dashboard
	forecastHandler  *handler.ForecastHandler  // /api/v1/forecast
	documentsHandler *handler.DocumentHandler  // /api/v1/documents
}

// NewConsoleServer инициализирует сервер консоли со всеми зависимостями
func NewConsoleServer(
	logger *zap.Logger,
	validator auth.TokenValidator,
	healthH *handler.HealthHandler,
	queryH *handler.QueryHandler,
	dashH *handler.DashboardHandler,
	forecastH *handler.ForecastHandler,
	documentsH *handler.DocumentHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:           chi.NewRouter(),
		logger:           logger.Named("console-api"),
		authValidator:    validator,
		healthHandler:    healthH,
		queryHandler:     queryH,
		dashHandler:      dashH,
		forecastHandler:  forecastH,
		documentsHandler: documentsH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(engine.TracingMiddleware)
	r.Use(engine.AccessLog(s.logger))
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	// --- 3. API (при protect_api требует токен) ---
	r.Route("/api/v1", func(r chi.Router) {
		if s.authValidator != nil {
			r.Use(auth.NewMiddleware(s.authValidator, s.logger))
		}

		// Статусы бэкендов
		r.Get("/services", s.healthHandler.List)
		r.Post("/services/check", s.healthHandler.Check)

		// Запросы оператора
		r.Post("/query", s.queryHandler.Submit)
		r.Get("/query/latest", s.queryHandler.Latest)

		// Агенты координатора
		r.Get("/agents", s.queryHandler.Agents)
		r.Get("/agents/status", s.queryHandler.AgentStatus)

		r.Get("/dashboard/stats", s.dashHandler.GetStats)
		r.Post("/forecast", s.forecastHandler.Forecast)
		r.Get("/forecast/models", s.forecastHandler.Models)

		// База знаний (RAG)
		r.Mount("/documents", s.documentsHandler.Routes())
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
