package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xela07ax/ids-dashboard/internal/console/handler"
	"github.com/xela07ax/ids-dashboard/internal/engine"
	"github.com/xela07ax/ids-dashboard/internal/infra/auth"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// nil: командные маршруты открыты
	authValidator auth.TokenValidator
	authScope     string
	gatherer      prometheus.Gatherer

	dashHandler    *handler.DashboardHandler // /api/v1/dashboard
	monitorHandler *handler.MonitorHandler   // /api/v1/monitor, /api/v1/stats
	replayHandler  *handler.ReplayHandler    // /api/v1/replay
	predictHandler *handler.PredictHandler   // /api/v1/predict
	datasetHandler *handler.DatasetHandler   // /api/v1/datasets
	journalHandler *handler.JournalHandler   // /api/v1/journal, nil без БД
}

type Handlers struct {
	Dashboard *handler.DashboardHandler
	Monitor   *handler.MonitorHandler
	Replay    *handler.ReplayHandler
	Predict   *handler.PredictHandler
	Dataset   *handler.DatasetHandler
	Journal   *handler.JournalHandler
}

// NewConsoleServer собирает роутер консоли. validator может быть nil.
func NewConsoleServer(
	logger *zap.Logger,
	validator auth.TokenValidator,
	scope string,
	gatherer prometheus.Gatherer,
	h Handlers,
) *ConsoleServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &ConsoleServer{
		router:         chi.NewRouter(),
		logger:         logger.Named("console-api"),
		authValidator:  validator,
		authScope:      scope,
		gatherer:       gatherer,
		dashHandler:    h.Dashboard,
		monitorHandler: h.Monitor,
		replayHandler:  h.Replay,
		predictHandler: h.Predict,
		datasetHandler: h.Dataset,
		journalHandler: h.Journal,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(engine.TracingMiddleware)

	// --- 2. Публичные роуты: чтение состояния и мониторинг ---
	r.Group(func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

		r.Get("/api/v1/dashboard", s.dashHandler.Get)
		r.Get("/api/v1/replay", s.replayHandler.Get)

		if s.journalHandler != nil {
			r.Get("/api/v1/journal", s.journalHandler.List)
			r.Get("/api/v1/journal/summary", s.journalHandler.Summary)
		}
	})

	// --- 3. Команды оператора (RS256 токен, если ключ настроен) ---
	r.Group(func(r chi.Router) {
		if s.authValidator != nil {
			r.Use(auth.NewMiddleware(s.authValidator, s.authScope, s.logger))
		}

		r.Route("/api/v1/monitor", func(r chi.Router) {
			r.Post("/start", s.monitorHandler.Start)
			r.Post("/stop", s.monitorHandler.Stop)
			r.Post("/reconcile", s.monitorHandler.Reconcile)
		})
		r.Post("/api/v1/stats/reset", s.monitorHandler.ResetStats)
		r.Post("/api/v1/replay", s.replayHandler.Start)
		r.Post("/api/v1/predict", s.predictHandler.Predict)
		r.Post("/api/v1/datasets", s.datasetHandler.Upload)
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
