package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/xela07ax/ids-dashboard/internal/audit"
	"github.com/xela07ax/ids-dashboard/internal/connectors/idsapi"
	"github.com/xela07ax/ids-dashboard/internal/console/handler"
	"github.com/xela07ax/ids-dashboard/internal/console/server"
	"github.com/xela07ax/ids-dashboard/internal/domain"
	"github.com/xela07ax/ids-dashboard/internal/engine"
	"github.com/xela07ax/ids-dashboard/internal/infra"
	"github.com/xela07ax/ids-dashboard/internal/infra/auth"
	"github.com/xela07ax/ids-dashboard/internal/repository/postgres"
	"github.com/xela07ax/ids-dashboard/internal/transport"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("dashboard stopped with error", zap.Error(err))
	}
	logger.Info("dashboard exited properly")
}

func run(cfg *infra.Config, logger *zap.Logger) error {
	// Контекст живет до SIGINT/SIGTERM
	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instance := uuid.NewString()
	logger = logger.With(zap.String("instance", instance))

	// 1. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 2. Транспорт к IDS бэкенду: rate limit + circuit breaker поверх http.Client
	guard := transport.NewGuard(&http.Client{Timeout: cfg.Backend.Timeout}, transport.GuardSettings{
		Name:             "ids-backend",
		RateLimit:        cfg.Backend.RateLimit,
		RateBurst:        cfg.Backend.RateBurst,
		MaxRequests:      cfg.Backend.CBMaxRequests,
		Interval:         cfg.Backend.CBInterval,
		Timeout:          cfg.Backend.CBTimeout,
		FailureThreshold: cfg.Backend.CBFailureThreshold,
		OnStateChange: func(name string, open bool) {
			metrics.SetBreaker(name, open)
			logger.Warn("backend circuit breaker state changed", zap.String("name", name), zap.Bool("open", open))
		},
	})
	tc, err := transport.New(cfg.Backend.BaseURL, guard, logger, metrics)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	api := idsapi.New(tc)

	// 3. Журнал команд: Postgres, если настроен, иначе в лог
	var (
		storage       audit.Storage = audit.NewLogStorage(logger)
		journalReader *handler.JournalHandler
	)
	if cfg.Database.URL != "" {
		repo, err := postgres.NewJournalRepo(appCtx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return fmt.Errorf("journal db: %w", err)
		}
		defer repo.Close()
		if err := repo.EnsureSchema(appCtx); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}
		storage = repo
		journalReader = handler.NewJournalHandler(repo)
	}
	journal := audit.NewJournal(storage, logger, audit.Options{
		BufferSize:    cfg.Journal.BufferSize,
		BatchSize:     cfg.Journal.BatchSize,
		FlushInterval: cfg.Journal.FlushInterval,
		Instance:      instance,
		OnBufferFill:  metrics.SetJournalFill,
	})
	journal.Start()
	defer journal.Stop()

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(metrics),
		engine.WithJournal(journal),
	}

	// 4. Redis: синхронизация состояния мониторинга между инстансами (опционально)
	var signaler *engine.RedisSignaler
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		signaler = engine.NewRedisSignaler(rdb, infra.RedisChanMonitorState, instance, logger)
		opts = append(opts, engine.WithBroadcaster(signaler))
	}

	// 5. Контроллеры
	session := engine.NewSessionController(api, engine.SessionConfig{
		StatsInterval:     cfg.Monitor.StatsInterval,
		AlertsInterval:    cfg.Monitor.AlertsInterval,
		ReconcileInterval: cfg.Monitor.ReconcileInterval,
		AlertLimit:        cfg.Monitor.AlertLimit,
	}, opts...)
	defer session.Close()
	replay := engine.NewReplayController(api, session, cfg.Replay.PollInterval, opts...)
	defer replay.Close()
	predict := engine.NewPredictTester(api, session, opts...)
	dataset := engine.NewDatasetUploader(api, opts...)

	health := server.NewHealthReporter(logger)
	session.OnReconcile(health.Observe)

	// Стартовая сверка: ошибка не фатальна, бэкенд может подняться позже
	if err := session.Reconcile(appCtx); err != nil {
		logger.Warn("initial reconcile failed", zap.Error(err))
	}
	session.StartReconcileLoop()

	// 6. Авторизация командных маршрутов
	var validator auth.TokenValidator
	if len(cfg.Auth.PublicKey) > 0 {
		pub, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			return fmt.Errorf("auth public key: %w", err)
		}
		validator = auth.NewRSAValidator(pub)
	} else {
		logger.Warn("auth public key is not configured: command routes are open")
	}

	console := server.NewConsoleServer(logger, validator, cfg.Auth.Scope, reg, server.Handlers{
		Dashboard: handler.NewDashboardHandler(session, replay, predict, dataset),
		Monitor:   handler.NewMonitorHandler(session),
		Replay: handler.NewReplayHandler(replay, domain.ReplayParams{
			MaxRows: cfg.Replay.DefaultMaxRows,
			SleepMs: cfg.Replay.DefaultSleepMs,
		}, cfg.Server.MaxUploadBytes),
		Predict: handler.NewPredictHandler(predict),
		Dataset: handler.NewDatasetHandler(dataset, cfg.Server.MaxUploadBytes),
		Journal: journalReader,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      console,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var grpcSrv *grpc.Server
	if cfg.GRPC.Port > 0 {
		grpcSrv = grpc.NewServer()
		health.Register(grpcSrv)
	}

	g, ctx := errgroup.WithContext(appCtx)

	if signaler != nil {
		g.Go(func() error {
			signaler.Listen(ctx, session.Reconcile)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("dashboard API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http listen: %w", err)
		}
		return nil
	})

	if grpcSrv != nil {
		g.Go(func() error {
			lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
			if err != nil {
				return fmt.Errorf("grpc listen: %w", err)
			}
			logger.Info("grpc health started", zap.Int("port", cfg.GRPC.Port))
			return grpcSrv.Serve(lis)
		})
	}

	// Graceful Shutdown
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("dashboard stopping...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		health.Shutdown()
		if grpcSrv != nil {
			grpcSrv.GracefulStop()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
