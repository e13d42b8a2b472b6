// generator шлет в IDS бэкенд случайные записи признаков, чтобы у дашборда был живой трафик.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/avast/retry-go/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/ids-dashboard/internal/connectors/idsapi"
	"github.com/xela07ax/ids-dashboard/internal/infra"
	"github.com/xela07ax/ids-dashboard/internal/poller"
	"github.com/xela07ax/ids-dashboard/internal/transport"
)

// requestTimeout — у генератора свой таймаут: зависший запрос не должен копить горутины.
const requestTimeout = 5 * time.Second

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
	logger = logger.With(zap.String("mod", "generator"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	names, err := loadFeatureNames(cfg.Generator.FeaturesPath)
	if err != nil {
		logger.Fatal("failed to load feature names", zap.Error(err))
	}

	tc, err := transport.New(cfg.Backend.BaseURL, &http.Client{Timeout: requestTimeout}, logger, nil)
	if err != nil {
		logger.Fatal("transport", zap.Error(err))
	}
	api := idsapi.New(tc)

	if err := waitReady(ctx, api, cfg.Generator.ReadyAttempts, cfg.Generator.ReadyDelay); err != nil {
		logger.Fatal("backend is not ready", zap.Error(err))
	}
	logger.Info("sending traffic",
		zap.String("backend", tc.BaseURL()),
		zap.Int("features", len(names)),
		zap.Duration("interval", cfg.Generator.Interval))

	gen := newGenerator(names, time.Now().UnixNano())
	var sent atomic.Int64

	p := poller.New("generator", logger)
	p.Start(ctx, func(ctx context.Context) {
		i := sent.Add(1)
		out := api.Predict(ctx, gen.Payload())
		if !out.OK() {
			logger.Warn("predict failed", zap.Int64("n", i), zap.Error(out.Failure()))
			return
		}
		pr := out.Payload()
		logger.Debug("predict", zap.Int64("n", i), zap.Stringp("label", pr.Label), zap.Float64p("probability", pr.Probability))
	}, cfg.Generator.Interval)

	<-ctx.Done()
	p.Stop()
	logger.Info("generator stopped", zap.Int64("sent", sent.Load()))
}

// waitReady ждет, пока бэкенд ответит на GET /.
func waitReady(ctx context.Context, api *idsapi.Client, attempts uint, delay time.Duration) error {
	if attempts == 0 {
		attempts = 1
	}
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
			if delay > 0 {
				return delay
			}
			return retry.BackOffDelay(n, err, config)
		}),
	)
	return r.Do(func() error {
		out := api.Ping(ctx)
		if !out.OK() {
			return fmt.Errorf("ping: %w", out.Failure())
		}
		return nil
	})
}
