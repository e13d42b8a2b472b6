package engine

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSignaler рассылает переходы мониторинга между инстансами дашборда.
// Получатель не доверяет флагу из сообщения: он идет на бэкенд и делает Reconcile.
type RedisSignaler struct {
	rdb      *redis.Client
	channel  string
	instance string
	logger   *zap.Logger
}

func NewRedisSignaler(rdb *redis.Client, channel, instance string, logger *zap.Logger) *RedisSignaler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSignaler{
		rdb:      rdb,
		channel:  channel,
		instance: instance,
		logger:   logger.With(zap.String("mod", "signal"), zap.String("instance", instance)),
	}
}

func (s *RedisSignaler) Publish(ctx context.Context, running bool) error {
	payload := fmt.Sprintf("%s:%t", s.instance, running)
	if err := s.rdb.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish monitor signal: %w", err)
	}
	return nil
}

// Listen блокируется до отмены ctx. resync вызывается после каждого (пере)подключения
// и на каждый сигнал чужого инстанса.
func (s *RedisSignaler) Listen(ctx context.Context, resync func(ctx context.Context) error) {
	s.logger.Info("monitor signal listener started", zap.String("chan", s.channel))
	ListenStateResilient(ctx, s.rdb, s.logger, s.channel,
		func() error { return resync(ctx) },
		func(id string, running bool) {
			if id == s.instance {
				return
			}
			s.logger.Info("peer changed monitoring state",
				zap.String("peer", id), zap.Bool("running", running))
			if err := resync(ctx); err != nil {
				s.logger.Warn("resync after peer signal failed", zap.Error(err))
			}
		},
	)
	s.logger.Info("monitor signal listener stopped")
}
