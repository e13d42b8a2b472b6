package server

import (
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// BackendService — имя сервиса в grpc.health.v1, отражающего доступность IDS бэкенда.
const BackendService = "ids.backend"

// HealthReporter публикует итог последней сверки с бэкендом через стандартный gRPC health.
type HealthReporter struct {
	srv    *health.Server
	logger *zap.Logger

	mu      sync.Mutex
	serving *bool
}

func NewHealthReporter(logger *zap.Logger) *HealthReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HealthReporter{srv: health.NewServer(), logger: logger.Named("health")}
	// до первой сверки состояние бэкенда неизвестно
	h.srv.SetServingStatus(BackendService, healthpb.HealthCheckResponse_UNKNOWN)
	return h
}

// Observe подходит для SessionController.OnReconcile.
func (h *HealthReporter) Observe(err error) {
	ok := err == nil
	h.mu.Lock()
	changed := h.serving == nil || *h.serving != ok
	h.serving = &ok
	h.mu.Unlock()

	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus(BackendService, status)
	if changed {
		h.logger.Info("backend health changed", zap.String("status", status.String()), zap.Error(err))
	}
}

func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Shutdown переводит все сервисы в NOT_SERVING перед остановкой.
func (h *HealthReporter) Shutdown() {
	h.srv.Shutdown()
}

func (h *HealthReporter) Server() *health.Server { return h.srv }
