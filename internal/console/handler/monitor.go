package handler

import (
	"context"
	"net/http"

	"github.com/xela07ax/ids-dashboard/internal/engine"
)

// SessionService Описываем, что нам нужно от SessionController
type SessionService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Reconcile(ctx context.Context) error
	ResetStats(ctx context.Context) error
	Snapshot() engine.SessionSnapshot
}

// MonitorHandler — команды сессии мониторинга. Каждая отвечает актуальным снапшотом сессии.
type MonitorHandler struct {
	service SessionService
}

func NewMonitorHandler(s SessionService) *MonitorHandler {
	return &MonitorHandler{service: s}
}

func (h *MonitorHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.service.Start)
}

func (h *MonitorHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.service.Stop)
}

func (h *MonitorHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.service.Reconcile)
}

func (h *MonitorHandler) ResetStats(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, h.service.ResetStats)
}

func (h *MonitorHandler) run(w http.ResponseWriter, r *http.Request, cmd func(context.Context) error) {
	if err := cmd(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Snapshot())
}
