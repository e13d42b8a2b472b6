package handler

import (
	"net/http"

	"github.com/xela07ax/ids-dashboard/internal/engine"
)

// DashboardView — полный снапшот для view: все, что держат контроллеры.
type DashboardView struct {
	Session engine.SessionSnapshot `json:"session"`
	Replay  engine.ReplaySnapshot  `json:"replay"`
	Predict engine.PredictSnapshot `json:"predict"`
	Dataset engine.DatasetSnapshot `json:"dataset"`
}

type DashboardHandler struct {
	session SessionService
	replay  ReplayService
	predict PredictService
	dataset DatasetService
}

func NewDashboardHandler(s SessionService, r ReplayService, p PredictService, d DatasetService) *DashboardHandler {
	return &DashboardHandler{session: s, replay: r, predict: p, dataset: d}
}

func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DashboardView{
		Session: h.session.Snapshot(),
		Replay:  h.replay.Snapshot(),
		Predict: h.predict.Snapshot(),
		Dataset: h.dataset.Snapshot(),
	})
}
