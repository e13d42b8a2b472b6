package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/xela07ax/ids-dashboard/internal/domain"
	"github.com/xela07ax/ids-dashboard/internal/engine"
)

const maxPredictBody = 1 << 20

type PredictService interface {
	Predict(ctx context.Context, raw string) (domain.Prediction, error)
	Snapshot() engine.PredictSnapshot
}

type PredictHandler struct {
	service PredictService
}

func NewPredictHandler(s PredictService) *PredictHandler {
	return &PredictHandler{service: s}
}

// Predict принимает тело как есть: проверку JSON делает движок.
func (h *PredictHandler) Predict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPredictBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, &engine.ValidationError{Field: "features", Reason: "input is too large"})
			return
		}
		writeError(w, err)
		return
	}

	p, err := h.service.Predict(r.Context(), string(body))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
