package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xela07ax/ids-dashboard/internal/engine"
	"github.com/xela07ax/ids-dashboard/internal/transport"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	// BackendStatus — HTTP статус бэкенда, если он был
	BackendStatus int `json:"backend_status,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError переводит ошибки движка в HTTP статусы консоли.
func writeError(w http.ResponseWriter, err error) {
	var (
		verr *engine.ValidationError
		ferr *transport.Failure
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Kind: "validation"})
	case errors.Is(err, engine.ErrNotMonitoring):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: "precondition"})
	case errors.Is(err, engine.ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error(), Kind: "shutdown"})
	case errors.As(err, &ferr):
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:         ferr.Message,
			Kind:          ferr.Kind.String(),
			BackendStatus: ferr.StatusCode,
		})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
