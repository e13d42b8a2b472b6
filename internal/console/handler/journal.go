package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/xela07ax/ids-dashboard/internal/audit"
	"github.com/xela07ax/ids-dashboard/internal/engine"
)

// JournalReader — чтение журнала команд. Есть только при настроенной БД.
type JournalReader interface {
	Recent(ctx context.Context, f audit.Filter) ([]audit.Event, error)
	Summary(ctx context.Context, window time.Duration) (audit.Summary, error)
}

type JournalHandler struct {
	reader JournalReader
}

func NewJournalHandler(r JournalReader) *JournalHandler {
	return &JournalHandler{reader: r}
}

// List возвращает события журнала с фильтрацией
// GET /api/v1/journal?action=...&status=...&limit=...
func (h *JournalHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := intField(r, "limit", audit.DefaultFilterLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	f := audit.Filter{
		Action: r.URL.Query().Get("action"),
		Status: strings.ToUpper(r.URL.Query().Get("status")),
		Limit:  limit,
	}

	events, err := h.reader.Recent(r.Context(), f.Normalize())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// Summary — GET /api/v1/journal/summary?window=1h
func (h *JournalHandler) Summary(w http.ResponseWriter, r *http.Request) {
	window := time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, &engine.ValidationError{Field: "window", Reason: "must be a positive duration"})
			return
		}
		window = d
	}

	s, err := h.reader.Summary(r.Context(), window)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
