package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/xela07ax/ids-dashboard/internal/domain"
	"github.com/xela07ax/ids-dashboard/internal/engine"
	"github.com/xela07ax/ids-dashboard/internal/transport"
)

type ReplayService interface {
	StartReplay(ctx context.Context, file *transport.FileUpload, params domain.ReplayParams) (domain.ReplayStart, error)
	Snapshot() engine.ReplaySnapshot
}

type ReplayHandler struct {
	service   ReplayService
	defaults  domain.ReplayParams
	maxUpload int64
}

func NewReplayHandler(s ReplayService, defaults domain.ReplayParams, maxUpload int64) *ReplayHandler {
	return &ReplayHandler{service: s, defaults: defaults, maxUpload: maxUpload}
}

func (h *ReplayHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Snapshot())
}

// Start принимает multipart: file, max_rows, sleep_ms (пустые поля берутся из конфига).
func (h *ReplayHandler) Start(w http.ResponseWriter, r *http.Request) {
	file, closeFile, err := formFile(w, r, h.maxUpload)
	if err != nil {
		writeError(w, err)
		return
	}
	defer closeFile()

	params := h.defaults
	if params.MaxRows, err = intField(r, "max_rows", params.MaxRows); err != nil {
		writeError(w, err)
		return
	}
	if params.SleepMs, err = intField(r, "sleep_ms", params.SleepMs); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.service.StartReplay(r.Context(), file, params); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.service.Snapshot())
}

// formFile достает поле "file". Отсутствие файла не ошибка здесь: движок сам отклонит nil.
func formFile(w http.ResponseWriter, r *http.Request, maxUpload int64) (*transport.FileUpload, func(), error) {
	noop := func() {}
	if maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, noop, &engine.ValidationError{Field: "file", Reason: "file is too large"}
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, &engine.ValidationError{Field: "file", Reason: "invalid multipart form: " + err.Error()}
		}
		return nil, noop, nil
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, &engine.ValidationError{Field: "file", Reason: err.Error()}
	}
	return &transport.FileUpload{Name: hdr.Filename, Content: f}, closer(f), nil
}

func closer(f multipart.File) func() {
	return func() { f.Close() }
}

func intField(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &engine.ValidationError{Field: name, Reason: "must be an integer"}
	}
	return n, nil
}
