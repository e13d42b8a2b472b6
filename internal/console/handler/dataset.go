package handler

import (
	"context"
	"net/http"

	"github.com/xela07ax/ids-dashboard/internal/domain"
	"github.com/xela07ax/ids-dashboard/internal/engine"
	"github.com/xela07ax/ids-dashboard/internal/transport"
)

type DatasetService interface {
	Upload(ctx context.Context, mode domain.DatasetMode, file *transport.FileUpload) (domain.DatasetInfo, error)
	Snapshot() engine.DatasetSnapshot
}

type DatasetHandler struct {
	service   DatasetService
	maxUpload int64
}

func NewDatasetHandler(s DatasetService, maxUpload int64) *DatasetHandler {
	return &DatasetHandler{service: s, maxUpload: maxUpload}
}

// Upload — POST /api/v1/datasets?mode=train|test, multipart с полем file.
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	mode := domain.DatasetMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = domain.ModeTrain // как у бэкенда
	}

	file, closeFile, err := formFile(w, r, h.maxUpload)
	if err != nil {
		writeError(w, err)
		return
	}
	defer closeFile()

	info, err := h.service.Upload(r.Context(), mode, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
