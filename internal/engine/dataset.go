package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/ids-dashboard/internal/domain"
	"github.com/xela07ax/ids-dashboard/internal/transport"
)

type DatasetSnapshot struct {
	Info   *domain.DatasetInfo `json:"info,omitempty"`
	Busy   bool                `json:"busy"`
	Notice *domain.Notice      `json:"notice,omitempty"`
}

// DatasetUploader — информационная загрузка датасета (train/test). Опроса нет.
type DatasetUploader struct {
	api DatasetAPI
	deps

	mu     sync.RWMutex
	info   *domain.DatasetInfo
	busy   bool
	notice *domain.Notice
}

func NewDatasetUploader(api DatasetAPI, opts ...Option) *DatasetUploader {
	d := buildDeps(opts)
	d.logger = d.logger.With(zap.String("mod", "dataset"))
	return &DatasetUploader{api: api, deps: d}
}

func (u *DatasetUploader) Upload(ctx context.Context, mode domain.DatasetMode, file *transport.FileUpload) (info domain.DatasetInfo, err error) {
	started := time.Now()
	defer func() {
		u.record(ctx, "dataset.upload", string(mode), started, map[string]any{"rows": info.Rows, "cols": info.Cols}, err)
	}()

	if !mode.Valid() {
		err = invalid("mode", fmt.Sprintf("must be %q or %q", domain.ModeTrain, domain.ModeTest))
		u.setNotice(domain.NewNotice(domain.NoticeWarn, "Invalid dataset mode"))
		return domain.DatasetInfo{}, err
	}
	if file == nil || file.Content == nil || strings.TrimSpace(file.Name) == "" {
		err = invalid("file", "a dataset file must be selected")
		u.setNotice(domain.NewNotice(domain.NoticeWarn, "Select a dataset file first"))
		return domain.DatasetInfo{}, err
	}

	u.setBusy(true)
	defer u.setBusy(false)

	out := u.api.UploadDataset(ctx, mode, *file)
	if !out.OK() {
		f := out.Failure()
		u.setNotice(domain.NewNotice(domain.NoticeError, "Upload failed: "+f.Message))
		u.logger.Warn("dataset upload failed", zap.String("mode", string(mode)), zap.Error(f))
		return domain.DatasetInfo{}, fmt.Errorf("upload dataset: %w", f)
	}
	info = out.Payload()
	if info.Mode == "" {
		info.Mode = mode
	}

	msg := info.Message
	if msg == "" {
		msg = fmt.Sprintf("Dataset received: %d rows, %d columns", info.Rows, info.Cols)
	}
	u.mu.Lock()
	u.info = &info
	u.notice = domain.NewNotice(domain.NoticeInfo, msg)
	u.mu.Unlock()
	return info, nil
}

func (u *DatasetUploader) Snapshot() DatasetSnapshot {
	u.mu.RLock()
	defer u.mu.RUnlock()
	s := DatasetSnapshot{Busy: u.busy}
	if u.info != nil {
		i := *u.info
		s.Info = &i
	}
	if u.notice != nil {
		n := *u.notice
		s.Notice = &n
	}
	return s
}

func (u *DatasetUploader) setBusy(v bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.busy = v
}

func (u *DatasetUploader) setNotice(n *domain.Notice) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.notice = n
}
