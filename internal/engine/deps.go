package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/ids-dashboard/internal/audit"
	"github.com/xela07ax/ids-dashboard/internal/domain"
	"github.com/xela07ax/ids-dashboard/internal/poller"
	"github.com/xela07ax/ids-dashboard/internal/transport"
)

// SessionAPI — вызовы бэкенда, нужные SessionController. Реализуется idsapi.Client.
type SessionAPI interface {
	StartMonitor(ctx context.Context) transport.Outcome[domain.Ack]
	StopMonitor(ctx context.Context) transport.Outcome[domain.Ack]
	MonitorStatus(ctx context.Context) transport.Outcome[domain.MonitorStatus]
	SourceStatus(ctx context.Context) transport.Outcome[domain.SourceStatus]
	Stats(ctx context.Context) transport.Outcome[domain.StatsSnapshot]
	ResetStats(ctx context.Context) transport.Outcome[domain.Ack]
	RecentAlerts(ctx context.Context, limit int) transport.Outcome[domain.AlertFeed]
}

type ReplayAPI interface {
	StartReplay(ctx context.Context, file transport.FileUpload, p domain.ReplayParams) transport.Outcome[domain.ReplayStart]
	ReplayStatus(ctx context.Context, jobID string) transport.Outcome[domain.ReplayJob]
}

type PredictAPI interface {
	Predict(ctx context.Context, features any) transport.Outcome[domain.Prediction]
}

type DatasetAPI interface {
	UploadDataset(ctx context.Context, mode domain.DatasetMode, file transport.FileUpload) transport.Outcome[domain.DatasetInfo]
}

// Broadcaster сообщает другим инстансам дашборда о смене состояния мониторинга.
type Broadcaster interface {
	Publish(ctx context.Context, running bool) error
}

// Option настраивает любой контроллер движка.
type Option func(*deps)

type deps struct {
	logger      *zap.Logger
	metrics     *Metrics
	journal     audit.Auditor
	broadcaster Broadcaster
	ticker      poller.TickerFunc
}

func WithLogger(l *zap.Logger) Option {
	return func(d *deps) {
		if l != nil {
			d.logger = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(d *deps) {
		if m != nil {
			d.metrics = m
		}
	}
}

func WithJournal(j audit.Auditor) Option {
	return func(d *deps) {
		if j != nil {
			d.journal = j
		}
	}
}

func WithBroadcaster(b Broadcaster) Option {
	return func(d *deps) { d.broadcaster = b }
}

// WithTicker подменяет источник тиков всех поллеров контроллера (тесты).
func WithTicker(fn poller.TickerFunc) Option {
	return func(d *deps) { d.ticker = fn }
}

func buildDeps(opts []Option) deps {
	d := deps{
		logger:  zap.NewNop(),
		journal: audit.Nop{},
	}
	for _, opt := range opts {
		opt(&d)
	}
	if d.metrics == nil {
		d.metrics = NewMetrics(nil)
	}
	return d
}

// newPoller: extra задает, например, общую метку потока для метрик.
func (d deps) newPoller(name string, extra ...poller.Option) *poller.Poller {
	opts := append([]poller.Option{poller.WithObserver(d.metrics.ObservePoll)}, extra...)
	if d.ticker != nil {
		opts = append(opts, poller.WithTicker(d.ticker))
	}
	return poller.New(name, d.logger, opts...)
}

// record пишет команду в журнал и метрики.
func (d deps) record(ctx context.Context, action, subject string, started time.Time, detail map[string]any, err error) {
	d.metrics.ObserveCommand(action, err)

	ev := audit.Event{
		TraceID:    TraceID(ctx),
		Action:     action,
		Subject:    subject,
		Detail:     detail,
		Status:     audit.StatusSuccess,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		ev.Status = audit.StatusFailed
		ev.Error = err.Error()
		var verr *ValidationError
		if errors.As(err, &verr) || errors.Is(err, ErrNotMonitoring) || errors.Is(err, ErrClosed) {
			ev.Status = audit.StatusRejected
		}
	}
	d.journal.Log(ev)
}
