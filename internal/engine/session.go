package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/ids-dashboard/internal/domain"
	"github.com/xela07ax/ids-dashboard/internal/poller"
)

const (
	DefaultStatsInterval  = 2 * time.Second
	DefaultAlertsInterval = 2 * time.Second
)

type SessionConfig struct {
	StatsInterval  time.Duration
	AlertsInterval time.Duration
	// ReconcileInterval > 0 включает периодическую сверку с бэкендом.
	ReconcileInterval time.Duration
	AlertLimit        int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.StatsInterval <= 0 {
		c.StatsInterval = DefaultStatsInterval
	}
	if c.AlertsInterval <= 0 {
		c.AlertsInterval = DefaultAlertsInterval
	}
	if c.AlertLimit <= 0 {
		c.AlertLimit = domain.DefaultAlertLimit
	}
	return c
}

// SessionSnapshot — копия состояния для чтения консолью.
type SessionSnapshot struct {
	Monitor domain.MonitorState   `json:"monitor"`
	Stats   *domain.StatsSnapshot `json:"stats,omitempty"`
	Alerts  []domain.AlertRecord  `json:"alerts"`
	Source  *domain.SourceStatus  `json:"source,omitempty"`
	Busy    bool                  `json:"busy"`
	Notice  *domain.Notice        `json:"notice,omitempty"`
}

// SessionController владеет флагом мониторинга и двумя поллерами (stats, alerts),
// которые работают ровно пока мониторинг активен.
//
// Состояния: Paused (начальное) <-> Active.
type SessionController struct {
	api SessionAPI
	cfg SessionConfig
	deps

	ctx    context.Context
	cancel context.CancelFunc

	stats     *poller.Poller
	alerts    *poller.Poller
	reconcile *poller.Poller

	// cmdMu сериализует переходы (start, stop, reconcile)
	cmdMu sync.Mutex
	// lifeMu: запуск поллеров и Close не пересекаются
	lifeMu sync.Mutex

	mu       sync.RWMutex
	state    domain.MonitorState
	snapshot *domain.StatsSnapshot
	feed     []domain.AlertRecord
	source   *domain.SourceStatus
	busy     int
	notice   *domain.Notice
	closed   bool
	// epoch растет на каждом переходе; ответы тиков от прошлой эпохи не применяются
	epoch     uint64
	statsSeq  poller.Sequence
	alertsSeq poller.Sequence

	hookMu      sync.RWMutex
	onReconcile func(err error)
}

func NewSessionController(api SessionAPI, cfg SessionConfig, opts ...Option) *SessionController {
	d := buildDeps(opts)
	d.logger = d.logger.With(zap.String("mod", "session"))

	ctx, cancel := context.WithCancel(context.Background())
	c := &SessionController{
		api:    api,
		cfg:    cfg.withDefaults(),
		deps:   d,
		ctx:    ctx,
		cancel: cancel,
	}
	c.stats = d.newPoller("stats")
	c.alerts = d.newPoller("alerts")
	c.reconcile = d.newPoller("reconcile")
	d.metrics.MonitorRunning.Set(0)
	return c
}

// OnReconcile регистрирует наблюдателя за итогом каждой сверки (health).
func (c *SessionController) OnReconcile(fn func(err error)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onReconcile = fn
}

func (c *SessionController) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Running
}

func (c *SessionController) Snapshot() SessionSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := SessionSnapshot{
		Monitor: c.state,
		Alerts:  append([]domain.AlertRecord{}, c.feed...),
		Busy:    c.busy > 0,
	}
	if c.state.LastSyncedAt != nil {
		t := *c.state.LastSyncedAt
		s.Monitor.LastSyncedAt = &t
	}
	if c.snapshot != nil {
		st := *c.snapshot
		s.Stats = &st
	}
	if c.source != nil {
		src := *c.source
		s.Source = &src
	}
	if c.notice != nil {
		n := *c.notice
		s.Notice = &n
	}
	return s
}

// Start включает мониторинг на бэкенде. Состояние меняется только после успешного ответа.
func (c *SessionController) Start(ctx context.Context) (err error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	done := c.enterBusy()
	defer done()

	started := time.Now()
	defer func() { c.record(ctx, "monitor.start", "", started, nil, err) }()

	if c.isClosed() {
		return ErrClosed
	}
	out := c.api.StartMonitor(ctx)
	if !out.OK() {
		f := out.Failure()
		c.setNotice(domain.NoticeError, "Failed to start monitoring: "+f.Message)
		c.logger.Warn("start monitoring failed", zap.Error(f))
		return fmt.Errorf("start monitoring: %w", f)
	}

	if !c.activate() {
		return ErrClosed
	}
	c.setNotice(domain.NoticeInfo, ackMessage(out.Payload(), "Monitoring started"))
	c.logger.Info("monitoring started")
	c.broadcast(ctx, true)
	return nil
}

// Stop выключает мониторинг. При успехе поллеры останавливаются, а лента алертов очищается.
func (c *SessionController) Stop(ctx context.Context) (err error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	done := c.enterBusy()
	defer done()

	started := time.Now()
	defer func() { c.record(ctx, "monitor.stop", "", started, nil, err) }()

	if c.isClosed() {
		return ErrClosed
	}
	out := c.api.StopMonitor(ctx)
	if !out.OK() {
		f := out.Failure()
		c.setNotice(domain.NoticeError, "Failed to stop monitoring: "+f.Message)
		c.logger.Warn("stop monitoring failed", zap.Error(f))
		return fmt.Errorf("stop monitoring: %w", f)
	}

	if c.isClosed() {
		return ErrClosed
	}
	c.pause()
	c.setNotice(domain.NoticeInfo, ackMessage(out.Payload(), "Monitoring stopped"))
	c.logger.Info("monitoring stopped")
	c.broadcast(ctx, false)
	return nil
}

// Reconcile приводит локальное состояние к тому, что сообщает бэкенд (он авторитетен).
func (c *SessionController) Reconcile(ctx context.Context) (err error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	defer func() { c.notifyReconcile(err) }()

	if c.isClosed() {
		return ErrClosed
	}
	out := c.api.MonitorStatus(ctx)
	if !out.OK() {
		f := out.Failure()
		c.setNotice(domain.NoticeWarn, "Failed to sync monitoring status: "+f.Message)
		c.logger.Warn("reconcile failed", zap.Error(f))
		return fmt.Errorf("reconcile monitoring status: %w", f)
	}
	status := out.Payload()

	// источник трафика информационный, его отказ не мешает сверке
	if src := c.api.SourceStatus(ctx); src.OK() {
		s := src.Payload()
		c.mu.Lock()
		if !c.closed {
			c.source = &s
		}
		c.mu.Unlock()
	} else {
		c.logger.Debug("source status unavailable", zap.Error(src.Failure()))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	wasRunning := c.state.Running
	now := time.Now()
	c.state.LastSyncedAt = &now
	c.mu.Unlock()

	switch {
	case status.Running && (!wasRunning || !c.stats.Active() || !c.alerts.Active()):
		if !c.activate() {
			return ErrClosed
		}
		c.logger.Info("reconciled: backend is monitoring")
	case !status.Running:
		c.pause()
		if wasRunning {
			c.logger.Info("reconciled: backend is not monitoring")
		}
	}
	return nil
}

// StartReconcileLoop запускает периодическую сверку, если она включена в конфиге.
func (c *SessionController) StartReconcileLoop() {
	if c.cfg.ReconcileInterval <= 0 {
		return
	}
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	if c.isClosed() {
		return
	}
	c.reconcile.Start(c.ctx, func(ctx context.Context) {
		_ = c.Reconcile(ctx)
	}, c.cfg.ReconcileInterval)
}

// ResetStats доступен в любом состоянии. При успехе один раз обновляет статистику и алерты,
// не меняя режим опроса.
func (c *SessionController) ResetStats(ctx context.Context) (err error) {
	done := c.enterBusy()
	defer done()

	started := time.Now()
	defer func() { c.record(ctx, "stats.reset", "", started, nil, err) }()

	if c.isClosed() {
		return ErrClosed
	}
	out := c.api.ResetStats(ctx)
	if !out.OK() {
		f := out.Failure()
		c.setNotice(domain.NoticeError, "Failed to reset statistics: "+f.Message)
		return fmt.Errorf("reset statistics: %w", f)
	}
	c.setNotice(domain.NoticeInfo, ackMessage(out.Payload(), "Statistics reset"))

	_ = c.refreshStats(ctx, 0, false)
	_ = c.refreshAlerts(ctx, 0, false)
	return nil
}

// RefreshStats — разовый запрос статистики вне расписания.
func (c *SessionController) RefreshStats(ctx context.Context) error {
	return c.refreshStats(ctx, 0, false)
}

func (c *SessionController) RefreshAlerts(ctx context.Context) error {
	return c.refreshAlerts(ctx, 0, false)
}

// Close останавливает все поллеры и сбрасывает локальное состояние. Бэкенд не трогает.
// Команды, которые еще в полете, после Close состояние не меняют и поллеры не запускают.
func (c *SessionController) Close() {
	c.lifeMu.Lock()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.reconcile.Stop()
	c.stats.Stop()
	c.alerts.Stop()
	c.lifeMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.state = domain.MonitorState{}
	c.feed = nil
	c.statsSeq.Invalidate()
	c.alertsSeq.Invalidate()
	c.metrics.MonitorRunning.Set(0)
}

// activate: Paused -> Active. Поллеры стартуют с немедленным первым запросом.
// false, если контроллер уже закрыт.
func (c *SessionController) activate() bool {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.epoch++
	epoch := c.epoch
	c.state.Running = true
	now := time.Now()
	c.state.LastSyncedAt = &now
	c.mu.Unlock()
	boolGauge(c.metrics.MonitorRunning, true)

	c.stats.Start(c.ctx, func(ctx context.Context) {
		_ = c.refreshStats(ctx, epoch, true)
	}, c.cfg.StatsInterval)
	c.alerts.Start(c.ctx, func(ctx context.Context) {
		_ = c.refreshAlerts(ctx, epoch, true)
	}, c.cfg.AlertsInterval)
	return true
}

// pause: Active -> Paused. Лента алертов очищается, ответы, которые еще в полете, отбрасываются.
func (c *SessionController) pause() {
	c.stats.Stop()
	c.alerts.Stop()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.epoch++
	c.state.Running = false
	c.feed = nil
	c.statsSeq.Invalidate()
	c.alertsSeq.Invalidate()
	c.mu.Unlock()
	boolGauge(c.metrics.MonitorRunning, false)
}

// refreshStats: gated=true для тиков поллера, ответ применяется только в своей эпохе.
func (c *SessionController) refreshStats(ctx context.Context, epoch uint64, gated bool) error {
	seq := c.statsSeq.Next()
	out := c.api.Stats(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || (gated && epoch != c.epoch) {
		return nil
	}
	if !c.statsSeq.Accept(seq) {
		c.logger.Debug("stale stats response dropped", zap.Uint64("seq", seq))
		return nil
	}
	if !out.OK() {
		f := out.Failure()
		c.notice = domain.NewNotice(domain.NoticeWarn, "Failed to load statistics: "+f.Message)
		return f
	}
	snap := out.Payload()
	c.snapshot = &snap
	return nil
}

// refreshAlerts заменяет ленту целиком. При отказе лента сохраняет последнее известное значение.
func (c *SessionController) refreshAlerts(ctx context.Context, epoch uint64, gated bool) error {
	seq := c.alertsSeq.Next()
	out := c.api.RecentAlerts(ctx, c.cfg.AlertLimit)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || (gated && epoch != c.epoch) {
		return nil
	}
	if !c.alertsSeq.Accept(seq) {
		c.logger.Debug("stale alerts response dropped", zap.Uint64("seq", seq))
		return nil
	}
	if !out.OK() {
		f := out.Failure()
		c.notice = domain.NewNotice(domain.NoticeWarn, "Failed to load alerts: "+f.Message)
		return f
	}
	items := out.Payload().Items
	if len(items) > c.cfg.AlertLimit {
		items = items[:c.cfg.AlertLimit]
	}
	c.feed = append([]domain.AlertRecord{}, items...)
	return nil
}

func (c *SessionController) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *SessionController) enterBusy() func() {
	c.mu.Lock()
	c.busy++
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		c.busy--
		c.mu.Unlock()
	}
}

func (c *SessionController) setNotice(level domain.NoticeLevel, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.notice = domain.NewNotice(level, text)
}

func (c *SessionController) broadcast(ctx context.Context, running bool) {
	if c.broadcaster == nil {
		return
	}
	if err := c.broadcaster.Publish(ctx, running); err != nil {
		c.logger.Warn("failed to broadcast monitor state", zap.Bool("running", running), zap.Error(err))
	}
}

func (c *SessionController) notifyReconcile(err error) {
	c.hookMu.RLock()
	fn := c.onReconcile
	c.hookMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func ackMessage(a domain.Ack, fallback string) string {
	if a.Message != "" {
		return a.Message
	}
	return fallback
}
