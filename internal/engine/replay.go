package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/ids-dashboard/internal/domain"
	"github.com/xela07ax/ids-dashboard/internal/poller"
	"github.com/xela07ax/ids-dashboard/internal/transport"
)

const DefaultReplayInterval = time.Second

const (
	replayStream       = "replay"
	replayPollerPrefix = replayStream + ":"
)

// MonitorGate сообщает, активен ли мониторинг. Реализуется SessionController.
type MonitorGate interface {
	Running() bool
}

type ReplaySnapshot struct {
	Job      *domain.ReplayJob   `json:"job,omitempty"`
	Progress int                 `json:"progress_percent"`
	Start    *domain.ReplayStart `json:"start,omitempty"`
	Polling  bool                `json:"polling"`
	Busy     bool                `json:"busy"`
	Notice   *domain.Notice      `json:"notice,omitempty"`
}

// ReplayController запускает задачу реплея и опрашивает ее до терминального статуса.
// Одновременно отслеживается одна задача: новая останавливает опрос предыдущей.
type ReplayController struct {
	api      ReplayAPI
	gate     MonitorGate
	interval time.Duration
	deps

	ctx    context.Context
	cancel context.CancelFunc

	cmdMu sync.Mutex
	// lifeMu: установка и запуск поллера задачи не пересекаются с Close
	lifeMu sync.Mutex

	mu     sync.RWMutex
	job    *domain.ReplayJob
	start  *domain.ReplayStart
	poller *poller.Poller
	seq    *poller.Sequence
	busy   bool
	notice *domain.Notice
	closed bool
}

func NewReplayController(api ReplayAPI, gate MonitorGate, interval time.Duration, opts ...Option) *ReplayController {
	d := buildDeps(opts)
	d.logger = d.logger.With(zap.String("mod", "replay"))
	if interval <= 0 {
		interval = DefaultReplayInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ReplayController{
		api:      api,
		gate:     gate,
		interval: interval,
		deps:     d,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// StartReplay проверяет предусловия локально (без сетевого вызова), отправляет файл
// и начинает опрос статуса задачи с шагом interval.
func (c *ReplayController) StartReplay(ctx context.Context, file *transport.FileUpload, params domain.ReplayParams) (start domain.ReplayStart, err error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	started := time.Now()
	subject := ""
	defer func() {
		c.record(ctx, "replay.start", subject, started, map[string]any{
			"max_rows": params.MaxRows,
			"sleep_ms": params.SleepMs,
		}, err)
	}()

	if c.isClosed() {
		return domain.ReplayStart{}, ErrClosed
	}
	if err := c.validate(file, params); err != nil {
		c.setNotice(domain.NoticeWarn, noticeText(err))
		return domain.ReplayStart{}, err
	}

	c.setBusy(true)
	defer c.setBusy(false)

	out := c.api.StartReplay(ctx, *file, params)
	if !out.OK() {
		f := out.Failure()
		c.setNotice(domain.NoticeError, "Failed to start replay: "+f.Message)
		c.logger.Warn("start replay failed", zap.Error(f))
		return domain.ReplayStart{}, fmt.Errorf("start replay: %w", f)
	}
	start = out.Payload()
	subject = start.JobID

	// имя с jobID для логов, метка в метриках общая
	p := c.newPoller(replayPollerPrefix+start.JobID, poller.WithStream(replayStream))

	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Warn("replay started after close, job is not tracked", zap.String("job_id", start.JobID))
		return start, ErrClosed
	}
	prev := c.poller
	c.job = &domain.ReplayJob{JobID: start.JobID, Status: domain.JobQueued}
	c.start = &start
	c.poller = p
	c.seq = &poller.Sequence{}
	c.notice = domain.NewNotice(domain.NoticeInfo,
		fmt.Sprintf("Replay %s started: %d rows detected", start.JobID, start.RowsDetected))
	c.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	c.metrics.ReplayProgress.Set(0)
	c.logger.Info("replay started",
		zap.String("job_id", start.JobID),
		zap.Int("rows_detected", start.RowsDetected),
		zap.Int("max_rows", start.MaxRows),
		zap.Int("sleep_ms", start.SleepMs))

	jobID := start.JobID
	p.Start(c.ctx, func(ctx context.Context) { c.pollStatus(ctx, jobID) }, c.interval)
	return start, nil
}

func (c *ReplayController) validate(file *transport.FileUpload, params domain.ReplayParams) error {
	if file == nil || file.Content == nil || strings.TrimSpace(file.Name) == "" {
		return invalid("file", "a dataset file must be selected")
	}
	if c.gate == nil || !c.gate.Running() {
		return ErrNotMonitoring
	}
	if params.MaxRows < 0 {
		return invalid("max_rows", "must not be negative")
	}
	if params.SleepMs < 0 {
		return invalid("sleep_ms", "must not be negative")
	}
	return nil
}

// pollStatus — действие поллера задачи. Терминальный статус поглощает: после него
// запросы по этому jobID не отправляются, а сохраненный статус не меняется.
func (c *ReplayController) pollStatus(ctx context.Context, jobID string) {
	c.mu.RLock()
	live := c.job != nil && c.job.JobID == jobID && !c.job.Status.Terminal()
	p, seq := c.poller, c.seq
	c.mu.RUnlock()
	if !live {
		c.stopPolling(jobID)
		return
	}

	n := seq.Next()
	out := c.api.ReplayStatus(ctx, jobID)

	c.mu.Lock()
	if c.closed || c.job == nil || c.job.JobID != jobID || c.job.Status.Terminal() || c.seq != seq || !seq.Accept(n) {
		c.mu.Unlock()
		return
	}

	if !out.OK() {
		// недоступный статус приравнивается к провалу задачи: повторов нет
		f := out.Failure()
		c.job.Status = domain.JobFailed
		c.job.Message = f.Message
		c.notice = domain.NewNotice(domain.NoticeError, "Replay status check failed: "+f.Message)
		job := *c.job
		c.mu.Unlock()

		p.Stop()
		c.logger.Warn("replay status poll failed", zap.String("job_id", jobID), zap.Error(f))
		c.finish(ctx, job, f)
		return
	}

	job := out.Payload()
	job.JobID = jobID
	c.job = &job
	terminal := job.Status.Terminal()
	if terminal {
		if job.Status == domain.JobDone {
			c.notice = domain.NewNotice(domain.NoticeInfo,
				fmt.Sprintf("Replay %s finished: %d benign, %d attack", jobID, job.BenignCount, job.AttackCount))
		} else {
			c.notice = domain.NewNotice(domain.NoticeError, "Replay failed: "+failureText(job.Message))
		}
	}
	c.mu.Unlock()

	c.metrics.ReplayProgress.Set(float64(job.ProgressPercent()))
	if terminal {
		p.Stop()
		var err error
		if job.Status == domain.JobFailed {
			err = fmt.Errorf("replay job failed: %s", failureText(job.Message))
		}
		c.logger.Info("replay finished", zap.String("job_id", jobID), zap.String("status", string(job.Status)))
		c.finish(ctx, job, err)
	}
}

func (c *ReplayController) finish(ctx context.Context, job domain.ReplayJob, err error) {
	c.record(ctx, "replay.finish", job.JobID, time.Now(), map[string]any{
		"status":       string(job.Status),
		"processed":    job.Processed,
		"total":        job.Total,
		"benign_count": job.BenignCount,
		"attack_count": job.AttackCount,
	}, err)
}

func (c *ReplayController) stopPolling(jobID string) {
	c.mu.RLock()
	p := c.poller
	c.mu.RUnlock()
	if p != nil && p.Name() == replayPollerPrefix+jobID {
		p.Stop()
	}
}

func (c *ReplayController) Snapshot() ReplaySnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := ReplaySnapshot{Busy: c.busy, Polling: c.poller != nil && c.poller.Active()}
	if c.job != nil {
		j := *c.job
		s.Job = &j
		s.Progress = j.ProgressPercent()
	}
	if c.start != nil {
		st := *c.start
		s.Start = &st
	}
	if c.notice != nil {
		n := *c.notice
		s.Notice = &n
	}
	return s
}

// Close останавливает опрос текущей задачи. StartReplay, который еще в полете,
// после Close поллер не запускает.
func (c *ReplayController) Close() {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()

	c.mu.Lock()
	c.closed = true
	p := c.poller
	c.mu.Unlock()

	c.cancel()
	if p != nil {
		p.Stop()
	}
}

func (c *ReplayController) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *ReplayController) setBusy(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = v
}

func (c *ReplayController) setNotice(level domain.NoticeLevel, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.notice = domain.NewNotice(level, text)
}

func failureText(msg string) string {
	if strings.TrimSpace(msg) == "" {
		return "no details"
	}
	return msg
}

func noticeText(err error) string {
	if errors.Is(err, ErrNotMonitoring) {
		return "Start monitoring before replaying a dataset"
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		if verr.Field == "file" {
			return "Select a dataset file first"
		}
		return fmt.Sprintf("Invalid %s: %s", verr.Field, verr.Reason)
	}
	return err.Error()
}
