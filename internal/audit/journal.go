package audit

/*
Journal — асинхронный журнал команд оператора и итогов задач реплея.

- Log не блокирует вызывающего: событие кладется в буферизированный канал,
  при переполнении сбрасывается в лог (load shedding).
- Воркер пишет пачками: по таймеру или при достижении размера пачки.
- Stop закрывает канал и ждет финального flush (drain).
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Storage определяет, куда физически уходят события.
type Storage interface {
	WriteBatch(ctx context.Context, events []Event) error
}

// Auditor — то, что нужно контроллерам.
type Auditor interface {
	Log(event Event)
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	Instance      string
	// OnBufferFill получает текущее число событий в буфере (метрика backpressure).
	OnBufferFill func(n int)
}

type Journal struct {
	ch     chan Event
	repo   Storage
	opts   Options
	logger *zap.Logger
	wg     sync.WaitGroup

	started atomic.Bool
	// closeMu: Log держит RLock на время отправки, Stop берет Lock перед close(ch)
	closeMu sync.RWMutex
	closed  bool
}

func NewJournal(repo Storage, logger *zap.Logger, opts Options) *Journal {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		ch:     make(chan Event, opts.BufferSize),
		repo:   repo,
		opts:   opts,
		logger: logger.With(zap.String("mod", "journal")),
	}
}

func (j *Journal) Start() {
	if !j.started.CompareAndSwap(false, true) {
		return
	}
	j.wg.Add(1)
	go j.worker()
}

// Stop запирает вход и ждет, пока воркер все допишет. Повторный вызов — no-op.
func (j *Journal) Stop() {
	j.closeMu.Lock()
	if j.closed {
		j.closeMu.Unlock()
		return
	}
	j.closed = true
	j.closeMu.Unlock()

	j.logger.Info("stopping journal: closing channel and flushing buffer...")
	close(j.ch)
	if j.started.Load() {
		j.wg.Wait()
	}
	j.logger.Info("journal stopped gracefully")
}

func (j *Journal) Log(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Instance == "" {
		event.Instance = j.opts.Instance
	}

	j.closeMu.RLock()
	defer j.closeMu.RUnlock()
	if j.closed {
		j.logger.Warn("journal event dropped: journal is stopping", zap.String("id", event.ID))
		return
	}

	select {
	case j.ch <- event:
		j.reportFill()
	default:
		j.logger.Error("journal_buffer_overflow",
			zap.String("action", event.Action),
			zap.String("subject", event.Subject),
			zap.String("status", event.Status),
		)
	}
}

func (j *Journal) reportFill() {
	if j.opts.OnBufferFill != nil {
		j.opts.OnBufferFill(len(j.ch))
	}
}

func (j *Journal) worker() {
	defer j.wg.Done()

	batch := make([]Event, 0, j.opts.BatchSize)
	ticker := time.NewTicker(j.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// основной контекст к этому моменту может быть уже отменен
		if err := j.repo.WriteBatch(context.Background(), batch); err != nil {
			j.logger.Error("journal flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		j.reportFill()
	}

	for {
		select {
		case event, ok := <-j.ch:
			if !ok {
				flush()
				j.logger.Info("journal worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= j.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// LogStorage — хранилище по умолчанию, когда БД не настроена: события уходят в zap.
type LogStorage struct {
	logger *zap.Logger
}

func NewLogStorage(logger *zap.Logger) *LogStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogStorage{logger: logger.Named("journal")}
}

func (s *LogStorage) WriteBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		s.logger.Info("journal event",
			zap.String("id", e.ID),
			zap.String("trace_id", e.TraceID),
			zap.String("instance", e.Instance),
			zap.String("action", e.Action),
			zap.String("subject", e.Subject),
			zap.String("status", e.Status),
			zap.Any("detail", e.Detail),
			zap.Int64("duration_ms", e.DurationMs),
			zap.String("error", e.Error),
			zap.Time("timestamp", e.Timestamp),
		)
	}
	return nil
}

// Nop отбрасывает события (тесты, отключенный журнал).
type Nop struct{}

func (Nop) Log(Event) {}
