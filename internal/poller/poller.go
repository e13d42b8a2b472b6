// Package poller — примитив периодического опроса: немедленный вызов, затем фиксированный шаг до Stop.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Action выполняет одну итерацию опроса. Ошибки action обрабатывает сам.
type Action func(ctx context.Context)

// Ticker — источник тиков. В проде это time.Ticker, в тестах pollertest.Clock.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc создает Ticker с заданным интервалом.
type TickerFunc func(d time.Duration) Ticker

type Option func(*Poller)

// WithTicker подменяет источник тиков.
func WithTicker(fn TickerFunc) Option {
	return func(p *Poller) {
		if fn != nil {
			p.newTicker = fn
		}
	}
}

// WithObserver вызывается на каждый запуск action (метрики).
func WithObserver(fn func(stream string)) Option {
	return func(p *Poller) { p.observe = fn }
}

// WithStream задает метку потока для observer. По умолчанию это имя поллера;
// поллеры с уникальными именами (задача реплея) должны отдавать общую метку.
func WithStream(label string) Option {
	return func(p *Poller) {
		if label != "" {
			p.stream = label
		}
	}
}

// Poller держит не больше одного активного таймера на поток.
type Poller struct {
	name      string
	stream    string
	logger    *zap.Logger
	newTicker TickerFunc
	observe   func(stream string)

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func New(name string, logger *zap.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Poller{
		name:      name,
		stream:    name,
		logger:    logger.With(zap.String("mod", "poller"), zap.String("stream", name)),
		newTicker: systemTicker,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Poller) Name() string { return p.name }

// Start сначала останавливает предыдущий запуск, затем вызывает action сразу и далее каждые interval.
// Тики не ждут завершения предыдущего action: запросы разных тиков могут перекрываться.
func (p *Poller) Start(ctx context.Context, action Action, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	// после отмены контекста не уходит даже первый запрос
	if ctx.Err() != nil {
		p.logger.Debug("context is done, polling not started")
		return
	}
	if interval <= 0 {
		p.logger.Warn("non-positive interval, polling not started", zap.Duration("interval", interval))
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	t := p.newTicker(interval)
	p.stop, p.done = stop, done

	p.dispatch(ctx, action)

	go func() {
		defer close(done)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-t.C():
				// Stop мог прийти одновременно с тиком
				select {
				case <-stop:
					return
				default:
				}
				p.dispatch(ctx, action)
			}
		}
	}()

	p.logger.Debug("polling started", zap.Duration("interval", interval))
}

// Stop отменяет будущие тики. Повторный вызов — no-op. Уже отправленный запрос не прерывается.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Active сообщает, запланированы ли будущие тики.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Poller) stopLocked() {
	if p.stop == nil {
		return
	}
	close(p.stop)
	// цикл не берет p.mu, поэтому ждать его под мьютексом безопасно
	<-p.done
	p.stop, p.done = nil, nil
	p.logger.Debug("polling stopped")
}

func (p *Poller) dispatch(ctx context.Context, action Action) {
	if p.observe != nil {
		p.observe(p.stream)
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("poll action panicked", zap.Any("panic", r))
			}
		}()
		action(ctx)
	}()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

func systemTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}
