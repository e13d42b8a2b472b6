// Package pollertest — ручной источник тиков для детерминированных тестов опроса.
package pollertest

import (
	"sync"
	"time"

	"github.com/xela07ax/ids-dashboard/internal/poller"
)

// Clock выдает тикеры, которые тикают только по вызову Tick.
type Clock struct {
	mu      sync.Mutex
	tickers []*Ticker
}

func NewClock() *Clock { return &Clock{} }

// NewTicker совместим с poller.TickerFunc.
func (c *Clock) NewTicker(d time.Duration) poller.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &Ticker{interval: d, ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

// Tick доставляет по одному тику каждому неостановленному тикеру.
// Если предыдущий тик еще не вычитан, новый схлопывается с ним, как у time.Ticker.
func (c *Clock) Tick() {
	c.mu.Lock()
	live := make([]*Ticker, 0, len(c.tickers))
	for _, t := range c.tickers {
		if !t.Stopped() {
			live = append(live, t)
		}
	}
	c.mu.Unlock()

	now := time.Now()
	for _, t := range live {
		select {
		case t.ch <- now:
		default:
		}
	}
}

// Active число тикеров, у которых еще не вызван Stop.
func (c *Clock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

// Created сколько тикеров было создано за все время.
func (c *Clock) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type Ticker struct {
	interval time.Duration
	ch       chan time.Time

	mu      sync.Mutex
	stopped bool
}

func (t *Ticker) C() <-chan time.Time { return t.ch }

func (t *Ticker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *Ticker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *Ticker) Interval() time.Duration { return t.interval }
