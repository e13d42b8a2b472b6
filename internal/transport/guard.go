package transport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GuardSettings — параметры предохранителя перед бэкендом.
type GuardSettings struct {
	Name             string
	RateLimit        float64 // запросов в секунду, 0 отключает лимитер
	RateBurst        int
	MaxRequests      uint32 // пробные запросы в half-open
	Interval         time.Duration
	Timeout          time.Duration // через сколько CB попробует "закрыться"
	FailureThreshold uint32        // подряд идущих сетевых ошибок до размыкания
	OnStateChange    func(name string, open bool)
}

// Guard оборачивает Doer в rate limiter и circuit breaker.
// Повторов здесь нет: разомкнутый CB сразу возвращает ошибку, и транспорт считает ее сетевой.
type Guard struct {
	next    Doer
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewGuard(next Doer, s GuardSettings) *Guard {
	if next == nil {
		next = &http.Client{}
	}
	if s.Name == "" {
		s.Name = "ids-backend"
	}
	threshold := s.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if s.OnStateChange != nil {
				s.OnStateChange(name, to == gobreaker.StateOpen)
			}
		},
	})

	var limiter *rate.Limiter
	if s.RateLimit > 0 {
		burst := s.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(s.RateLimit), burst)
	}

	return &Guard{next: next, cb: cb, limiter: limiter}
}

func (g *Guard) Do(req *http.Request) (*http.Response, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Do(req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*http.Response), nil
}

// State текущее состояние предохранителя (для логов и тестов).
func (g *Guard) State() gobreaker.State {
	return g.cb.State()
}
