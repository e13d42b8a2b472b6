package audit

import "time"

// Event — запись журнала: команда оператора или итог задачи.
type Event struct {
	ID       string         `json:"id"`       // UUID события
	TraceID  string         `json:"trace_id"` // ID запроса к консоли, если есть
	Instance string         `json:"instance"` // какой инстанс дашборда записал
	Action   string         `json:"action"`   // monitor.start, replay.finish, ...
	Subject  string         `json:"subject"`  // job_id, mode и т.п.
	Detail   map[string]any `json:"detail"`

	Status     string    `json:"status"` // SUCCESS, FAILED, REJECTED
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error"`
}

const (
	StatusSuccess  = "SUCCESS"
	StatusFailed   = "FAILED"
	StatusRejected = "REJECTED"
)

// Filter — выборка журнала для консоли. Пустые поля не фильтруют.
type Filter struct {
	Action string
	Status string
	Limit  int
}

const (
	DefaultFilterLimit = 50
	MaxFilterLimit     = 500
)

// Normalize приводит Limit к допустимому диапазону.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultFilterLimit
	}
	if f.Limit > MaxFilterLimit {
		f.Limit = MaxFilterLimit
	}
	return f
}

// Summary агрегаты журнала за окно.
type Summary struct {
	Window        string  `json:"window"`
	Total         int64   `json:"total"`
	Failed        int64   `json:"failed"`
	Rejected      int64   `json:"rejected"`
	P95DurationMs float64 `json:"p95_duration_ms"`
}
