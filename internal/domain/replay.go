package domain

import "math"

// JobStatus статусы конечного автомата задачи реплея
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Terminal — из done/failed выхода нет.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// ReplayJob состояние задачи, которую бэкенд прогоняет через детектор.
type ReplayJob struct {
	JobID       string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Processed   int       `json:"processed"`
	Total       int       `json:"total"`
	BenignCount int       `json:"benign_count"`
	AttackCount int       `json:"attack_count"`
	Message     string    `json:"message,omitempty"`
}

// ProgressPercent вычисляется, а не хранится.
func (j ReplayJob) ProgressPercent() int {
	if j.Total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(j.Processed) / float64(j.Total)))
}

// ReplayStart — подтверждение запуска реплея.
type ReplayStart struct {
	Status       string `json:"status"`
	JobID        string `json:"job_id"`
	RowsDetected int    `json:"rows_detected"`
	MaxRows      int    `json:"max_rows"`
	SleepMs      int    `json:"sleep_ms"`
}

// ReplayParams параметры, которые оператор передает вместе с файлом.
type ReplayParams struct {
	MaxRows int `json:"max_rows"`
	SleepMs int `json:"sleep_ms"`
}
