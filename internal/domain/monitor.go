package domain

import (
	"strings"
	"time"
)

// MonitorState принадлежит только SessionController.
type MonitorState struct {
	Running      bool       `json:"running"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// MonitorStatus — авторитетный ответ бэкенда /monitor/status.
type MonitorStatus struct {
	Running   bool    `json:"running"`
	StartedAt *string `json:"started_at,omitempty"`
	StoppedAt *string `json:"stopped_at,omitempty"`
}

type SourceStatus struct {
	Source string `json:"source,omitempty"`
}

// Ack универсальное подтверждение команды.
// Бэкенд иногда сообщает об ошибке со статусом 200 и {"status": "error"}.
type Ack struct {
	Status     string `json:"status,omitempty"`
	Message    string `json:"message,omitempty"`
	Monitoring *bool  `json:"monitoring,omitempty"`
}

func (a Ack) Failed() bool {
	return strings.EqualFold(strings.TrimSpace(a.Status), "error")
}
