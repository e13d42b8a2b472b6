package domain

import "time"

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice короткое сообщение, которое view показывает рядом с виджетом.
type Notice struct {
	Level NoticeLevel `json:"level"`
	Text  string      `json:"text"`
	At    time.Time   `json:"at"`
}

func NewNotice(level NoticeLevel, text string) *Notice {
	return &Notice{Level: level, Text: text, At: time.Now()}
}
