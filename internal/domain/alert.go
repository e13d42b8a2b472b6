package domain

import (
	"encoding/json"
	"strings"
)

// DefaultAlertLimit размер страницы ленты алертов
const DefaultAlertLimit = 10

type RiskLevel string

const (
	RiskHigh   RiskLevel = "High"
	RiskMedium RiskLevel = "Medium"
	RiskLow    RiskLevel = "Low"
)

// ParseRiskLevel приводит значение бэкенда к одному из трех уровней.
// Регистр не важен, неизвестное значение считается Low.
func ParseRiskLevel(raw string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return RiskHigh
	case "medium":
		return RiskMedium
	default:
		return RiskLow
	}
}

func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = ParseRiskLevel(s)
	return nil
}

type AlertRecord struct {
	Time          string    `json:"time"`
	SourceAddress string    `json:"source_address"`
	DestAddress   string    `json:"dest_address"`
	Kind          string    `json:"kind"`
	RiskLevel     RiskLevel `json:"risk_level"`
}

// AlertFeed — ответ /recent/alerts. Порядок: самые свежие первыми.
type AlertFeed struct {
	Items []AlertRecord `json:"items"`
}
