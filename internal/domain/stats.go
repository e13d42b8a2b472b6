package domain

// LastPrediction — последний вердикт детектора, который бэкенд отдает вместе со статистикой.
type LastPrediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// StatsSnapshot агрегированные счетчики трафика. Каждый тик поллера заменяет снапшот целиком.
type StatsSnapshot struct {
	Total          int64           `json:"total"`
	BenignCount    int64           `json:"benign_count"`
	AttackCount    int64           `json:"attack_count"`
	BenignPct      float64         `json:"benign_pct"`
	AttackPct      float64         `json:"attack_pct"`
	LastPrediction *LastPrediction `json:"last_prediction,omitempty"`
}
