package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/ids-dashboard/internal/domain"
)

// StatsRefresher — разовый запрос статистики. Реализуется SessionController.
type StatsRefresher interface {
	RefreshStats(ctx context.Context) error
}

type PredictSnapshot struct {
	Last   *domain.Prediction `json:"last,omitempty"`
	Busy   bool               `json:"busy"`
	Notice *domain.Notice     `json:"notice,omitempty"`
}

// PredictTester — ручная проверка одной записи признаков.
type PredictTester struct {
	api   PredictAPI
	stats StatsRefresher
	deps

	mu     sync.RWMutex
	last   *domain.Prediction
	busy   bool
	notice *domain.Notice
}

func NewPredictTester(api PredictAPI, stats StatsRefresher, opts ...Option) *PredictTester {
	d := buildDeps(opts)
	d.logger = d.logger.With(zap.String("mod", "predict"))
	return &PredictTester{api: api, stats: stats, deps: d}
}

// Predict принимает сырой текст оператора. Это должен быть JSON-объект, иначе
// возвращается ValidationError и запрос не отправляется. После ответа статистика обновляется сразу.
func (t *PredictTester) Predict(ctx context.Context, raw string) (p domain.Prediction, err error) {
	started := time.Now()
	defer func() { t.record(ctx, "predict", "", started, nil, err) }()

	features, err := parseFeatures(raw)
	if err != nil {
		t.set(nil, domain.NewNotice(domain.NoticeWarn, err.Error()))
		return domain.Prediction{}, err
	}

	t.setBusy(true)
	defer t.setBusy(false)

	out := t.api.Predict(ctx, features)
	if !out.OK() {
		f := out.Failure()
		t.set(nil, domain.NewNotice(domain.NoticeError, "Prediction failed: "+f.Message))
		return domain.Prediction{}, fmt.Errorf("predict: %w", f)
	}
	p = out.Payload()
	t.set(&p, nil)

	if t.stats != nil {
		if err := t.stats.RefreshStats(ctx); err != nil {
			t.logger.Debug("stats refresh after prediction failed", zap.Error(err))
		}
	}
	return p, nil
}

func parseFeatures(raw string) (json.RawMessage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, invalid("features", "input is empty")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, invalid("features", "input must be a JSON object: "+err.Error())
	}
	if obj == nil {
		return nil, invalid("features", "input must be a JSON object")
	}
	return json.RawMessage(raw), nil
}

func (t *PredictTester) Snapshot() PredictSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := PredictSnapshot{Busy: t.busy}
	if t.last != nil {
		p := *t.last
		s.Last = &p
	}
	if t.notice != nil {
		n := *t.notice
		s.Notice = &n
	}
	return s
}

// set: успешный ответ заменяет последний результат и снимает уведомление,
// отказ оставляет прежний результат.
func (t *PredictTester) set(p *domain.Prediction, n *domain.Notice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p != nil {
		t.last = p
	}
	t.notice = n
}

func (t *PredictTester) setBusy(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.busy = v
}
