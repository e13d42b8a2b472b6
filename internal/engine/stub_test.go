package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/xela07ax/ids-dashboard/internal/domain"
	"github.com/xela07ax/ids-dashboard/internal/transport"
)

// stubBackend реализует все API движка. Незаданные функции отвечают успехом с нулевым payload.
type stubBackend struct {
	mu    sync.Mutex
	calls map[string]int

	startMonitor  func() transport.Outcome[domain.Ack]
	stopMonitor   func() transport.Outcome[domain.Ack]
	monitorStatus func() transport.Outcome[domain.MonitorStatus]
	stats         func(n int) transport.Outcome[domain.StatsSnapshot]
	resetStats    func() transport.Outcome[domain.Ack]
	alerts        func(n int) transport.Outcome[domain.AlertFeed]
	predict       func(features any) transport.Outcome[domain.Prediction]
	upload        func(mode domain.DatasetMode) transport.Outcome[domain.DatasetInfo]
	startReplay   func() transport.Outcome[domain.ReplayStart]
	replayStatus  func(n int) transport.Outcome[domain.ReplayJob]
}

func newStub() *stubBackend {
	return &stubBackend{calls: map[string]int{}}
}

func (s *stubBackend) hit(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
	return s.calls[name]
}

func (s *stubBackend) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *stubBackend) StartMonitor(context.Context) transport.Outcome[domain.Ack] {
	s.hit("start")
	if s.startMonitor != nil {
		return s.startMonitor()
	}
	return transport.Success(domain.Ack{Status: "ok"})
}

func (s *stubBackend) StopMonitor(context.Context) transport.Outcome[domain.Ack] {
	s.hit("stop")
	if s.stopMonitor != nil {
		return s.stopMonitor()
	}
	return transport.Success(domain.Ack{Status: "ok"})
}

func (s *stubBackend) MonitorStatus(context.Context) transport.Outcome[domain.MonitorStatus] {
	s.hit("status")
	if s.monitorStatus != nil {
		return s.monitorStatus()
	}
	return transport.Success(domain.MonitorStatus{})
}

func (s *stubBackend) SourceStatus(context.Context) transport.Outcome[domain.SourceStatus] {
	s.hit("source")
	return transport.Success(domain.SourceStatus{Source: "replay"})
}

func (s *stubBackend) Stats(context.Context) transport.Outcome[domain.StatsSnapshot] {
	n := s.hit("stats")
	if s.stats != nil {
		return s.stats(n)
	}
	return transport.Success(domain.StatsSnapshot{Total: int64(n)})
}

func (s *stubBackend) ResetStats(context.Context) transport.Outcome[domain.Ack] {
	s.hit("reset")
	if s.resetStats != nil {
		return s.resetStats()
	}
	return transport.Success(domain.Ack{Status: "ok"})
}

func (s *stubBackend) RecentAlerts(_ context.Context, _ int) transport.Outcome[domain.AlertFeed] {
	n := s.hit("alerts")
	if s.alerts != nil {
		return s.alerts(n)
	}
	return transport.Success(domain.AlertFeed{Items: []domain.AlertRecord{{Kind: "DDoS", RiskLevel: domain.RiskHigh}}})
}

func (s *stubBackend) Predict(_ context.Context, features any) transport.Outcome[domain.Prediction] {
	s.hit("predict")
	if s.predict != nil {
		return s.predict(features)
	}
	return transport.Success(domain.Prediction{})
}

func (s *stubBackend) UploadDataset(_ context.Context, mode domain.DatasetMode, _ transport.FileUpload) transport.Outcome[domain.DatasetInfo] {
	s.hit("upload")
	if s.upload != nil {
		return s.upload(mode)
	}
	return transport.Success(domain.DatasetInfo{Status: "ok", Mode: mode, Rows: 10, Cols: 3})
}

func (s *stubBackend) StartReplay(context.Context, transport.FileUpload, domain.ReplayParams) transport.Outcome[domain.ReplayStart] {
	s.hit("replay.start")
	if s.startReplay != nil {
		return s.startReplay()
	}
	return transport.Success(domain.ReplayStart{Status: "started", JobID: "j1", RowsDetected: 100})
}

func (s *stubBackend) ReplayStatus(_ context.Context, _ string) transport.Outcome[domain.ReplayJob] {
	n := s.hit("replay.status")
	if s.replayStatus != nil {
		return s.replayStatus(n)
	}
	return transport.Success(domain.ReplayJob{Status: domain.JobRunning})
}

func networkFailure[T any]() transport.Outcome[T] {
	return transport.Fail[T](&transport.Failure{Kind: transport.KindNetwork, Message: transport.NetworkErrorMessage})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// settle дает уже отправленным горутинам шанс отработать перед проверкой "ничего не произошло".
func settle() { time.Sleep(30 * time.Millisecond) }
