package engine

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xela07ax/ids-dashboard/internal/audit"
	"github.com/xela07ax/ids-dashboard/internal/domain"
	"github.com/xela07ax/ids-dashboard/internal/poller/pollertest"
	"github.com/xela07ax/ids-dashboard/internal/transport"
)

type staticGate struct{ running atomic.Bool }

func (g *staticGate) Running() bool { return g.running.Load() }

func runningGate() *staticGate {
	g := &staticGate{}
	g.running.Store(true)
	return g
}

func csvFile() *transport.FileUpload {
	return &transport.FileUpload{Name: "flows.csv", Content: strings.NewReader("a,b\n1,2\n")}
}

func newTestReplay(t *testing.T, api *stubBackend, gate MonitorGate, opts ...Option) (*ReplayController, *pollertest.Clock) {
	t.Helper()
	clock := pollertest.NewClock()
	opts = append(opts, WithTicker(clock.NewTicker))
	c := NewReplayController(api, gate, 0, opts...)
	t.Cleanup(c.Close)
	return c, clock
}

func TestReplayPollsUntilDone(t *testing.T) {
	api := newStub()
	api.replayStatus = func(n int) transport.Outcome[domain.ReplayJob] {
		if n == 1 {
			return transport.Success(domain.ReplayJob{JobID: "j1", Status: domain.JobRunning, Processed: 10, Total: 100})
		}
		return transport.Success(domain.ReplayJob{JobID: "j1", Status: domain.JobDone, Processed: 100, Total: 100, BenignCount: 90, AttackCount: 10})
	}
	c, clock := newTestReplay(t, api, runningGate())

	start, err := c.StartReplay(context.Background(), csvFile(), domain.ReplayParams{MaxRows: 100, SleepMs: 10})
	if err != nil {
		t.Fatalf("StartReplay: %v", err)
	}
	if start.JobID != "j1" {
		t.Fatalf("unexpected job id %q", start.JobID)
	}

	waitFor(t, "first poll", func() bool {
		s := c.Snapshot()
		return s.Job != nil && s.Job.Status == domain.JobRunning
	})
	if p := c.Snapshot().Progress; p != 10 {
		t.Fatalf("expected 10%% progress, got %d", p)
	}

	clock.Tick()
	waitFor(t, "done", func() bool {
		s := c.Snapshot()
		return s.Job != nil && s.Job.Status == domain.JobDone
	})
	snap := c.Snapshot()
	if snap.Progress != 100 {
		t.Fatalf("expected 100%% progress, got %d", snap.Progress)
	}
	waitFor(t, "polling stopped", func() bool { return !c.Snapshot().Polling })

	clock.Tick()
	clock.Tick()
	settle()
	if n := api.count("replay.status"); n != 2 {
		t.Fatalf("expected exactly 2 status requests, got %d", n)
	}
	if c.Snapshot().Job.Status != domain.JobDone {
		t.Fatalf("terminal status must not change")
	}
}

func TestReplayFailedStatusIsTerminal(t *testing.T) {
	api := newStub()
	api.replayStatus = func(n int) transport.Outcome[domain.ReplayJob] {
		if n == 1 {
			return transport.Success(domain.ReplayJob{Status: domain.JobFailed, Message: "bad csv"})
		}
		return transport.Success(domain.ReplayJob{Status: domain.JobRunning})
	}
	c, clock := newTestReplay(t, api, runningGate())

	if _, err := c.StartReplay(context.Background(), csvFile(), domain.ReplayParams{}); err != nil {
		t.Fatalf("StartReplay: %v", err)
	}
	waitFor(t, "failed", func() bool {
		s := c.Snapshot()
		return s.Job != nil && s.Job.Status == domain.JobFailed
	})

	clock.Tick()
	settle()
	snap := c.Snapshot()
	if api.count("replay.status") != 1 || snap.Job.Status != domain.JobFailed {
		t.Fatalf("failed job must absorb: %d requests, status %s", api.count("replay.status"), snap.Job.Status)
	}
	if snap.Job.JobID != "j1" {
		t.Fatalf("job id must be kept, got %q", snap.Job.JobID)
	}
	if snap.Notice == nil || snap.Notice.Level != domain.NoticeError {
		t.Fatalf("expected error notice, got %+v", snap.Notice)
	}
}

func TestReplayStatusTransportFailureStopsPolling(t *testing.T) {
	api := newStub()
	api.replayStatus = func(int) transport.Outcome[domain.ReplayJob] { return networkFailure[domain.ReplayJob]() }
	c, clock := newTestReplay(t, api, runningGate())

	if _, err := c.StartReplay(context.Background(), csvFile(), domain.ReplayParams{}); err != nil {
		t.Fatalf("StartReplay: %v", err)
	}
	waitFor(t, "failed", func() bool {
		s := c.Snapshot()
		return s.Job != nil && s.Job.Status == domain.JobFailed
	})
	if msg := c.Snapshot().Job.Message; msg != transport.NetworkErrorMessage {
		t.Fatalf("expected transport message on job, got %q", msg)
	}

	clock.Tick()
	settle()
	if n := api.count("replay.status"); n != 1 {
		t.Fatalf("no retries expected, got %d requests", n)
	}
}

func TestReplayPreconditions(t *testing.T) {
	api := newStub()
	paused := &staticGate{}
	c, _ := newTestReplay(t, api, paused)

	_, err := c.StartReplay(context.Background(), nil, domain.ReplayParams{})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "file" {
		t.Fatalf("expected file validation error, got %v", err)
	}

	_, err = c.StartReplay(context.Background(), csvFile(), domain.ReplayParams{})
	if !errors.Is(err, ErrNotMonitoring) {
		t.Fatalf("expected ErrNotMonitoring, got %v", err)
	}
	snap := c.Snapshot()
	if snap.Notice == nil || snap.Notice.Level != domain.NoticeWarn {
		t.Fatalf("expected warning notice, got %+v", snap.Notice)
	}

	paused.running.Store(true)
	_, err = c.StartReplay(context.Background(), csvFile(), domain.ReplayParams{MaxRows: -1})
	if !errors.As(err, &verr) || verr.Field != "max_rows" {
		t.Fatalf("expected max_rows validation error, got %v", err)
	}

	if n := api.count("replay.start"); n != 0 {
		t.Fatalf("no backend call expected, got %d", n)
	}
}

func TestNewReplayStopsPreviousJobPolling(t *testing.T) {
	api := newStub()
	var started atomic.Int32
	api.startReplay = func() transport.Outcome[domain.ReplayStart] {
		if started.Add(1) == 1 {
			return transport.Success(domain.ReplayStart{JobID: "j1"})
		}
		return transport.Success(domain.ReplayStart{JobID: "j2"})
	}
	c, clock := newTestReplay(t, api, runningGate())

	if _, err := c.StartReplay(context.Background(), csvFile(), domain.ReplayParams{}); err != nil {
		t.Fatalf("first StartReplay: %v", err)
	}
	if _, err := c.StartReplay(context.Background(), csvFile(), domain.ReplayParams{}); err != nil {
		t.Fatalf("second StartReplay: %v", err)
	}
	if clock.Active() != 1 {
		t.Fatalf("expected a single live job ticker, got %d", clock.Active())
	}
	if job := c.Snapshot().Job; job == nil || job.JobID != "j2" {
		t.Fatalf("expected current job j2, got %+v", job)
	}
}

type eventSink struct {
	events chan audit.Event
}

func (s *eventSink) Log(e audit.Event) { s.events <- e }

func TestReplayOutcomesAreJournaled(t *testing.T) {
	api := newStub()
	api.replayStatus = func(int) transport.Outcome[domain.ReplayJob] {
		return transport.Success(domain.ReplayJob{Status: domain.JobDone, Processed: 5, Total: 5})
	}
	sink := &eventSink{events: make(chan audit.Event, 8)}
	c, _ := newTestReplay(t, api, runningGate(), WithJournal(sink))

	if _, err := c.StartReplay(context.Background(), csvFile(), domain.ReplayParams{}); err != nil {
		t.Fatalf("StartReplay: %v", err)
	}

	want := map[string]bool{"replay.start": false, "replay.finish": false}
	for i := 0; i < 2; i++ {
		e := <-sink.events
		if e.Status != audit.StatusSuccess || e.Subject != "j1" {
			t.Fatalf("unexpected event %+v", e)
		}
		want[e.Action] = true
	}
	for action, seen := range want {
		if !seen {
			t.Fatalf("missing %s event", action)
		}
	}
}

func TestReplayJobsShareOnePollMetricSeries(t *testing.T) {
	api := newStub()
	var started atomic.Int32
	api.startReplay = func() transport.Outcome[domain.ReplayStart] {
		if started.Add(1) == 1 {
			return transport.Success(domain.ReplayStart{JobID: "j1"})
		}
		return transport.Success(domain.ReplayStart{JobID: "j2"})
	}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	c, _ := newTestReplay(t, api, runningGate(), WithMetrics(metrics))

	for i := 0; i < 2; i++ {
		if _, err := c.StartReplay(context.Background(), csvFile(), domain.ReplayParams{}); err != nil {
			t.Fatalf("StartReplay #%d: %v", i+1, err)
		}
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var streams []string
	var ticks float64
	for _, mf := range mfs {
		if mf.GetName() != "ids_dashboard_poll_ticks_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "stream" {
					streams = append(streams, l.GetValue())
				}
			}
			ticks += m.GetCounter().GetValue()
		}
	}
	if len(streams) != 1 || streams[0] != "replay" {
		t.Fatalf("expected a single replay poll series, got %v", streams)
	}
	if ticks != 2 {
		t.Fatalf("expected 2 replay ticks, got %v", ticks)
	}
}

func TestCloseDuringStartReplayDoesNotStartPolling(t *testing.T) {
	api := newStub()
	entered := make(chan struct{})
	release := make(chan struct{})
	api.startReplay = func() transport.Outcome[domain.ReplayStart] {
		close(entered)
		<-release
		return transport.Success(domain.ReplayStart{JobID: "late"})
	}
	c, clock := newTestReplay(t, api, runningGate())

	errc := make(chan error, 1)
	go func() {
		_, err := c.StartReplay(context.Background(), csvFile(), domain.ReplayParams{})
		errc <- err
	}()

	<-entered
	c.Close()
	close(release)

	if err := <-errc; !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	settle()
	if n := api.count("replay.status"); n != 0 {
		t.Fatalf("expected no status requests after Close, got %d", n)
	}
	if clock.Created() != 0 {
		t.Fatalf("expected no ticker, created=%d", clock.Created())
	}
	snap := c.Snapshot()
	if snap.Job != nil || snap.Polling {
		t.Fatalf("closed controller must not track the job: %+v", snap)
	}
}
