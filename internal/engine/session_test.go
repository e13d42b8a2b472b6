package engine

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/xela07ax/ids-dashboard/internal/domain"
	"github.com/xela07ax/ids-dashboard/internal/poller/pollertest"
	"github.com/xela07ax/ids-dashboard/internal/transport"
)

func newTestSession(t *testing.T, api *stubBackend) (*SessionController, *pollertest.Clock) {
	t.Helper()
	clock := pollertest.NewClock()
	c := NewSessionController(api, SessionConfig{}, WithLogger(zap.NewNop()), WithTicker(clock.NewTicker))
	t.Cleanup(c.Close)
	return c, clock
}

func TestReconcileNotRunningEndsPaused(t *testing.T) {
	api := newStub()
	api.monitorStatus = func() transport.Outcome[domain.MonitorStatus] {
		return transport.Success(domain.MonitorStatus{Running: false})
	}
	c, clock := newTestSession(t, api)

	if err := c.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	snap := c.Snapshot()
	if snap.Monitor.Running {
		t.Fatalf("expected paused")
	}
	if snap.Monitor.LastSyncedAt == nil {
		t.Fatalf("expected last sync time to be set")
	}
	if len(snap.Alerts) != 0 {
		t.Fatalf("expected empty alert feed, got %d", len(snap.Alerts))
	}
	if clock.Active() != 0 {
		t.Fatalf("expected no active pollers, got %d", clock.Active())
	}
	if snap.Source == nil || snap.Source.Source != "replay" {
		t.Fatalf("expected source status to be recorded, got %+v", snap.Source)
	}
}

func TestStartActivatesBothPollers(t *testing.T) {
	api := newStub()
	c, clock := newTestSession(t, api)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !c.Running() {
		t.Fatalf("expected active")
	}
	if clock.Active() != 2 {
		t.Fatalf("expected stats and alerts tickers, got %d", clock.Active())
	}
	for _, ti := range []string{"stats", "alerts"} {
		name := ti
		waitFor(t, name+" first request", func() bool { return api.count(name) == 1 })
	}
	waitFor(t, "alerts applied", func() bool { return len(c.Snapshot().Alerts) == 1 })

	clock.Tick()
	waitFor(t, "second stats request", func() bool { return api.count("stats") == 2 })
	waitFor(t, "second alerts request", func() bool { return api.count("alerts") == 2 })
}

func TestStopClearsAlertFeed(t *testing.T) {
	api := newStub()
	c, clock := newTestSession(t, api)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "alerts applied", func() bool { return len(c.Snapshot().Alerts) == 1 })

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	snap := c.Snapshot()
	if snap.Monitor.Running || len(snap.Alerts) != 0 {
		t.Fatalf("expected paused with empty feed, got running=%v alerts=%d", snap.Monitor.Running, len(snap.Alerts))
	}
	if clock.Active() != 0 {
		t.Fatalf("expected pollers stopped, got %d live tickers", clock.Active())
	}

	before := api.count("stats")
	clock.Tick()
	settle()
	if api.count("stats") != before {
		t.Fatalf("expected no requests after stop")
	}
}

func TestReconcileToNotRunningClearsAlertFeed(t *testing.T) {
	api := newStub()
	running := true
	api.monitorStatus = func() transport.Outcome[domain.MonitorStatus] {
		return transport.Success(domain.MonitorStatus{Running: running})
	}
	c, clock := newTestSession(t, api)

	if err := c.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	waitFor(t, "alerts applied", func() bool { return len(c.Snapshot().Alerts) == 1 })

	// повторная сверка в том же состоянии не перезапускает поллеры
	if err := c.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if clock.Created() != 2 {
		t.Fatalf("expected pollers not to be restarted, created %d tickers", clock.Created())
	}

	running = false
	if err := c.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if c.Running() || len(c.Snapshot().Alerts) != 0 {
		t.Fatalf("expected paused with empty feed")
	}
}

func TestFailedCommandsPreserveState(t *testing.T) {
	api := newStub()
	api.startMonitor = func() transport.Outcome[domain.Ack] {
		return transport.Fail[domain.Ack](&transport.Failure{Kind: transport.KindHTTP, Message: "boom", StatusCode: 500})
	}
	c, clock := newTestSession(t, api)

	err := c.Start(context.Background())
	var f *transport.Failure
	if !errors.As(err, &f) || f.StatusCode != 500 {
		t.Fatalf("expected transport failure, got %v", err)
	}
	snap := c.Snapshot()
	if snap.Monitor.Running {
		t.Fatalf("failed start must not flip state")
	}
	if snap.Notice == nil || snap.Notice.Level != domain.NoticeError {
		t.Fatalf("expected error notice, got %+v", snap.Notice)
	}
	if snap.Busy {
		t.Fatalf("busy flag must be cleared")
	}
	if clock.Created() != 0 {
		t.Fatalf("no pollers expected after failed start")
	}
}

func TestFailedStopKeepsActive(t *testing.T) {
	api := newStub()
	api.stopMonitor = func() transport.Outcome[domain.Ack] { return networkFailure[domain.Ack]() }
	c, clock := newTestSession(t, api)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "alerts applied", func() bool { return len(c.Snapshot().Alerts) == 1 })

	if err := c.Stop(context.Background()); err == nil {
		t.Fatalf("expected stop to fail")
	}
	snap := c.Snapshot()
	if !snap.Monitor.Running || len(snap.Alerts) != 1 {
		t.Fatalf("failed stop must keep state, got running=%v alerts=%d", snap.Monitor.Running, len(snap.Alerts))
	}
	if clock.Active() != 2 {
		t.Fatalf("pollers must keep running, got %d", clock.Active())
	}
}

func TestAlertsFailureKeepsLastFeed(t *testing.T) {
	api := newStub()
	api.alerts = func(n int) transport.Outcome[domain.AlertFeed] {
		if n == 1 {
			return transport.Success(domain.AlertFeed{Items: []domain.AlertRecord{{Kind: "PortScan", RiskLevel: domain.RiskMedium}}})
		}
		return networkFailure[domain.AlertFeed]()
	}
	c, clock := newTestSession(t, api)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "alerts applied", func() bool { return len(c.Snapshot().Alerts) == 1 })

	clock.Tick()
	waitFor(t, "warning notice", func() bool {
		n := c.Snapshot().Notice
		return n != nil && n.Level == domain.NoticeWarn
	})
	snap := c.Snapshot()
	if len(snap.Alerts) != 1 || snap.Alerts[0].Kind != "PortScan" {
		t.Fatalf("expected last known feed to be kept, got %+v", snap.Alerts)
	}
}

func TestLateAlertsResponseAfterStopIsDropped(t *testing.T) {
	api := newStub()
	release := make(chan struct{})
	api.alerts = func(n int) transport.Outcome[domain.AlertFeed] {
		if n == 2 {
			<-release
		}
		return transport.Success(domain.AlertFeed{Items: []domain.AlertRecord{{Kind: "DDoS"}}})
	}
	c, clock := newTestSession(t, api)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "alerts applied", func() bool { return len(c.Snapshot().Alerts) == 1 })

	clock.Tick()
	waitFor(t, "second alerts request in flight", func() bool { return api.count("alerts") == 2 })

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	close(release)
	settle()

	if n := len(c.Snapshot().Alerts); n != 0 {
		t.Fatalf("late response must not repopulate the feed, got %d alerts", n)
	}
}

func TestResetStatsRefreshesOnceWhilePaused(t *testing.T) {
	api := newStub()
	c, clock := newTestSession(t, api)

	if err := c.ResetStats(context.Background()); err != nil {
		t.Fatalf("ResetStats: %v", err)
	}
	if api.count("stats") != 1 || api.count("alerts") != 1 {
		t.Fatalf("expected one stats and one alerts refresh, got %d/%d", api.count("stats"), api.count("alerts"))
	}
	if c.Snapshot().Stats == nil {
		t.Fatalf("expected stats snapshot")
	}
	if c.Running() || clock.Created() != 0 {
		t.Fatalf("reset must not change polling")
	}
}

func TestResetStatsFailure(t *testing.T) {
	api := newStub()
	api.resetStats = func() transport.Outcome[domain.Ack] {
		return transport.Fail[domain.Ack](&transport.Failure{Kind: transport.KindHTTP, Message: "Request failed (503)", StatusCode: 503})
	}
	c, _ := newTestSession(t, api)

	if err := c.ResetStats(context.Background()); err == nil {
		t.Fatalf("expected failure")
	}
	if api.count("stats") != 0 {
		t.Fatalf("no refresh expected after failed reset")
	}
}

type recordingBroadcaster struct{ published []bool }

func (b *recordingBroadcaster) Publish(_ context.Context, running bool) error {
	b.published = append(b.published, running)
	return nil
}

func TestCommandsAreBroadcastAndHooked(t *testing.T) {
	api := newStub()
	b := &recordingBroadcaster{}
	clock := pollertest.NewClock()
	c := NewSessionController(api, SessionConfig{}, WithTicker(clock.NewTicker), WithBroadcaster(b))
	defer c.Close()

	var hooked []error
	c.OnReconcile(func(err error) { hooked = append(hooked, err) })

	_ = c.Start(context.Background())
	_ = c.Stop(context.Background())
	if len(b.published) != 2 || !b.published[0] || b.published[1] {
		t.Fatalf("unexpected broadcasts %v", b.published)
	}

	api.monitorStatus = func() transport.Outcome[domain.MonitorStatus] { return networkFailure[domain.MonitorStatus]() }
	if err := c.Reconcile(context.Background()); err == nil {
		t.Fatalf("expected reconcile failure")
	}
	if len(hooked) != 1 || hooked[0] == nil {
		t.Fatalf("expected hook to observe the failure, got %v", hooked)
	}
}

func TestCloseDuringReconcileKeepsControllerTornDown(t *testing.T) {
	api := newStub()
	entered := make(chan struct{})
	release := make(chan struct{})
	api.monitorStatus = func() transport.Outcome[domain.MonitorStatus] {
		close(entered)
		<-release
		return transport.Success(domain.MonitorStatus{Running: true})
	}
	c, clock := newTestSession(t, api)

	errc := make(chan error, 1)
	go func() { errc <- c.Reconcile(context.Background()) }()

	<-entered
	c.Close()
	close(release)

	if err := <-errc; !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	settle()

	snap := c.Snapshot()
	if snap.Monitor.Running || snap.Monitor.LastSyncedAt != nil {
		t.Fatalf("state changed after Close: %+v", snap.Monitor)
	}
	if n := api.count("stats") + api.count("alerts"); n != 0 {
		t.Fatalf("expected no poll requests after Close, got %d", n)
	}
	if clock.Active() != 0 || clock.Created() != 0 {
		t.Fatalf("expected no tickers, active=%d created=%d", clock.Active(), clock.Created())
	}

	if err := c.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Start after Close: expected ErrClosed, got %v", err)
	}
	if api.count("start") != 0 {
		t.Fatalf("closed controller must not reach the backend")
	}
}

func TestCloseStopsActivePollers(t *testing.T) {
	api := newStub()
	c, clock := newTestSession(t, api)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "first stats request", func() bool { return api.count("stats") == 1 })
	waitFor(t, "first alerts request", func() bool { return api.count("alerts") == 1 })

	c.Close()
	if clock.Active() != 0 {
		t.Fatalf("expected all tickers stopped, got %d", clock.Active())
	}
	if c.Running() {
		t.Fatalf("expected paused after Close")
	}

	clock.Tick()
	settle()
	if n := api.count("stats"); n != 1 {
		t.Fatalf("expected no stats requests after Close, got %d", n)
	}
}
