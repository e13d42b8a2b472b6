package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: длительность запросов к бэкенду
	RequestDuration *prometheus.HistogramVec

	// Traffic: запросы к бэкенду по эндпоинту и исходу (success, network, http)
	TotalRequests *prometheus.CounterVec

	// Тики поллеров по потокам (stats, alerts, reconcile, replay)
	PollTicks *prometheus.CounterVec

	// Команды оператора и их результат
	Commands *prometheus.CounterVec

	MonitorRunning prometheus.Gauge
	ReplayProgress prometheus.Gauge

	// Saturation: состояние Circuit Breaker (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// Journal: заполненность буфера (backpressure)
	JournalBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object: без регистратора метрики пишутся в локальный реестр, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ids_dashboard_backend_request_duration_seconds",
			Help:    "Histogram of backend request latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"endpoint", "outcome"}),

		TotalRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ids_dashboard_backend_requests_total",
			Help: "Total number of backend requests.",
		}, []string{"endpoint", "outcome"}),

		PollTicks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ids_dashboard_poll_ticks_total",
			Help: "Total number of poll actions dispatched per stream.",
		}, []string{"stream"}),

		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ids_dashboard_commands_total",
			Help: "Operator commands by name and result.",
		}, []string{"command", "result"}),

		MonitorRunning: f.NewGauge(prometheus.GaugeOpts{
			Name: "ids_dashboard_monitor_running",
			Help: "Local monitoring state (1=active, 0=paused).",
		}),

		ReplayProgress: f.NewGauge(prometheus.GaugeOpts{
			Name: "ids_dashboard_replay_progress_percent",
			Help: "Progress of the current replay job.",
		}),

		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ids_dashboard_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=open).",
		}, []string{"name"}),

		JournalBufferFill: f.NewGauge(prometheus.GaugeOpts{
			Name: "ids_dashboard_journal_buffer_utilization",
			Help: "Current number of events in journal buffer.",
		}),
	}
}

// ObserveRequest реализует transport.Observer.
func (m *Metrics) ObserveRequest(endpoint, outcome string, d time.Duration) {
	m.TotalRequests.WithLabelValues(endpoint, outcome).Inc()
	m.RequestDuration.WithLabelValues(endpoint, outcome).Observe(d.Seconds())
}

// ObservePoll подходит для poller.WithObserver.
func (m *Metrics) ObservePoll(stream string) {
	m.PollTicks.WithLabelValues(stream).Inc()
}

func (m *Metrics) ObserveCommand(command string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Commands.WithLabelValues(command, result).Inc()
}

func (m *Metrics) SetBreaker(name string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(v)
}

func (m *Metrics) SetJournalFill(n int) {
	m.JournalBufferFill.Set(float64(n))
}

func boolGauge(g prometheus.Gauge, v bool) {
	if v {
		g.Set(1)
		return
	}
	g.Set(0)
}
