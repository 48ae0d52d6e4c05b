package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the arena.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	TicksAdvanced     prometheus.Counter
	TickDuration      prometheus.Histogram
	MatchesStarted    prometheus.Counter
	MatchesFinished   prometheus.Counter
	MatchesActive     prometheus.Gauge
	QueueSize         prometheus.Gauge
	DecisionFallbacks *prometheus.CounterVec
	EventsDropped     *prometheus.CounterVec
	ClientsConnected  prometheus.Gauge
	PersistErrors     *prometheus.CounterVec
	OutboxPublished   prometheus.Counter
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TicksAdvanced: factory.NewCounter(prometheus.CounterOpts{
			Name: "arena_ticks_advanced_total",
			Help: "Ticks applied across all matches",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_tick_duration_seconds",
			Help:    "Time to apply one tick including decisions",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		MatchesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "arena_matches_started_total",
			Help: "Matches moved to running",
		}),
		MatchesFinished: factory.NewCounter(prometheus.CounterOpts{
			Name: "arena_matches_finished_total",
			Help: "Matches that reached their tick limit",
		}),
		MatchesActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arena_matches_active",
			Help: "Matches currently running",
		}),
		QueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arena_queue_size",
			Help: "Entries waiting in the join queue",
		}),
		DecisionFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_decision_fallbacks_total",
			Help: "External decisions replaced by the rule-based result",
		}, []string{"reason"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_events_dropped_total",
			Help: "Outbound events that were not delivered",
		}, []string{"reason"}),
		ClientsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arena_clients_connected",
			Help: "Connected websocket subscribers",
		}),
		PersistErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_persist_errors_total",
			Help: "Failed persistence writes",
		}, []string{"op"}),
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "arena_outbox_published_total",
			Help: "Outbox events published to the event bus",
		}),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.TicksAdvanced.Inc()
	m.TickDuration.Observe(d.Seconds())
}

func (m *Metrics) MatchStarted() {
	if m == nil {
		return
	}
	m.MatchesStarted.Inc()
	m.MatchesActive.Inc()
}

func (m *Metrics) MatchFinished() {
	if m == nil {
		return
	}
	m.MatchesFinished.Inc()
	m.MatchesActive.Dec()
}

func (m *Metrics) MatchAbandoned() {
	if m == nil {
		return
	}
	m.MatchesActive.Dec()
}

func (m *Metrics) SetQueueSize(n int) {
	if m == nil {
		return
	}
	m.QueueSize.Set(float64(n))
}

func (m *Metrics) DecisionFallback(reason string) {
	if m == nil {
		return
	}
	m.DecisionFallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) EventDropped(reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.ClientsConnected.Inc()
}

func (m *Metrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.ClientsConnected.Dec()
}

func (m *Metrics) PersistError(op string) {
	if m == nil {
		return
	}
	m.PersistErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) OutboxEventPublished() {
	if m == nil {
		return
	}
	m.OutboxPublished.Inc()
}
