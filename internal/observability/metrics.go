package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionEvents   *prometheus.CounterVec
	Commands        *prometheus.CounterVec
	ParseFallbacks  prometheus.Counter
	IntentDecisions *prometheus.CounterVec
	OracleErrors    *prometheus.CounterVec
	GatewayErrors   *prometheus.CounterVec
	WSMessages      *prometheus.CounterVec
	CommandLatency  prometheus.Histogram

	stages *commandStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live conversational sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		Commands: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Handled commands by mode and outcome.",
		}, []string{"mode", "outcome"}),
		ParseFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_fallbacks_total",
			Help:      "Times the AI parser failed and the lexical parser took over.",
		}),
		IntentDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_decisions_total",
			Help:      "Intent classifications by result.",
		}, []string{"intent"}),
		OracleErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_errors_total",
			Help:      "Oracle failures by backend.",
		}, []string{"backend"}),
		GatewayErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_errors_total",
			Help:      "Data backend failures by operation.",
		}, []string{"op"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		CommandLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_latency_ms",
			Help:      "End-to-end command handling latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000},
		}),
		stages: newCommandStageWindow(256),
	}
}

func (m *Metrics) ObserveCommandLatency(d time.Duration) {
	m.CommandLatency.Observe(float64(d.Milliseconds()))
}

// ObserveStage records one pipeline stage duration in the rolling window
// served by the perf endpoint.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil || m.stages == nil {
		return
	}
	m.stages.Observe(stage, float64(d.Microseconds())/1000)
}

// SnapshotStages returns the rolling latency window for the perf endpoint.
func (m *Metrics) SnapshotStages() StageSnapshot {
	if m == nil || m.stages == nil {
		return StageSnapshot{}
	}
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
