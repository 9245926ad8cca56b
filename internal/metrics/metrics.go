// Package metrics собирает Prometheus-метрики решения FAQ/эскалация и рассылки уведомлений.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voice_support"

// Outcome labels for the decisions counter.
const (
	OutcomeAnswered  = "answered"
	OutcomeEscalated = "escalated"
	OutcomeReplayed  = "replayed"
	OutcomeFailed    = "failed"
)

// Metrics держит собственный registry, чтобы тесты не делили глобальное состояние.
// Nil *Metrics допустим: все методы становятся no-op.
type Metrics struct {
	registry *prometheus.Registry

	decisions          *prometheus.CounterVec
	matchScore         prometheus.Histogram
	embeddingFallbacks prometheus.Counter
	malformed          prometheus.Counter
	notifications      *prometheus.CounterVec
	droppedEvents      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Escalation decisions by outcome.",
		}, []string{"outcome"}),
		matchScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_score",
			Help:      "Best FAQ similarity score per query.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.65, 0.7, 0.75, 0.8, 0.9, 1},
		}),
		embeddingFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_fallbacks_total",
			Help:      "Embedding calls replaced by the neutral vector.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_candidates_total",
			Help:      "FAQ entries skipped because of an unusable stored vector.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Admin notifications produced by type.",
		}, []string{"type"}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Events or deliveries dropped because a queue was full.",
		}),
	}
	m.registry.MustRegister(
		m.decisions,
		m.matchScore,
		m.embeddingFallbacks,
		m.malformed,
		m.notifications,
		m.droppedEvents,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler отдаёт /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) RecordDecision(outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveMatchScore(score float64) {
	if m == nil {
		return
	}
	m.matchScore.Observe(score)
}

func (m *Metrics) RecordEmbeddingFallback() {
	if m == nil {
		return
	}
	m.embeddingFallbacks.Inc()
}

func (m *Metrics) RecordMalformedCandidate() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

func (m *Metrics) RecordNotification(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordDropped() {
	if m == nil {
		return
	}
	m.droppedEvents.Inc()
}
