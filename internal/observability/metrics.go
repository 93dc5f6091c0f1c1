package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the relay.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ActiveSessions      prometheus.Gauge
	Streaming           prometheus.Gauge
	OpenStreams         *prometheus.GaugeVec
	SessionEvents       *prometheus.CounterVec
	TranslationRequests *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec
	TranslatorCalls     *prometheus.CounterVec
	StreamFrames        *prometheus.CounterVec
	SynthesisRequests   *prometheus.CounterVec
	MailboxDrops        prometheus.Counter
	CleanupFailures     prometheus.Counter
	DispatchLatency     prometheus.Histogram

	stages *stageWindow
}

// NewMetrics registers instruments on the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith registers instruments on reg; tests pass a private registry.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live translation client sessions.",
		}),
		Streaming: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streaming",
			Help:      "1 while audio capture and recognition are running.",
		}),
		OpenStreams: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_streams",
			Help:      "Open server-push connections by stream.",
		}, []string{"stream"}),
		SessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		TranslationRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_requests_total",
			Help:      "Translation requests by outcome.",
		}, []string{"outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Translation cache lookups by answering tier.",
		}, []string{"tier"}),
		TranslatorCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translator_calls_total",
			Help:      "Calls to the external translator by result.",
		}, []string{"result"}),
		StreamFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "Server-push frames written by stream and kind.",
		}, []string{"stream", "kind"}),
		SynthesisRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_requests_total",
			Help:      "Speech synthesis requests by result.",
		}, []string{"result"}),
		MailboxDrops: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mailbox_drops_total",
			Help:      "Messages evicted from full client mailboxes.",
		}),
		CleanupFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_failures_total",
			Help:      "Temporary resources that could not be released.",
		}),
		DispatchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_latency_ms",
			Help:      "Latency of translator dispatches in milliseconds, retries included.",
			Buckets:   []float64{50, 100, 200, 300, 500, 800, 1200, 2000, 3500},
		}),
		stages: newStageWindow(256),
	}
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) SetStreaming(on bool) {
	if m == nil {
		return
	}
	if on {
		m.Streaming.Set(1)
		return
	}
	m.Streaming.Set(0)
}

func (m *Metrics) StreamOpened(stream string) {
	if m == nil {
		return
	}
	m.OpenStreams.WithLabelValues(stream).Inc()
}

func (m *Metrics) StreamClosed(stream string) {
	if m == nil {
		return
	}
	m.OpenStreams.WithLabelValues(stream).Dec()
}

func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) TranslationRequest(outcome string) {
	if m == nil {
		return
	}
	m.TranslationRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) CacheLookup(tier string) {
	if m == nil {
		return
	}
	if tier == "" {
		tier = "miss"
	}
	m.CacheLookups.WithLabelValues(tier).Inc()
}

func (m *Metrics) TranslatorCall(result string) {
	if m == nil {
		return
	}
	m.TranslatorCalls.WithLabelValues(result).Inc()
}

func (m *Metrics) StreamFrame(stream, kind string) {
	if m == nil {
		return
	}
	m.StreamFrames.WithLabelValues(stream, kind).Inc()
}

func (m *Metrics) SynthesisRequest(result string) {
	if m == nil {
		return
	}
	m.SynthesisRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) MailboxDrop() {
	if m == nil {
		return
	}
	m.MailboxDrops.Inc()
	m.stages.ObserveIndicator("mailbox_drop")
}

func (m *Metrics) CleanupFailure() {
	if m == nil {
		return
	}
	m.CleanupFailures.Inc()
}

func (m *Metrics) ObserveDispatchLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.DispatchLatency.Observe(float64(d.Milliseconds()))
}

// ObserveStage records a latency sample for the rolling /v1/perf window.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.Observe(stage, durationMS(d))
}

func (m *Metrics) ObserveIndicator(name string) {
	if m == nil {
		return
	}
	m.stages.ObserveIndicator(name)
}

func (m *Metrics) StageSnapshot() StageSnapshot {
	if m == nil {
		return StageSnapshot{GeneratedAt: time.Now().UTC()}
	}
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor serves a specific gatherer, used when metrics live on a private registry.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
