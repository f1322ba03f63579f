// Package telemetry exposes the loop and model metrics as prometheus collectors.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/itturia/internal/agent/core"
)

const namespace = "itturia"

// Telemetry implements core.Recorder and provider.Observer.
type Telemetry struct {
	rounds         *prometheus.CounterVec
	sessions       *prometheus.CounterVec
	sessionRounds  prometheus.Histogram
	sessionSeconds prometheus.Histogram
	evidence       prometheus.Histogram
	fallbacks      *prometheus.CounterVec
	searchSeconds  prometheus.Histogram
	searchHits     prometheus.Histogram
	searchErrors   prometheus.Counter
	llmRequests    *prometheus.CounterVec
	llmSeconds     *prometheus.HistogramVec
	llmTokens      *prometheus.CounterVec
	indexHealthy   prometheus.Gauge

	logger *zap.Logger
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer, logger *zap.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Telemetry{
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rounds_total",
			Help: "Refinement rounds by evaluation decision.",
		}, []string{"decision"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_total",
			Help: "Finished sessions by outcome.",
		}, []string{"outcome"}),
		sessionRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "session_rounds",
			Help:    "Rounds used per session.",
			Buckets: []float64{1, 2, 3, 4, 5, 7, 10},
		}),
		sessionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "session_duration_seconds",
			Help:    "Wall time of a session including answer synthesis.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		evidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "session_evidence",
			Help:    "Passages handed to answer synthesis.",
			Buckets: []float64{0, 1, 5, 10, 20, 30, 50, 100},
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fallbacks_total",
			Help: "Fallback values used by loop component.",
		}, []string{"component"}),
		searchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "search_duration_seconds",
			Help:    "Full-text search latency.",
			Buckets: prometheus.DefBuckets,
		}),
		searchHits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "search_hits",
			Help:    "Hits returned per search.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		searchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_errors_total",
			Help: "Searches that failed and were treated as empty.",
		}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_requests_total",
			Help: "Language model calls by provider, model and status.",
		}, []string{"provider", "model", "status"}),
		llmSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "llm_request_duration_seconds",
			Help:    "Language model call latency.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"provider", "model"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_tokens_total",
			Help: "Estimated tokens sent to and received from language models.",
		}, []string{"provider", "model", "direction"}),
		indexHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "index_healthy",
			Help: "1 when the last index validation succeeded.",
		}),
		logger: logger,
	}
	for _, c := range []prometheus.Collector{
		t.rounds, t.sessions, t.sessionRounds, t.sessionSeconds, t.evidence, t.fallbacks,
		t.searchSeconds, t.searchHits, t.searchErrors,
		t.llmRequests, t.llmSeconds, t.llmTokens, t.indexHealthy,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Telemetry) SearchObserved(elapsed time.Duration, hits int, err error) {
	t.searchSeconds.Observe(elapsed.Seconds())
	if err != nil {
		t.searchErrors.Inc()
		return
	}
	t.searchHits.Observe(float64(hits))
}

func (t *Telemetry) RoundCompleted(_ int, _ int, decision core.Decision) {
	t.rounds.WithLabelValues(string(decision)).Inc()
}

func (t *Telemetry) FallbackUsed(component string) {
	t.fallbacks.WithLabelValues(component).Inc()
}

func (t *Telemetry) SessionFinished(outcome core.Outcome, rounds, evidence int, elapsed time.Duration) {
	t.sessions.WithLabelValues(string(outcome)).Inc()
	t.sessionRounds.Observe(float64(rounds))
	t.evidence.Observe(float64(evidence))
	t.sessionSeconds.Observe(elapsed.Seconds())
}

func (t *Telemetry) ObserveLLM(provider, model string, elapsed time.Duration, promptTokens, completionTokens int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	t.llmRequests.WithLabelValues(provider, model, status).Inc()
	t.llmSeconds.WithLabelValues(provider, model).Observe(elapsed.Seconds())
	t.llmTokens.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	t.llmTokens.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// SetIndexHealthy records the result of an index validation.
func (t *Telemetry) SetIndexHealthy(ok bool) {
	if ok {
		t.indexHealthy.Set(1)
		return
	}
	t.indexHealthy.Set(0)
	t.logger.Warn("index validation failed")
}
