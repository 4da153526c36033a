package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels requests that produced an answer.
	OutcomeSuccess = "success"
	// OutcomeError labels requests that failed on a collaborator or the LLM.
	OutcomeError = "error"
)

const namespace = "flightchat"

var (
	chatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Total number of chat requests, partitioned by reasoning path and outcome.",
		},
		[]string{"path", "outcome"},
	)

	chatRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_request_seconds",
			Help:      "Chat request latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 30},
		},
		[]string{"path"},
	)

	llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM completion calls, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	llmRequestSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_seconds",
			Help:      "LLM completion latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 30},
		},
	)

	parseFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_parse_fallbacks_total",
			Help:      "LLM responses that could not be split into answer and suggestions.",
		},
		[]string{"reason"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Conversation sessions currently held in memory.",
		},
	)
)

// Register attaches flightchat collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		chatRequestsTotal,
		chatRequestSeconds,
		llmRequestsTotal,
		llmRequestSeconds,
		parseFallbacksTotal,
		activeSessions,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveChat records a chat request duration, its reasoning path and outcome.
func ObserveChat(path string, duration time.Duration, outcome string) {
	if path == "" {
		path = "unknown"
	}
	chatRequestsTotal.WithLabelValues(path, normalise(outcome)).Inc()
	chatRequestSeconds.WithLabelValues(path).Observe(nonNegative(duration).Seconds())
}

// ObserveLLM records a single completion call.
func ObserveLLM(duration time.Duration, outcome string) {
	llmRequestsTotal.WithLabelValues(normalise(outcome)).Inc()
	llmRequestSeconds.Observe(nonNegative(duration).Seconds())
}

// ObserveParseFallback counts a response that fell back to raw text.
func ObserveParseFallback(reason string) {
	parseFallbacksTotal.WithLabelValues(reason).Inc()
}

// SetActiveSessions publishes the number of live conversation sessions.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

func normalise(outcome string) string {
	if outcome != OutcomeError {
		return OutcomeSuccess
	}
	return outcome
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
