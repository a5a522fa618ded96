// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the kontrakt assistant.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for model latencies and for
// whole turns, ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// StoreBuckets covers session store round trips, from 1ms to 5s.
var StoreBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5}

var (
	// RequestsTotal counts HTTP requests by method, status class and path.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrakt_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "path"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kontrakt_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "path"},
	)

	// RequestsInFlight tracks requests currently being served.
	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kontrakt_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// TurnsTotal counts conversation turns by outcome
	// (ok, degraded, model_error, cancelled).
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrakt_turns_total",
			Help: "Conversation turns",
		},
		[]string{"outcome"},
	)

	// TurnDuration records end-to-end turn latency in seconds.
	TurnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kontrakt_turn_duration_seconds",
			Help:    "Turn duration",
			Buckets: LLMBuckets,
		},
	)

	// TurnsWaiting tracks turns queued behind another turn of the same user.
	TurnsWaiting = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kontrakt_turns_waiting",
			Help: "Turns waiting for the per-user lock",
		},
	)

	// SpliceTotal counts how new model messages were merged into transcripts.
	SpliceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrakt_splice_total",
			Help: "Transcript splices by mode",
		},
		[]string{"mode"},
	)

	// InvariantViolationsTotal counts transcripts that failed validation
	// before being persisted.
	InvariantViolationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kontrakt_transcript_invariant_violations_total",
			Help: "Transcripts persisted with invariant violations",
		},
	)

	// RenderDroppedPartsTotal counts parts dropped during projection.
	RenderDroppedPartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kontrakt_render_dropped_parts_total",
			Help: "Parts dropped while projecting transcripts",
		},
	)

	// SessionStoreOpsTotal counts session store operations.
	SessionStoreOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrakt_session_store_operations_total",
			Help: "Session store operations",
		},
		[]string{"backend", "op", "status"},
	)

	// SessionStoreLatency records session store latency in seconds.
	SessionStoreLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kontrakt_session_store_latency_seconds",
			Help:    "Session store latency",
			Buckets: StoreBuckets,
		},
		[]string{"backend", "op"},
	)

	// SessionsExpiredTotal counts sessions deleted because they went stale.
	SessionsExpiredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrakt_sessions_expired_total",
			Help: "Sessions expired on load",
		},
		[]string{"backend"},
	)

	// ProviderRequestsTotal counts requests sent to the model backend.
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrakt_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records model backend latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kontrakt_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens processed by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrakt_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// ToolInvocationsTotal counts tool invocations by name and outcome.
	ToolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrakt_tool_invocations_total",
			Help: "Tool invocations",
		},
		[]string{"tool_name", "status"},
	)

	// ToolDuration records tool handler latency in seconds.
	ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kontrakt_tool_duration_seconds",
			Help:    "Tool duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool_name"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kontrakt_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RequestsInFlight,
		TurnsTotal,
		TurnDuration,
		TurnsWaiting,
		SpliceTotal,
		InvariantViolationsTotal,
		RenderDroppedPartsTotal,
		SessionStoreOpsTotal,
		SessionStoreLatency,
		SessionsExpiredTotal,
		ProviderRequestsTotal,
		ProviderLatency,
		ProviderTokensTotal,
		ToolInvocationsTotal,
		ToolDuration,
		RateLimitRejectedTotal,
	)
}
