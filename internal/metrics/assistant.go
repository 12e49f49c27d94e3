package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		sessionsCreated,
		chatTurns,
		uploads,
		degraded,
		upstreamLatency,
	)
}

var (
	sessionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_sessions_created_total",
			Help: "Sessions created, by entry point.",
		},
		[]string{"origin"},
	)

	chatTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_chat_turns_total",
			Help: "Chat turns by outcome.",
		},
		[]string{"outcome"},
	)

	uploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_uploads_total",
			Help: "Document uploads by format and outcome.",
		},
		[]string{"format", "outcome"},
	)

	degraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_degraded_total",
			Help: "Optional features skipped for a request after a collaborator failure.",
		},
		[]string{"feature"},
	)

	upstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_upstream_latency_seconds",
			Help:    "Latency of calls to external collaborators.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"collaborator", "success"},
	)
)

// SessionCreated counts a new session. origin is the entry point that made it.
func SessionCreated(origin string) {
	sessionsCreated.WithLabelValues(norm(origin)).Inc()
}

// ChatTurn counts a finished chat request.
func ChatTurn(outcome string) {
	chatTurns.WithLabelValues(norm(outcome)).Inc()
}

// Upload counts a finished upload request.
func Upload(format, outcome string) {
	uploads.WithLabelValues(norm(format), norm(outcome)).Inc()
}

// Degraded counts a feature that was dropped for one request.
func Degraded(feature string) {
	degraded.WithLabelValues(norm(feature)).Inc()
}

// ObserveUpstream records the latency of one collaborator call started at
// start.
func ObserveUpstream(collaborator string, start time.Time, success bool) {
	upstreamLatency.WithLabelValues(norm(collaborator), strconv.FormatBool(success)).
		Observe(time.Since(start).Seconds())
}

func norm(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
