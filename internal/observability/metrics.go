package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsadvance_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newsadvance_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CommentsCreated counts new comments by kind (top_level, reply).
	CommentsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsadvance_comments_created_total",
		Help: "Total number of comments created",
	}, []string{"kind"})

	// CommentMutations counts successful gated mutations by action class.
	CommentMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsadvance_comment_mutations_total",
		Help: "Total number of successful comment mutations by action",
	}, []string{"action"})

	// VoteTransitions counts vote ledger transitions (create, flip, retract, noop).
	VoteTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsadvance_vote_transitions_total",
		Help: "Total number of vote ledger transitions by kind",
	}, []string{"transition"})

	// RateLimitRejections counts cooldown rejections by action class.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsadvance_rate_limit_rejections_total",
		Help: "Total number of requests rejected by the cooldown gate",
	}, []string{"action"})

	// CooldownFallbacks counts cooldown checks served by the in-process limiter.
	CooldownFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsadvance_cooldown_fallbacks_total",
		Help: "Total number of cooldown checks that fell back to the local limiter",
	})

	// ThreadAssemblyLatency records how long building a thread page takes.
	ThreadAssemblyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newsadvance_thread_assembly_seconds",
		Help:    "Thread assembly latency in seconds by display mode",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// WebSocketConnectionsTotal is the gauge of open live-thread connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "newsadvance_websocket_connections",
		Help: "Number of active live-thread WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsadvance_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// TrackThreadAssembly returns a function that records assembly latency for mode.
func TrackThreadAssembly(mode string) func() {
	start := time.Now()
	return func() {
		ThreadAssemblyLatency.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}
}
