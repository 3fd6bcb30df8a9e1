package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	metricPrefix = "fieldvision_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	commandsIssued     *prometheus.CounterVec
	commandsSuperseded prometheus.Counter

	deliveryAttempts *prometheus.CounterVec
	deliveryLatency  *prometheus.HistogramVec

	acknowledgedTotal prometheus.Counter
	expiredTotal      prometheus.Counter
	exhaustedTotal    prometheus.Counter
	redispatchedTotal prometheus.Counter
)

// Init registers the dispatch metrics and, when a database handle is given,
// DB-backed backlog gauges. Safe to call more than once.
func Init(db *sql.DB, logger zerolog.Logger) {
	registerOnce.Do(func() {
		commandsIssued = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_issued_total",
				Help: "Total commands issued by kind",
			},
			[]string{"kind"},
		)
		commandsSuperseded = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_superseded_total",
				Help: "Total commands force expired by a conflicting issuance",
			},
		)

		deliveryAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "delivery_attempts_total",
				Help: "Total channel delivery attempts by channel and result",
			},
			[]string{"channel", "result"},
		)
		deliveryLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "delivery_latency_seconds",
				Help:    "Channel send latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		)

		acknowledgedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_acknowledged_total",
				Help: "Total commands confirmed by their targets",
			},
		)
		expiredTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_expired_total",
				Help: "Total commands that expired before acknowledgment",
			},
		)
		exhaustedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_exhausted_total",
				Help: "Total commands whose delivery attempt budget ran out",
			},
		)
		redispatchedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_redispatched_total",
				Help: "Total commands replayed after a target came back online",
			},
		)

		prometheus.MustRegister(
			commandsIssued,
			commandsSuperseded,
			deliveryAttempts,
			deliveryLatency,
			acknowledgedTotal,
			expiredTotal,
			exhaustedTotal,
			redispatchedTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncCommandIssued increments the issued counter for one command kind.
func IncCommandIssued(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if commandsIssued != nil {
		commandsIssued.WithLabelValues(kind).Inc()
	}
}

// AddCommandsSuperseded counts commands expired by a conflicting issuance.
func AddCommandsSuperseded(count int) {
	if count <= 0 {
		return
	}
	if commandsSuperseded != nil {
		commandsSuperseded.Add(float64(count))
	}
}

// ObserveDelivery records one channel send with its result and duration.
func ObserveDelivery(channel string, success bool, duration time.Duration) {
	if channel == "" {
		channel = "unknown"
	}
	result := resultSuccess
	if !success {
		result = resultError
	}
	if deliveryAttempts != nil {
		deliveryAttempts.WithLabelValues(channel, result).Inc()
	}
	if deliveryLatency != nil {
		deliveryLatency.WithLabelValues(channel).Observe(duration.Seconds())
	}
}

// AddAcknowledged counts commands confirmed by their targets.
func AddAcknowledged(count int) {
	if count <= 0 {
		return
	}
	if acknowledgedTotal != nil {
		acknowledgedTotal.Add(float64(count))
	}
}

// IncExpired counts one command expiring before acknowledgment.
func IncExpired() {
	if expiredTotal != nil {
		expiredTotal.Inc()
	}
}

// IncExhausted counts one command running out of delivery attempts.
func IncExhausted() {
	if exhaustedTotal != nil {
		exhaustedTotal.Inc()
	}
}

// AddRedispatched counts commands replayed on a presence edge.
func AddRedispatched(count int) {
	if count <= 0 {
		return
	}
	if redispatchedTotal != nil {
		redispatchedTotal.Add(float64(count))
	}
}
