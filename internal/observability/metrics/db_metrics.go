package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func registerDBMetrics(db *sql.DB, logger zerolog.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "commands_awaiting_delivery",
			Help: "Commands never successfully handed to a channel",
		},
		func() float64 {
			return queryCount(db, logger, `
SELECT COUNT(*) FROM pending_commands
WHERE NOT published AND NOT acknowledged
	AND (expires_at IS NULL OR expires_at > NOW())`)
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "commands_in_flight",
			Help: "Commands delivered but not yet acknowledged",
		},
		func() float64 {
			return queryCount(db, logger, `
SELECT COUNT(*) FROM pending_commands
WHERE published AND NOT acknowledged
	AND (expires_at IS NULL OR expires_at > NOW())`)
		},
	))
}

func queryCount(db *sql.DB, logger zerolog.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		logger.Warn().Err(err).Msg("Backlog gauge query failed")
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
