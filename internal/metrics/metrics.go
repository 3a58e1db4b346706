// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts completed daily analysis runs by outcome.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_runs_total",
		Help: "Completed daily analysis runs by outcome.",
	}, []string{"outcome"})

	// RunDuration observes end-to-end run latency.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "advisor_run_duration_seconds",
		Help:    "End-to-end duration of a daily analysis run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	// OpenPositions tracks the size of the current book.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "advisor_open_positions",
		Help: "Positions in the current portfolio.",
	})

	// PositionsSold counts positions exited, by reason class.
	PositionsSold = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_positions_sold_total",
		Help: "Positions exited from the portfolio by reason class.",
	}, []string{"reason"})

	// MarketRequests counts upstream chart API calls by result.
	MarketRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_market_requests_total",
		Help: "Upstream market data requests by result.",
	}, []string{"result"})
)

// SoldReasonClass buckets a free-form sold reason into a bounded label.
func SoldReasonClass(reason string) string {
	switch {
	case reason == "":
		return "unknown"
	case strings.Contains(reason, "stop loss"):
		return "stop_loss"
	case strings.Contains(reason, "technical sell"):
		return "signal"
	default:
		return "rebalance"
	}
}
