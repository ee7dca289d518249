// Package metrics exposes the Prometheus instrumentation surface named
// in the API module of SPEC_FULL.md, grounded on the counter/gauge style
// of internal/metrics packages in the wider example pack (no direct
// analogue in the teacher repo, which carries no metrics at all).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// OrdersSubmitted counts every accepted Submit call, labeled by
	// book_id and side.
	OrdersSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "freightex",
		Name:      "orders_submitted_total",
		Help:      "Total number of orders accepted by the matching engine.",
	}, []string{"book_id", "side"})

	// OrdersRejected counts validation/funds rejections, labeled by reason.
	OrdersRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "freightex",
		Name:      "orders_rejected_total",
		Help:      "Total number of orders rejected by the matching engine.",
	}, []string{"reason"})

	// MatchesTotal counts every match produced, labeled by book_id.
	MatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "freightex",
		Name:      "matches_total",
		Help:      "Total number of matches produced, by book.",
	}, []string{"book_id"})

	// BookDepth tracks the current number of resting orders per book and
	// side, set after every mutating book operation.
	BookDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "freightex",
		Name:      "book_depth",
		Help:      "Current number of resting orders in a book, by side.",
	}, []string{"book_id", "side"})

	// SimClockSeconds is registered for the scheduler's simulated clock;
	// no package in this module sets it, so it reads zero.
	SimClockSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "freightex",
		Name:      "sim_clock_seconds",
		Help:      "Current simulated clock value in seconds.",
	})
)

// Registry is a private registry so tests and repeated wiring (e.g.
// Reset + re-Play in the same process) never hit Prometheus's
// double-registration panic on the global default registry.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(OrdersSubmitted, OrdersRejected, MatchesTotal, BookDepth, SimClockSeconds)
}
