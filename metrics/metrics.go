// Package metrics exposes the Prometheus counters and gauges that
// track poll cycles, errors, staleness crossings, and opportunities.
// This is ambient observability, not part of the core detection
// pipeline spec.md scopes out as an explicit Non-goal.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PollCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arbitragedex_poll_cycles_total",
		Help: "Number of price-monitor poll cycles run.",
	})

	PoolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arbitragedex_pool_errors_total",
		Help: "Per-pool fetch errors, by pool address.",
	}, []string{"pool"})

	StaleCrossings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arbitragedex_stale_crossings_total",
		Help: "Number of times a pool crossed from fresh into stale.",
	}, []string{"pool"})

	DeltasDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arbitragedex_deltas_detected_total",
		Help: "Price deltas detected, by canonical pair key.",
	}, []string{"pair"})

	OpportunitiesFound = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arbitragedex_opportunities_found_total",
		Help: "Opportunities that cleared the profit threshold.",
	})

	OpportunitiesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arbitragedex_opportunities_rejected_total",
		Help: "Opportunities rejected, by reason.",
	}, []string{"reason"})

	LastOpportunityNetProfit = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arbitragedex_last_opportunity_net_profit",
		Help: "Net profit of the most recently accepted opportunity, in base-token units.",
	})

	MulticallFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arbitragedex_multicall_fallbacks_total",
		Help: "Number of poll cycles that fell back to per-pool calls after a multicall failure.",
	})
)

func init() {
	prometheus.MustRegister(
		PollCycles,
		PoolErrors,
		StaleCrossings,
		DeltasDetected,
		OpportunitiesFound,
		OpportunitiesRejected,
		LastOpportunityNetProfit,
		MulticallFallbacks,
	)
}
