package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks outbound HTTP calls to aggregator APIs by venue and outcome.
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_upstream_requests_total",
			Help: "Total number of upstream HTTP requests (by venue and outcome).",
		},
		[]string{"venue", "outcome"},
	)

	// Measures duration of upstream HTTP calls.
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swap_upstream_request_duration_seconds",
			Help:    "Duration of upstream HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		[]string{"venue"},
	)

	// Tracks best-quote selections by winning aggregator.
	QuotesServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_quotes_served_total",
			Help: "Total number of served quotes by winning aggregator and flow.",
		},
		[]string{"aggregator", "flow"}, // flow = "quote" | "gasless"
	)

	// Tracks quote pipeline failures by stage.
	QuoteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_quote_failures_total",
			Help: "Total number of quote pipeline failures by stage.",
		},
		[]string{"stage"}, // fanout | compare | gas_estimate | signing | simulation
	)

	// Measures RPC call latency by chain and method.
	RPCRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swap_rpc_request_duration_seconds",
			Help:    "Duration of JSON-RPC calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "method"},
	)

	// Tracks gas price cache hits and misses.
	GasPriceCacheAccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_gasprice_cache_access_total",
			Help: "Number of gas price cache hits/misses.",
		},
		[]string{"result"}, // hit | miss
	)
)
