package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels upstream calls that returned a decodable payload
	OutcomeSuccess = "success"
	// OutcomeError labels upstream calls that failed for any reason
	OutcomeError = "error"
)

var (
	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "breakage_dashboard",
			Name:      "upstream_requests_total",
			Help:      "Requests made to the analytics API, partitioned by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	upstreamRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "breakage_dashboard",
			Name:      "upstream_request_seconds",
			Help:      "Analytics API request latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"endpoint"},
	)

	panelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "breakage_dashboard",
			Name:      "panel_loads_total",
			Help:      "Dashboard panel loads, partitioned by panel and final state.",
		},
		[]string{"panel", "state"},
	)

	staleResponsesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "breakage_dashboard",
			Name:      "stale_responses_total",
			Help:      "Panel outcomes not recorded because a newer load of the same view had started.",
		},
	)

	mutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "breakage_dashboard",
			Name:      "mutations_total",
			Help:      "Breakage edits forwarded to the analytics API, partitioned by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

// Register attaches dashboard collectors to the supplied Prometheus registerer
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		upstreamRequestsTotal,
		upstreamRequestSeconds,
		panelLoadsTotal,
		staleResponsesTotal,
		mutationsTotal,
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

// ObserveFetch records one upstream request
func ObserveFetch(endpoint string, duration time.Duration, outcome string) {
	upstreamRequestsTotal.WithLabelValues(endpoint, normalizeOutcome(outcome)).Inc()
	if duration < 0 {
		duration = 0
	}
	upstreamRequestSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObservePanel records the final state of a panel load
func ObservePanel(panel, state string) {
	panelLoadsTotal.WithLabelValues(panel, state).Inc()
}

// ObserveStale counts a load finished after a newer load of its view began
func ObserveStale() {
	staleResponsesTotal.Inc()
}

// ObserveMutation records a forwarded edit
func ObserveMutation(kind, outcome string) {
	mutationsTotal.WithLabelValues(kind, normalizeOutcome(outcome)).Inc()
}

func normalizeOutcome(outcome string) string {
	if outcome != OutcomeError {
		return OutcomeSuccess
	}
	return outcome
}
