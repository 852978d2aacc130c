package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Metrics live in a private registry rather than prometheus.DefaultRegistry.
	registry = prometheus.NewRegistry()

	AgentCalls = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "poetica_agent_calls_total",
			Help: "Agent calls partitioned by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	AgentLatency = promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poetica_agent_call_seconds",
			Help:    "Agent call latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		},
		[]string{"provider"},
	)
	Normalizations = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "poetica_normalizations_total",
			Help: "Agent replies normalized, partitioned by the stage that succeeded (or failed).",
		},
		[]string{"stage"},
	)
	StaleReplies = promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "poetica_stale_replies_total",
			Help: "Agent replies discarded because a newer request superseded them.",
		},
	)
	LibraryMutations = promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "poetica_library_mutations_total",
			Help: "Saved poem collection mutations partitioned by operation and result.",
		},
		[]string{"op", "result"},
	)
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
