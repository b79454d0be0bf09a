// Package metrics exposes Prometheus instrumentation for the expression
// engine. Metrics are registered on the default registry; hosts that embed
// the engine scrape them through their own handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	parsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exprkit_parses_total",
			Help: "Total expression parses by status",
		},
		[]string{"status"},
	)

	parseCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "exprkit_parse_cache_hits_total",
		Help: "Total compiled-expression cache hits",
	})

	evaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exprkit_evaluations_total",
			Help: "Total expression evaluations by status",
		},
		[]string{"status"},
	)

	evaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "exprkit_evaluation_duration_seconds",
		Help:    "Duration of expression evaluations",
		Buckets: prometheus.DefBuckets,
	})

	resolverClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exprkit_resolver_claims_total",
			Help: "Total property lookups claimed, by resolver",
		},
		[]string{"resolver"},
	)

	contextCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exprkit_context_cache_total",
			Help: "Evaluation context requests by cache outcome",
		},
		[]string{"outcome"},
	)
)

// RecordParse records one parse attempt.
func RecordParse(status string) {
	parsesTotal.WithLabelValues(status).Inc()
}

// RecordParseCacheHit records a compiled-expression cache hit.
func RecordParseCacheHit() {
	parseCacheHits.Inc()
}

// RecordEvaluation records one evaluation with its duration in seconds.
func RecordEvaluation(status string, seconds float64) {
	evaluationsTotal.WithLabelValues(status).Inc()
	evaluationDuration.Observe(seconds)
}

// RecordResolverClaim records a lookup claimed by the named resolver.
func RecordResolverClaim(resolver string) {
	resolverClaims.WithLabelValues(resolver).Inc()
}

// RecordContextCache records a context cache hit or miss.
func RecordContextCache(outcome string) {
	contextCacheHits.WithLabelValues(outcome).Inc()
}
