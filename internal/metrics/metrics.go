// Package metrics holds the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecommendRequests counts recommendation requests by path:
	// cold_start, personalized, natural or highlights.
	RecommendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommend_requests_total",
		Help: "Total recommendation requests by serving path",
	}, []string{"path"})

	// RecommendLatency measures end-to-end recommendation latency.
	RecommendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recommend_latency_seconds",
		Help:    "Recommendation latency in seconds",
		Buckets: []float64{.01, .025, .05, .1, .2, .3, .5, 1, 2.5},
	}, []string{"path"})

	// RecommendFailures counts requests that failed on an upstream dependency.
	// Feed failures before the cold-start branch is known use path "feed".
	RecommendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommend_failures_total",
		Help: "Total failed recommendation requests by serving path",
	}, []string{"path"})

	// ProfileUpdates counts preference updates by behavior kind and whether
	// a reward was applied.
	ProfileUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "preference_updates_total",
		Help: "Total preference profile updates",
	}, []string{"kind", "rewarded"})

	// ProfileCache counts profile cache lookups by result: hit, miss or error.
	ProfileCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "preference_cache_lookups_total",
		Help: "Profile cache lookups by result",
	}, []string{"result"})

	// LLMCalls counts parser/explainer outcomes: llm, or the fallback reason.
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_calls_total",
		Help: "LLM collaborator calls by operation and outcome",
	}, []string{"op", "outcome"})

	// HTTPRequests counts served HTTP requests by method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests by method and status code",
	}, []string{"method", "status"})
)
