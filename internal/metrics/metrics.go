package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Service metrics exposed on /metrics.
var (
	// Text provider metrics
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerquest_provider_requests_total",
			Help: "Total number of generative text provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "careerquest_provider_request_duration_seconds",
			Help:    "Generative text provider request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1min
		},
		[]string{"provider", "model"},
	)

	// Quest metrics
	TasksGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerquest_tasks_generated_total",
			Help: "Total number of quest tasks produced, by kind and source",
		},
		[]string{"kind", "source"}, // source: static/provider/fallback
	)

	TaskFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerquest_task_fallbacks_total",
			Help: "Total number of quest tasks that fell back to static content",
		},
		[]string{"kind", "reason"},
	)

	// Analysis metrics
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerquest_analyses_total",
			Help: "Total number of analysis runs by outcome",
		},
		[]string{"outcome"},
	)

	// Knowledge lookup metrics
	KnowledgeLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerquest_knowledge_lookups_total",
			Help: "Total number of encyclopedia and topic tree lookups",
		},
		[]string{"source", "outcome"},
	)

	TopicTreeFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerquest_topic_tree_fetches_total",
			Help: "Total number of topic tree downloads",
		},
		[]string{"status"},
	)
)
