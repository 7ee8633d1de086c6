package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "deeds"

// Model call and pipeline metrics.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of model generation requests",
		},
		[]string{"provider", "model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Model generation duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 90},
		},
		[]string{"provider", "model"},
	)

	LLMCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_cache_total",
			Help:      "Model reply cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	ChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_total",
			Help:      "Total number of text chunks processed",
		},
	)

	RecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Transaction records by outcome",
		},
		[]string{"outcome"}, // extracted / persisted / skipped / failed
	)

	PipelineFaultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_faults_total",
			Help:      "Recoverable pipeline faults by stage",
		},
		[]string{"stage"},
	)
)

var registerOnce sync.Once

// Register registers the application metrics with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			LLMRequestsTotal,
			LLMRequestDuration,
			LLMCacheTotal,
			ChunksTotal,
			RecordsTotal,
			PipelineFaultsTotal,
		)
	})
}
