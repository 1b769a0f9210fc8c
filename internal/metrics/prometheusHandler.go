package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_jobs_in_queue",
	Help: "Number of jobs in queue",
})

var dispatcherSignalCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementJobsInQueue() {
	countJobsInQueue.Inc()
}

func DecrementJobsInQueue() {
	countJobsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "reindex_job_duration_seconds",
	Help:    "Total time spent processing a reindex job.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(label string, timeElapsed time.Duration) {
	requestDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

// cache names used as the "cache" label
const (
	CacheEmbeddingLRU = "embedding_lru"
	CacheEmbedding    = "embedding"
	CacheChunks       = "chunks"
	CacheResponse     = "response"
	CacheSemantic     = "semantic"
	CacheHighlight    = "highlight"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rag_cache_lookups_total",
	Help: "Cache lookups labelled by cache tier and outcome.",
}, []string{"cache", "outcome"})

var queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "rag_query_duration_seconds",
	Help:    "End to end answer generation time labelled by the tier that served it.",
	Buckets: []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30, 60},
}, []string{"served_by"})

var llmCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rag_llm_calls_total",
	Help: "LLM generation calls labelled by outcome.",
}, []string{"outcome"})

var parseStages = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rag_answer_parse_stage_total",
	Help: "Which stage of the answer parser produced the structured answer.",
}, []string{"stage"})

var cacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "rag_cache_invalidated_entries_total",
	Help: "Entries removed by document invalidation, labelled by cache.",
}, []string{"cache"})

func RecordCacheLookup(cache string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheLookups.WithLabelValues(cache, outcome).Inc()
}

func CaptureQueryMetrics(servedBy string, timeElapsed time.Duration) {
	if servedBy == "" {
		servedBy = "generated"
	}
	queryDuration.WithLabelValues(servedBy).Observe(timeElapsed.Seconds())
}

func RecordLLMCall(err error) {
	if err != nil {
		llmCalls.WithLabelValues("error").Inc()
		return
	}
	llmCalls.WithLabelValues("ok").Inc()
}

func RecordParseStage(stage string) {
	parseStages.WithLabelValues(stage).Inc()
}

func RecordInvalidation(cache string, count int64) {
	cacheInvalidations.WithLabelValues(cache).Add(float64(count))
}
