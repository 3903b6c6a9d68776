package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChatTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_chat_turns_total",
			Help: "Chat turns processed, by outcome",
		},
		[]string{"outcome"},
	)

	PhaseTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_phase_transitions_total",
			Help: "Session phase transitions",
		},
		[]string{"from", "to"},
	)

	IntentConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "admissions_intent_confidence",
			Help:    "Application intent confidence of classified user turns",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	RetrievedChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "admissions_retrieved_chunks",
			Help:    "Chunks kept per retrieval after thresholding",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 20},
		},
	)

	GatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admissions_gateway_duration_seconds",
			Help:    "Latency of embedding, search and generation calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"gateway", "status"},
	)

	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_documents_ingested_total",
			Help: "Document ingestion attempts, by status",
		},
		[]string{"status"},
	)

	ChunksIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "admissions_chunks_indexed_total",
			Help: "Chunks written to the vector index",
		},
	)

	IndexCorruption = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "admissions_vector_index_corruption_total",
			Help: "Chunks excluded from results because chunk and vector disagree",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	HTTPRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admissions_http_request_duration_seconds",
			Help:    "HTTP request duration by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(ChatTurns)
		prometheus.MustRegister(PhaseTransitions)
		prometheus.MustRegister(IntentConfidence)
		prometheus.MustRegister(RetrievedChunks)
		prometheus.MustRegister(GatewayDuration)
		prometheus.MustRegister(DocumentsIngested)
		prometheus.MustRegister(ChunksIndexed)
		prometheus.MustRegister(IndexCorruption)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(HTTPRequests)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
