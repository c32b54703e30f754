package prometheus

import (
	"time"
)

// TriageMetrics holds every metric family the backend records.
type TriageMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// gRPC layer
	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	// Pipeline
	PredictionsTotal   CounterVec
	PredictionDuration HistogramVec
	StageDuration      HistogramVec
	SemanticMatches    CounterVec

	// Embedding backend
	EmbeddingRequestsTotal CounterVec
	EmbeddingDuration      HistogramVec
	EmbeddingCacheHits     CounterVec
	EmbeddingCacheMisses   CounterVec

	// Infrastructure
	DBQueryDuration        HistogramVec
	MessagesProcessedTotal CounterVec

	// System health
	ArtifactsLoaded GaugeVec
	ErrorsTotal     CounterVec
}

var (
	DefaultHTTPDurationBuckets      = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultPipelineDurationBuckets  = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20}
	DefaultEmbeddingDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5}
	DefaultDBDurationBuckets        = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewTriageMetrics registers all metric families on collector.
func NewTriageMetrics(collector MetricsCollector) *TriageMetrics {
	if collector == nil {
		collector = NewNoopCollector()
	}
	m := &TriageMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method")

	m.GRPCRequestsTotal = collector.RegisterCounter("grpc_requests_total", "Total gRPC requests", "service", "method", "code")
	m.GRPCRequestDuration = collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC request duration", DefaultHTTPDurationBuckets, "service", "method")

	m.PredictionsTotal = collector.RegisterCounter("predictions_total", "Predictions by outcome and zone label", "status", "zone")
	m.PredictionDuration = collector.RegisterHistogram("prediction_duration_seconds", "End-to-end prediction latency", DefaultPipelineDurationBuckets, "source")
	m.StageDuration = collector.RegisterHistogram("pipeline_stage_duration_seconds", "Latency of each normalization stage", DefaultPipelineDurationBuckets, "stage")
	m.SemanticMatches = collector.RegisterCounter("semantic_substitutions_total", "Tokens replaced by the semantic canonicalizer")

	m.EmbeddingRequestsTotal = collector.RegisterCounter("embedding_requests_total", "Embedding backend calls", "provider", "status")
	m.EmbeddingDuration = collector.RegisterHistogram("embedding_request_duration_seconds", "Embedding backend latency", DefaultEmbeddingDurationBuckets, "provider")
	m.EmbeddingCacheHits = collector.RegisterCounter("embedding_cache_hits_total", "Embedding cache hits")
	m.EmbeddingCacheMisses = collector.RegisterCounter("embedding_cache_misses_total", "Embedding cache misses")

	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "operation")
	m.MessagesProcessedTotal = collector.RegisterCounter("messages_processed_total", "Kafka messages processed", "topic", "status")

	m.ArtifactsLoaded = collector.RegisterGauge("artifacts_loaded", "1 when the model artifact bundle is loaded", "source")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Errors by kind", "component", "kind")

	return m
}

// RecordHTTPRequest observes a finished HTTP request.
func (m *TriageMetrics) RecordHTTPRequest(method, path string, statusCode int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusClass(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordGRPCRequest observes a finished unary gRPC call.
func (m *TriageMetrics) RecordGRPCRequest(service, method, code string, d time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(service, method).Observe(d.Seconds())
}

// RecordPrediction observes a finished prediction.  zone is empty on failure.
func (m *TriageMetrics) RecordPrediction(source, zone string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	if zone == "" {
		zone = "none"
	}
	m.PredictionsTotal.WithLabelValues(status, zone).Inc()
	m.PredictionDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordStage observes the latency of a single normalization stage.
func (m *TriageMetrics) RecordStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordEmbedding observes one call to the embedding backend.
func (m *TriageMetrics) RecordEmbedding(provider string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.EmbeddingRequestsTotal.WithLabelValues(provider, status).Inc()
	m.EmbeddingDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordCache counts an embedding cache lookup.
func (m *TriageMetrics) RecordCache(hit bool) {
	if hit {
		m.EmbeddingCacheHits.WithLabelValues().Inc()
		return
	}
	m.EmbeddingCacheMisses.WithLabelValues().Inc()
}

// RecordDBQuery observes one repository operation.
func (m *TriageMetrics) RecordDBQuery(operation string, d time.Duration) {
	m.DBQueryDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordMessage counts a consumed Kafka message.
func (m *TriageMetrics) RecordMessage(topic string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.MessagesProcessedTotal.WithLabelValues(topic, status).Inc()
}

// SetArtifactsLoaded marks the artifact bundle as loaded from source
// ("local" or "minio").
func (m *TriageMetrics) SetArtifactsLoaded(source string) {
	m.ArtifactsLoaded.WithLabelValues(source).Set(1)
}

// RecordError counts an error by component and error kind.
func (m *TriageMetrics) RecordError(component, kind string) {
	m.ErrorsTotal.WithLabelValues(component, kind).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
