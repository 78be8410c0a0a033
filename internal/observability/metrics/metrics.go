// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "speech_diarization"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Job metrics
	JobsTotal    *prometheus.CounterVec
	JobsActive   prometheus.Gauge
	JobDuration  prometheus.Histogram
	StageLatency *prometheus.HistogramVec

	// Alignment metrics
	SegmentsAligned      prometheus.Counter
	SegmentsUnknown      prometheus.Counter
	ConstraintViolations prometheus.Counter

	// Model metrics
	ModelLoads       *prometheus.CounterVec
	ModelLoadLatency *prometheus.HistogramVec
	ModelsCached     prometheus.Gauge
	ModelEvictions   prometheus.Counter
	EngineErrors     *prometheus.CounterVec

	// Storage metrics
	AudioBytesStored prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Inbox watcher metrics
	WatcherQueued  prometheus.Counter
	WatcherDropped *prometheus.CounterVec

	// RPC metrics
	RPCTotal *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		JobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of transcription jobs by result",
		}, []string{"result"}),
		JobsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Number of transcription jobs currently running",
		}),
		JobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of transcription jobs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		StageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_seconds",
			Help:      "Pipeline stage latency in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),

		SegmentsAligned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_aligned_total",
			Help:      "Total number of transcription segments attributed to a speaker",
		}),
		SegmentsUnknown: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_unknown_total",
			Help:      "Total number of transcription segments overlapping no speaker turn",
		}),
		ConstraintViolations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "constraint_violations_total",
			Help:      "Total number of diarization results outside the requested speaker bounds",
		}),

		ModelLoads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_loads_total",
			Help:      "Total number of model loads by engine kind and result",
		}, []string{"kind", "result"}),
		ModelLoadLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_load_latency_seconds",
			Help:      "Model load latency in seconds",
			Buckets:   []float64{0.1, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"kind"}),
		ModelsCached: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "models_cached",
			Help:      "Number of models resident in the model cache",
		}),
		ModelEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_evictions_total",
			Help:      "Total number of models evicted from the model cache",
		}),
		EngineErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Total number of engine errors by engine and error kind",
		}, []string{"engine", "error_kind"}),

		AudioBytesStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_stored_total",
			Help:      "Total audio bytes written to the audio store",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		WatcherQueued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_queued_total",
			Help:      "Total number of inbox files queued for transcription",
		}),
		WatcherDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_dropped_total",
			Help:      "Total number of inbox files not queued",
		}, []string{"reason"}),

		RPCTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_total",
			Help:      "Total number of gRPC calls by method and code",
		}, []string{"method", "code"}),
	}
}

// RecordJobStart records a transcription job starting.
func (m *Metrics) RecordJobStart() {
	m.JobsActive.Inc()
}

// RecordJobEnd records a transcription job ending.
func (m *Metrics) RecordJobEnd(success bool, durationSeconds float64) {
	m.JobsActive.Dec()
	m.JobDuration.Observe(durationSeconds)
	if success {
		m.JobsTotal.WithLabelValues("completed").Inc()
	} else {
		m.JobsTotal.WithLabelValues("failed").Inc()
	}
}

// RecordStage records the latency of one pipeline stage.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	m.StageLatency.WithLabelValues(stage).Observe(seconds)
}

// RecordAlignment records the outcome of merging segments with speaker turns.
func (m *Metrics) RecordAlignment(total, unknown int) {
	m.SegmentsAligned.Add(float64(total - unknown))
	m.SegmentsUnknown.Add(float64(unknown))
}

// RecordConstraintViolation records a diarization result outside the requested bounds.
func (m *Metrics) RecordConstraintViolation() {
	m.ConstraintViolations.Inc()
}

// RecordModelLoad records a model load attempt.
func (m *Metrics) RecordModelLoad(kind string, err error, latencySeconds float64) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.ModelLoads.WithLabelValues(kind, result).Inc()
	m.ModelLoadLatency.WithLabelValues(kind).Observe(latencySeconds)
}

// RecordModelEviction records a model leaving the cache.
func (m *Metrics) RecordModelEviction() {
	m.ModelEvictions.Inc()
}

// SetModelsCached records the number of resident models.
func (m *Metrics) SetModelsCached(n int) {
	m.ModelsCached.Set(float64(n))
}

// RecordEngineError records an engine failure.
func (m *Metrics) RecordEngineError(engine, errorKind string) {
	m.EngineErrors.WithLabelValues(engine, errorKind).Inc()
}

// RecordAudioStored records audio bytes written to the audio store.
func (m *Metrics) RecordAudioStored(bytes int64) {
	m.AudioBytesStored.Add(float64(bytes))
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordWatcherQueued records an inbox file handed to the worker pool.
func (m *Metrics) RecordWatcherQueued() {
	m.WatcherQueued.Inc()
}

// RecordWatcherDropped records an inbox file that could not be queued.
func (m *Metrics) RecordWatcherDropped(reason string) {
	m.WatcherDropped.WithLabelValues(reason).Inc()
}

// RecordRPC records a completed gRPC call.
func (m *Metrics) RecordRPC(method, code string) {
	m.RPCTotal.WithLabelValues(method, code).Inc()
}
