package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orpheus_active_sessions",
			Help: "Current number of live voice sessions",
		},
	)

	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orpheus_sessions_total",
			Help: "Total number of voice sessions by terminal status",
		},
		[]string{"status"}, // status: completed|failed
	)

	SessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orpheus_session_duration_seconds",
			Help:    "Voice session duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orpheus_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"}, // status: success|error
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orpheus_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"tool"},
	)

	// Upstream connection metrics
	UpstreamReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orpheus_upstream_reconnects_total",
			Help: "Total number of upstream realtime reconnect attempts",
		},
		[]string{"status"}, // status: success|failed
	)

	UpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orpheus_upstream_errors_total",
			Help: "Total number of upstream error events",
		},
		[]string{"code"},
	)

	// Audio metrics
	AudioFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orpheus_audio_frames_total",
			Help: "Total audio frames relayed",
		},
		[]string{"direction"}, // direction: inbound|outbound
	)

	AudioBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orpheus_audio_bytes_total",
			Help: "Total audio payload bytes relayed",
		},
		[]string{"direction"},
	)

	VADDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orpheus_vad_decisions_total",
			Help: "Total local voice activity decisions",
		},
		[]string{"decision"}, // decision: speech|silence
	)

	// Model usage metrics
	ModelTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orpheus_model_tokens_total",
			Help: "Total tokens consumed by the realtime model",
		},
		[]string{"model", "direction", "modality"}, // direction: input|output, modality: text|audio
	)

	ModelCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orpheus_model_cost_usd",
			Help: "Total realtime model cost in USD",
		},
		[]string{"model"},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orpheus_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orpheus_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orpheus_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orpheus_kafka_messages_total",
			Help: "Total Kafka messages produced/consumed",
		},
		[]string{"topic", "direction", "status"}, // direction: produced|consumed
	)

	EmbeddingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orpheus_embedding_requests_total",
			Help: "Total embedding generation requests",
		},
		[]string{"provider", "status"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	// Session metrics
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(SessionsTotal)
	prometheus.MustRegister(SessionDuration)

	// Tool metrics
	prometheus.MustRegister(ToolExecutions)
	prometheus.MustRegister(ToolLatency)

	// Upstream metrics
	prometheus.MustRegister(UpstreamReconnects)
	prometheus.MustRegister(UpstreamErrors)

	// Audio metrics
	prometheus.MustRegister(AudioFrames)
	prometheus.MustRegister(AudioBytes)
	prometheus.MustRegister(VADDecisions)

	// Model usage metrics
	prometheus.MustRegister(ModelTokens)
	prometheus.MustRegister(ModelCost)

	// Worker metrics
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	// System metrics
	prometheus.MustRegister(KafkaMessages)
	prometheus.MustRegister(EmbeddingRequests)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordToolExecution records a tool execution
func RecordToolExecution(tool string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ToolExecutions.WithLabelValues(tool, status).Inc()
	ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordSessionEnd records a finished session
func RecordSessionEnd(status string, duration time.Duration) {
	SessionsTotal.WithLabelValues(status).Inc()
	SessionDuration.Observe(duration.Seconds())
}

// RecordAudioFrame records one relayed audio frame
func RecordAudioFrame(direction string, payloadBytes int) {
	AudioFrames.WithLabelValues(direction).Inc()
	AudioBytes.WithLabelValues(direction).Add(float64(payloadBytes))
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordKafkaMessage records a produced or consumed Kafka message
func RecordKafkaMessage(topic, direction string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	KafkaMessages.WithLabelValues(topic, direction, status).Inc()
}

// RecordEmbeddingRequest records an embedding generation request
func RecordEmbeddingRequest(provider string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EmbeddingRequests.WithLabelValues(provider, status).Inc()
}
