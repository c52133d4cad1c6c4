package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Turn metrics
	Turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmind_turns_total",
			Help: "Total number of finished turns",
		},
		[]string{"handler", "source"}, // source: model|forced|accumulated|apology|error
	)

	TurnLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tripmind_turn_latency_seconds",
			Help:    "Turn duration from user message to turn_complete",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60, 120, 300},
		},
		[]string{"handler"},
	)

	ForcedReinvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmind_forced_reinvocations_total",
			Help: "Forced re-invocations issued after a stalled final",
		},
		[]string{"handler", "status"}, // status: accepted|rejected
	)

	Fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmind_fallbacks_total",
			Help: "Answers assembled from accumulated text or static fallback",
		},
		[]string{"handler", "reason"}, // reason: stalled|no_final|timed_out|failed
	)

	BusyRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tripmind_busy_rejections_total",
			Help: "Messages rejected because a turn was already in flight",
		},
	)

	// Model metrics
	ModelCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmind_model_calls_total",
			Help: "Total number of model stream invocations",
		},
		[]string{"handler", "status"}, // status: success|error
	)

	ModelTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmind_model_tokens_total",
			Help: "Tokens reported by the model",
		},
		[]string{"type"}, // type: input|output
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmind_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"},
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tripmind_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	// Enrichment metrics
	EnrichmentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmind_enrichment_calls_total",
			Help: "External enrichment API calls",
		},
		[]string{"source", "status"}, // status: success|error|cached|skipped
	)

	EnrichmentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tripmind_enrichment_latency_seconds",
			Help:    "External enrichment latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	// Transport metrics
	WebSocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tripmind_websocket_connections",
			Help: "Currently open websocket connections",
		},
	)

	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripmind_kafka_messages_total",
			Help: "Total Kafka messages published",
		},
		[]string{"topic", "status"},
	)
)

var initOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(Turns)
		prometheus.MustRegister(TurnLatency)
		prometheus.MustRegister(ForcedReinvocations)
		prometheus.MustRegister(Fallbacks)
		prometheus.MustRegister(BusyRejections)

		prometheus.MustRegister(ModelCalls)
		prometheus.MustRegister(ModelTokens)

		prometheus.MustRegister(ToolExecutions)
		prometheus.MustRegister(ToolLatency)

		prometheus.MustRegister(EnrichmentCalls)
		prometheus.MustRegister(EnrichmentLatency)

		prometheus.MustRegister(WebSocketConnections)
		prometheus.MustRegister(KafkaMessages)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTurn records a finished turn
func RecordTurn(handler, source string, duration time.Duration) {
	Turns.WithLabelValues(handler, source).Inc()
	TurnLatency.WithLabelValues(handler).Observe(duration.Seconds())
}

// RecordForced records the outcome of a forced re-invocation
func RecordForced(handler string, accepted bool) {
	status := "rejected"
	if accepted {
		status = "accepted"
	}
	ForcedReinvocations.WithLabelValues(handler, status).Inc()
}

// RecordFallback records an answer that did not come from an accepted final
func RecordFallback(handler, reason string) {
	Fallbacks.WithLabelValues(handler, reason).Inc()
}

// RecordModelCall records a model stream invocation
func RecordModelCall(handler string, err error) {
	ModelCalls.WithLabelValues(handler, status(err)).Inc()
}

// RecordTokens records token usage reported by the model
func RecordTokens(input, output int32) {
	if input > 0 {
		ModelTokens.WithLabelValues("input").Add(float64(input))
	}
	if output > 0 {
		ModelTokens.WithLabelValues("output").Add(float64(output))
	}
}

// RecordToolExecution records a tool execution
func RecordToolExecution(tool string, latency time.Duration, err error) {
	ToolExecutions.WithLabelValues(tool, status(err)).Inc()
	ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordEnrichment records an enrichment call; status overrides the error
// derived status when non-empty (cached, skipped).
func RecordEnrichment(source, override string, latency time.Duration, err error) {
	s := status(err)
	if override != "" {
		s = override
	}
	EnrichmentCalls.WithLabelValues(source, s).Inc()
	if latency > 0 {
		EnrichmentLatency.WithLabelValues(source).Observe(latency.Seconds())
	}
}

// RecordKafkaPublish records a Kafka publish attempt
func RecordKafkaPublish(topic string, err error) {
	KafkaMessages.WithLabelValues(topic, status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
