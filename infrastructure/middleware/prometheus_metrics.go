// Package middleware provides cross-cutting infrastructure shared by the
// pipeline and the completion client.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/seismiq/quakeagent/internal/ports"
)

// PrometheusMetrics implements ports.MetricsCollector over the global
// Prometheus registry. Known metric names map to purpose-built vectors;
// anything else lands in the general counters and gauges.
type PrometheusMetrics struct {
	stageLatency    *prometheus.HistogramVec
	llmLatency      *prometheus.HistogramVec
	llmRequests     *prometheus.CounterVec
	llmTokens       *prometheus.CounterVec
	evaluationScore prometheus.Histogram
	pipelineEvents  *prometheus.CounterVec
	systemGauges    *prometheus.GaugeVec
}

// NewPrometheusMetrics creates the collector and registers all metrics
// in the global registry. Call it once per process.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		stageLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Execution time of each pipeline stage.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		llmLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_latency_seconds",
				Help:    "Latency of completion requests by provider and model.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model", "status"},
		),
		llmRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total completion requests by provider, model, and outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total tokens consumed, split by direction.",
			},
			[]string{"provider", "model", "token_type"},
		),
		evaluationScore: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "evaluation_score",
				Help:    "Confidence scores produced by the evaluation gate.",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
		),
		pipelineEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_events_total",
				Help: "Pipeline lifecycle events such as stage errors and step cap hits.",
			},
			[]string{"event", "stage"},
		),
		systemGauges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipeline_state",
				Help: "Current pipeline state values.",
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records operation latency into the matching histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	switch operation {
	case "pipeline_stage":
		pm.stageLatency.WithLabelValues(labels["stage"]).Observe(duration.Seconds())
	default:
		pm.pipelineEvents.WithLabelValues(operation, labels["stage"]).Inc()
	}
}

// RecordCounter increments the counter matching the metric name.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "llm_requests_total":
		pm.llmRequests.WithLabelValues(labels["provider"], labels["model"], labels["status"]).Add(value)
	case "llm_tokens_total":
		pm.llmTokens.WithLabelValues(labels["provider"], labels["model"], labels["token_type"]).Add(value)
	default:
		pm.pipelineEvents.WithLabelValues(metric, labels["stage"]).Add(value)
	}
}

// RecordGauge sets the named gauge.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram records a raw value into the matching histogram.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "evaluation_score":
		pm.evaluationScore.Observe(value)
	case "llm_latency_seconds":
		pm.llmLatency.WithLabelValues(labels["provider"], labels["model"], labels["status"]).Observe(value)
	default:
		pm.stageLatency.WithLabelValues(labels["stage"]).Observe(value)
	}
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
