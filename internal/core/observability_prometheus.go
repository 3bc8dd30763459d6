package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports operation counters and latency histograms
// through a Prometheus registry. It fulfills both MetricsRecorder and
// SideEffectLog so one registry covers the whole service.
type PrometheusMetricsRecorder struct {
	operations   *prometheus.CounterVec
	durations    *prometheus.HistogramVec
	sinkFailures *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder constructs a recorder and registers its
// collectors with the given registerer. Pass prometheus.DefaultRegisterer for
// the process-global registry.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	rec := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cratecore",
			Name:      "operations_total",
			Help:      "Lifecycle operations by outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cratecore",
			Name:      "operation_duration_seconds",
			Help:      "Lifecycle operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cratecore",
			Name:      "sink_failures_total",
			Help:      "Dropped event deliveries by sink.",
		}, []string{"sink"}),
	}
	for _, collector := range []prometheus.Collector{rec.operations, rec.durations, rec.sinkFailures} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Observe records a lifecycle operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSinkFailure counts a failed event delivery for the named sink.
func (r *PrometheusMetricsRecorder) RecordSinkFailure(sink string, _ Event, err error) {
	if sink == "" || err == nil {
		return
	}
	r.sinkFailures.WithLabelValues(sink).Inc()
}
