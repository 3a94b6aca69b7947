package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromMetrics is a Recorder backed by Prometheus collectors.
type PromMetrics struct {
	rangeRequests   *prometheus.CounterVec
	rangeResponses  *prometheus.HistogramVec
	bytesDelivered  *prometheus.CounterVec
	bodyReadRetries *prometheus.CounterVec
	failures        *prometheus.CounterVec
}

var _ Recorder = &PromMetrics{}

func (m *PromMetrics) RecordRangeRequest(bucket string) {
	m.rangeRequests.WithLabelValues(bucket).Inc()
}

func (m *PromMetrics) RecordRangeResponse(bucket string, duration float64) {
	m.rangeResponses.WithLabelValues(bucket).Observe(duration)
}

func (m *PromMetrics) RecordBytes(bucket string, count int) {
	m.bytesDelivered.WithLabelValues(bucket).Add(float64(count))
}

func (m *PromMetrics) RecordRetry(bucket string) {
	m.bodyReadRetries.WithLabelValues(bucket).Inc()
}

func (m *PromMetrics) RecordFailure(bucket, op string) {
	m.failures.WithLabelValues(bucket, op).Inc()
}

// NewPromMetrics creates the collectors and registers them with reg.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	rangeRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "s3stream_range_requests_total",
		Help: "Number of ranged GET requests issued.",
	}, []string{"bucket"})

	rangeResponses := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "s3stream_range_response_duration_seconds",
		Help:    "Time for a ranged GET to return its response headers.",
		Buckets: prometheus.DefBuckets,
	}, []string{"bucket"})

	bytesDelivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "s3stream_bytes_delivered_total",
		Help: "Bytes handed to consumers.",
	}, []string{"bucket"})

	bodyReadRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "s3stream_body_read_retries_total",
		Help: "Body read failures that re-issued the remaining range.",
	}, []string{"bucket"})

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "s3stream_failures_total",
		Help: "Terminal stream failures by operation.",
	}, []string{"bucket", "op"})

	reg.MustRegister(rangeRequests, rangeResponses, bytesDelivered, bodyReadRetries, failures)

	return &PromMetrics{
		rangeRequests:   rangeRequests,
		rangeResponses:  rangeResponses,
		bytesDelivered:  bytesDelivered,
		bodyReadRetries: bodyReadRetries,
		failures:        failures,
	}
}
