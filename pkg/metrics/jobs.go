package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records batch timing and outcomes for background loops such
// as the outbox publisher.
type JobMetrics struct {
	batchDuration *prometheus.HistogramVec
	batchSuccess  *prometheus.CounterVec
	batchFailure  *prometheus.CounterVec
}

// NewJobMetrics registers the background job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_batch_duration_seconds",
		Help:    "Duration of background worker batches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_batch_success_total",
		Help: "Successful background worker batches.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_batch_failure_total",
		Help: "Failed background worker batches.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure)
	return &JobMetrics{
		batchDuration: duration,
		batchSuccess:  success,
		batchFailure:  failure,
	}
}

// ObserveBatch records the duration for one batch of the named job.
func (j *JobMetrics) ObserveBatch(job string, duration time.Duration) {
	if j == nil || j.batchDuration == nil {
		return
	}
	j.batchDuration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncBatchSuccess increments the success counter for the named job.
func (j *JobMetrics) IncBatchSuccess(job string) {
	if j == nil || j.batchSuccess == nil {
		return
	}
	j.batchSuccess.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncBatchFailure increments the failure counter for the named job.
func (j *JobMetrics) IncBatchFailure(job string) {
	if j == nil || j.batchFailure == nil {
		return
	}
	j.batchFailure.WithLabelValues(normalizeLabel(job)).Inc()
}

// normalizeLabel keeps label cardinality sane when a caller passes an
// empty value. Shared by every labelled recorder in this package.
func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
