package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records housekeeping job runs.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// NewJobMetrics registers the job metrics. A nil registerer yields a no-op recorder.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "markit_housekeeping_job_duration_seconds",
		Help:    "Duration of housekeeping jobs.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "markit_housekeeping_job_runs_total",
		Help: "Housekeeping job runs by result.",
	}, []string{"job", "result"})
	reg.MustRegister(duration, runs)
	return &JobMetrics{duration: duration, runs: runs}
}

// Observe records one run; a non-nil err counts as a failure.
func (m *JobMetrics) Observe(job string, elapsed time.Duration, err error) {
	if m == nil || m.duration == nil {
		return
	}
	job = normalizeLabel(job)
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	m.runs.WithLabelValues(job, result).Inc()
}
