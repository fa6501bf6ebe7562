package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestJobMetricsCountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)

	m.Observe("outbox-retention", 20*time.Millisecond, nil)
	m.Observe("outbox-retention", 10*time.Millisecond, errors.New("boom"))
	m.Observe("outbox-retention", 10*time.Millisecond, nil)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	runs := findMetricFamily(mfs, "markit_housekeeping_job_runs_total")
	if runs == nil {
		t.Fatal("runs counter not exported")
	}
	counts := map[string]float64{}
	for _, metric := range runs.GetMetric() {
		counts[labelValue(metric.GetLabel(), "result")] = metric.GetCounter().GetValue()
	}
	if counts["success"] != 2 || counts["failure"] != 1 {
		t.Fatalf("unexpected run counts %v", counts)
	}
	if got, err := fetchHistogramSum(mfs, "markit_housekeeping_job_duration_seconds", "job", "outbox-retention"); err != nil || got < 0.039 {
		t.Fatalf("expected duration sum ~0.04, got %f %v", got, err)
	}
}

func TestNilJobMetricsIsNoop(t *testing.T) {
	var m *JobMetrics
	m.Observe("x", time.Second, nil)
	NewJobMetrics(nil).Observe("x", time.Second, errors.New("boom"))
}

func labelValue(labels []*dto.LabelPair, name string) string {
	for _, label := range labels {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
}
