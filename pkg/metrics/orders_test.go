package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestOrderMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg)

	m.IncCreated("instant", 2)
	m.IncCreated("", 1)
	m.IncShortage()
	m.ObserveSettlement(OutcomeBilled, 120*time.Millisecond)
	m.ObserveSettlement(OutcomeBilled, 80*time.Millisecond)
	m.ObserveSettlement(OutcomeCompleted, 10*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "markit_trynbuy_orders_created_total", "delivery_type", "instant"); err != nil {
		t.Fatalf("fetch created: %v", err)
	} else if got != 2 {
		t.Fatalf("expected created=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "markit_trynbuy_orders_created_total", "delivery_type", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected unknown label for empty delivery type, got %f %v", got, err)
	}

	shortages := findMetricFamily(mfs, "markit_trynbuy_stock_shortages_total")
	if shortages == nil || shortages.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one shortage, got %v", shortages)
	}

	if got, err := fetchCounterValue(mfs, "markit_trynbuy_settlements_total", "outcome", OutcomeBilled); err != nil || got != 2 {
		t.Fatalf("expected billed=2, got %f %v", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "markit_trynbuy_settlement_duration_seconds", "outcome", OutcomeBilled); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got < 0.19 {
		t.Fatalf("expected duration sum ~0.2, got %f", got)
	}
}

func TestNilOrderMetricsIsNoop(t *testing.T) {
	var m *OrderMetrics
	m.IncCreated("instant", 1)
	m.IncShortage()
	m.ObserveSettlement(OutcomeFailed, time.Second)

	NewOrderMetrics(nil).ObserveSettlement(OutcomeFailed, time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
