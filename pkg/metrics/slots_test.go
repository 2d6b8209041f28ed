package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSlotMetricsExportsGaugesAndCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewSlotMetrics(reg)

	metrics.SetOccupancy(4, 2)
	metrics.IncPromotions(3)
	metrics.IncExpirations(1)
	metrics.IncPromotions(0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := fetchGaugeValue(t, mfs, "ad_slots_active"); got != 4 {
		t.Fatalf("expected active=4, got %f", got)
	}
	if got := fetchGaugeValue(t, mfs, "ad_slots_queue_depth"); got != 2 {
		t.Fatalf("expected queue depth=2, got %f", got)
	}
	if got := fetchSimpleCounterValue(t, mfs, "ad_slots_promotions_total"); got != 3 {
		t.Fatalf("expected promotions=3, got %f", got)
	}
	if got := fetchSimpleCounterValue(t, mfs, "ad_slots_expirations_total"); got != 1 {
		t.Fatalf("expected expirations=1, got %f", got)
	}
}

func TestSlotMetricsNilSafe(t *testing.T) {
	var metrics *SlotMetrics
	metrics.SetOccupancy(1, 1)
	metrics.IncPromotions(1)
	metrics.IncExpirations(1)

	empty := NewSlotMetrics(nil)
	empty.SetOccupancy(1, 1)
	empty.IncPromotions(1)
	empty.IncExpirations(1)
}

func fetchGaugeValue(t *testing.T, mfs []*dto.MetricFamily, name string) float64 {
	t.Helper()
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		t.Fatalf("metric %q not found", name)
	}
	return mf.GetMetric()[0].GetGauge().GetValue()
}

func fetchSimpleCounterValue(t *testing.T, mfs []*dto.MetricFamily, name string) float64 {
	t.Helper()
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		t.Fatalf("metric %q not found", name)
	}
	return mf.GetMetric()[0].GetCounter().GetValue()
}
