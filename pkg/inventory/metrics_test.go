package inventory

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	summary := Aggregate(sampleSnapshot(), testNow)

	assert.NotPanics(t, func() {
		m.observeSummary("", &summary)
		m.observeQuery(&Page{})
		m.observeAlert(StatusLowStock, nil)
	})
}

func TestMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	summary := Aggregate(sampleSnapshot(), testNow)
	m.observeSummary("North Clinic", &summary)
	m.observeAlert(StatusOutOfStock, nil)
	m.observeAlert(StatusOutOfStock, errors.New("failed"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ItemsByStatus.WithLabelValues("North Clinic", "out_of_stock")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AlertsRaised.WithLabelValues("out_of_stock")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AlertFailures))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DashboardClassified.WithLabelValues("in_stock")))

	count, err := testutil.GatherAndCount(reg, "medstock_items", "medstock_alert_publish_failures_total")
	assert.NoError(t, err)
	assert.Equal(t, 5, count)

	count, err = testutil.GatherAndCount(reg, "medstock_dashboard_items_classified_total")
	assert.NoError(t, err)
	assert.Equal(t, 4, count)
}
