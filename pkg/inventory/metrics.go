package inventory

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors updated by the engine
// エンジンが更新するPrometheusメトリクス
type Metrics struct {
	ItemsByStatus       *prometheus.GaugeVec
	InventoryValue      *prometheus.GaugeVec
	DashboardClassified *prometheus.CounterVec
	Queries             *prometheus.CounterVec
	AlertsRaised        *prometheus.CounterVec
	AlertFailures       prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil registerer leaves them unregistered.
// メトリクスを作成して登録
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ItemsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "medstock",
			Name:      "items",
			Help:      "Number of items per computed status in the last dashboard snapshot.",
		}, []string{"facility", "status"}),
		InventoryValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "medstock",
			Name:      "inventory_value",
			Help:      "Total inventory value (quantity * unit cost) in the last dashboard snapshot.",
		}, []string{"facility"}),
		DashboardClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medstock",
			Name:      "dashboard_items_classified_total",
			Help:      "Items classified while building dashboard snapshots, by resulting status.",
		}, []string{"status"}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medstock",
			Name:      "queries_total",
			Help:      "Inventory table queries, by whether they matched anything.",
		}, []string{"result"}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medstock",
			Name:      "alerts_raised_total",
			Help:      "Status alerts published, by status.",
		}, []string{"status"}),
		AlertFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "medstock",
			Name:      "alert_publish_failures_total",
			Help:      "Status alerts that could not be published.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ItemsByStatus,
			m.InventoryValue,
			m.DashboardClassified,
			m.Queries,
			m.AlertsRaised,
			m.AlertFailures,
		)
	}

	return m
}

// observeSummary records a dashboard summary for facility
func (m *Metrics) observeSummary(facility string, s *Summary) {
	if m == nil {
		return
	}
	if facility == "" {
		facility = "all"
	}
	for status, count := range s.Counts {
		m.ItemsByStatus.WithLabelValues(facility, string(status)).Set(float64(count))
		m.DashboardClassified.WithLabelValues(string(status)).Add(float64(count))
	}
	value, _ := s.TotalValue.Float64()
	m.InventoryValue.WithLabelValues(facility).Set(value)
}

func (m *Metrics) observeQuery(p *Page) {
	if m == nil {
		return
	}
	result := "hit"
	if p.NoResults {
		result = "empty"
	}
	m.Queries.WithLabelValues(result).Inc()
}

func (m *Metrics) observeAlert(status StatusCategory, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.AlertFailures.Inc()
		return
	}
	m.AlertsRaised.WithLabelValues(string(status)).Inc()
}
