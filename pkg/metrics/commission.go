package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// CommissionMetrics counts engine outcomes that dashboards and alerts watch.
type CommissionMetrics struct {
	unknownProductSales prometheus.Counter
	transactionsCreated *prometheus.CounterVec
	statusTransitions   *prometheus.CounterVec
	hierarchyIssues     *prometheus.GaugeVec
}

// NewCommissionMetrics registers the engine metrics on the provided registerer.
// A nil registerer yields a no-op collector.
func NewCommissionMetrics(reg prometheus.Registerer) *CommissionMetrics {
	if reg == nil {
		return &CommissionMetrics{}
	}
	unknown := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cvd_unknown_product_sales_total",
		Help: "Sales whose product type is not in the CVD catalog (scored 0 points).",
	})
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_transactions_created_total",
		Help: "MLM commission transactions recorded, by tree level.",
	}, []string{"level"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_status_transitions_total",
		Help: "Commission rows moved to a new status.",
	}, []string{"status"})
	issues := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hierarchy_integrity_issues",
		Help: "Distributor hierarchy anomalies found by the last integrity sweep.",
	}, []string{"kind"})
	reg.MustRegister(unknown, created, transitions, issues)
	return &CommissionMetrics{
		unknownProductSales: unknown,
		transactionsCreated: created,
		statusTransitions:   transitions,
		hierarchyIssues:     issues,
	}
}

// AddUnknownProductSales records sales that earned nothing because the product is unknown.
func (m *CommissionMetrics) AddUnknownProductSales(n int) {
	if m == nil || m.unknownProductSales == nil || n <= 0 {
		return
	}
	m.unknownProductSales.Add(float64(n))
}

// IncTransactionCreated counts one propagated transaction at the given level.
func (m *CommissionMetrics) IncTransactionCreated(level int) {
	if m == nil || m.transactionsCreated == nil {
		return
	}
	m.transactionsCreated.WithLabelValues(strconv.Itoa(level)).Inc()
}

// AddStatusTransitions counts rows moved into status.
func (m *CommissionMetrics) AddStatusTransitions(status string, rows int64) {
	if m == nil || m.statusTransitions == nil || rows <= 0 {
		return
	}
	m.statusTransitions.WithLabelValues(normalizeLabel(status)).Add(float64(rows))
}

// SetHierarchyIssues records how many anomalies of one kind the last sweep found.
func (m *CommissionMetrics) SetHierarchyIssues(kind string, n int) {
	if m == nil || m.hierarchyIssues == nil {
		return
	}
	m.hierarchyIssues.WithLabelValues(normalizeLabel(kind)).Set(float64(n))
}
