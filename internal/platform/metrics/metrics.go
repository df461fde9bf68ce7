// Package metrics exposes Prometheus instrumentation for the debt ledger.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "credit_ledger"

// Credit check outcomes used as the "outcome" label.
const (
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
	OutcomeBlocked  = "blocked"
	OutcomeError    = "error"
)

// DebtMetrics groups the collectors recorded by the debt service.
// A nil *DebtMetrics is valid and records nothing.
type DebtMetrics struct {
	CreditChecks         *prometheus.CounterVec
	CreditCheckDuration  prometheus.Histogram
	ReservedAmount       prometheus.Counter
	PaymentsRecorded     prometheus.Counter
	PaymentAmount        prometheus.Counter
	TransactionsPosted   *prometheus.CounterVec
	ReconciliationRepair *prometheus.CounterVec
	PatternFallbacks     prometheus.Counter
	EventPublishFailures prometheus.Counter
}

// NewDebtMetrics registers the debt collectors against reg.
func NewDebtMetrics(reg prometheus.Registerer) *DebtMetrics {
	factory := promauto.With(reg)
	return &DebtMetrics{
		CreditChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credit",
			Name:      "checks_total",
			Help:      "Credit checks by outcome and whether a reservation was requested.",
		}, []string{"outcome", "reserve"}),
		CreditCheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "credit",
			Name:      "check_duration_seconds",
			Help:      "Latency of the locked credit check unit of work.",
			Buckets:   prometheus.DefBuckets,
		}),
		ReservedAmount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credit",
			Name:      "reserved_amount_total",
			Help:      "Sum of order amounts reserved against credit limits.",
		}),
		PaymentsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "recorded_total",
			Help:      "Payments recorded against customer debt.",
		}),
		PaymentAmount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "amount_total",
			Help:      "Sum of recorded payment amounts.",
		}),
		TransactionsPosted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions_posted_total",
			Help:      "Ledger entries posted outside the credit check and payment flows, by type.",
		}, []string{"type"}),
		ReconciliationRepair: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciliation",
			Name:      "repairs_total",
			Help:      "Cached balance repairs by result.",
		}, []string{"result"}),
		PatternFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pattern",
			Name:      "fallbacks_total",
			Help:      "Payment pattern classifications that fell back to AVERAGE.",
		}),
		EventPublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "publish_failures_total",
			Help:      "Debt events that could not be delivered to the broker.",
		}),
	}
}

// ObserveCreditCheck records one credit check outcome and its latency.
func (m *DebtMetrics) ObserveCreditCheck(outcome string, reserve bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	reserveLabel := "false"
	if reserve {
		reserveLabel = "true"
	}
	m.CreditChecks.WithLabelValues(outcome, reserveLabel).Inc()
	m.CreditCheckDuration.Observe(elapsed.Seconds())
}

// AddReserved adds a reserved order amount.
func (m *DebtMetrics) AddReserved(amount float64) {
	if m == nil {
		return
	}
	m.ReservedAmount.Add(amount)
}

// ObservePayment records one payment.
func (m *DebtMetrics) ObservePayment(amount float64) {
	if m == nil {
		return
	}
	m.PaymentsRecorded.Inc()
	m.PaymentAmount.Add(amount)
}

// IncTransactionPosted counts one posted ledger entry of txnType.
func (m *DebtMetrics) IncTransactionPosted(txnType string) {
	if m == nil {
		return
	}
	m.TransactionsPosted.WithLabelValues(txnType).Inc()
}

// ObserveRepair records a reconciliation repair attempt ("repaired", "skipped" or "failed").
func (m *DebtMetrics) ObserveRepair(result string) {
	if m == nil {
		return
	}
	m.ReconciliationRepair.WithLabelValues(result).Inc()
}

// IncPatternFallback counts a fail-open pattern classification.
func (m *DebtMetrics) IncPatternFallback() {
	if m == nil {
		return
	}
	m.PatternFallbacks.Inc()
}

// IncPublishFailure counts an event that failed to publish.
func (m *DebtMetrics) IncPublishFailure() {
	if m == nil {
		return
	}
	m.EventPublishFailures.Inc()
}
