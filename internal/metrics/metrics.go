// Package metrics exposes Prometheus instruments for the ledger.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// LedgerMetrics groups the ledger counters and gauges.
type LedgerMetrics struct {
	accruals     *prometheus.CounterVec
	withdrawals  *prometheus.CounterVec
	prizeEntries *prometheus.CounterVec
	donations    *prometheus.CounterVec
	potAmount    prometheus.Gauge
	potUsers     prometheus.Gauge
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics
)

// Ledger returns the process-wide instruments, registering them on first use.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			accruals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "santapot_accrual_events_total",
				Help: "Accrual events processed by kind and outcome.",
			}, []string{"kind", "outcome"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "santapot_withdrawal_requests_total",
				Help: "Withdrawal requests by outcome.",
			}, []string{"outcome"}),
			prizeEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "santapot_prize_entries_total",
				Help: "Prize pool entries written, by action.",
			}, []string{"action"}),
			donations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "santapot_donations_total",
				Help: "Donations received by network.",
			}, []string{"network"}),
			potAmount: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "santapot_global_pot_amount",
				Help: "Current global pot total.",
			}),
			potUsers: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "santapot_global_pot_users",
				Help: "Registered users counted in the global pot.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.accruals,
			ledgerRegistry.withdrawals,
			ledgerRegistry.prizeEntries,
			ledgerRegistry.donations,
			ledgerRegistry.potAmount,
			ledgerRegistry.potUsers,
		)
	})
	return ledgerRegistry
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// ObserveAccrual counts one accrual attempt.
func (m *LedgerMetrics) ObserveAccrual(kind, outcome string) {
	if m == nil {
		return
	}
	m.accruals.WithLabelValues(label(kind), label(outcome)).Inc()
}

// ObserveWithdrawal counts one withdrawal request.
func (m *LedgerMetrics) ObserveWithdrawal(outcome string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(label(outcome)).Inc()
}

// ObservePrizeEntry counts a created or updated prize entry.
func (m *LedgerMetrics) ObservePrizeEntry(action string) {
	if m == nil {
		return
	}
	m.prizeEntries.WithLabelValues(label(action)).Inc()
}

// ObserveDonation counts a donation on network.
func (m *LedgerMetrics) ObserveDonation(network string) {
	if m == nil {
		return
	}
	m.donations.WithLabelValues(label(network)).Inc()
}

// SetGlobalPot records the current pot totals.
func (m *LedgerMetrics) SetGlobalPot(amount decimal.Decimal, users int64) {
	if m == nil {
		return
	}
	m.potAmount.Set(amount.InexactFloat64())
	m.potUsers.Set(float64(users))
}
