package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLedgerCounters(t *testing.T) {
	m := Ledger()
	assert.Same(t, m, Ledger())

	before := testutil.ToFloat64(m.accruals.WithLabelValues("click", "ok"))
	m.ObserveAccrual("click", "ok")
	m.ObserveAccrual("click", "ok")
	assert.Equal(t, before+2, testutil.ToFloat64(m.accruals.WithLabelValues("click", "ok")))

	m.ObserveWithdrawal("")
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.withdrawals.WithLabelValues("unknown")), 1.0)

	m.SetGlobalPot(decimal.RequireFromString("12.5"), 3)
	assert.Equal(t, 12.5, testutil.ToFloat64(m.potAmount))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.potUsers))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *LedgerMetrics
	m.ObserveAccrual("click", "ok")
	m.ObserveWithdrawal("ok")
	m.ObservePrizeEntry("created")
	m.ObserveDonation("base")
	m.SetGlobalPot(decimal.Zero, 0)
}
