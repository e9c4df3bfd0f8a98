package report

import (
	"fmt"

	"github.com/Quaser41/Autonomous-Trader/sim"
	"github.com/shopspring/decimal"
)

var tolerance = decimal.NewFromFloat(1e-6)

// Reconciliation compares the wallet balance with what the realized PnL
// history implies.
type Reconciliation struct {
	Expected decimal.Decimal
	Actual   decimal.Decimal
	Diff     decimal.Decimal
	OK       bool

	// Truncated is set when a PnL window is full, so older trades may have
	// been evicted and the expectation is only approximate.
	Truncated bool
}

// Reconcile checks balance == wallet + sum(realized PnL) - sum(open stakes).
func Reconcile(wallet float64, l sim.Ledger, window int) Reconciliation {
	expected := decimal.NewFromFloat(wallet)
	truncated := false
	for _, hist := range l.SymbolPnL {
		for _, p := range hist {
			expected = expected.Add(decimal.NewFromFloat(p))
		}
		if window > 0 && len(hist) >= window {
			truncated = true
		}
	}
	for _, pos := range l.Positions {
		expected = expected.Sub(decimal.NewFromFloat(pos.Stake))
	}

	actual := decimal.NewFromFloat(l.Balance)
	diff := actual.Sub(expected)
	return Reconciliation{
		Expected:  expected,
		Actual:    actual,
		Diff:      diff,
		OK:        diff.Abs().LessThanOrEqual(tolerance),
		Truncated: truncated,
	}
}

func (r Reconciliation) String() string {
	status := "OK"
	if !r.OK {
		status = "MISMATCH"
	}
	msg := fmt.Sprintf("RECONCILE %s balance=%s expected=%s diff=%s",
		status, r.Actual.StringFixed(6), r.Expected.StringFixed(6), r.Diff.StringFixed(6))
	if r.Truncated {
		msg += " (pnl history truncated, approximate)"
	}
	return msg
}
