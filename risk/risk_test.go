package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestAdmit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		policy func(p *Policy)
		acct   AccountSnapshot
		code   string
	}{
		{
			name: "allowed",
			acct: AccountSnapshot{Balance: 1000},
		},
		{
			name:   "daily loss limit hit exactly",
			policy: func(p *Policy) { p.DailyLossLimit = ptr(50) },
			acct:   AccountSnapshot{Balance: 1000, DailyPnL: -50},
			code:   CodeDailyLossLimit,
		},
		{
			name:   "negative limit treated as magnitude",
			policy: func(p *Policy) { p.DailyLossLimit = ptr(-50) },
			acct:   AccountSnapshot{Balance: 1000, DailyPnL: -60},
			code:   CodeDailyLossLimit,
		},
		{
			name:   "daily loss above limit",
			policy: func(p *Policy) { p.DailyLossLimit = ptr(50) },
			acct:   AccountSnapshot{Balance: 1000, DailyPnL: -49},
		},
		{
			name:   "trade cap",
			policy: func(p *Policy) { p.MaxTradesPerDay = 2 },
			acct:   AccountSnapshot{Balance: 1000, DailyTrades: 2},
			code:   CodeMaxTradesPerDay,
		},
		{
			name: "open positions",
			acct: AccountSnapshot{Balance: 1000, OpenPositions: 3},
			code: CodeMaxOpenTrades,
		},
		{
			name: "empty wallet",
			acct: AccountSnapshot{Balance: 0},
			code: CodeNoTradableFunds,
		},
		{
			name: "loss limit checked before trade cap",
			policy: func(p *Policy) {
				p.DailyLossLimit = ptr(10)
				p.MaxTradesPerDay = 1
			},
			acct: AccountSnapshot{Balance: 1000, DailyPnL: -20, DailyTrades: 5},
			code: CodeDailyLossLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			if tt.policy != nil {
				tt.policy(&p)
			}
			d := Admit(p, tt.acct)
			if tt.code == "" {
				assert.True(t, d.Allowed)
				assert.Empty(t, d.Violations)
				return
			}
			assert.False(t, d.Allowed)
			assert.Len(t, d.Violations, 1)
			assert.Equal(t, tt.code, d.Reason())
		})
	}
}

func TestStake(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	p.TradableBalanceRatio = 1
	p.StakePerTradeRatio = 0.1
	p.BaseStopLossPct = 0.01

	tests := []struct {
		name string
		in   StakeInputs
		want float64
	}{
		{"base", StakeInputs{Balance: 1000}, 100},
		{"positive expectancy", StakeInputs{Balance: 1000, SymbolPnL: []float64{5, -1}}, 150},
		{"negative expectancy", StakeInputs{Balance: 1000, SymbolPnL: []float64{-5, 1}}, 50},
		{"flat expectancy", StakeInputs{Balance: 1000, SymbolPnL: []float64{-1, 1}}, 100},
		{"red day", StakeInputs{Balance: 1000, DailyPnL: -0.01}, 50},
		{"tighter stop", StakeInputs{Balance: 1000, SLPct: 0.005}, 200},
		{"wider stop", StakeInputs{Balance: 1000, SLPct: 0.02}, 50},
		{"capped at balance", StakeInputs{Balance: 1000, SLPct: 0.0001}, 1000},
		{"empty wallet", StakeInputs{Balance: 0}, 0},
		{"negative balance", StakeInputs{Balance: -10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Stake(p, tt.in), 1e-9)
		})
	}
}

func TestStakeNegativePnLRatio(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	green := Stake(p, StakeInputs{Balance: 1000, DailyPnL: 0})
	red := Stake(p, StakeInputs{Balance: 1000, DailyPnL: -25})

	assert.Less(t, red, green)
	assert.InDelta(t, p.NegativePnLMultiplier, red/green, 1e-12)
}

func TestSymbolLossBreached(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	assert.False(t, SymbolLossBreached(p, []float64{-1000}))

	p.SymbolLossLimit = ptr(-10)
	assert.False(t, SymbolLossBreached(p, nil))
	assert.False(t, SymbolLossBreached(p, []float64{-5, -4}))
	assert.True(t, SymbolLossBreached(p, []float64{-5, -5}))
	assert.True(t, SymbolLossBreached(p, []float64{-500}))
}

func TestDailyRoll(t *testing.T) {
	t.Parallel()

	d := Daily{Date: "2024-01-01", Trades: 4, PnL: -12}

	late := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	assert.False(t, d.Roll(late))
	assert.Equal(t, 4, d.Trades)

	// 20:00 in New York is already the next UTC day.
	ny := time.FixedZone("EST", -5*60*60)
	next := time.Date(2024, 1, 1, 20, 0, 0, 0, ny)
	assert.True(t, d.Roll(next))
	assert.Equal(t, Daily{Date: "2024-01-02"}, d)
}

func TestCalc(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 2.0, RR(100, 99, 102), 1e-12)
	assert.Equal(t, 0.0, RR(100, 100, 102))
	assert.InDelta(t, 10.0, PlannedRisk(10, 100, 99), 1e-12)
	assert.Equal(t, 0.0, Expectancy(nil))
	assert.InDelta(t, 2.0, Expectancy([]float64{1, 3}), 1e-12)
}
