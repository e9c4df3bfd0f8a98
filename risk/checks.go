package risk

import (
	"fmt"
	"math"
)

// Violation codes.
const (
	CodeDailyLossLimit  = "DAILY_LOSS_LIMIT"
	CodeMaxTradesPerDay = "MAX_TRADES_PER_DAY"
	CodeMaxOpenTrades   = "MAX_OPEN_TRADES"
	CodeNoTradableFunds = "NO_TRADABLE_BALANCE"
	CodeCooldown        = "COOLDOWN"
	CodeSymbolLossLimit = "SYMBOL_LOSS_LIMIT"
	CodePositionOpen    = "POSITION_OPEN"
	CodeStakeTooSmall   = "STAKE_TOO_SMALL"
	CodeInvalidPrice    = "INVALID_PRICE"
)

type Violation struct {
	Code string
	Msg  string
}

func (v Violation) String() string { return v.Code + ": " + v.Msg }

type Decision struct {
	Allowed    bool
	Violations []Violation
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Reason returns the first violation code, or "" when allowed.
func (d Decision) Reason() string {
	if len(d.Violations) == 0 {
		return ""
	}
	return d.Violations[0].Code
}

// Admit decides whether a new position may be opened. Checks run in order and
// the first failure ends evaluation. Daily counters must already be rolled
// over for the current day.
func Admit(p Policy, acct AccountSnapshot) Decision {
	d := Decision{Allowed: true}

	if p.DailyLossLimit != nil {
		limit := -math.Abs(*p.DailyLossLimit)
		if acct.DailyPnL <= limit {
			d.add(CodeDailyLossLimit,
				fmt.Sprintf("day realized %.2f <= limit %.2f", acct.DailyPnL, limit))
			return d
		}
	}

	if p.MaxTradesPerDay > 0 && acct.DailyTrades >= p.MaxTradesPerDay {
		d.add(CodeMaxTradesPerDay,
			fmt.Sprintf("trades today %d >= max %d", acct.DailyTrades, p.MaxTradesPerDay))
		return d
	}

	if acct.OpenPositions >= p.MaxOpenTrades {
		d.add(CodeMaxOpenTrades,
			fmt.Sprintf("open positions %d >= max %d", acct.OpenPositions, p.MaxOpenTrades))
		return d
	}

	if acct.Balance*p.TradableBalanceRatio <= 0 {
		d.add(CodeNoTradableFunds,
			fmt.Sprintf("tradable balance %.2f", acct.Balance*p.TradableBalanceRatio))
	}
	return d
}

// SymbolLossBreached reports whether the rolling PnL of a symbol is at or
// below the configured per-symbol loss limit.
func SymbolLossBreached(p Policy, history []float64) bool {
	if p.SymbolLossLimit == nil || len(history) == 0 {
		return false
	}
	return Sum(history) <= -math.Abs(*p.SymbolLossLimit)
}
