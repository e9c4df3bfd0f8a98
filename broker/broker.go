// Package broker defines the contracts between the decision loop, the paper
// broker and its external collaborators.
package broker

import (
	"context"
	"time"

	"github.com/Quaser41/Autonomous-Trader/market"
)

// Broker is the paper trading surface the orchestration loop drives.
// Buy and Sell return a nil result, not an error, when a trade is rejected.
type Broker interface {
	CanOpen() bool
	StakeAmount(symbol string, slPct float64) float64
	Buy(symbol string, price float64, meta OrderMeta) (*Order, error)
	Sell(symbol string, price float64, reason ExitReason) (*Fill, error)
	ShouldExit(symbol string, price float64) (bool, ExitReason)
	Account(prices map[string]float64) Account
	OpenSymbols() []string
}

// PriceFeed is the read side of market data.
type PriceFeed interface {
	LatestPrice(ctx context.Context, symbol string) (float64, bool)
	OHLCV(ctx context.Context, symbol, timeframe string, limit int) (market.Bars, error)
}

// WhitelistSource yields the symbols currently eligible for trading.
type WhitelistSource interface {
	CurrentSymbols(ctx context.Context) ([]string, error)
}

// Whitelist is the mutable runtime list the broker evicts symbols from.
type Whitelist interface {
	Remove(symbol string) error
}

// Notifier is a fire and forget message sink. Implementations must not block
// for long and must swallow their own failures.
type Notifier interface {
	Notify(msg string)
}

type ExitReason string

const (
	ExitTakeProfit ExitReason = "tp"
	ExitStop       ExitReason = "sl_or_trail"
	ExitNoPosition ExitReason = "no_pos"
	ExitManual     ExitReason = "manual"
)

// OrderMeta carries per-trade hints from the signal. Nil fields fall back to
// the broker configuration.
type OrderMeta struct {
	Score  float64  `json:"score,omitempty"`
	SLPct  *float64 `json:"sl_pct,omitempty"`
	TPPct  *float64 `json:"tp_pct,omitempty"`
	ATRPct float64  `json:"atr_pct,omitempty"`

	ActivationProfitPct *float64 `json:"activation_profit_pct,omitempty"`
	BreakevenTriggerPct *float64 `json:"breakeven_trigger_pct,omitempty"`
	TrailingStopPct     *float64 `json:"trailing_stop_pct,omitempty"`
	ATRTrailMultiplier  *float64 `json:"atr_trail_multiplier,omitempty"`
}

// Order is an accepted entry.
type Order struct {
	TradeID    string
	Symbol     string
	Qty        float64
	Price      float64 // slippage and fee adjusted
	Stake      float64
	Stop       float64
	TakeProfit float64
	Time       time.Time
}

// Fill is a completed round trip.
type Fill struct {
	TradeID    string
	Symbol     string
	Qty        float64
	EntryPrice float64
	ExitPrice  float64 // slippage and fee adjusted
	PnL        float64
	Reason     ExitReason
	OpenTime   time.Time
	CloseTime  time.Time
}

type Account struct {
	Balance       float64
	Equity        float64
	Unrealized    float64
	OpenPositions int
	DailyTrades   int
	DailyPnL      float64
}
