package risk

// Policy holds the admission and sizing limits for the paper broker.
type Policy struct {
	// Exposure limits
	MaxOpenTrades   int // 3
	MaxTradesPerDay int // 0 = unlimited

	// Circuit breakers, absolute amounts in quote currency. nil disables.
	DailyLossLimit  *float64
	SymbolLossLimit *float64

	// Sizing
	TradableBalanceRatio float64 // 0.75
	StakePerTradeRatio   float64 // 0.2
	BaseStopLossPct      float64 // stop the base stake is sized for

	PositiveExpectancyMultiplier float64 // 1.5
	NegativeExpectancyMultiplier float64 // 0.5
	NegativePnLMultiplier        float64 // 0.5 when today's realized PnL is negative
}

func DefaultPolicy() Policy {
	return Policy{
		MaxOpenTrades:                3,
		TradableBalanceRatio:         0.75,
		StakePerTradeRatio:           0.2,
		BaseStopLossPct:              0.006,
		PositiveExpectancyMultiplier: 1.5,
		NegativeExpectancyMultiplier: 0.5,
		NegativePnLMultiplier:        0.5,
	}
}

// AccountSnapshot is the ledger state admission looks at.
type AccountSnapshot struct {
	Balance       float64
	OpenPositions int
	DailyTrades   int
	DailyPnL      float64
}
