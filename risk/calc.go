package risk

import (
	"math"
	"time"
)

func Sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}

// Expectancy is the mean realized PnL per trade, 0 for no history.
func Expectancy(pnl []float64) float64 {
	if len(pnl) == 0 {
		return 0
	}
	return Sum(pnl) / float64(len(pnl))
}

// PlannedRisk is the loss in quote currency if the stop is hit.
func PlannedRisk(qty, entry, stop float64) float64 {
	return math.Abs(qty * (entry - stop))
}

func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	reward := math.Abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

const DayLayout = "2006-01-02"

// Day formats t as its UTC calendar date.
func Day(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// Daily holds counters that reset at the UTC day boundary.
type Daily struct {
	Date   string
	Trades int
	PnL    float64
}

// Roll resets the counters when now falls on a different UTC day. It
// reports whether a reset happened.
func (d *Daily) Roll(now time.Time) bool {
	today := Day(now)
	if d.Date == today {
		return false
	}
	d.Date = today
	d.Trades = 0
	d.PnL = 0
	return true
}
