// Package journal records closed trades and equity snapshots.
package journal

import (
	"errors"
	"time"
)

type TradeRecord struct {
	TradeID     string
	Symbol      string
	Qty         float64
	EntryPrice  float64
	ExitPrice   float64
	OpenTime    time.Time
	CloseTime   time.Time
	RealizedPnL float64
	Reason      string
}

// Hold is how long the position was open.
func (t TradeRecord) Hold() time.Duration {
	if t.OpenTime.IsZero() || t.CloseTime.IsZero() {
		return 0
	}
	return t.CloseTime.Sub(t.OpenTime)
}

type EquitySnapshot struct {
	Time          time.Time
	Balance       float64
	Equity        float64
	Unrealized    float64
	OpenPositions int
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquitySnapshot) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordTrade(TradeRecord) error     { return nil }
func (Nop) RecordEquity(EquitySnapshot) error { return nil }
func (Nop) Close() error                      { return nil }

// Multi fans records out to several journals. Every journal is tried and
// the errors are joined.
type Multi []Journal

func (m Multi) RecordTrade(t TradeRecord) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.RecordTrade(t))
	}
	return errors.Join(errs...)
}

func (m Multi) RecordEquity(e EquitySnapshot) error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.RecordEquity(e))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, j := range m {
		errs = append(errs, j.Close())
	}
	return errors.Join(errs...)
}
