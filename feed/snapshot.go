// Package feed provides pull-based market data for the decision loop.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Quaser41/Autonomous-Trader/broker"
	"github.com/Quaser41/Autonomous-Trader/market"
)

var ErrNoData = errors.New("no bars for symbol")

type quote struct {
	price float64
	at    time.Time
}

// Snapshot holds the latest price and bar history per symbol. One goroutine
// writes while another reads; prices older than maxAge are reported missing.
type Snapshot struct {
	mu     sync.RWMutex
	quotes map[string]quote
	bars   map[string]market.Bars
	maxAge time.Duration
	now    func() time.Time
}

var _ broker.PriceFeed = (*Snapshot)(nil)

// NewSnapshot returns an empty snapshot. maxAge 0 disables staleness checks.
func NewSnapshot(maxAge time.Duration) *Snapshot {
	return &Snapshot{
		quotes: map[string]quote{},
		bars:   map[string]market.Bars{},
		maxAge: maxAge,
		now:    time.Now,
	}
}

// UpdatePrice records a trade price observed at.
func (s *Snapshot) UpdatePrice(symbol string, price float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.quotes[symbol]; ok && at.Before(q.at) {
		return
	}
	s.quotes[symbol] = quote{price: price, at: at}
}

// SetBars replaces the bar history for symbol. The last close also becomes
// the latest price unless a newer one is already known.
func (s *Snapshot) SetBars(symbol string, bars market.Bars) {
	cp := append(market.Bars(nil), bars...)

	s.mu.Lock()
	s.bars[symbol] = cp
	s.mu.Unlock()

	if last, ok := cp.Last(); ok {
		s.UpdatePrice(symbol, last.Close, last.Time)
	}
}

func (s *Snapshot) LatestPrice(_ context.Context, symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok || q.price <= 0 {
		return 0, false
	}
	if s.maxAge > 0 && s.now().Sub(q.at) > s.maxAge {
		return 0, false
	}
	return q.price, true
}

// OHLCV returns up to limit of the newest bars. timeframe is ignored; a
// snapshot holds one bar size.
func (s *Snapshot) OHLCV(_ context.Context, symbol, _ string, limit int) (market.Bars, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bars, ok := s.bars[symbol]
	if !ok || len(bars) == 0 {
		return nil, ErrNoData
	}
	return append(market.Bars(nil), bars.Tail(limit)...), nil
}
