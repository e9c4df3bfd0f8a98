// Package trader drives the decision loop: exits for open positions, signals
// and entries for the rest of the whitelist, and a periodic heartbeat.
package trader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Quaser41/Autonomous-Trader/broker"
	"github.com/Quaser41/Autonomous-Trader/journal"
	"github.com/Quaser41/Autonomous-Trader/market"
	"github.com/Quaser41/Autonomous-Trader/strategies"
	"github.com/rs/zerolog"
)

// Observer receives per-tick telemetry.
type Observer interface {
	ObserveSignal(sig strategies.Signal)
	ObserveTick(start, end time.Time, acct broker.Account)
}

// Runner runs one strategy against one broker.
type Runner struct {
	Broker    broker.Broker
	Feed      broker.PriceFeed
	Whitelist broker.WhitelistSource
	Strategy  strategies.Strategy

	Journal  journal.Journal // optional, receives heartbeat equity snapshots
	Notifier broker.Notifier // optional, receives heartbeat lines
	Observer Observer        // optional
	Log      zerolog.Logger

	Timeframe string
	BarLimit  int
	Heartbeat int // ticks between heartbeats, 0 = off

	Now func() time.Time

	ticks   int
	symbols []string
	prices  map[string]float64
}

func (r *Runner) validate() error {
	switch {
	case r.Broker == nil:
		return errors.New("runner: broker is required")
	case r.Feed == nil:
		return errors.New("runner: feed is required")
	case r.Whitelist == nil:
		return errors.New("runner: whitelist is required")
	case r.Strategy == nil:
		return errors.New("runner: strategy is required")
	}
	return nil
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Tick runs one pass over the open positions and the whitelist. Per-symbol
// failures are logged and joined into the returned error; the pass continues.
func (r *Runner) Tick(ctx context.Context) error {
	if err := r.validate(); err != nil {
		return err
	}
	if r.prices == nil {
		r.prices = map[string]float64{}
	}
	start := r.now()
	r.ticks++

	wl, err := r.Whitelist.CurrentSymbols(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.Log.Warn().Err(err).Msg("whitelist refresh failed, using last known symbols")
		wl = r.symbols
	} else {
		r.symbols = wl
	}

	eligible := make(map[string]bool, len(wl))
	for _, s := range wl {
		eligible[s] = true
	}
	open := r.Broker.OpenSymbols()
	symbols := union(open, wl)

	var errs []error
	for _, sym := range symbols {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.step(ctx, sym, eligible[sym]); err != nil {
			r.Log.Error().Err(err).Str("symbol", sym).Msg("tick failed")
			errs = append(errs, err)
		}
	}

	acct := r.Broker.Account(r.prices)
	if r.Heartbeat > 0 && r.ticks%r.Heartbeat == 0 {
		errs = append(errs, r.heartbeat(acct))
	}
	if r.Observer != nil {
		r.Observer.ObserveTick(start, r.now(), acct)
	}
	return errors.Join(errs...)
}

func (r *Runner) step(ctx context.Context, sym string, eligible bool) error {
	hasPos := contains(r.Broker.OpenSymbols(), sym)

	var bars market.Bars
	price, ok := r.Feed.LatestPrice(ctx, sym)
	if !ok {
		var err error
		bars, err = r.Feed.OHLCV(ctx, sym, r.Timeframe, r.BarLimit)
		if err != nil {
			r.Log.Debug().Err(err).Str("symbol", sym).Msg("no price")
			return nil
		}
		last, ok := bars.Last()
		if !ok || last.Close <= 0 {
			return nil
		}
		price = last.Close
	}
	r.prices[sym] = price

	if hasPos {
		exit, reason := r.Broker.ShouldExit(sym, price)
		if !exit {
			return nil
		}
		if _, err := r.Broker.Sell(sym, price, reason); err != nil {
			return fmt.Errorf("sell %s: %w", sym, err)
		}
		return nil
	}

	if !eligible || !r.Broker.CanOpen() {
		return nil
	}

	if bars == nil {
		var err error
		bars, err = r.Feed.OHLCV(ctx, sym, r.Timeframe, r.BarLimit)
		if err != nil {
			r.Log.Debug().Err(err).Str("symbol", sym).Msg("no bars")
			return nil
		}
	}

	sig := r.Strategy.Evaluate(bars)
	if r.Observer != nil {
		r.Observer.ObserveSignal(sig)
	}
	r.Log.Debug().
		Str("symbol", sym).
		Str("kind", string(sig.Kind)).
		Float64("score", sig.Score).
		Str("failed", sig.FailedFilter).
		Msg("signal")
	if !sig.IsBuy() {
		return nil
	}

	meta := broker.OrderMeta{
		Score:  sig.Score,
		SLPct:  sig.SLPct,
		TPPct:  sig.TPPct,
		ATRPct: sig.ATRPct,
	}
	if _, err := r.Broker.Buy(sym, price, meta); err != nil {
		return fmt.Errorf("buy %s: %w", sym, err)
	}
	return nil
}

func (r *Runner) heartbeat(acct broker.Account) error {
	r.Log.Info().
		Float64("cash", acct.Balance).
		Int("open_positions", acct.OpenPositions).
		Float64("unrealized", acct.Unrealized).
		Float64("equity", acct.Equity).
		Int("daily_trades", acct.DailyTrades).
		Float64("daily_pnl", acct.DailyPnL).
		Msg("heartbeat")

	if r.Notifier != nil {
		r.Notifier.Notify(fmt.Sprintf("HEARTBEAT cash=%.2f open=%d unrealized=%.4f equity=%.2f",
			acct.Balance, acct.OpenPositions, acct.Unrealized, acct.Equity))
	}
	if r.Journal == nil {
		return nil
	}
	err := r.Journal.RecordEquity(journal.EquitySnapshot{
		Time:          r.now(),
		Balance:       acct.Balance,
		Equity:        acct.Equity,
		Unrealized:    acct.Unrealized,
		OpenPositions: acct.OpenPositions,
	})
	if err != nil {
		return fmt.Errorf("record equity: %w", err)
	}
	return nil
}

// Run ticks every interval until ctx is done.
func (r *Runner) Run(ctx context.Context, interval time.Duration) error {
	if err := r.validate(); err != nil {
		return err
	}
	if interval <= 0 {
		return errors.New("runner: interval must be positive")
	}

	r.Log.Info().Dur("interval", interval).Str("strategy", r.Strategy.Name()).Msg("decision loop started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := r.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.Log.Error().Err(err).Msg("tick completed with errors")
		}
		select {
		case <-ctx.Done():
			r.Log.Info().Msg("decision loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Stepper advances a replay feed one bar at a time.
type Stepper interface {
	Step() bool
}

// RunReplay ticks once per replayed bar until the replay is exhausted or ctx
// is done. A final heartbeat is emitted at the end.
func (r *Runner) RunReplay(ctx context.Context, feed Stepper) error {
	if err := r.validate(); err != nil {
		return err
	}
	for feed.Step() {
		if err := r.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.Log.Error().Err(err).Msg("tick completed with errors")
		}
	}
	r.Log.Info().Int("ticks", r.ticks).Msg("replay finished")
	return r.heartbeat(r.Broker.Account(r.prices))
}

// Prices returns the last price seen per symbol.
func (r *Runner) Prices() map[string]float64 {
	out := make(map[string]float64, len(r.prices))
	for k, v := range r.prices {
		out[k] = v
	}
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
