package trader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Quaser41/Autonomous-Trader/broker"
	"github.com/Quaser41/Autonomous-Trader/feed"
	"github.com/Quaser41/Autonomous-Trader/journal"
	"github.com/Quaser41/Autonomous-Trader/market"
	"github.com/Quaser41/Autonomous-Trader/sim"
	"github.com/Quaser41/Autonomous-Trader/state"
	"github.com/Quaser41/Autonomous-Trader/strategies"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

// mockFeed serves fixed prices and bars.
type mockFeed struct {
	mu     sync.Mutex
	prices map[string]float64
	bars   map[string]market.Bars
}

func (m *mockFeed) LatestPrice(_ context.Context, sym string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prices[sym]
	return p, ok
}

func (m *mockFeed) OHLCV(_ context.Context, sym, _ string, limit int) (market.Bars, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bars[sym]
	if !ok {
		return nil, feed.ErrNoData
	}
	return b.Tail(limit), nil
}

func (m *mockFeed) set(sym string, price float64) {
	m.mu.Lock()
	m.prices[sym] = price
	m.mu.Unlock()
}

// mockList returns a fixed whitelist or an error.
type mockList struct {
	symbols []string
	err     error
}

func (m *mockList) CurrentSymbols(context.Context) ([]string, error) {
	return m.symbols, m.err
}

// mockStrategy always returns sig and counts evaluations.
type mockStrategy struct {
	sig   strategies.Signal
	calls int
}

func (m *mockStrategy) Name() string { return "mock" }

func (m *mockStrategy) Evaluate(market.Bars) strategies.Signal {
	m.calls++
	return m.sig
}

type testJournal struct {
	trades []journal.TradeRecord
	equity []journal.EquitySnapshot
}

func (j *testJournal) RecordTrade(t journal.TradeRecord) error {
	j.trades = append(j.trades, t)
	return nil
}

func (j *testJournal) RecordEquity(e journal.EquitySnapshot) error {
	j.equity = append(j.equity, e)
	return nil
}

func (j *testJournal) Close() error { return nil }

type testObserver struct {
	signals int
	ticks   int
}

func (o *testObserver) ObserveSignal(strategies.Signal) { o.signals++ }

func (o *testObserver) ObserveTick(time.Time, time.Time, broker.Account) { o.ticks++ }

func flatBars(n int, price float64) market.Bars {
	out := make(market.Bars, n)
	for i := range out {
		out[i] = market.Bar{Time: t0.Add(time.Duration(i-n) * time.Minute), Open: price, High: price, Low: price, Close: price, Volume: 1}
	}
	return out
}

func buySignal() strategies.Signal {
	return strategies.Signal{Kind: strategies.Buy, Score: 1.2, SLPct: ptr(0.01), TPPct: ptr(0.02), ATRPct: 0.005}
}

type harness struct {
	runner   *Runner
	broker   *sim.PaperBroker
	feed     *mockFeed
	list     *mockList
	strategy *mockStrategy
	journal  *testJournal
	observer *testObserver
}

func newHarness(t *testing.T, symbols []string, mutate func(s *sim.Settings)) *harness {
	t.Helper()

	store, err := state.NewStore(t.TempDir())
	require.NoError(t, err)

	settings := sim.DefaultSettings()
	if mutate != nil {
		mutate(&settings)
	}
	j := &testJournal{}
	b, err := sim.NewPaperBroker(settings, store,
		sim.WithClock(func() time.Time { return t0 }),
		sim.WithJournal(j),
	)
	require.NoError(t, err)

	f := &mockFeed{prices: map[string]float64{}, bars: map[string]market.Bars{}}
	for _, s := range symbols {
		f.prices[s] = 100
		f.bars[s] = flatBars(80, 100)
	}

	h := &harness{
		broker:   b,
		feed:     f,
		list:     &mockList{symbols: symbols},
		strategy: &mockStrategy{sig: buySignal()},
		journal:  j,
		observer: &testObserver{},
	}
	h.runner = &Runner{
		Broker:    b,
		Feed:      f,
		Whitelist: h.list,
		Strategy:  h.strategy,
		Journal:   j,
		Observer:  h.observer,
		Log:       zerolog.Nop(),
		Timeframe: "1m",
		BarLimit:  300,
		Now:       func() time.Time { return t0 },
	}
	return h
}

func TestRunner_Validation(t *testing.T) {
	t.Parallel()

	r := &Runner{}
	assert.Error(t, r.Tick(context.Background()))
	assert.Error(t, r.Run(context.Background(), time.Second))

	h := newHarness(t, nil, nil)
	assert.Error(t, h.runner.Run(context.Background(), 0))
}

func TestRunner_EntryThenTakeProfit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, []string{"A"}, nil)

	require.NoError(t, h.runner.Tick(ctx))
	pos, ok := h.broker.Position("A")
	require.True(t, ok)
	assert.InDelta(t, 99, pos.Stop, 1e-9)
	assert.InDelta(t, 102, pos.TakeProfit, 1e-9)
	assert.InDelta(t, 0.005, pos.ATRPct, 1e-12)
	assert.InDelta(t, 1.2, pos.Meta.Score, 1e-12)
	assert.Equal(t, 1, h.observer.signals)

	h.feed.set("A", 102.5)
	require.NoError(t, h.runner.Tick(ctx))
	assert.Empty(t, h.broker.OpenSymbols())
	require.Len(t, h.journal.trades, 1)
	assert.Equal(t, "tp", h.journal.trades[0].Reason)
	assert.Equal(t, 1, h.strategy.calls, "no entry evaluation on the exit pass")

	// cooldown blocks the re-entry
	require.NoError(t, h.runner.Tick(ctx))
	assert.Empty(t, h.broker.OpenSymbols())
	assert.Equal(t, 3, h.observer.ticks)
	assert.InDelta(t, 102.5, h.runner.Prices()["A"], 1e-12)
}

func TestRunner_HoldDoesNotBuy(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"A", "B"}, nil)
	h.strategy.sig = strategies.Signal{Kind: strategies.Hold, FailedFilter: strategies.ReasonTrend}

	require.NoError(t, h.runner.Tick(context.Background()))
	assert.Empty(t, h.broker.OpenSymbols())
	assert.Equal(t, 2, h.strategy.calls)
}

func TestRunner_PriceFallsBackToLastClose(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"A"}, nil)
	delete(h.feed.prices, "A")
	h.feed.bars["A"] = flatBars(80, 50)

	require.NoError(t, h.runner.Tick(context.Background()))
	pos, ok := h.broker.Position("A")
	require.True(t, ok)
	assert.InDelta(t, 50, pos.Entry, 1e-9)
}

func TestRunner_NoDataSkipsSymbol(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"A"}, nil)
	delete(h.feed.prices, "A")
	delete(h.feed.bars, "A")

	require.NoError(t, h.runner.Tick(context.Background()))
	assert.Empty(t, h.broker.OpenSymbols())
	assert.Zero(t, h.strategy.calls)
}

func TestRunner_ManagesPositionsOutsideWhitelist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, []string{"A"}, nil)
	require.NoError(t, h.runner.Tick(ctx))
	require.Equal(t, []string{"A"}, h.broker.OpenSymbols())

	h.list.symbols = nil
	h.feed.set("A", 98)
	require.NoError(t, h.runner.Tick(ctx))

	assert.Empty(t, h.broker.OpenSymbols())
	require.Len(t, h.journal.trades, 1)
	assert.Equal(t, "sl_or_trail", h.journal.trades[0].Reason)
}

func TestRunner_WhitelistErrorKeepsLastSymbols(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, []string{"A"}, nil)
	h.strategy.sig = strategies.Signal{Kind: strategies.Hold}
	require.NoError(t, h.runner.Tick(ctx))

	h.list.symbols = nil
	h.list.err = errors.New("whitelist unavailable")
	require.NoError(t, h.runner.Tick(ctx))
	assert.Equal(t, 2, h.strategy.calls)
}

func TestRunner_RespectsAdmission(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"A", "B", "C"}, func(s *sim.Settings) { s.Policy.MaxOpenTrades = 1 })

	require.NoError(t, h.runner.Tick(context.Background()))
	assert.Equal(t, []string{"A"}, h.broker.OpenSymbols())
	assert.Equal(t, 1, h.strategy.calls)
}

func TestRunner_Heartbeat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, []string{"A"}, nil)
	h.runner.Heartbeat = 2
	var notes []string
	h.runner.Notifier = notifierFunc(func(msg string) { notes = append(notes, msg) })

	for i := 0; i < 4; i++ {
		require.NoError(t, h.runner.Tick(ctx))
	}
	require.Len(t, h.journal.equity, 2)
	snap := h.journal.equity[0]
	assert.Equal(t, 1, snap.OpenPositions)
	assert.InDelta(t, 1000, snap.Equity, 1e-9)
	assert.Len(t, notes, 2)
	assert.Contains(t, notes[0], "HEARTBEAT")
}

type notifierFunc func(string)

func (f notifierFunc) Notify(msg string) { f(msg) }

func TestRunner_RunReplay(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, nil)
	rp := feed.NewReplay(map[string]market.Bars{"A": flatBars(70, 100)})
	rp.Seek(strategies.MinBars - 1)

	h.runner.Feed = rp
	h.runner.Whitelist = rp
	h.runner.Strategy = strategies.Combo{Config: strategies.ConfigDefaults()}

	require.NoError(t, h.runner.RunReplay(context.Background(), rp))
	assert.True(t, rp.Done())
	assert.Equal(t, 11, h.observer.ticks)
	assert.Len(t, h.journal.equity, 1)
	assert.Empty(t, h.broker.OpenSymbols(), "flat market never passes the atr gate")
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	h := newHarness(t, []string{"A"}, nil)
	h.strategy.sig = strategies.Signal{Kind: strategies.Hold}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.runner.Run(ctx, 5*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}
