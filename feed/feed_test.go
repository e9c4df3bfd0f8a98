package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Quaser41/Autonomous-Trader/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func bars(n int, start float64) market.Bars {
	out := make(market.Bars, n)
	for i := range out {
		c := start + float64(i)
		out[i] = market.Bar{Time: t0.Add(time.Duration(i) * time.Minute), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
	}
	return out
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewSnapshot(2 * time.Minute)
	now := t0.Add(10 * time.Minute)
	s.now = func() time.Time { return now }

	_, ok := s.LatestPrice(ctx, "BTC-USD")
	assert.False(t, ok)
	_, err := s.OHLCV(ctx, "BTC-USD", "1m", 10)
	assert.ErrorIs(t, err, ErrNoData)

	s.SetBars("BTC-USD", bars(10, 100))
	px, ok := s.LatestPrice(ctx, "BTC-USD")
	require.True(t, ok)
	assert.Equal(t, 109.0, px)

	got, err := s.OHLCV(ctx, "BTC-USD", "1m", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 107.0, got[0].Close)

	s.UpdatePrice("BTC-USD", 111, now)
	s.UpdatePrice("BTC-USD", 90, now.Add(-time.Minute))
	px, _ = s.LatestPrice(ctx, "BTC-USD")
	assert.Equal(t, 111.0, px)

	now = now.Add(3 * time.Minute)
	_, ok = s.LatestPrice(ctx, "BTC-USD")
	assert.False(t, ok, "stale")
}

func TestReplay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewReplay(map[string]market.Bars{
		"A": bars(3, 10),
		"B": bars(5, 50),
	})
	assert.Equal(t, []string{"A", "B"}, r.Symbols())
	assert.True(t, r.Now().IsZero())

	_, ok := r.LatestPrice(ctx, "A")
	assert.False(t, ok)

	steps := 0
	for r.Step() {
		steps++
	}
	assert.Equal(t, 5, steps)
	assert.True(t, r.Done())

	px, ok := r.LatestPrice(ctx, "A")
	require.True(t, ok)
	assert.Equal(t, 12.0, px)
	assert.Equal(t, t0.Add(4*time.Minute), r.Now())

	r.Seek(2)
	assert.False(t, r.Done())
	got, err := r.OHLCV(ctx, "B", "1m", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	px, _ = r.LatestPrice(ctx, "B")
	assert.Equal(t, 51.0, px)

	syms, err := r.CurrentSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, syms)
}

func TestLoadReplayDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := "timestamp,open,high,low,close,volume\n" +
		"1714521600,1,2,0.5,1.5,100\n" +
		"1714521660,1.5,2.5,1,2,120\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "btc-usd.csv"), []byte(data), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	r, err := LoadReplayDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USD"}, r.Symbols())

	require.True(t, r.Step())
	require.True(t, r.Step())
	px, ok := r.LatestPrice(context.Background(), "BTC-USD")
	require.True(t, ok)
	assert.Equal(t, 2.0, px)

	_, err = LoadReplayDir(t.TempDir())
	assert.Error(t, err)
}

func TestPumpPublish(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewReplay(map[string]market.Bars{
		"A": bars(3, 10),
		"B": bars(5, 50),
	})
	r.Seek(2)

	wall := t0.Add(time.Hour)
	clock := func() time.Time { return wall }
	snap := NewSnapshot(time.Minute)
	snap.now = clock
	p := &Pump{Replay: r, Snapshot: snap, BarLimit: 10, Now: clock}

	assert.Equal(t, 2, p.Publish(ctx))
	px, ok := snap.LatestPrice(ctx, "A")
	require.True(t, ok, "stamped at publish time, not bar time")
	assert.Equal(t, 11.0, px)
	got, err := snap.OHLCV(ctx, "B", "1m", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	wall = wall.Add(2 * time.Minute)
	_, ok = snap.LatestPrice(ctx, "A")
	assert.False(t, ok, "stale once the pump stops publishing")
	_, err = snap.OHLCV(ctx, "A", "1m", 10)
	assert.NoError(t, err)

	require.True(t, r.Step())
	p.Publish(ctx)
	px, ok = snap.LatestPrice(ctx, "B")
	require.True(t, ok)
	assert.Equal(t, 52.0, px)
}

func TestPumpRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewReplay(map[string]market.Bars{"A": bars(3, 10)})
	r.Seek(1)
	snap := NewSnapshot(0)
	p := &Pump{Replay: r, Snapshot: snap, BarLimit: 10}

	require.NoError(t, p.Run(ctx, time.Millisecond))
	assert.True(t, r.Done())
	px, ok := snap.LatestPrice(ctx, "A")
	require.True(t, ok)
	assert.Equal(t, 12.0, px)

	assert.Error(t, p.Run(ctx, 0))

	r.Seek(1)
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, p.Run(cancelled, time.Hour))
	assert.False(t, r.Done())
}
