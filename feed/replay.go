package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Quaser41/Autonomous-Trader/broker"
	"github.com/Quaser41/Autonomous-Trader/market"
)

// Replay steps through per-symbol CSV histories one bar at a time. After
// Step n, each symbol exposes its first n bars and the price is the close of
// the newest visible bar. Now follows the newest visible bar time, so the
// broker can run on replay time.
type Replay struct {
	mu      sync.RWMutex
	series  map[string]market.Bars
	step    int
	longest int
}

var _ broker.PriceFeed = (*Replay)(nil)

// LoadReplayDir reads every *.csv file in dir. The symbol is the upper-cased
// file name without extension.
func LoadReplayDir(dir string) (*Replay, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("replay dir: %w", err)
	}

	series := map[string]market.Bars{}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		bars, err := market.ReadCSVFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		sym := strings.ToUpper(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		series[sym] = bars
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("replay dir %s: no csv files", dir)
	}
	return NewReplay(series), nil
}

func NewReplay(series map[string]market.Bars) *Replay {
	r := &Replay{series: series}
	for _, bars := range series {
		if len(bars) > r.longest {
			r.longest = len(bars)
		}
	}
	return r
}

// Symbols lists the loaded symbols, sorted.
func (r *Replay) Symbols() []string {
	out := make([]string, 0, len(r.series))
	for sym := range r.series {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Seek positions the replay so n bars are visible.
func (r *Replay) Seek(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.step = min(max(n, 0), r.longest)
}

// Step reveals one more bar. It returns false once every series is
// exhausted.
func (r *Replay) Step() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.step >= r.longest {
		return false
	}
	r.step++
	return true
}

func (r *Replay) Done() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.step >= r.longest
}

func (r *Replay) visible(symbol string) market.Bars {
	bars := r.series[symbol]
	return bars[:min(r.step, len(bars))]
}

// Now is the time of the newest visible bar across all symbols.
func (r *Replay) Now() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var t time.Time
	for sym := range r.series {
		if last, ok := r.visible(sym).Last(); ok && last.Time.After(t) {
			t = last.Time
		}
	}
	return t
}

func (r *Replay) LatestPrice(_ context.Context, symbol string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	last, ok := r.visible(symbol).Last()
	if !ok || last.Close <= 0 {
		return 0, false
	}
	return last.Close, true
}

func (r *Replay) OHLCV(_ context.Context, symbol, _ string, limit int) (market.Bars, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bars := r.visible(symbol)
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return append(market.Bars(nil), bars.Tail(limit)...), nil
}

// CurrentSymbols lets a replay double as the whitelist source.
func (r *Replay) CurrentSymbols(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Symbols(), nil
}
