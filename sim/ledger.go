package sim

import (
	"fmt"
	"sort"

	"github.com/Quaser41/Autonomous-Trader/risk"
	"github.com/Quaser41/Autonomous-Trader/state"
	"github.com/rs/zerolog"
)

// Ledger is the persisted broker state.
type Ledger struct {
	Balance   float64
	Positions map[string]*Position
	Cooldowns map[string]float64   // symbol -> last exit, unix seconds
	SymbolPnL map[string][]float64 // symbol -> rolling realized PnL, oldest first
	Daily     risk.Daily
}

type dayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type dayPnL struct {
	Date string  `json:"date"`
	PnL  float64 `json:"pnl"`
}

func newLedger(balance float64) Ledger {
	return Ledger{
		Balance:   balance,
		Positions: map[string]*Position{},
		Cooldowns: map[string]float64{},
		SymbolPnL: map[string][]float64{},
	}
}

// loadLedger reads every ledger file, falling back to defaults for files that
// are missing or unreadable. Corrupt files are logged and otherwise ignored.
func loadLedger(store *state.Store, s Settings, log zerolog.Logger) Ledger {
	l := newLedger(s.DryRunWallet)

	check := func(file string, status state.LoadStatus, err error) {
		switch status {
		case state.Corrupt:
			log.Warn().Err(err).Str("file", file).Msg("corrupt state file, using defaults")
		case state.Absent:
			log.Debug().Str("file", file).Msg("no prior state")
		}
	}

	bal := store.LoadFloat(state.BalanceFile, s.DryRunWallet)
	check(state.BalanceFile, bal.Status, bal.Err)
	l.Balance = bal.Value
	if s.ResetBalance {
		l.Balance = s.DryRunWallet
	}

	pos := state.Load(store, state.PositionsFile, map[string]*Position{})
	check(state.PositionsFile, pos.Status, pos.Err)
	for sym, p := range pos.Value {
		if p == nil {
			continue
		}
		p.Symbol = sym
		l.Positions[sym] = p
	}

	cd := state.Load(store, state.CooldownsFile, map[string]float64{})
	check(state.CooldownsFile, cd.Status, cd.Err)
	if cd.Value != nil {
		l.Cooldowns = cd.Value
	}

	pnl := state.Load(store, state.SymbolPnLFile, map[string][]float64{})
	check(state.SymbolPnLFile, pnl.Status, pnl.Err)
	for sym, hist := range pnl.Value {
		l.SymbolPnL[sym] = trimWindow(hist, s.ExpectancyWindow)
	}

	tc := state.Load(store, state.TradesCountFile, dayCount{})
	check(state.TradesCountFile, tc.Status, tc.Err)
	dp := state.Load(store, state.DailyPnLFile, dayPnL{})
	check(state.DailyPnLFile, dp.Status, dp.Err)

	l.Daily.Date = tc.Value.Date
	if dp.Value.Date > l.Daily.Date {
		l.Daily.Date = dp.Value.Date
	}
	if tc.Value.Date == l.Daily.Date {
		l.Daily.Trades = tc.Value.Count
	}
	if dp.Value.Date == l.Daily.Date {
		l.Daily.PnL = dp.Value.PnL
	}
	return l
}

// save writes the named ledger files.
func (l *Ledger) save(store *state.Store, files ...string) error {
	for _, file := range files {
		var err error
		switch file {
		case state.BalanceFile:
			err = store.SaveFloat(file, l.Balance)
		case state.PositionsFile:
			err = store.SaveJSON(file, l.Positions)
		case state.CooldownsFile:
			err = store.SaveJSON(file, l.Cooldowns)
		case state.SymbolPnLFile:
			err = store.SaveJSON(file, l.SymbolPnL)
		case state.TradesCountFile:
			err = store.SaveJSON(file, dayCount{Date: l.Daily.Date, Count: l.Daily.Trades})
		case state.DailyPnLFile:
			err = store.SaveJSON(file, dayPnL{Date: l.Daily.Date, PnL: l.Daily.PnL})
		default:
			err = fmt.Errorf("unknown ledger file %q", file)
		}
		if err != nil {
			return fmt.Errorf("save %s: %w", file, err)
		}
	}
	return nil
}

var allFiles = []string{
	state.BalanceFile,
	state.PositionsFile,
	state.CooldownsFile,
	state.SymbolPnLFile,
	state.TradesCountFile,
	state.DailyPnLFile,
}

func (l *Ledger) pushPnL(symbol string, pnl float64, window int) {
	l.SymbolPnL[symbol] = trimWindow(append(l.SymbolPnL[symbol], pnl), window)
}

// trimWindow keeps the newest n entries.
func trimWindow(hist []float64, n int) []float64 {
	if n > 0 && len(hist) > n {
		hist = append([]float64(nil), hist[len(hist)-n:]...)
	}
	return hist
}

func (l *Ledger) clone() Ledger {
	out := newLedger(l.Balance)
	out.Daily = l.Daily
	for sym, p := range l.Positions {
		cp := *p
		out.Positions[sym] = &cp
	}
	for sym, ts := range l.Cooldowns {
		out.Cooldowns[sym] = ts
	}
	for sym, hist := range l.SymbolPnL {
		out.SymbolPnL[sym] = append([]float64(nil), hist...)
	}
	return out
}

func (l *Ledger) openSymbols() []string {
	out := make([]string, 0, len(l.Positions))
	for sym := range l.Positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
