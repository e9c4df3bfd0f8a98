// Package report summarizes journaled sessions and reconciles the ledger.
package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/Quaser41/Autonomous-Trader/journal"
	"github.com/shopspring/decimal"
)

type SymbolStats struct {
	Symbol  string
	Trades  int
	Wins    int
	Losses  int
	PnL     decimal.Decimal
	AvgHold time.Duration
}

type Summary struct {
	Trades         int
	Wins           int
	Losses         int
	WinRate        float64 // percent
	RealizedPnL    decimal.Decimal
	Symbols        []SymbolStats // by PnL, best first
	MaxDrawdownPct float64
	From, To       time.Time
}

// Summarize aggregates closed trades and the equity curve.
func Summarize(trades []journal.TradeRecord, equity []journal.EquitySnapshot) Summary {
	s := Summary{RealizedPnL: decimal.Zero}

	bySym := map[string]*SymbolStats{}
	holds := map[string]time.Duration{}
	for _, tr := range trades {
		pnl := decimal.NewFromFloat(tr.RealizedPnL)

		st, ok := bySym[tr.Symbol]
		if !ok {
			st = &SymbolStats{Symbol: tr.Symbol, PnL: decimal.Zero}
			bySym[tr.Symbol] = st
		}
		st.Trades++
		st.PnL = st.PnL.Add(pnl)
		holds[tr.Symbol] += tr.Hold()

		s.Trades++
		s.RealizedPnL = s.RealizedPnL.Add(pnl)
		switch {
		case tr.RealizedPnL > 0:
			s.Wins++
			st.Wins++
		case tr.RealizedPnL < 0:
			s.Losses++
			st.Losses++
		}

		if s.From.IsZero() || tr.CloseTime.Before(s.From) {
			s.From = tr.CloseTime
		}
		if tr.CloseTime.After(s.To) {
			s.To = tr.CloseTime
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
	}

	for sym, st := range bySym {
		st.AvgHold = holds[sym] / time.Duration(st.Trades)
		s.Symbols = append(s.Symbols, *st)
	}
	sort.Slice(s.Symbols, func(i, j int) bool {
		if c := s.Symbols[i].PnL.Cmp(s.Symbols[j].PnL); c != 0 {
			return c > 0
		}
		return s.Symbols[i].Symbol < s.Symbols[j].Symbol
	})

	curve := make([]float64, len(equity))
	for i, e := range equity {
		curve[i] = e.Equity
	}
	s.MaxDrawdownPct = MaxDrawdownPct(curve)
	return s
}

// MaxDrawdownPct is the largest peak to trough decline of the curve, in
// percent of the peak.
func MaxDrawdownPct(curve []float64) float64 {
	peak, worst := 0.0, 0.0
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}

// Render writes a human readable report.
func (s Summary) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Round trips:\t%d\n", s.Trades)
	fmt.Fprintf(tw, "Wins / losses:\t%d / %d\n", s.Wins, s.Losses)
	fmt.Fprintf(tw, "Win rate:\t%.1f%%\n", s.WinRate)
	fmt.Fprintf(tw, "Realized PnL:\t%s\n", s.RealizedPnL.StringFixed(2))
	fmt.Fprintf(tw, "Max drawdown:\t%.2f%%\n", s.MaxDrawdownPct)
	if !s.From.IsZero() {
		fmt.Fprintf(tw, "Period:\t%s .. %s\n", s.From.UTC().Format(time.RFC3339), s.To.UTC().Format(time.RFC3339))
	}

	if len(s.Symbols) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "SYMBOL\tTRADES\tWINS\tLOSSES\tPNL\tAVG HOLD (min)")
		for _, st := range s.Symbols {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%.1f\n",
				st.Symbol, st.Trades, st.Wins, st.Losses, st.PnL.StringFixed(2), st.AvgHold.Minutes())
		}
	}
	return tw.Flush()
}
