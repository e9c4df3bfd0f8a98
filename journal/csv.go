package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"
)

var (
	tradesHeader = []string{"trade_id", "symbol", "qty", "entry_price", "exit_price", "open_time", "close_time", "realized_pnl", "reason"}
	equityHeader = []string{"time", "balance", "equity", "unrealized", "open_positions"}
)

// CSVJournal appends to trades and equity CSV files. Headers are written
// only when a file is new, so a restarted session keeps its history.
type CSVJournal struct {
	mu     sync.Mutex
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, tw, err := openAppend(tradesPath, tradesHeader)
	if err != nil {
		return nil, err
	}
	ef, ew, err := openAppend(equityPath, equityHeader)
	if err != nil {
		tf.Close()
		return nil, err
	}
	return &CSVJournal{trades: tw, equity: ew, tf: tf, ef: ef}, nil
}

func openAppend(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, nil, err
		}
	}
	return f, w, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.trades.Write([]string{
		t.TradeID,
		t.Symbol,
		f(t.Qty),
		f(t.EntryPrice),
		f(t.ExitPrice),
		t.OpenTime.UTC().Format(time.RFC3339),
		t.CloseTime.UTC().Format(time.RFC3339),
		f(t.RealizedPnL),
		t.Reason,
	})
	if err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.equity.Write([]string{
		e.Time.UTC().Format(time.RFC3339),
		f(e.Balance),
		f(e.Equity),
		f(e.Unrealized),
		strconv.Itoa(e.OpenPositions),
	})
	if err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

// ReadTradesCSV loads every trade from a file written by CSVJournal.
func ReadTradesCSV(path string) ([]TradeRecord, error) {
	rows, err := readRows(path, len(tradesHeader))
	if err != nil {
		return nil, err
	}

	out := make([]TradeRecord, 0, len(rows))
	for i, r := range rows {
		var rec TradeRecord
		var perr parseErr
		rec.TradeID = r[0]
		rec.Symbol = r[1]
		rec.Qty = perr.float(r[2])
		rec.EntryPrice = perr.float(r[3])
		rec.ExitPrice = perr.float(r[4])
		rec.OpenTime = perr.time(r[5])
		rec.CloseTime = perr.time(r[6])
		rec.RealizedPnL = perr.float(r[7])
		rec.Reason = r[8]
		if perr.err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, perr.err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadEquityCSV loads every equity snapshot from a file written by CSVJournal.
func ReadEquityCSV(path string) ([]EquitySnapshot, error) {
	rows, err := readRows(path, len(equityHeader))
	if err != nil {
		return nil, err
	}

	out := make([]EquitySnapshot, 0, len(rows))
	for i, r := range rows {
		var snap EquitySnapshot
		var perr parseErr
		snap.Time = perr.time(r[0])
		snap.Balance = perr.float(r[1])
		snap.Equity = perr.float(r[2])
		snap.Unrealized = perr.float(r[3])
		snap.OpenPositions = int(perr.float(r[4]))
		if perr.err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, perr.err)
		}
		out = append(out, snap)
	}
	return out, nil
}

func readRows(path string, fields int) ([][]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = fields
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	return r.ReadAll()
}

// parseErr keeps the first parse failure so a row can be decoded in one pass.
type parseErr struct{ err error }

func (p *parseErr) float(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func (p *parseErr) time(s string) time.Time {
	v, err := time.Parse(time.RFC3339, s)
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
