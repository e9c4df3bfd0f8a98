package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingColumns   = errors.New("csv missing required columns")
	ErrNotChronological = errors.New("csv rows are not in chronological order")
)

var requiredColumns = []string{"open", "high", "low", "close", "volume"}

var timeColumns = []string{"timestamp", "time", "date", "datetime"}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) (Bars, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// ReadCSV parses OHLCV rows with a header line. Column names are matched
// case-insensitively. A timestamp column is optional; when present the rows
// must be strictly increasing in time.
func ReadCSV(r io.Reader) (Bars, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, ErrMissingColumns
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := map[string]int{}
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	timeIdx := -1
	for _, col := range timeColumns {
		if i, ok := idx[col]; ok {
			timeIdx = i
			break
		}
	}

	var bars Bars
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var bar Bar
		fields := []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume}
		for i, col := range requiredColumns {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[col]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, col, err)
			}
			*fields[i] = v
		}

		if timeIdx >= 0 {
			ts, err := parseTime(rec[timeIdx])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			bar.Time = ts
		}
		bars = append(bars, bar)
	}

	if !bars.Chronological() {
		return nil, ErrNotChronological
	}
	return bars, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		// Millisecond epochs are common in exchange exports.
		if n > 1e12 {
			return time.UnixMilli(int64(n)).UTC(), nil
		}
		return time.Unix(int64(n), 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
