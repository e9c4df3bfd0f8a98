package market

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	t.Parallel()

	in := `timestamp,open,high,low,close,volume
1704067200,100,101,99,100.5,10
1704067260,100.5,102,100,101.5,12
`
	bars, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].Time)
	assert.Equal(t, 101.5, bars[1].Close)
	assert.Equal(t, 12.0, bars[1].Volume)
}

func TestReadCSVErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		wantErr error
		errMsg  string
	}{
		{
			name:    "missing volume",
			in:      "open,high,low,close\n1,2,0.5,1.5\n",
			wantErr: ErrMissingColumns,
			errMsg:  "volume",
		},
		{
			name:    "empty input",
			in:      "",
			wantErr: ErrMissingColumns,
		},
		{
			name:    "out of order",
			in:      "date,open,high,low,close,volume\n2024-01-02,1,1,1,1,1\n2024-01-01,1,1,1,1,1\n",
			wantErr: ErrNotChronological,
		},
		{
			name:   "bad number",
			in:     "open,high,low,close,volume\nx,1,1,1,1\n",
			errMsg: "line 2: open",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestReadCSVFileCaseInsensitiveHeaders(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "BTC_USDT.csv")
	data := "Datetime,Open,High,Low,Close,Volume\n2024-01-01 00:00:00,1,2,0.5,1.5,3\n2024-01-01 00:01:00,1.5,2,1,1.8,4\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	bars, err := ReadCSVFile(path)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	last, ok := bars.Last()
	require.True(t, ok)
	assert.Equal(t, 1.8, last.Close)
	assert.Equal(t, []float64{1.5, 1.8}, bars.Closes())
}

func TestBarsTail(t *testing.T) {
	t.Parallel()

	bars := Bars{{Close: 1}, {Close: 2}, {Close: 3}}
	assert.Equal(t, []float64{2, 3}, bars.Tail(2).Closes())
	assert.Len(t, bars.Tail(10), 3)
	assert.Nil(t, bars.Tail(0))

	_, ok := Bars(nil).Last()
	assert.False(t, ok)
}
