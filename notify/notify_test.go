package notify

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured []string

func (c *captured) Notify(msg string) { *c = append(*c, msg) }

func TestFileAppendsTimestampedLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "events.log")
	n, err := OpenFile(path, zerolog.Nop())
	require.NoError(t, err)
	n.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }

	n.Notify("BUY BTC-USD")
	n.Notify("SELL BTC-USD")
	require.NoError(t, n.Close())
	n.Notify("after close")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{
		"2024-05-01T09:30:00Z BUY BTC-USD",
		"2024-05-01T09:30:00Z SELL BTC-USD",
	}, lines)
}

func TestLogAndMulti(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var c captured
	m := Multi{NewLog(zerolog.New(&buf)), &c, nil}

	m.Notify("RISK blocked")
	assert.Equal(t, captured{"RISK blocked"}, c)
	assert.Contains(t, buf.String(), `"message":"RISK blocked"`)
	assert.Contains(t, buf.String(), `"component":"notify"`)
}
