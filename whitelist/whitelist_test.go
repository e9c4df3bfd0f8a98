package whitelist

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Quaser41/Autonomous-Trader/state"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    Options
		runtime []string
		pnl     map[string][]float64
		want    []string
	}{
		{
			name: "static only",
			opts: Options{Static: []string{"btc-usd", " ETH-USD ", "BTC-USD"}},
			want: []string{"BTC-USD", "ETH-USD"},
		},
		{
			name:    "runtime replaces static",
			opts:    Options{Static: []string{"BTC-USD"}},
			runtime: []string{"SOL-USD", "DOGE-USD"},
			want:    []string{"SOL-USD", "DOGE-USD"},
		},
		{
			name:    "empty runtime list overrides static",
			opts:    Options{Static: []string{"BTC-USD"}},
			runtime: []string{" "},
			want:    []string{},
		},
		{
			name: "blacklist",
			opts: Options{Static: []string{"BTC-USD", "LUNA-USD"}, Blacklist: []string{"luna-usd"}},
			want: []string{"BTC-USD"},
		},
		{
			name: "negative pnl dropped",
			opts: Options{Static: []string{"BTC-USD", "ETH-USD", "SOL-USD"}},
			pnl: map[string][]float64{
				"ETH-USD": {1, -3},
				"SOL-USD": {2, -2},
			},
			want: []string{"BTC-USD", "SOL-USD"},
		},
		{
			name: "capped",
			opts: Options{Static: []string{"A", "B", "C"}, MaxSymbols: 2},
			want: []string{"A", "B"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Load(tt.opts, tt.runtime, tt.pnl))
		})
	}
}

func TestRuntimePersistence(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), state.WhitelistFile)
	rt, err := OpenRuntime(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, rt.Symbols())

	require.NoError(t, rt.Set([]string{"btc-usd", "ETH-USD"}))
	removed, err := rt.Remove("BTC-USD")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = rt.Remove("XRP-USD")
	require.NoError(t, err)
	assert.False(t, removed)

	again, err := OpenRuntime(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"ETH-USD"}, again.Symbols())
}

func TestRuntimeCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), state.WhitelistFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"oops":`), 0o644))

	rt, err := OpenRuntime(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, rt.Symbols())
}

func TestSourceRemoveSeedsRuntime(t *testing.T) {
	t.Parallel()

	rt, err := OpenRuntime(filepath.Join(t.TempDir(), state.WhitelistFile), zerolog.Nop())
	require.NoError(t, err)

	src := NewSource(Options{Static: []string{"BTC-USD", "BAD-USD", "ETH-USD"}}, rt, zerolog.Nop())
	require.NoError(t, src.Remove("BAD-USD"))

	got, err := src.CurrentSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, got)
	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, rt.Symbols())

	src.SetPnL(func() map[string][]float64 {
		return map[string][]float64{"ETH-USD": {-1}}
	})
	got, err = src.CurrentSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC-USD"}, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.CurrentSymbols(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSourceRemoveLastRuntimeSymbol(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), state.WhitelistFile)
	require.NoError(t, os.WriteFile(path, []byte(`["BAD"]`), 0o644))
	rt, err := OpenRuntime(path, zerolog.Nop())
	require.NoError(t, err)

	src := NewSource(Options{Static: []string{"BAD", "OTHER"}}, rt, zerolog.Nop())
	got, err := src.CurrentSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BAD"}, got)

	require.NoError(t, src.Remove("BAD"))
	got, err = src.CurrentSymbols(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.True(t, rt.Present())

	again, err := OpenRuntime(path, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, again.Present())
	assert.Equal(t, []string{}, again.Symbols())

	restarted := NewSource(Options{Static: []string{"BAD", "OTHER"}}, again, zerolog.Nop())
	got, err = restarted.CurrentSymbols(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRuntimeAbsentVersusEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		present bool
	}{
		{"missing file", "", false},
		{"null", "null", false},
		{"corrupt", `["A"`, false},
		{"empty list", "[]", true},
		{"list", `["a-usd"]`, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), state.WhitelistFile)
			if tt.content != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			}
			rt, err := OpenRuntime(path, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tt.present, rt.Present())
			if !tt.present {
				assert.Nil(t, rt.Symbols())
			}
		})
	}
}

func TestBlocked(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"A", "C"}, Blocked(map[string][]float64{
		"C": {-1},
		"B": {1, -1},
		"A": {-0.5, 0.1},
	}))
}

func TestWatchReloadsOnReplace(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), state.WhitelistFile)
	rt, err := OpenRuntime(path, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen [][]string
	done := make(chan error, 1)
	go func() {
		done <- rt.Watch(ctx, func(s []string) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		})
	}()

	// the watcher registers asynchronously; keep writing until it notices
	require.Eventually(t, func() bool {
		_ = state.WriteJSONAtomic(path, []string{"ADA-USD"})
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, []string{"ADA-USD"}, rt.Symbols())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
