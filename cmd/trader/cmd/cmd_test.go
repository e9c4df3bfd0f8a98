package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Quaser41/Autonomous-Trader/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayBounds(t *testing.T) {
	start, end, err := dayBounds(time.UTC, "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	_, _, err = dayBounds(time.UTC, "15/01/2024")
	assert.Error(t, err)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("risk:\n  max_open_trades: 5\n"), 0o644))

	t.Setenv("TRADER_CONFIG", path)
	t.Setenv("TRADER_STATE_DIR", filepath.Join(dir, "state"))
	t.Setenv("TRADER_LOG_LEVEL", "debug")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Risk.MaxOpenTrades)
	assert.Equal(t, filepath.Join(dir, "state"), cfg.Paths.StateDir)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigRejectsInvalidOverride(t *testing.T) {
	t.Setenv("TRADER_CONFIG", "")
	t.Setenv("TRADER_LOG_LEVEL", "loud")

	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestOpenJournal(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		jc   config.JournalConfig
		file string
	}{
		{"csv", config.JournalConfig{Type: "csv", TradesFile: filepath.Join(dir, "a", "trades.csv"), EquityFile: filepath.Join(dir, "a", "equity.csv")}, filepath.Join(dir, "a", "trades.csv")},
		{"sqlite", config.JournalConfig{Type: "sqlite", DBPath: filepath.Join(dir, "b", "journal.db")}, filepath.Join(dir, "b", "journal.db")},
		{"both", config.JournalConfig{Type: "both", TradesFile: filepath.Join(dir, "c", "trades.csv"), EquityFile: filepath.Join(dir, "c", "equity.csv"), DBPath: filepath.Join(dir, "c", "journal.db")}, filepath.Join(dir, "c", "journal.db")},
		{"none", config.JournalConfig{Type: "none"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Journal = tt.jc
			j, err := openJournal(cfg)
			require.NoError(t, err)
			require.NoError(t, j.Close())
			if tt.file != "" {
				assert.FileExists(t, tt.file)
			}
		})
	}
}
