package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Quaser41/Autonomous-Trader/risk"
	"github.com/Quaser41/Autonomous-Trader/sim"
	"github.com/Quaser41/Autonomous-Trader/strategies"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config represents the complete trader configuration
type Config struct {
	Risk         RiskConfig      `json:"risk" yaml:"risk"`
	Exits        ExitsConfig     `json:"exits" yaml:"exits"`
	TrailingStop TrailingConfig  `json:"trailing_stop" yaml:"trailing_stop"`
	Strategy     StrategyConfig  `json:"strategy" yaml:"strategy"`
	Whitelist    WhitelistConfig `json:"whitelist" yaml:"whitelist"`
	Paths        PathsConfig     `json:"paths" yaml:"paths"`
	Journal      JournalConfig   `json:"journal" yaml:"journal"`
	Loop         LoopConfig      `json:"loop" yaml:"loop"`
	Metrics      MetricsConfig   `json:"metrics" yaml:"metrics"`
	Log          LogConfig       `json:"log" yaml:"log"`
}

// RiskConfig contains wallet, admission and sizing parameters
type RiskConfig struct {
	DryRunWallet    float64  `json:"dry_run_wallet" yaml:"dry_run_wallet"`
	ResetBalance    bool     `json:"reset_balance" yaml:"reset_balance"`
	MaxOpenTrades   int      `json:"max_open_trades" yaml:"max_open_trades"`
	MaxTradesPerDay int      `json:"max_trades_per_day" yaml:"max_trades_per_day"` // 0 = unlimited
	DailyLossLimit  *float64 `json:"daily_loss_limit,omitempty" yaml:"daily_loss_limit,omitempty"`
	SymbolLossLimit *float64 `json:"symbol_loss_limit,omitempty" yaml:"symbol_loss_limit,omitempty"`

	TradableBalanceRatio         float64 `json:"tradable_balance_ratio" yaml:"tradable_balance_ratio"`
	StakePerTradeRatio           float64 `json:"stake_per_trade_ratio" yaml:"stake_per_trade_ratio"`
	PositiveExpectancyMultiplier float64 `json:"positive_expectancy_multiplier" yaml:"positive_expectancy_multiplier"`
	NegativeExpectancyMultiplier float64 `json:"negative_expectancy_multiplier" yaml:"negative_expectancy_multiplier"`
	NegativePnLMultiplier        float64 `json:"negative_pnl_multiplier" yaml:"negative_pnl_multiplier"`
	ExpectancyWindow             int     `json:"expectancy_window" yaml:"expectancy_window"`

	Cooldown    string  `json:"cooldown" yaml:"cooldown"` // e.g. "30m"
	SlippagePct float64 `json:"slippage_pct" yaml:"slippage_pct"`
	FeePct      float64 `json:"fee_pct" yaml:"fee_pct"`
}

// ExitsConfig contains the fallback stop and target distances
type ExitsConfig struct {
	StopLossPct   float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
}

// TrailingConfig contains the breakeven and trailing stop parameters
type TrailingConfig struct {
	Enabled             bool                        `json:"enabled" yaml:"enabled"`
	ActivationProfitPct float64                     `json:"activation_profit_pct" yaml:"activation_profit_pct"`
	BreakevenTriggerPct float64                     `json:"breakeven_trigger_pct" yaml:"breakeven_trigger_pct"`
	TrailingStopPct     float64                     `json:"trailing_stop_pct" yaml:"trailing_stop_pct"`
	ATRTrailMultiplier  float64                     `json:"atr_trail_multiplier" yaml:"atr_trail_multiplier"`
	Overrides           map[string]TrailingOverride `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

// TrailingOverride replaces individual trailing parameters for one symbol.
// Unset fields inherit from TrailingConfig.
type TrailingOverride struct {
	Enabled             *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	ActivationProfitPct *float64 `json:"activation_profit_pct,omitempty" yaml:"activation_profit_pct,omitempty"`
	BreakevenTriggerPct *float64 `json:"breakeven_trigger_pct,omitempty" yaml:"breakeven_trigger_pct,omitempty"`
	TrailingStopPct     *float64 `json:"trailing_stop_pct,omitempty" yaml:"trailing_stop_pct,omitempty"`
	ATRTrailMultiplier  *float64 `json:"atr_trail_multiplier,omitempty" yaml:"atr_trail_multiplier,omitempty"`
}

// StrategyConfig selects the registered strategy and its parameters
type StrategyConfig struct {
	Name              string `json:"name" yaml:"name"`
	strategies.Config `yaml:",inline"`
}

// WhitelistConfig contains the static tradable universe
type WhitelistConfig struct {
	Symbols    []string `json:"symbols" yaml:"symbols"`
	Blacklist  []string `json:"blacklist,omitempty" yaml:"blacklist,omitempty"`
	MaxSymbols int      `json:"max_symbols" yaml:"max_symbols"` // 0 = no cap
	Watch      bool     `json:"watch" yaml:"watch"`
}

// PathsConfig contains the state and log directories
type PathsConfig struct {
	StateDir string `json:"state_dir" yaml:"state_dir"`
	LogDir   string `json:"log_dir" yaml:"log_dir"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite", "both" or "none"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LoopConfig contains the decision loop parameters
type LoopConfig struct {
	Interval    string `json:"interval" yaml:"interval"`   // e.g. "1m"
	Timeframe   string `json:"timeframe" yaml:"timeframe"` // bar size requested from the feed
	BarLimit    int    `json:"bar_limit" yaml:"bar_limit"`
	Heartbeat   int    `json:"heartbeat" yaml:"heartbeat"` // ticks between heartbeats, 0 = off
	Feed        string `json:"feed" yaml:"feed"`           // "csv:<dir>"
	MaxPriceAge string `json:"max_price_age" yaml:"max_price_age"`
}

// MetricsConfig contains the prometheus endpoint
type MetricsConfig struct {
	Listen string `json:"listen" yaml:"listen"` // empty disables
}

// LogConfig contains logging parameters
type LogConfig struct {
	Level      string `json:"level" yaml:"level"`
	Pretty     bool   `json:"pretty" yaml:"pretty"`
	EventsFile string `json:"events_file,omitempty" yaml:"events_file,omitempty"`
}

func (j JournalConfig) WritesCSV() bool { return j.Type == "csv" || j.Type == "both" }
func (j JournalConfig) WritesSQLite() bool { return j.Type == "sqlite" || j.Type == "both" }

// LoadFromFile loads configuration from a file (JSON or YAML). Keys missing
// from the file keep their Default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	r := c.Risk
	if r.DryRunWallet <= 0 {
		return fmt.Errorf("risk.dry_run_wallet must be positive")
	}
	if r.MaxOpenTrades < 1 {
		return fmt.Errorf("risk.max_open_trades must be at least 1")
	}
	if r.MaxTradesPerDay < 0 {
		return fmt.Errorf("risk.max_trades_per_day must not be negative")
	}
	if r.TradableBalanceRatio <= 0 || r.TradableBalanceRatio > 1 {
		return fmt.Errorf("risk.tradable_balance_ratio must be between 0 and 1")
	}
	if r.StakePerTradeRatio <= 0 || r.StakePerTradeRatio > 1 {
		return fmt.Errorf("risk.stake_per_trade_ratio must be between 0 and 1")
	}
	if r.PositiveExpectancyMultiplier < 0 || r.NegativeExpectancyMultiplier < 0 || r.NegativePnLMultiplier < 0 {
		return fmt.Errorf("risk multipliers must not be negative")
	}
	if r.ExpectancyWindow < 1 {
		return fmt.Errorf("risk.expectancy_window must be at least 1")
	}
	if _, err := parseDuration("risk.cooldown", r.Cooldown); err != nil {
		return err
	}
	if r.SlippagePct < 0 || r.SlippagePct >= 0.1 {
		return fmt.Errorf("risk.slippage_pct must be in [0, 0.1)")
	}
	if r.FeePct < 0 || r.FeePct >= 0.1 {
		return fmt.Errorf("risk.fee_pct must be in [0, 0.1)")
	}

	if c.Exits.StopLossPct <= 0 || c.Exits.StopLossPct >= 1 {
		return fmt.Errorf("exits.stop_loss_pct must be between 0 and 1")
	}
	if c.Exits.TakeProfitPct <= 0 {
		return fmt.Errorf("exits.take_profit_pct must be positive")
	}

	ts := c.TrailingStop
	if ts.ActivationProfitPct < 0 || ts.BreakevenTriggerPct < 0 || ts.TrailingStopPct < 0 || ts.ATRTrailMultiplier < 0 {
		return fmt.Errorf("trailing_stop values must not be negative")
	}
	seen := make(map[string]string, len(ts.Overrides))
	for sym, o := range ts.Overrides {
		key := normalizeSymbol(sym)
		if key == "" {
			return fmt.Errorf("trailing_stop.overrides: empty symbol")
		}
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("trailing_stop.overrides: %q and %q name the same symbol", prev, sym)
		}
		seen[key] = sym
		for _, v := range []*float64{o.ActivationProfitPct, o.BreakevenTriggerPct, o.TrailingStopPct, o.ATRTrailMultiplier} {
			if v != nil && *v < 0 {
				return fmt.Errorf("trailing_stop.overrides.%s values must not be negative", sym)
			}
		}
	}

	s := c.Strategy
	if _, err := strategies.ByName(s.Name, s.Config); err != nil {
		return fmt.Errorf("strategy.name: %w", err)
	}
	if s.Filters.MinATRPct < 0 || s.Filters.MaxATRPct <= s.Filters.MinATRPct {
		return fmt.Errorf("strategy.filters: min_atr_pct must be below max_atr_pct")
	}
	if s.Filters.AvgVolumePeriod < 1 {
		return fmt.Errorf("strategy.filters.avg_volume_period must be at least 1")
	}
	if s.Filters.ADXPeriod < 0 || s.Filters.MinADX < 0 {
		return fmt.Errorf("strategy.filters: adx values must not be negative")
	}
	if s.Risk.ATRStopMultiplier <= 0 || s.Risk.RRRatio <= 0 {
		return fmt.Errorf("strategy.risk: atr_stop_multiplier and rr_ratio must be positive")
	}
	if s.BuyScoreThreshold < 0 {
		return fmt.Errorf("strategy.buy_score_threshold must not be negative")
	}
	if s.MomentumPct < 0 {
		return fmt.Errorf("strategy.momentum_pct must not be negative")
	}

	if c.Whitelist.MaxSymbols < 0 {
		return fmt.Errorf("whitelist.max_symbols must not be negative")
	}

	if c.Paths.StateDir == "" {
		return fmt.Errorf("paths.state_dir is required")
	}

	switch c.Journal.Type {
	case "csv", "sqlite", "both", "none":
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite', 'both' or 'none'")
	}
	if c.Journal.WritesCSV() && (c.Journal.TradesFile == "" || c.Journal.EquityFile == "") {
		return fmt.Errorf("journal trades_file and equity_file required for CSV type")
	}
	if c.Journal.WritesSQLite() && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for SQLite type")
	}

	interval, err := parseDuration("loop.interval", c.Loop.Interval)
	if err != nil {
		return err
	}
	if interval <= 0 {
		return fmt.Errorf("loop.interval must be positive")
	}
	if _, err := parseDuration("loop.max_price_age", c.Loop.MaxPriceAge); err != nil {
		return err
	}
	if c.Loop.BarLimit < strategies.MinBars {
		return fmt.Errorf("loop.bar_limit must be at least %d", strategies.MinBars)
	}
	if c.Loop.Heartbeat < 0 {
		return fmt.Errorf("loop.heartbeat must not be negative")
	}
	if c.Loop.Feed != "" && !strings.HasPrefix(c.Loop.Feed, "csv:") {
		return fmt.Errorf("loop.feed must be of the form csv:<dir>")
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

// CooldownDuration converts the cooldown string to time.Duration
func (r RiskConfig) CooldownDuration() (time.Duration, error) {
	return parseDuration("risk.cooldown", r.Cooldown)
}

// IntervalDuration converts the loop interval string to time.Duration
func (l LoopConfig) IntervalDuration() (time.Duration, error) {
	return parseDuration("loop.interval", l.Interval)
}

// MaxPriceAgeDuration converts the staleness tolerance to time.Duration.
// Zero means prices never go stale.
func (l LoopConfig) MaxPriceAgeDuration() (time.Duration, error) {
	return parseDuration("loop.max_price_age", l.MaxPriceAge)
}

// FeedDir returns the directory of a csv:<dir> feed.
func (l LoopConfig) FeedDir() (string, bool) {
	dir, ok := strings.CutPrefix(l.Feed, "csv:")
	return dir, ok && dir != ""
}

// Policy maps the risk section to admission and sizing limits.
func (c *Config) Policy() risk.Policy {
	return risk.Policy{
		MaxOpenTrades:                c.Risk.MaxOpenTrades,
		MaxTradesPerDay:              c.Risk.MaxTradesPerDay,
		DailyLossLimit:               c.Risk.DailyLossLimit,
		SymbolLossLimit:              c.Risk.SymbolLossLimit,
		TradableBalanceRatio:         c.Risk.TradableBalanceRatio,
		StakePerTradeRatio:           c.Risk.StakePerTradeRatio,
		BaseStopLossPct:              c.Exits.StopLossPct,
		PositiveExpectancyMultiplier: c.Risk.PositiveExpectancyMultiplier,
		NegativeExpectancyMultiplier: c.Risk.NegativeExpectancyMultiplier,
		NegativePnLMultiplier:        c.Risk.NegativePnLMultiplier,
	}
}

// BrokerSettings builds the paper broker settings, resolving per-symbol
// trailing overrides against the base trailing configuration.
func (c *Config) BrokerSettings() (sim.Settings, error) {
	cooldown, err := c.Risk.CooldownDuration()
	if err != nil {
		return sim.Settings{}, err
	}

	base := sim.Trailing{
		Enabled:             c.TrailingStop.Enabled,
		ActivationProfitPct: c.TrailingStop.ActivationProfitPct,
		BreakevenTriggerPct: c.TrailingStop.BreakevenTriggerPct,
		TrailingStopPct:     c.TrailingStop.TrailingStopPct,
		ATRTrailMultiplier:  c.TrailingStop.ATRTrailMultiplier,
	}

	s := sim.Settings{
		Policy:           c.Policy(),
		DryRunWallet:     c.Risk.DryRunWallet,
		ResetBalance:     c.Risk.ResetBalance,
		Cooldown:         cooldown,
		ExpectancyWindow: c.Risk.ExpectancyWindow,
		SlippagePct:      c.Risk.SlippagePct,
		FeePct:           c.Risk.FeePct,
		StopLossPct:      c.Exits.StopLossPct,
		TakeProfitPct:    c.Exits.TakeProfitPct,
		Trailing:         base,
	}

	if len(c.TrailingStop.Overrides) > 0 {
		s.TrailingOverrides = make(map[string]sim.Trailing, len(c.TrailingStop.Overrides))
		for sym, o := range c.TrailingStop.Overrides {
			s.TrailingOverrides[normalizeSymbol(sym)] = o.apply(base)
		}
	}
	return s, nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func (o TrailingOverride) apply(t sim.Trailing) sim.Trailing {
	if o.Enabled != nil {
		t.Enabled = *o.Enabled
	}
	if o.ActivationProfitPct != nil {
		t.ActivationProfitPct = *o.ActivationProfitPct
	}
	if o.BreakevenTriggerPct != nil {
		t.BreakevenTriggerPct = *o.BreakevenTriggerPct
	}
	if o.TrailingStopPct != nil {
		t.TrailingStopPct = *o.TrailingStopPct
	}
	if o.ATRTrailMultiplier != nil {
		t.ATRTrailMultiplier = *o.ATRTrailMultiplier
	}
	return t
}

// StrategyConfig returns the parameters handed to the strategy factory.
func (c *Config) StrategyConfig() strategies.Config {
	return c.Strategy.Config
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	pol := risk.DefaultPolicy()
	defaults := sim.DefaultSettings()

	return &Config{
		Risk: RiskConfig{
			DryRunWallet:                 defaults.DryRunWallet,
			MaxOpenTrades:                pol.MaxOpenTrades,
			TradableBalanceRatio:         pol.TradableBalanceRatio,
			StakePerTradeRatio:           pol.StakePerTradeRatio,
			PositiveExpectancyMultiplier: pol.PositiveExpectancyMultiplier,
			NegativeExpectancyMultiplier: pol.NegativeExpectancyMultiplier,
			NegativePnLMultiplier:        pol.NegativePnLMultiplier,
			ExpectancyWindow:             defaults.ExpectancyWindow,
			Cooldown:                     "30m",
		},
		Exits: ExitsConfig{
			StopLossPct:   defaults.StopLossPct,
			TakeProfitPct: defaults.TakeProfitPct,
		},
		TrailingStop: TrailingConfig{
			Enabled:             defaults.Trailing.Enabled,
			BreakevenTriggerPct: defaults.Trailing.BreakevenTriggerPct,
			TrailingStopPct:     defaults.Trailing.TrailingStopPct,
		},
		Strategy: StrategyConfig{
			Name:   "combo",
			Config: strategies.ConfigDefaults(),
		},
		Whitelist: WhitelistConfig{
			Symbols:    []string{"BTC-USD", "ETH-USD", "SOL-USD"},
			MaxSymbols: 10,
			Watch:      true,
		},
		Paths: PathsConfig{
			StateDir: "./state",
			LogDir:   "./logs",
		},
		Journal: JournalConfig{
			Type:       "csv",
			TradesFile: "./logs/trades.csv",
			EquityFile: "./logs/equity_curve.csv",
		},
		Loop: LoopConfig{
			Interval:    "1m",
			Timeframe:   "1m",
			BarLimit:    300,
			Heartbeat:   5,
			Feed:        "csv:./data",
			MaxPriceAge: "2m",
		},
		Log: LogConfig{
			Level:      "info",
			EventsFile: "./logs/events.log",
		},
	}
}
