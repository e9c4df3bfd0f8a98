package cmd

import (
	"fmt"
	"strings"

	"github.com/Quaser41/Autonomous-Trader/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "An autonomous crypto paper-trading bot",
	Long: `Trader scans a whitelist of crypto symbols, scores each one with a
technical-indicator strategy and trades the entries against a simulated
wallet with fees, slippage, stops and risk limits.

It provides tools for:
  - Running the decision loop against replayed OHLCV data
  - Evaluating the strategy on a single CSV file
  - Querying the trade journal and summarizing performance
  - Reconciling the persisted wallet against realized PnL
  - Managing the runtime whitelist

Every global flag can also be set with a TRADER_ environment variable,
for example TRADER_STATE_DIR=/var/lib/trader.`,
	SilenceUsage: true,
}

// settings layers flags over TRADER_* environment variables.
var settings = viper.New()

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (YAML or JSON); defaults are used when empty")
	flags.String("state-dir", "", "override paths.state_dir")
	flags.String("log-level", "", "override log.level (debug, info, warn, error)")
	flags.Bool("pretty", false, "human readable console logs")

	settings.SetEnvPrefix("TRADER")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()
	for _, name := range []string{"config", "state-dir", "log-level", "pretty"} {
		if err := settings.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// loadConfig reads the config file, when one is given, and applies the flag
// and environment overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if path := settings.GetString("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if dir := settings.GetString("state-dir"); dir != "" {
		cfg.Paths.StateDir = dir
	}
	if lvl := settings.GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if settings.GetBool("pretty") {
		cfg.Log.Pretty = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
