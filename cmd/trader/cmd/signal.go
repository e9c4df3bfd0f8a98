package cmd

import (
	"fmt"

	"github.com/Quaser41/Autonomous-Trader/market"
	"github.com/Quaser41/Autonomous-Trader/strategies"
	"github.com/spf13/cobra"
)

var signalCmd = &cobra.Command{
	Use:   "signal <bars.csv>",
	Short: "Evaluate the strategy on an OHLCV CSV file",
	Long: `Read OHLCV bars from a CSV file and print the signal the configured
strategy produces for the last bar.

The file needs open, high, low, close and volume columns and may carry a
timestamp column. Rows must be in chronological order.

Example:
  trader signal data/btc-usd.csv
  trader signal --strategy noop data/btc-usd.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runSignal,
}

var signalStrategy string

func init() {
	rootCmd.AddCommand(signalCmd)
	signalCmd.Flags().StringVarP(&signalStrategy, "strategy", "s", "", "strategy name (default from config)")
}

func runSignal(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	name := cfg.Strategy.Name
	if signalStrategy != "" {
		name = signalStrategy
	}
	strat, err := strategies.ByName(name, cfg.StrategyConfig())
	if err != nil {
		return err
	}

	bars, err := market.ReadCSVFile(args[0])
	if err != nil {
		return fmt.Errorf("read bars: %w", err)
	}

	sig := strat.Evaluate(bars)
	fmt.Printf("%s: %s\n", strat.Name(), sig)
	fmt.Printf("  Bars: %d\n", bars.Len())
	if last, ok := bars.Last(); ok {
		fmt.Printf("  Last close: %.6f\n", last.Close)
	}
	fmt.Printf("  ATR: %.3f%%\n", sig.ATRPct*100)
	return nil
}
