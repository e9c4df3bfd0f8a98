package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Quaser41/Autonomous-Trader/config"
	"github.com/Quaser41/Autonomous-Trader/journal"
	"github.com/Quaser41/Autonomous-Trader/report"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize closed trades and the equity curve",
	Long: `Read the configured journal (CSV or SQLite) and print win rate,
realized PnL per symbol, average hold time and maximum drawdown.

Example:
  trader report -c trader.yaml
  trader report --since 2024-01-01`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

var reportSince string

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportSince, "since", "", "only include trades closed on or after this UTC day (YYYY-MM-DD)")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var since time.Time
	if reportSince != "" {
		since, _, err = dayBounds(time.UTC, reportSince)
		if err != nil {
			return fmt.Errorf("since: %w", err)
		}
	}

	trades, equity, err := readJournal(cfg.Journal, since)
	if err != nil {
		return err
	}

	return report.Summarize(trades, equity).Render(os.Stdout)
}

func readJournal(jc config.JournalConfig, since time.Time) ([]journal.TradeRecord, []journal.EquitySnapshot, error) {
	var (
		trades []journal.TradeRecord
		equity []journal.EquitySnapshot
		err    error
	)
	switch {
	case jc.WritesSQLite():
		j, err := journal.NewSQLite(jc.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open db: %w", err)
		}
		defer j.Close()
		if trades, err = j.ListTrades(); err != nil {
			return nil, nil, fmt.Errorf("query trades: %w", err)
		}
		if equity, err = j.ListEquityBetween(since, time.Now().Add(24*time.Hour)); err != nil {
			return nil, nil, fmt.Errorf("query equity: %w", err)
		}
	case jc.WritesCSV():
		if trades, err = journal.ReadTradesCSV(jc.TradesFile); err != nil {
			return nil, nil, fmt.Errorf("read trades: %w", err)
		}
		if equity, err = journal.ReadEquityCSV(jc.EquityFile); err != nil {
			return nil, nil, fmt.Errorf("read equity: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("journal type %q has nothing to report", jc.Type)
	}

	if since.IsZero() {
		return trades, equity, nil
	}
	kept := trades[:0]
	for _, t := range trades {
		if !t.CloseTime.Before(since) {
			kept = append(kept, t)
		}
	}
	points := equity[:0]
	for _, e := range equity {
		if !e.Time.Before(since) {
			points = append(points, e)
		}
	}
	return kept, points, nil
}
