package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/Quaser41/Autonomous-Trader/config"
	"github.com/Quaser41/Autonomous-Trader/logging"
	"github.com/Quaser41/Autonomous-Trader/report"
	"github.com/Quaser41/Autonomous-Trader/sim"
	"github.com/Quaser41/Autonomous-Trader/state"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check the persisted balance against realized PnL",
	Long: `Load the broker state and verify that

  balance = dry_run_wallet + sum(realized PnL) - sum(open stakes)

The check is approximate once a symbol's PnL history has filled the
expectancy window, since older entries are no longer kept.

Example:
  trader reconcile -c trader.yaml`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pb, err := openLedgerBroker(cfg)
	if err != nil {
		return err
	}

	s := pb.Settings()
	rec := report.Reconcile(s.DryRunWallet, pb.Ledger(), s.ExpectancyWindow)
	fmt.Println(rec)
	if !rec.OK && !rec.Truncated {
		return errors.New("wallet does not reconcile")
	}
	return nil
}

// openLedgerBroker loads the persisted broker state read-only: the balance is
// never reset and nothing is journaled.
func openLedgerBroker(cfg *config.Config) (*sim.PaperBroker, error) {
	s, err := cfg.BrokerSettings()
	if err != nil {
		return nil, err
	}
	s.ResetBalance = false

	store, err := state.NewStore(cfg.Paths.StateDir)
	if err != nil {
		return nil, err
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}, os.Stderr)
	return sim.NewPaperBroker(s, store, sim.WithLogger(log))
}
