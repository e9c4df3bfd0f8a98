package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Quaser41/Autonomous-Trader/logging"
	"github.com/Quaser41/Autonomous-Trader/state"
	"github.com/Quaser41/Autonomous-Trader/whitelist"
	"github.com/spf13/cobra"
)

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Inspect or edit the tradable symbol list",
	Long: `Show the effective whitelist or remove a symbol from the runtime list.

The effective list is the runtime list (or the configured symbols when no
runtime list exists) minus the blacklist and minus symbols whose recorded
PnL is negative, capped at whitelist.max_symbols.

Subcommands:
  show    - Print the effective, runtime and blocked lists
  remove  - Remove a symbol from the runtime list

Examples:
  trader whitelist show
  trader whitelist remove DOGE-USD`,
}

var whitelistShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective whitelist",
	Args:  cobra.NoArgs,
	RunE:  runWhitelistShow,
}

var whitelistRemoveCmd = &cobra.Command{
	Use:   "remove <symbol>",
	Short: "Remove a symbol from the runtime whitelist",
	Args:  cobra.ExactArgs(1),
	RunE:  runWhitelistRemove,
}

func init() {
	rootCmd.AddCommand(whitelistCmd)
	whitelistCmd.AddCommand(whitelistShowCmd)
	whitelistCmd.AddCommand(whitelistRemoveCmd)
}

func openWhitelist() (*whitelist.Source, func() map[string][]float64, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := state.NewStore(cfg.Paths.StateDir)
	if err != nil {
		return nil, nil, err
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty}, os.Stderr)
	rt, err := whitelist.OpenRuntime(store.Path(state.WhitelistFile), log)
	if err != nil {
		return nil, nil, err
	}
	pnl := func() map[string][]float64 {
		return state.Load(store, state.SymbolPnLFile, map[string][]float64{}).Value
	}
	src := whitelist.NewSource(whitelistOptions(cfg), rt, log)
	src.SetPnL(pnl)
	return src, pnl, nil
}

func runWhitelistShow(cmd *cobra.Command, args []string) error {
	src, pnl, err := openWhitelist()
	if err != nil {
		return err
	}
	symbols, err := src.CurrentSymbols(context.Background())
	if err != nil {
		return err
	}

	runtime := "(not set, configured symbols apply)"
	if src.Runtime().Present() {
		runtime = joinOrNone(src.Runtime().Symbols())
	}
	fmt.Printf("Effective: %s\n", joinOrNone(symbols))
	fmt.Printf("Runtime (%s): %s\n", src.Runtime().Path(), runtime)
	fmt.Printf("Blocked by PnL: %s\n", joinOrNone(whitelist.Blocked(pnl())))
	return nil
}

func runWhitelistRemove(cmd *cobra.Command, args []string) error {
	src, _, err := openWhitelist()
	if err != nil {
		return err
	}
	symbol := strings.ToUpper(strings.TrimSpace(args[0]))
	if err := src.Remove(symbol); err != nil {
		return fmt.Errorf("remove %s: %w", symbol, err)
	}
	fmt.Printf("✓ Removed %s from %s\n", symbol, src.Runtime().Path())
	return nil
}

func joinOrNone(list []string) string {
	if len(list) == 0 {
		return "(none)"
	}
	return strings.Join(list, ", ")
}
