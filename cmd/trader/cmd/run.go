package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Quaser41/Autonomous-Trader/broker"
	"github.com/Quaser41/Autonomous-Trader/config"
	"github.com/Quaser41/Autonomous-Trader/feed"
	"github.com/Quaser41/Autonomous-Trader/journal"
	"github.com/Quaser41/Autonomous-Trader/logging"
	"github.com/Quaser41/Autonomous-Trader/metrics"
	"github.com/Quaser41/Autonomous-Trader/notify"
	"github.com/Quaser41/Autonomous-Trader/report"
	"github.com/Quaser41/Autonomous-Trader/sim"
	"github.com/Quaser41/Autonomous-Trader/state"
	"github.com/Quaser41/Autonomous-Trader/strategies"
	"github.com/Quaser41/Autonomous-Trader/trader"
	"github.com/Quaser41/Autonomous-Trader/whitelist"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the decision loop against the configured feed",
	Long: `Run the paper-trading decision loop.

Bars are replayed from the CSV directory named by loop.feed ("csv:<dir>"),
one file per symbol. By default the replay runs as fast as possible; with
--paced one bar is revealed every loop.interval and published into a price
snapshot that the loop polls on its own ticker, as it would a live feed.
Snapshot prices older than loop.max_price_age are ignored in favor of the
last bar close.

While running, the prometheus endpoint (metrics.listen) and the runtime
whitelist watcher (whitelist.watch) run alongside the loop. When the loop
ends the wallet is reconciled against the realized PnL history.

Examples:
  trader run -c trader.yaml
  trader run -c trader.yaml --paced`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runPaced bool

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runPaced, "paced", false, "reveal one bar per loop.interval instead of replaying at full speed")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, logCloser, err := logging.Open(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		File:   filepath.Join(cfg.Paths.LogDir, "trader.log"),
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	interval, err := cfg.Loop.IntervalDuration()
	if err != nil {
		return err
	}
	brokerCfg, err := cfg.BrokerSettings()
	if err != nil {
		return err
	}
	strat, err := strategies.ByName(cfg.Strategy.Name, cfg.StrategyConfig())
	if err != nil {
		return err
	}

	dir, ok := cfg.Loop.FeedDir()
	if !ok {
		return fmt.Errorf("loop.feed %q: only csv:<dir> feeds are supported", cfg.Loop.Feed)
	}
	replay, err := feed.LoadReplayDir(dir)
	if err != nil {
		return err
	}
	replay.Seek(strategies.MinBars - 1)
	clock := replayClock(replay)

	store, err := state.NewStore(cfg.Paths.StateDir)
	if err != nil {
		return err
	}

	notifier, closers, err := openNotifier(cfg, log)
	if err != nil {
		return err
	}
	defer closeAll(log, closers)

	jrnl, err := openJournal(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := jrnl.Close(); err != nil {
			log.Error().Err(err).Msg("close journal")
		}
	}()

	rt, err := whitelist.OpenRuntime(store.Path(state.WhitelistFile), log)
	if err != nil {
		return err
	}
	src := whitelist.NewSource(whitelistOptions(cfg), rt, log)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.Health().SetMaxAge(3 * interval)

	pb, err := sim.NewPaperBroker(brokerCfg, store,
		sim.WithClock(clock),
		sim.WithLogger(log),
		sim.WithJournal(jrnl),
		sim.WithNotifier(notifier),
		sim.WithWhitelist(src),
		sim.WithListener(m),
	)
	if err != nil {
		return err
	}
	src.SetPnL(func() map[string][]float64 { return pb.Ledger().SymbolPnL })

	runner := &trader.Runner{
		Broker:    pb,
		Feed:      replay,
		Whitelist: src,
		Strategy:  strat,
		Journal:   jrnl,
		Notifier:  notifier,
		Observer:  m,
		Log:       log,
		Timeframe: cfg.Loop.Timeframe,
		BarLimit:  cfg.Loop.BarLimit,
		Heartbeat: cfg.Loop.Heartbeat,
		Now:       clock,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info().
		Str("strategy", strat.Name()).
		Strs("feed_symbols", replay.Symbols()).
		Str("state_dir", store.Dir()).
		Bool("paced", runPaced).
		Msg("starting paper trader")

	group, ctx := errgroup.WithContext(ctx)
	if runPaced {
		maxAge, err := cfg.Loop.MaxPriceAgeDuration()
		if err != nil {
			return err
		}
		snap := feed.NewSnapshot(maxAge)
		runner.Feed = snap
		pump := &feed.Pump{Replay: replay, Snapshot: snap, BarLimit: cfg.Loop.BarLimit}
		pump.Publish(ctx)

		group.Go(func() error {
			defer cancel()
			return pump.Run(ctx, interval)
		})
		group.Go(func() error { return runner.Run(ctx, interval) })
	} else {
		group.Go(func() error {
			defer cancel()
			return runner.RunReplay(ctx, replay)
		})
	}
	if cfg.Metrics.Listen != "" {
		srv := metrics.NewServer(cfg.Metrics.Listen, reg, m.Health(), log)
		group.Go(func() error { return srv.Run(ctx) })
	}
	if cfg.Whitelist.Watch {
		group.Go(func() error {
			return rt.Watch(ctx, func(symbols []string) {
				notifier.Notify(fmt.Sprintf("WHITELIST reloaded %v", symbols))
			})
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	acct := pb.Account(runner.Prices())
	rec := report.Reconcile(brokerCfg.DryRunWallet, pb.Ledger(), brokerCfg.ExpectancyWindow)
	notifier.Notify(rec.String())

	fmt.Printf("✓ Run complete\n")
	fmt.Printf("  Balance: $%.2f\n", acct.Balance)
	fmt.Printf("  Equity: $%.2f (unrealized %.2f)\n", acct.Equity, acct.Unrealized)
	fmt.Printf("  Open positions: %d\n", acct.OpenPositions)
	fmt.Printf("  %s\n", rec)
	return nil
}

// replayClock runs the broker on bar time. Series without timestamps fall
// back to the wall clock.
func replayClock(r *feed.Replay) func() time.Time {
	return func() time.Time {
		if t := r.Now(); !t.IsZero() {
			return t
		}
		return time.Now()
	}
}

func whitelistOptions(cfg *config.Config) whitelist.Options {
	return whitelist.Options{
		Static:     cfg.Whitelist.Symbols,
		Blacklist:  cfg.Whitelist.Blacklist,
		MaxSymbols: cfg.Whitelist.MaxSymbols,
	}
}

func openNotifier(cfg *config.Config, log zerolog.Logger) (broker.Notifier, []io.Closer, error) {
	notifiers := notify.Multi{notify.NewLog(log)}
	var closers []io.Closer
	if cfg.Log.EventsFile != "" {
		f, err := notify.OpenFile(cfg.Log.EventsFile, log)
		if err != nil {
			return nil, nil, err
		}
		notifiers = append(notifiers, f)
		closers = append(closers, f)
	}
	return notifiers, closers, nil
}

// openJournal opens every configured journal. With both CSV and SQLite
// enabled each record goes to both.
func openJournal(cfg *config.Config) (journal.Journal, error) {
	jc := cfg.Journal
	var out journal.Multi
	if jc.WritesCSV() {
		if err := mkdirParents(jc.TradesFile, jc.EquityFile); err != nil {
			return nil, err
		}
		j, err := journal.NewCSV(jc.TradesFile, jc.EquityFile)
		if err != nil {
			return nil, fmt.Errorf("open csv journal: %w", err)
		}
		out = append(out, j)
	}
	if jc.WritesSQLite() {
		if err := mkdirParents(jc.DBPath); err != nil {
			out.Close()
			return nil, err
		}
		j, err := journal.NewSQLite(jc.DBPath)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		out = append(out, j)
	}

	switch len(out) {
	case 0:
		return journal.Nop{}, nil
	case 1:
		return out[0], nil
	default:
		return out, nil
	}
}

func mkdirParents(paths ...string) error {
	for _, path := range paths {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}
	return nil
}

func closeAll(log zerolog.Logger, closers []io.Closer) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Msg("close")
		}
	}
}
