// Package sim is the paper broker: admission control, sizing, the position
// state machine and the persisted ledger.
package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Quaser41/Autonomous-Trader/broker"
	"github.com/Quaser41/Autonomous-Trader/journal"
	"github.com/Quaser41/Autonomous-Trader/pkg/id"
	"github.com/Quaser41/Autonomous-Trader/risk"
	"github.com/Quaser41/Autonomous-Trader/state"
	"github.com/rs/zerolog"
)

const minQty = 1e-8

// ErrInvalidPrice is returned by Sell for a NaN, infinite or negative price.
// The position stays open.
var ErrInvalidPrice = errors.New("invalid price")

// Listener observes broker activity. Calls happen after the broker lock is
// released, in the goroutine that made the call.
type Listener interface {
	OnOpen(o broker.Order)
	OnClose(f broker.Fill)
	OnReject(symbol, code string)
	OnAccount(balance float64, openPositions int)
}

// PaperBroker simulates spot longs against a virtual wallet. Every mutating
// operation runs under one mutex and is flushed to the state store before
// the lock is released.
type PaperBroker struct {
	mu       sync.Mutex
	settings Settings
	store    *state.Store
	ledger   Ledger

	now       func() time.Time
	log       zerolog.Logger
	journal   journal.Journal
	notifier  broker.Notifier
	whitelist broker.Whitelist
	listener  Listener
}

var _ broker.Broker = (*PaperBroker)(nil)

type Option func(*PaperBroker)

func WithClock(now func() time.Time) Option {
	return func(b *PaperBroker) { b.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(b *PaperBroker) { b.log = l.With().Str("component", "paper_broker").Logger() }
}

func WithJournal(j journal.Journal) Option {
	return func(b *PaperBroker) { b.journal = j }
}

func WithNotifier(n broker.Notifier) Option {
	return func(b *PaperBroker) { b.notifier = n }
}

// WithWhitelist sets the runtime whitelist symbols are evicted from when
// they breach the per-symbol loss limit.
func WithWhitelist(w broker.Whitelist) Option {
	return func(b *PaperBroker) { b.whitelist = w }
}

func WithListener(l Listener) Option {
	return func(b *PaperBroker) { b.listener = l }
}

// NewPaperBroker loads the ledger from store. Missing or corrupt files fall
// back to defaults; with ResetBalance the wallet starts at DryRunWallet.
func NewPaperBroker(s Settings, store *state.Store, opts ...Option) (*PaperBroker, error) {
	if store == nil {
		return nil, fmt.Errorf("paper broker: nil state store")
	}
	if s.ExpectancyWindow <= 0 {
		s.ExpectancyWindow = DefaultSettings().ExpectancyWindow
	}

	b := &PaperBroker{
		settings: s,
		store:    store,
		now:      time.Now,
		log:      zerolog.Nop(),
		journal:  journal.Nop{},
	}
	for _, opt := range opts {
		opt(b)
	}

	b.ledger = loadLedger(store, s, b.log)
	if s.ResetBalance {
		if err := b.ledger.save(store, state.BalanceFile); err != nil {
			return nil, fmt.Errorf("paper broker: %w", err)
		}
	}

	b.log.Info().
		Float64("balance", b.ledger.Balance).
		Int("open_positions", len(b.ledger.Positions)).
		Bool("reset_balance", s.ResetBalance).
		Msg("ledger loaded")
	return b, nil
}

// events collects side effects to run once the lock is released.
type events struct {
	opened  *broker.Order
	closed  *broker.Fill
	rejects []rejection
	notes   []string
	evict   string
	account bool
	balance float64
	openPos int
}

type rejection struct {
	symbol string
	code   string
}

func (b *PaperBroker) flush(ev *events) {
	if ev.evict != "" && b.whitelist != nil {
		if err := b.whitelist.Remove(ev.evict); err != nil {
			b.log.Error().Err(err).Str("symbol", ev.evict).Msg("whitelist eviction failed")
		}
	}
	if b.notifier != nil {
		for _, msg := range ev.notes {
			b.notifier.Notify(msg)
		}
	}
	if b.listener == nil {
		return
	}
	for _, r := range ev.rejects {
		b.listener.OnReject(r.symbol, r.code)
	}
	if ev.opened != nil {
		b.listener.OnOpen(*ev.opened)
	}
	if ev.closed != nil {
		b.listener.OnClose(*ev.closed)
	}
	if ev.account {
		b.listener.OnAccount(ev.balance, ev.openPos)
	}
}

func (b *PaperBroker) markAccountLocked(ev *events) {
	ev.account = true
	ev.balance = b.ledger.Balance
	ev.openPos = len(b.ledger.Positions)
}

// rollLocked resets the daily counters on a UTC date change and persists them.
func (b *PaperBroker) rollLocked(now time.Time) {
	if !b.ledger.Daily.Roll(now) {
		return
	}
	b.log.Info().Str("date", b.ledger.Daily.Date).Msg("daily counters reset")
	if err := b.ledger.save(b.store, state.TradesCountFile, state.DailyPnLFile); err != nil {
		b.log.Error().Err(err).Msg("persist daily counters")
	}
}

func (b *PaperBroker) admitLocked(now time.Time) risk.Decision {
	b.rollLocked(now)
	return risk.Admit(b.settings.Policy, risk.AccountSnapshot{
		Balance:       b.ledger.Balance,
		OpenPositions: len(b.ledger.Positions),
		DailyTrades:   b.ledger.Daily.Trades,
		DailyPnL:      b.ledger.Daily.PnL,
	})
}

// CanOpen reports whether a new position may be opened right now.
func (b *PaperBroker) CanOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.admitLocked(b.now()).Allowed
}

// Admission is CanOpen with the violations that blocked it.
func (b *PaperBroker) Admission() risk.Decision {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.admitLocked(b.now())
}

// StakeAmount is the quote amount a buy of symbol would commit. slPct is the
// requested stop distance; 0 uses the configured stop.
func (b *PaperBroker) StakeAmount(symbol string, slPct float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rollLocked(b.now())
	return b.stakeLocked(symbol, slPct)
}

func (b *PaperBroker) stakeLocked(symbol string, slPct float64) float64 {
	if slPct <= 0 {
		slPct = b.settings.StopLossPct
	}
	return risk.Stake(b.settings.Policy, risk.StakeInputs{
		Balance:   b.ledger.Balance,
		SymbolPnL: b.ledger.SymbolPnL[symbol],
		DailyPnL:  b.ledger.Daily.PnL,
		SLPct:     slPct,
	})
}

func (b *PaperBroker) onCooldownLocked(symbol string, now time.Time) bool {
	last, ok := b.ledger.Cooldowns[symbol]
	if !ok {
		return false
	}
	return now.Sub(fromUnix(last)) < b.settings.Cooldown
}

// Buy opens a long position in symbol at price. It returns nil, nil when the
// trade is rejected. An error means the position was opened but could not be
// persisted.
func (b *PaperBroker) Buy(symbol string, price float64, meta broker.OrderMeta) (*broker.Order, error) {
	ev := &events{}

	b.mu.Lock()
	order, err := b.buyLocked(symbol, price, meta, ev)
	b.mu.Unlock()

	b.flush(ev)
	return order, err
}

func (b *PaperBroker) reject(ev *events, symbol, code, msg string) {
	ev.rejects = append(ev.rejects, rejection{symbol: symbol, code: code})
	b.log.Debug().Str("symbol", symbol).Str("code", code).Msg(msg)
}

func (b *PaperBroker) buyLocked(symbol string, price float64, meta broker.OrderMeta, ev *events) (*broker.Order, error) {
	now := b.now()

	if !validPrice(price) || price == 0 {
		b.reject(ev, symbol, risk.CodeInvalidPrice, "price must be finite and positive")
		return nil, nil
	}

	if _, ok := b.ledger.Positions[symbol]; ok {
		b.reject(ev, symbol, risk.CodePositionOpen, "position already open")
		return nil, nil
	}

	if d := b.admitLocked(now); !d.Allowed {
		b.reject(ev, symbol, d.Reason(), d.Violations[0].Msg)
		if d.Reason() == risk.CodeDailyLossLimit {
			ev.notes = append(ev.notes, fmt.Sprintf("RISK %s blocked: %s", symbol, d.Violations[0].Msg))
		}
		return nil, nil
	}

	if b.onCooldownLocked(symbol, now) {
		b.reject(ev, symbol, risk.CodeCooldown, "symbol on cooldown")
		return nil, nil
	}

	if risk.SymbolLossBreached(b.settings.Policy, b.ledger.SymbolPnL[symbol]) {
		b.reject(ev, symbol, risk.CodeSymbolLossLimit, "symbol loss limit breached")
		ev.evict = symbol
		ev.notes = append(ev.notes, fmt.Sprintf("RISK %s removed from whitelist: loss limit breached (%.2f)",
			symbol, risk.Sum(b.ledger.SymbolPnL[symbol])))
		return nil, nil
	}

	slPct := b.settings.StopLossPct
	if meta.SLPct != nil && *meta.SLPct > 0 {
		slPct = *meta.SLPct
	}
	tpPct := b.settings.TakeProfitPct
	if meta.TPPct != nil && *meta.TPPct > 0 {
		tpPct = *meta.TPPct
	}

	stake := b.stakeLocked(symbol, slPct)
	if stake <= 0 {
		b.reject(ev, symbol, risk.CodeStakeTooSmall, "stake is zero")
		return nil, nil
	}

	entry := price * (1 + b.settings.SlippagePct + b.settings.FeePct)
	qty := math.Max(minQty, stake/entry)

	tr := b.settings.trailingFor(symbol)
	setIf(&tr.ActivationProfitPct, meta.ActivationProfitPct)
	setIf(&tr.BreakevenTriggerPct, meta.BreakevenTriggerPct)
	setIf(&tr.TrailingStopPct, meta.TrailingStopPct)
	setIf(&tr.ATRTrailMultiplier, meta.ATRTrailMultiplier)

	pos := &Position{
		TradeID:             id.NewAt(now),
		Symbol:              symbol,
		Qty:                 qty,
		Entry:               entry,
		Stake:               stake,
		Peak:                entry,
		Stop:                entry * (1 - slPct),
		TakeProfit:          entry * (1 + tpPct),
		OpenTime:            now,
		TrailingEnabled:     tr.Enabled,
		ActivationProfitPct: tr.ActivationProfitPct,
		BreakevenTriggerPct: tr.BreakevenTriggerPct,
		TrailingStopPct:     tr.TrailingStopPct,
		ATRTrailMultiplier:  tr.ATRTrailMultiplier,
		ATRPct:              meta.ATRPct,
		TrailActive:         tr.ActivationProfitPct <= 0,
		Meta:                meta,
	}

	b.ledger.Balance -= stake
	b.ledger.Positions[symbol] = pos
	b.ledger.Daily.Trades++

	order := &broker.Order{
		TradeID:    pos.TradeID,
		Symbol:     symbol,
		Qty:        qty,
		Price:      entry,
		Stake:      stake,
		Stop:       pos.Stop,
		TakeProfit: pos.TakeProfit,
		Time:       now,
	}
	ev.opened = order
	ev.notes = append(ev.notes, fmt.Sprintf("BUY %s qty=%.8f @ %.8f stake=%.2f sl=%.8f tp=%.8f",
		symbol, qty, entry, stake, pos.Stop, pos.TakeProfit))
	b.markAccountLocked(ev)

	b.log.Info().
		Str("symbol", symbol).
		Str("trade_id", pos.TradeID).
		Float64("qty", qty).
		Float64("entry", entry).
		Float64("stake", stake).
		Float64("stop", pos.Stop).
		Float64("tp", pos.TakeProfit).
		Float64("planned_risk", risk.PlannedRisk(qty, entry, pos.Stop)).
		Float64("rr", risk.RR(entry, pos.Stop, pos.TakeProfit)).
		Msg("opened position")

	if err := b.ledger.save(b.store, state.BalanceFile, state.PositionsFile, state.TradesCountFile, state.DailyPnLFile); err != nil {
		return order, fmt.Errorf("buy %s: %w", symbol, err)
	}
	return order, nil
}

// UpdateTrailing folds price into the position's peak and stop.
func (b *PaperBroker) UpdateTrailing(symbol string, price float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.ledger.Positions[symbol]
	if !ok {
		return nil
	}
	return b.trailLocked(pos, price)
}

func (b *PaperBroker) trailLocked(pos *Position, price float64) error {
	before := *pos
	pos.UpdateTrailing(price)
	if *pos == before {
		return nil
	}
	if pos.Stop != before.Stop {
		b.log.Debug().
			Str("symbol", pos.Symbol).
			Float64("stop", pos.Stop).
			Float64("peak", pos.Peak).
			Msg("stop raised")
	}
	return b.ledger.save(b.store, state.PositionsFile)
}

// ShouldExit evaluates the exit rules for symbol at price: take profit
// first, then the trailing update and the stop.
func (b *PaperBroker) ShouldExit(symbol string, price float64) (bool, broker.ExitReason) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.ledger.Positions[symbol]
	if !ok {
		return false, broker.ExitNoPosition
	}
	if pos.hitTakeProfit(price) {
		return true, broker.ExitTakeProfit
	}
	if err := b.trailLocked(pos, price); err != nil {
		b.log.Error().Err(err).Str("symbol", symbol).Msg("persist trailing stop")
	}
	if pos.hitStop(price) {
		return true, broker.ExitStop
	}
	return false, ""
}

// Sell closes the position in symbol at price. It returns nil, nil when there
// is no position. An error means the position was closed but the ledger or
// journal could not be written.
func (b *PaperBroker) Sell(symbol string, price float64, reason broker.ExitReason) (*broker.Fill, error) {
	ev := &events{}

	b.mu.Lock()
	fill, err := b.sellLocked(symbol, price, reason, ev)
	b.mu.Unlock()

	b.flush(ev)
	return fill, err
}

func (b *PaperBroker) sellLocked(symbol string, price float64, reason broker.ExitReason, ev *events) (*broker.Fill, error) {
	pos, ok := b.ledger.Positions[symbol]
	if !ok {
		return nil, nil
	}
	if !validPrice(price) {
		return nil, fmt.Errorf("sell %s at %v: %w", symbol, price, ErrInvalidPrice)
	}
	if reason == "" {
		reason = broker.ExitManual
	}
	now := b.now()

	exit := math.Max(0, price*(1-b.settings.SlippagePct-b.settings.FeePct))
	pnl := RealizedPnL(pos.Qty, pos.Entry, exit)

	b.ledger.Balance += pos.Qty * exit
	delete(b.ledger.Positions, symbol)
	b.ledger.Cooldowns[symbol] = toUnix(now)
	b.ledger.pushPnL(symbol, pnl, b.settings.ExpectancyWindow)
	b.rollLocked(now)
	b.ledger.Daily.PnL += pnl

	fill := &broker.Fill{
		TradeID:    pos.TradeID,
		Symbol:     symbol,
		Qty:        pos.Qty,
		EntryPrice: pos.Entry,
		ExitPrice:  exit,
		PnL:        pnl,
		Reason:     reason,
		OpenTime:   pos.OpenTime,
		CloseTime:  now,
	}
	ev.closed = fill
	ev.notes = append(ev.notes, fmt.Sprintf("SELL %s qty=%.8f @ %.8f pnl=%.4f reason=%s balance=%.2f",
		symbol, pos.Qty, exit, pnl, reason, b.ledger.Balance))
	b.markAccountLocked(ev)

	b.log.Info().
		Str("symbol", symbol).
		Str("trade_id", pos.TradeID).
		Float64("exit", exit).
		Float64("pnl", pnl).
		Str("reason", string(reason)).
		Float64("balance", b.ledger.Balance).
		Msg("closed position")

	if err := b.ledger.save(b.store, allFiles...); err != nil {
		return fill, fmt.Errorf("sell %s: %w", symbol, err)
	}

	err := b.journal.RecordTrade(journal.TradeRecord{
		TradeID:     pos.TradeID,
		Symbol:      symbol,
		Qty:         pos.Qty,
		EntryPrice:  pos.Entry,
		ExitPrice:   exit,
		OpenTime:    pos.OpenTime,
		CloseTime:   now,
		RealizedPnL: pnl,
		Reason:      string(reason),
	})
	if err != nil {
		return fill, fmt.Errorf("sell %s: journal: %w", symbol, err)
	}
	return fill, nil
}

// Account values the wallet with open positions marked at prices. Symbols
// without a price are marked at entry.
func (b *PaperBroker) Account(prices map[string]float64) broker.Account {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct := broker.Account{
		Balance:       b.ledger.Balance,
		OpenPositions: len(b.ledger.Positions),
		DailyTrades:   b.ledger.Daily.Trades,
		DailyPnL:      b.ledger.Daily.PnL,
	}
	for sym, pos := range b.ledger.Positions {
		px, ok := prices[sym]
		if !ok || px <= 0 {
			px = pos.Entry
		}
		acct.Unrealized += pos.UnrealizedPnL(px)
		acct.Equity += pos.Qty * px
	}
	acct.Equity += acct.Balance
	return acct
}

func (b *PaperBroker) OpenSymbols() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger.openSymbols()
}

// Position returns a copy of the open position for symbol.
func (b *PaperBroker) Position(symbol string) (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.ledger.Positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

// Ledger returns a deep copy of the current ledger.
func (b *PaperBroker) Ledger() Ledger {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ledger.clone()
}

func (b *PaperBroker) Settings() Settings { return b.settings }

func setIf(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// validPrice accepts finite, non-negative prices. Zero is a valid exit.
func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0
}

func toUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnix(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*1e9))
}
