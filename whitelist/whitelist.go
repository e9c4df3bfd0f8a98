// Package whitelist resolves the set of tradable symbols from the static
// configuration, the runtime list persisted in the state directory and the
// realized PnL of each symbol.
package whitelist

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Quaser41/Autonomous-Trader/broker"
	"github.com/Quaser41/Autonomous-Trader/risk"
	"github.com/Quaser41/Autonomous-Trader/state"
	"github.com/rs/zerolog"
)

type Options struct {
	Static     []string
	Blacklist  []string
	MaxSymbols int // 0 = no cap
}

// Load returns the effective whitelist. A non-nil runtime list replaces the
// static one, even when empty; blacklisted symbols and symbols whose recorded
// PnL sums below zero are dropped; the result is capped at MaxSymbols. Order
// is preserved.
func Load(opts Options, runtime []string, pnl map[string][]float64) []string {
	base := opts.Static
	if runtime != nil {
		base = runtime
	}

	blocked := make(map[string]bool, len(opts.Blacklist))
	for _, s := range normalize(opts.Blacklist) {
		blocked[s] = true
	}

	out := make([]string, 0, len(base))
	for _, s := range normalize(base) {
		if blocked[s] {
			continue
		}
		if hist, ok := pnl[s]; ok && risk.Sum(hist) < 0 {
			continue
		}
		out = append(out, s)
		if opts.MaxSymbols > 0 && len(out) == opts.MaxSymbols {
			break
		}
	}
	return out
}

// normalize trims, upper-cases and de-duplicates symbols.
func normalize(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Runtime is the mutable whitelist persisted as a JSON list.
//
// A runtime list exists once its file holds a JSON list, including an empty
// one. Until then Symbols returns nil and the static list applies.
type Runtime struct {
	mu      sync.RWMutex
	path    string
	symbols []string
	present bool
	log     zerolog.Logger
}

// OpenRuntime loads the runtime list at path. A missing or corrupt file
// yields no list.
func OpenRuntime(path string, log zerolog.Logger) (*Runtime, error) {
	if path == "" {
		return nil, fmt.Errorf("runtime whitelist: empty path")
	}
	r := &Runtime{path: path, log: log.With().Str("component", "whitelist").Logger()}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) Path() string { return r.path }

// Reload re-reads the file. Corrupt content is logged and treated as absent.
func (r *Runtime) Reload() error {
	res := state.LoadOrDefault[[]string](r.path, nil)
	if res.Status == state.Corrupt {
		r.log.Warn().Err(res.Err).Str("file", r.path).Msg("corrupt runtime whitelist, ignoring")
	}

	r.mu.Lock()
	r.present = res.Status == state.Loaded && res.Value != nil
	r.symbols = normalize(res.Value)
	r.mu.Unlock()
	return nil
}

// Present reports whether a runtime list has been written.
func (r *Runtime) Present() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.present
}

// Symbols returns the runtime list, or nil when none exists.
func (r *Runtime) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.present {
		return nil
	}
	out := make([]string, len(r.symbols))
	copy(out, r.symbols)
	return out
}

// Set replaces the list and persists it.
func (r *Runtime) Set(symbols []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setLocked(normalize(symbols))
}

func (r *Runtime) setLocked(symbols []string) error {
	if err := state.WriteJSONAtomic(r.path, symbols); err != nil {
		return fmt.Errorf("save runtime whitelist: %w", err)
	}
	r.symbols = symbols
	r.present = true
	return nil
}

// Remove drops symbol from the list. It reports whether the symbol was
// present.
func (r *Runtime) Remove(symbol string) (bool, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]string, 0, len(r.symbols))
	for _, s := range r.symbols {
		if s != symbol {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(r.symbols) {
		return false, nil
	}
	return true, r.setLocked(kept)
}

// Source combines the static options, the runtime list and a PnL lookup into
// the broker's view of the whitelist.
type Source struct {
	opts    Options
	runtime *Runtime
	pnl     func() map[string][]float64
	log     zerolog.Logger
}

var (
	_ broker.WhitelistSource = (*Source)(nil)
	_ broker.Whitelist       = (*Source)(nil)
)

// NewSource builds a Source. pnl may be nil and may be set later with
// SetPnL once the broker exists.
func NewSource(opts Options, runtime *Runtime, log zerolog.Logger) *Source {
	return &Source{
		opts:    opts,
		runtime: runtime,
		log:     log.With().Str("component", "whitelist").Logger(),
	}
}

func (s *Source) SetPnL(fn func() map[string][]float64) { s.pnl = fn }

func (s *Source) Runtime() *Runtime { return s.runtime }

func (s *Source) CurrentSymbols(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var pnl map[string][]float64
	if s.pnl != nil {
		pnl = s.pnl()
	}
	var rt []string
	if s.runtime != nil {
		rt = s.runtime.Symbols()
	}
	return Load(s.opts, rt, pnl), nil
}

// Remove evicts symbol. When no runtime list exists yet it is seeded from the
// static list so the eviction survives a restart.
func (s *Source) Remove(symbol string) error {
	if s.runtime == nil {
		return fmt.Errorf("whitelist: no runtime list configured")
	}
	if !s.runtime.Present() {
		if err := s.runtime.Set(s.opts.Static); err != nil {
			return err
		}
	}
	removed, err := s.runtime.Remove(symbol)
	if err != nil {
		return err
	}
	if removed {
		s.log.Warn().Str("symbol", symbol).Msg("removed from runtime whitelist")
	}
	return nil
}

// Blocked lists symbols dropped by the PnL filter, sorted.
func Blocked(pnl map[string][]float64) []string {
	var out []string
	for sym, hist := range pnl {
		if risk.Sum(hist) < 0 {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}
