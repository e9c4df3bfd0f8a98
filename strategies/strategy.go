package strategies

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Quaser41/Autonomous-Trader/market"
)

// Strategy turns a bar series into an entry decision.
type Strategy interface {
	Name() string
	Evaluate(bars market.Bars) Signal
}

// Factory builds a strategy from its configuration.
type Factory func(cfg Config) Strategy

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

func init() {
	Register("combo", func(cfg Config) Strategy { return Combo{Config: cfg} })
	Register("noop", func(Config) Strategy { return Noop{} })
}

func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = f
}

// ByName builds a registered strategy.
func ByName(name string, cfg Config) (Strategy, error) {
	mu.RLock()
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return f(cfg), nil
}

func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Combo is GenerateSignal followed by the momentum override.
type Combo struct {
	Config Config
}

func (Combo) Name() string { return "combo" }

func (c Combo) Evaluate(bars market.Bars) Signal {
	sig := GenerateSignal(bars, c.Config)
	return ApplyMomentumEntry(bars, sig, c.Config.MomentumPct)
}

// Noop never enters.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Evaluate(market.Bars) Signal { return Signal{Kind: Hold} }
