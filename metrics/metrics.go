// Package metrics exposes trading activity as Prometheus metrics.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Quaser41/Autonomous-Trader/broker"
	"github.com/Quaser41/Autonomous-Trader/strategies"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds all Prometheus metrics for the trader. It implements the
// paper broker's listener interface.
type Metrics struct {
	OrdersOpened *prometheus.CounterVec // labels: symbol
	OrdersClosed *prometheus.CounterVec // labels: symbol, reason
	Rejections   *prometheus.CounterVec // labels: code
	RealizedPnL  prometheus.Gauge
	Balance      prometheus.Gauge
	Equity       prometheus.Gauge
	OpenPos      prometheus.Gauge

	Signals      *prometheus.CounterVec // labels: kind, reason
	TickDuration prometheus.Histogram
	LastTick     prometheus.Gauge

	health *Health
}

// NewMetrics registers and returns all metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_orders_opened_total",
			Help: "Positions opened by the paper broker",
		}, []string{"symbol"}),
		OrdersClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_orders_closed_total",
			Help: "Positions closed by the paper broker",
		}, []string{"symbol", "reason"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_rejections_total",
			Help: "Buys rejected by admission or risk checks",
		}, []string{"code"}),
		RealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_realized_pnl",
			Help: "Realized PnL since process start, quote currency",
		}),
		Balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_balance",
			Help: "Free wallet balance, quote currency",
		}),
		Equity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_equity",
			Help: "Balance plus open positions marked to market",
		}),
		OpenPos: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_open_positions",
			Help: "Number of open positions",
		}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_signals_total",
			Help: "Strategy evaluations by outcome",
		}, []string{"kind", "reason"}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trader_tick_duration_seconds",
			Help:    "Decision loop tick latency",
			Buckets: prometheus.DefBuckets,
		}),
		LastTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trader_last_tick_timestamp_seconds",
			Help: "Unix time of the last completed tick",
		}),
		health: NewHealth(),
	}

	reg.MustRegister(
		m.OrdersOpened,
		m.OrdersClosed,
		m.Rejections,
		m.RealizedPnL,
		m.Balance,
		m.Equity,
		m.OpenPos,
		m.Signals,
		m.TickDuration,
		m.LastTick,
	)

	return m
}

func (m *Metrics) OnOpen(o broker.Order) {
	m.OrdersOpened.WithLabelValues(o.Symbol).Inc()
}

func (m *Metrics) OnClose(f broker.Fill) {
	m.OrdersClosed.WithLabelValues(f.Symbol, string(f.Reason)).Inc()
	m.RealizedPnL.Add(f.PnL)
}

func (m *Metrics) OnReject(_ string, code string) {
	m.Rejections.WithLabelValues(code).Inc()
}

func (m *Metrics) OnAccount(balance float64, open int) {
	m.Balance.Set(balance)
	m.OpenPos.Set(float64(open))
}

// ObserveSignal counts a strategy outcome.
func (m *Metrics) ObserveSignal(sig strategies.Signal) {
	m.Signals.WithLabelValues(string(sig.Kind), sig.FailedFilter).Inc()
}

// ObserveTick records a completed tick.
func (m *Metrics) ObserveTick(start, end time.Time, acct broker.Account) {
	m.TickDuration.Observe(end.Sub(start).Seconds())
	m.LastTick.Set(float64(end.Unix()))
	m.Balance.Set(acct.Balance)
	m.Equity.Set(acct.Equity)
	m.OpenPos.Set(float64(acct.OpenPositions))
	m.health.SetLastTick(end)
}

func (m *Metrics) Health() *Health { return m.health }

// Health reports loop liveness on /healthz.
type Health struct {
	mu        sync.RWMutex
	lastTick  time.Time
	startedAt time.Time
	maxAge    time.Duration
	now       func() time.Time
}

func NewHealth() *Health {
	return &Health{startedAt: time.Now(), now: time.Now}
}

// SetMaxAge sets how old the last tick may be before the loop is reported
// as stalled. Zero disables the check.
func (h *Health) SetMaxAge(d time.Duration) {
	h.mu.Lock()
	h.maxAge = d
	h.mu.Unlock()
}

func (h *Health) SetLastTick(t time.Time) {
	h.mu.Lock()
	h.lastTick = t
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint.
func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	status := "healthy"
	code := http.StatusOK
	if h.maxAge > 0 && (h.lastTick.IsZero() || now.Sub(h.lastTick) > h.maxAge) {
		status = "stalled"
		code = http.StatusServiceUnavailable
	}

	body := struct {
		Status   string `json:"status"`
		Uptime   string `json:"uptime"`
		LastTick string `json:"last_tick,omitempty"`
	}{
		Status: status,
		Uptime: now.Sub(h.startedAt).Round(time.Second).String(),
	}
	if !h.lastTick.IsZero() {
		body.LastTick = h.lastTick.UTC().Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

func NewServer(addr string, gatherer prometheus.Gatherer, health *Health, log zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.With().Str("component", "metrics").Logger(),
	}
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("metrics server listening")
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
