package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Quaser41/Autonomous-Trader/broker"
	"github.com/Quaser41/Autonomous-Trader/strategies"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerEvents(t *testing.T) {
	t.Parallel()

	m := NewMetrics(prometheus.NewRegistry())

	m.OnOpen(broker.Order{Symbol: "BTC-USD"})
	m.OnOpen(broker.Order{Symbol: "BTC-USD"})
	m.OnClose(broker.Fill{Symbol: "BTC-USD", Reason: broker.ExitTakeProfit, PnL: 12.5})
	m.OnClose(broker.Fill{Symbol: "BTC-USD", Reason: broker.ExitStop, PnL: -2.5})
	m.OnReject("ETH-USD", "COOLDOWN")
	m.OnAccount(870, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersOpened.WithLabelValues("BTC-USD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersClosed.WithLabelValues("BTC-USD", "tp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersClosed.WithLabelValues("BTC-USD", "sl_or_trail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("COOLDOWN")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.RealizedPnL))
	assert.Equal(t, 870.0, testutil.ToFloat64(m.Balance))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpenPos))
}

func TestObserveSignalAndTick(t *testing.T) {
	t.Parallel()

	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveSignal(strategies.Signal{Kind: strategies.Hold, FailedFilter: strategies.ReasonWarmup})
	m.ObserveSignal(strategies.Signal{Kind: strategies.Buy, Score: 1.5})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Signals.WithLabelValues("HOLD", "warmup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Signals.WithLabelValues("BUY", "")))

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	m.ObserveTick(start, start.Add(time.Second), broker.Account{Balance: 900, Equity: 1010, OpenPositions: 2})
	assert.Equal(t, 1010.0, testutil.ToFloat64(m.Equity))
	assert.Equal(t, float64(start.Add(time.Second).Unix()), testutil.ToFloat64(m.LastTick))
}

func TestServerEndpoints(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.OnOpen(broker.Order{Symbol: "SOL-USD"})

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h := m.Health()
	h.now = func() time.Time { return now }
	h.SetMaxAge(time.Minute)

	srv := NewServer(":0", reg, h, zerolog.Nop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `trader_orders_opened_total{symbol="SOL-USD"} 1`))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.SetLastTick(now.Add(-10 * time.Second))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2024-05-01T11:59:50Z", body["last_tick"])
}
