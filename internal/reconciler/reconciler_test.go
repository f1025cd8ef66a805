package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gridbot/internal/config"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/gateway/paper"
	"gridbot/internal/grid"
	"gridbot/internal/store/model"
)

func newDryRun(t *testing.T, src *fakeSource, mutate func(*Config, *Deps)) (*Reconciler, *paper.Gateway) {
	t.Helper()
	pg := paper.NewGateway()
	cfg := testConfig()
	deps := Deps{Source: src, Gateway: pg, Now: fixedClock()}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	r, err := New(cfg, deps)
	require.NoError(t, err)
	return r, pg
}

func TestNewValidatesDependencies(t *testing.T) {
	cfg := testConfig()
	_, err := New(cfg, Deps{})
	assert.Error(t, err)

	cfg.DryRun = false
	_, err = New(cfg, Deps{Source: newFakeSource()})
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Leverage = 0
	_, err = New(cfg, Deps{Source: newFakeSource()})
	var ce *grid.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "leverage", ce.Field)

	cfg = testConfig()
	cfg.InitialCash = 0
	_, err = New(cfg, Deps{Source: newFakeSource()})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "initial_cash", ce.Field)
}

func TestNewDryRunSubstitutesPaperGateway(t *testing.T) {
	live := new(MockGateway)
	r, err := New(testConfig(), Deps{Source: newFakeSource(), Gateway: live})
	require.NoError(t, err)
	require.NotNil(t, r.paper)
	assert.Same(t, r.paper, r.gateway)
	live.AssertNotCalled(t, "PlaceLimitOrder")
}

func TestInitializeDerivesGridFromVolatility(t *testing.T) {
	r, _ := newDryRun(t, newFakeSource(), nil)
	require.NoError(t, r.Initialize(context.Background()))

	e := r.Engine()
	require.NotNil(t, e)
	assert.Equal(t, 10, e.GridCount())
	assert.Equal(t, 11, e.LevelCount())
	assert.InDelta(t, 1006.0/90000, r.spacing, 1e-4)

	st := e.Statistics()
	assert.Equal(t, 5, st.ActiveBuyOrders)
	assert.Equal(t, 0, st.ActiveSellOrders)
	for _, o := range e.ActiveOrders() {
		assert.Less(t, o.GridIndex, 5)
		assert.Equal(t, grid.SideBuy, o.Side)
	}
}

func TestInitializeWithoutKlinesIsDataUnavailable(t *testing.T) {
	r, _ := newDryRun(t, &fakeSource{}, nil)
	err := r.Initialize(context.Background())
	require.ErrorIs(t, err, ErrDataUnavailable)
	assert.Nil(t, r.Engine())
}

func TestSyncTracksEveryEngineOrder(t *testing.T) {
	r, pg := newDryRun(t, newFakeSource(), nil)
	ctx := context.Background()
	require.NoError(t, r.Initialize(ctx))

	assert.Equal(t, 5, r.SyncOrdersToExchange(ctx))
	assert.Equal(t, 5, r.table.len())
	assert.Len(t, pg.Open(), 5)

	prices := ladder(r.cfg)
	for i, o := range pg.Open() {
		assert.InDelta(t, prices[i], o.Price, 1e-6)
		assert.Equal(t, exchange.SideBuy, o.Side)
		id, ok := r.table.get(i, grid.SideBuy)
		require.True(t, ok)
		assert.Equal(t, o.ID, id)
	}

	// A second sync cancels the previous generation first.
	assert.Equal(t, 5, r.SyncOrdersToExchange(ctx))
	assert.Len(t, pg.Cancelled(), 5)
	assert.Len(t, pg.Open(), 5)

	snap := r.Status()
	assert.Len(t, snap.Tracked, 5)
	assert.Equal(t, 5, snap.Stats.ActiveBuyOrders)
	assert.True(t, snap.DryRun)
}

func TestDryRunFillMovesTrackingUpOneLevel(t *testing.T) {
	src := newFakeSource()
	reg := prometheus.NewRegistry()
	journal := &memJournal{}
	r, pg := newDryRun(t, src, func(_ *Config, d *Deps) {
		d.Metrics = NewMetrics(reg)
		d.Journal = journal
	})
	ctx := context.Background()
	require.NoError(t, r.Initialize(ctx))
	r.SyncOrdersToExchange(ctx)
	filledID, ok := r.table.get(4, grid.SideBuy)
	require.True(t, ok)

	src.setLatest(88500)
	n, err := r.CheckFills(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok = r.table.get(4, grid.SideBuy)
	assert.False(t, ok)
	_, ok = r.table.get(3, grid.SideBuy)
	assert.True(t, ok)

	prices := ladder(r.cfg)
	po, ok := pg.Get(filledID)
	require.True(t, ok)
	assert.Equal(t, paper.StatusFilled, po.Status)
	assert.InDelta(t, prices[4], po.FillPrice, 1e-6)

	r.SyncOrdersToExchange(ctx)
	_, ok = r.table.get(5, grid.SideSell)
	assert.True(t, ok)
	assert.Equal(t, 5, r.table.len())

	require.Len(t, journal.fills, 1)
	f := journal.fills[0]
	assert.Equal(t, 4, f.GridIndex)
	assert.Equal(t, "buy", f.Side)
	assert.Equal(t, filledID, f.OrderID)
	assert.InDelta(t, prices[4], f.FillPrice, 1e-6)
	assert.Equal(t, 5, f.PairedGridIndex)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.fills.WithLabelValues("buy")))
}

func TestDryRunPriceFailureSkipsFillCheck(t *testing.T) {
	src := newFakeSource()
	r, _ := newDryRun(t, src, nil)
	ctx := context.Background()
	require.NoError(t, r.Initialize(ctx))
	r.SyncOrdersToExchange(ctx)

	src.latestErr = errors.New("timeout")
	n, err := r.CheckFills(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 5, r.table.len())
}

func TestLiveCheckFillsUsesReportedStatus(t *testing.T) {
	gw := new(MockGateway)
	journal := &memJournal{}
	cfg := testConfig()
	cfg.DryRun = false
	r, err := New(cfg, Deps{Source: newFakeSource(), Gateway: gw, Journal: journal, Now: fixedClock()})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, r.Initialize(ctx))

	for i := 0; i < 5; i++ {
		gw.On("PlaceLimitOrder", mock.Anything, "BTCUSDT", exchange.SideBuy, mock.AnythingOfType("float64"), mock.AnythingOfType("float64")).
			Return(fmt.Sprintf("o%d", i), nil).Once()
	}
	require.Equal(t, 5, r.SyncOrdersToExchange(ctx))

	gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", "o0").Return(exchange.OrderStatus{Status: "NEW"}, nil)
	gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", "o1").Return(exchange.OrderStatus{Status: "PARTIALLY_FILLED"}, nil)
	gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", "o2").Return(exchange.OrderStatus{}, errors.New("rate limited"))
	gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", "o3").Return(exchange.OrderStatus{Status: "closed"}, nil)
	gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", "o4").Return(exchange.OrderStatus{Status: "FILLED", AveragePrice: 88800, ExecutedQty: 0.011}, nil)

	n, err := r.CheckFills(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for i, want := range []bool{true, true, true, false, false} {
		_, ok := r.table.get(i, grid.SideBuy)
		assert.Equal(t, want, ok, "level %d", i)
	}

	prices := ladder(cfg)
	require.Len(t, journal.fills, 2)
	assert.Equal(t, 3, journal.fills[0].GridIndex)
	assert.InDelta(t, prices[3], journal.fills[0].FillPrice, 1e-6)
	assert.Equal(t, 4, journal.fills[1].GridIndex)
	assert.Equal(t, 88800.0, journal.fills[1].FillPrice)

	st := r.Engine().Statistics()
	assert.Equal(t, 2, st.TotalTrades)
	assert.Equal(t, 2, st.ActiveSellOrders)
	gw.AssertExpectations(t)
}

func TestLiveCheckFillsUntracksDroppedOrders(t *testing.T) {
	gw := new(MockGateway)
	cfg := testConfig()
	cfg.DryRun = false
	reg := prometheus.NewRegistry()
	r, err := New(cfg, Deps{Source: newFakeSource(), Gateway: gw, Metrics: NewMetrics(reg), Now: fixedClock()})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, r.Initialize(ctx))

	for i := 0; i < 5; i++ {
		gw.On("PlaceLimitOrder", mock.Anything, "BTCUSDT", exchange.SideBuy, mock.Anything, mock.Anything).
			Return(fmt.Sprintf("o%d", i), nil).Once()
	}
	require.Equal(t, 5, r.SyncOrdersToExchange(ctx))

	for id, status := range map[string]string{"o0": "CANCELED", "o1": "EXPIRED", "o2": "NEW", "o3": "REJECTED", "o4": "NEW"} {
		gw.On("GetOrderStatus", mock.Anything, "BTCUSDT", id).Return(exchange.OrderStatus{Status: status}, nil).Once()
	}

	n, err := r.CheckFills(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, r.resync)
	assert.Equal(t, 2, r.table.len())
	for i, want := range []bool{false, false, true, false, true} {
		_, ok := r.table.get(i, grid.SideBuy)
		assert.Equal(t, want, ok, "level %d", i)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(r.metrics.dropped.WithLabelValues("buy")))
	// The engine still wants all five buys, so the next sync re-places them.
	assert.Equal(t, 5, r.Engine().Statistics().ActiveBuyOrders)

	gw.On("CancelOrder", mock.Anything, "BTCUSDT", "o2").Return(true, nil).Once()
	gw.On("CancelOrder", mock.Anything, "BTCUSDT", "o4").Return(true, nil).Once()
	for i := 5; i < 10; i++ {
		gw.On("PlaceLimitOrder", mock.Anything, "BTCUSDT", exchange.SideBuy, mock.Anything, mock.Anything).
			Return(fmt.Sprintf("o%d", i), nil).Once()
	}
	assert.Equal(t, 5, r.SyncOrdersToExchange(ctx))
	assert.False(t, r.resync)
	id, ok := r.table.get(0, grid.SideBuy)
	require.True(t, ok)
	assert.Equal(t, "o5", id)
	gw.AssertExpectations(t)
}

func TestFailedPlacementLeavesSlotUntracked(t *testing.T) {
	gw := new(MockGateway)
	cfg := testConfig()
	cfg.DryRun = false
	reg := prometheus.NewRegistry()
	r, err := New(cfg, Deps{Source: newFakeSource(), Gateway: gw, Metrics: NewMetrics(reg), Now: fixedClock()})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, r.Initialize(ctx))

	for _, id := range []string{"o0", "o1", "", "o3", "o4"} {
		var err error
		if id == "" {
			err = errors.New("insufficient balance")
		}
		gw.On("PlaceLimitOrder", mock.Anything, "BTCUSDT", exchange.SideBuy, mock.Anything, mock.Anything).Return(id, err).Once()
	}

	assert.Equal(t, 4, r.SyncOrdersToExchange(ctx))
	_, ok := r.table.get(2, grid.SideBuy)
	assert.False(t, ok)
	assert.Equal(t, 4, r.table.len())
	assert.Equal(t, 1.0, testutil.ToFloat64(r.metrics.gatewayErrors.WithLabelValues("place")))

	// The engine keeps its order; only the broker side is missing.
	assert.Equal(t, 5, r.Engine().Statistics().ActiveBuyOrders)
	gw.AssertExpectations(t)
}

func TestCheckSafetyLimitsReportsDrawdown(t *testing.T) {
	r, _ := newDryRun(t, newFakeSource(), func(c *Config, _ *Deps) {
		c.Risk.MaxDrawdownPct = 0.005
	})
	ctx := context.Background()
	require.NoError(t, r.Initialize(ctx))

	e := r.Engine()
	_, ok := e.FillBuy(4, 0, time.Now())
	require.True(t, ok)
	_, ok = e.FillSell(5, 80000, time.Now())
	require.True(t, ok)

	breach, err := r.CheckSafetyLimits(ctx)
	require.NoError(t, err)
	require.NotNil(t, breach)
	assert.Equal(t, SafetyDrawdown, breach.Kind)
	assert.Contains(t, breach.Reason, "exceeds max drawdown 0.50%")
	assert.Less(t, breach.Value, -0.005)
}

func TestCheckSafetyLimitsHonoursHotReloadedRisk(t *testing.T) {
	holder := config.NewRiskHolder(config.RiskLimits{MaxPositionUSD: 1e6, MaxDrawdownPct: 0.5})
	r, _ := newDryRun(t, newFakeSource(), func(_ *Config, d *Deps) { d.Risk = holder })
	ctx := context.Background()
	require.NoError(t, r.Initialize(ctx))
	_, ok := r.Engine().FillBuy(4, 0, time.Now())
	require.True(t, ok)

	breach, err := r.CheckSafetyLimits(ctx)
	require.NoError(t, err)
	assert.Nil(t, breach)

	holder.Set(config.RiskLimits{MaxPositionUSD: 500, MaxDrawdownPct: 0.5})
	breach, err = r.CheckSafetyLimits(ctx)
	require.NoError(t, err)
	require.NotNil(t, breach)
	assert.Equal(t, SafetyPosition, breach.Kind)
}

func TestCheckSafetyLimitsPriceFailureIsFatal(t *testing.T) {
	src := newFakeSource()
	r, _ := newDryRun(t, src, nil)
	require.NoError(t, r.Initialize(context.Background()))
	src.latestErr = errors.New("feed down")
	_, err := r.CheckSafetyLimits(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestRunStopsOnSafetyBreachAndCancelsEverything(t *testing.T) {
	src := newFakeSource()
	journal := &memJournal{}
	notes := &recordingNotifier{}
	r, pg := newDryRun(t, src, func(c *Config, d *Deps) {
		c.Risk.MaxDrawdownPct = 0.0001
		d.Journal = journal
		d.Notifier = notes
		d.Sleep = func(context.Context, time.Duration) error { return nil }
	})
	src.setLatest(80000)

	require.NoError(t, r.Run(context.Background()))

	term := r.Termination()
	require.NotNil(t, term.Breach)
	assert.Equal(t, SafetyDrawdown, term.Breach.Kind)
	assert.NoError(t, term.Err)

	// All five buys filled and the five replacement sells were cancelled.
	st := r.Engine().Statistics()
	assert.Equal(t, 5, st.TotalTrades)
	assert.Empty(t, pg.Open())
	assert.Len(t, pg.Cancelled(), 5)
	for _, id := range pg.Cancelled() {
		o, ok := pg.Get(id)
		require.True(t, ok)
		assert.Equal(t, exchange.SideSell, o.Side)
	}
	assert.Zero(t, r.table.len())
	assert.Equal(t, StateStopped, r.Status().State)

	require.Len(t, journal.runs, 2)
	assert.Equal(t, model.RunStatusRunning, journal.runs[0].Status)
	end := journal.runs[1]
	assert.Equal(t, model.RunStatusStopped, end.Status)
	assert.Contains(t, end.Reason, "drawdown")
	assert.NotEmpty(t, end.StatsJSON)
	assert.Len(t, journal.fills, 5)

	require.Len(t, notes.msgs, 2)
	assert.Contains(t, notes.msgs[0], "grid started")
	assert.Contains(t, notes.msgs[1], "grid stopped")
}

func TestRunInterruptedCancelsRestingOrders(t *testing.T) {
	r, pg := newDryRun(t, newFakeSource(), func(_ *Config, d *Deps) {
		d.Sleep = func(context.Context, time.Duration) error { return context.Canceled }
	})

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, "interrupted", r.Termination().Reason)
	assert.Empty(t, pg.Open())
	assert.Len(t, pg.Cancelled(), 5)
	assert.Equal(t, 1, r.Status().Iteration)
}

func TestRunCancelledContextStillCleansUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r, pg := newDryRun(t, newFakeSource(), func(_ *Config, d *Deps) {
		d.Sleep = func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}
	})

	require.NoError(t, r.Run(ctx))
	assert.Empty(t, pg.Open())
}

func TestRunRecoversPanicAndCleansUp(t *testing.T) {
	src := newFakeSource()
	src.panicLatest = true
	journal := &memJournal{}
	r, pg := newDryRun(t, src, func(_ *Config, d *Deps) { d.Journal = journal })

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "panic"))
	assert.Empty(t, pg.Open())
	assert.Len(t, pg.Cancelled(), 5)

	require.Len(t, journal.runs, 2)
	assert.Equal(t, model.RunStatusFailed, journal.runs[1].Status)
}

func TestRunSafetyPriceFailureIsFatal(t *testing.T) {
	src := newFakeSource()
	src.latestErr = errors.New("feed down")
	r, pg := newDryRun(t, src, nil)

	err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrDataUnavailable)
	assert.ErrorIs(t, r.Termination().Err, ErrDataUnavailable)
	assert.Empty(t, pg.Open())
}

func TestRunWithoutDataFailsBeforePlacingOrders(t *testing.T) {
	r, pg := newDryRun(t, &fakeSource{}, nil)
	err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrDataUnavailable)
	assert.Empty(t, pg.Cancelled())
	assert.Equal(t, StateStopped, r.Status().State)
}
