package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/grid"
	"gridbot/internal/market"
	"gridbot/internal/market/klinecache"
)

const hourMs = int64(3_600_000)

func bar(i int, open, high, low, close float64) market.Candle {
	return market.Candle{
		OpenTime:  int64(i) * hourMs,
		CloseTime: int64(i+1)*hourMs - 1,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1,
	}
}

// history is 100 flat warmup bars (true range 1006 around 90000, which sizes
// a 10-grid geometric ladder on 85000-95000) followed by a dip that fills the
// buy at level 4 and a rally that sells it at level 5.
func history() []market.Candle {
	out := make([]market.Candle, 0, 103)
	for i := 0; i < 100; i++ {
		out = append(out, bar(i, 90000, 90503, 89497, 90000))
	}
	out = append(out,
		bar(100, 90000, 90000, 89950, 90000),
		bar(101, 89500, 89500, 88500, 88700),
		bar(102, 88700, 90000, 88700, 90000),
	)
	return out
}

func staticSource(bars []market.Candle) market.Source {
	return market.SourceFunc(func(context.Context, string, string, int) ([]market.Candle, error) {
		return bars, nil
	})
}

func baseConfig() RunConfig {
	return RunConfig{
		Symbol:      "BTCUSDT",
		Timeframe:   "1h",
		Warmup:      100,
		Support:     85000,
		Resistance:  95000,
		Mode:        grid.ModeGeometric,
		InitialCash: 10000,
		Leverage:    1,
		MakerFee:    0.001,
		MinReturn:   0.002,
		VolatilityK: 1,
		ATRPeriod:   14,
	}
}

func TestReplayFromKlineCache(t *testing.T) {
	ctx := context.Background()
	cache, err := klinecache.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	_, err = cache.Insert(ctx, "BTCUSDT", "1h", history())
	require.NoError(t, err)

	rp, err := NewReplayer(cache)
	require.NoError(t, err)
	res, err := rp.Run(ctx, baseConfig())
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, 10, res.Config.GridCount)
	assert.Equal(t, 3, res.Stats.Bars)
	assert.Empty(t, res.Gaps)
	require.Len(t, res.Fills, 2)
	assert.Equal(t, grid.SideBuy, res.Fills[0].Side)
	assert.Equal(t, 4, res.Fills[0].GridIndex)
	assert.Equal(t, grid.SideSell, res.Fills[1].Side)
	assert.Equal(t, 5, res.Fills[1].GridIndex)

	assert.Equal(t, 1, res.Stats.RoundTrips)
	assert.Equal(t, 2, res.Grid.TotalTrades)
	assert.InDelta(t, 0, res.Grid.NetPosition, 1e-12)
	// Flat at the end, so marked equity equals realized net PnL.
	assert.InDelta(t, res.Grid.NetPnL, res.Stats.Profit, 1e-6)
	assert.Greater(t, res.Stats.Profit, 0.0)
	assert.False(t, res.Stats.StoppedEarly)
	assert.InDelta(t, 1006.0/90000, res.Stats.Spacing, 1e-4)
}

func TestReplayStopsOnSafetyLimits(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunConfig)
		reason string
	}{
		// The buy fee alone is about 1 USDT on 10000.
		{"drawdown", func(c *RunConfig) { c.MaxDrawdownPct = 0.00005 }, "exceeds max drawdown"},
		{"position", func(c *RunConfig) { c.MaxPositionUSD = 500 }, "position notional"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			tc.mutate(&cfg)
			rp, err := NewReplayer(staticSource(history()))
			require.NoError(t, err)

			res, err := rp.Run(context.Background(), cfg)
			require.NoError(t, err)
			assert.True(t, res.Stats.StoppedEarly)
			assert.Contains(t, res.Stats.StopReason, tc.reason)
			assert.Equal(t, 2, res.Stats.Bars)
			assert.Len(t, res.Fills, 1)
			assert.Less(t, res.Stats.Profit, 0.0)
		})
	}
}

func TestReplayFixedGridCountSkipsWarmup(t *testing.T) {
	cfg := baseConfig()
	cfg.GridCount = 4
	cfg.Mode = grid.ModeArithmetic
	cfg.Warmup = 0
	bars := []market.Candle{bar(0, 91000, 91200, 90800, 91000)}
	rp, err := NewReplayer(staticSource(bars))
	require.NoError(t, err)

	res, err := rp.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Grid.GridCount)
	assert.Equal(t, 2, res.Grid.ActiveBuyOrders)
	assert.Zero(t, res.Stats.Spacing)
	assert.Equal(t, 10000.0, res.Stats.FinalEquity)
}

func TestReplayWindow(t *testing.T) {
	cfg := baseConfig()
	cfg.Warmup = 0
	cfg.StartTS = 100 * hourMs
	cfg.EndTS = 101 * hourMs
	rp, err := NewReplayer(staticSource(history()))
	require.NoError(t, err)

	res, err := rp.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.Bars)
	assert.Equal(t, 10, res.Config.GridCount)
}

func TestReplayRejectsBadInput(t *testing.T) {
	_, err := NewReplayer(nil)
	assert.Error(t, err)

	rp, err := NewReplayer(staticSource(history()[:50]))
	require.NoError(t, err)

	_, err = rp.Run(context.Background(), baseConfig())
	assert.ErrorContains(t, err, "no BTCUSDT@1h bars to replay")

	cfg := baseConfig()
	cfg.Warmup = 10
	_, err = rp.Run(context.Background(), cfg)
	var ce *grid.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "warmup", ce.Field)

	cfg = baseConfig()
	cfg.Timeframe = "2h"
	_, err = rp.Run(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported timeframe")
}

func TestSweepKeepsOrder(t *testing.T) {
	rp, err := NewReplayer(staticSource(history()))
	require.NoError(t, err)

	fixed := baseConfig()
	fixed.GridCount = 20
	results, err := rp.Sweep(context.Background(), []RunConfig{baseConfig(), fixed}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 10, results[0].Grid.GridCount)
	assert.Equal(t, 20, results[1].Grid.GridCount)

	bad := baseConfig()
	bad.InitialCash = 0
	_, err = rp.Sweep(context.Background(), []RunConfig{baseConfig(), bad}, 1)
	assert.ErrorContains(t, err, "config 1")
}

func TestFindGaps(t *testing.T) {
	tf, err := ParseTimeframe("1H")
	require.NoError(t, err)
	bars := []market.Candle{bar(0, 1, 1, 1, 1), bar(1, 1, 1, 1, 1), bar(4, 1, 1, 1, 1)}
	gaps := tf.FindGaps(bars)
	require.Len(t, gaps, 1)
	assert.Equal(t, Gap{From: 2 * hourMs, To: 3 * hourMs, Missing: 2}, gaps[0])
	assert.Equal(t, []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"}, SupportedTimeframes())
}
