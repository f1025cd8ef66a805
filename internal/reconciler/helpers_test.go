package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"gridbot/internal/config"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/grid"
	"gridbot/internal/market"
	"gridbot/internal/store/model"
)

// fakeSource serves a fixed history for lookback requests and a scripted
// sequence of latest prices for limit=1 requests. The last scripted price
// repeats once the script runs out.
type fakeSource struct {
	mu          sync.Mutex
	bars        []market.Candle
	latest      []float64
	latestErr   error
	panicLatest bool
}

func (f *fakeSource) GetKlines(_ context.Context, _, _ string, limit int) ([]market.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit == 1 {
		if f.panicLatest {
			panic("price feed exploded")
		}
		if f.latestErr != nil {
			return nil, f.latestErr
		}
		var price float64
		if len(f.bars) > 0 {
			price = f.bars[len(f.bars)-1].Close
		}
		if len(f.latest) > 0 {
			price = f.latest[0]
			if len(f.latest) > 1 {
				f.latest = f.latest[1:]
			}
		}
		return []market.Candle{{Open: price, High: price, Low: price, Close: price}}, nil
	}
	n := len(f.bars)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]market.Candle(nil), f.bars[len(f.bars)-n:]...), nil
}

func (f *fakeSource) setLatest(prices ...float64) {
	f.mu.Lock()
	f.latest = prices
	f.mu.Unlock()
}

// flatBars gives every bar a true range of width around close.
func flatBars(n int, close, width float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		out[i] = market.Candle{
			OpenTime: int64(i) * 3_600_000,
			Open:     close,
			High:     close + width/2,
			Low:      close - width/2,
			Close:    close,
			Volume:   1,
		}
	}
	return out
}

// newFakeSource yields spacing ~1.118% on 85000-95000, i.e. 10 geometric grids.
func newFakeSource() *fakeSource {
	return &fakeSource{bars: flatBars(100, 90000, 1006)}
}

func testConfig() Config {
	return Config{
		Symbol:       "BTCUSDT",
		Timeframe:    "1h",
		Lookback:     100,
		Support:      85000,
		Resistance:   95000,
		InitialCash:  10000,
		Leverage:     1,
		Mode:         grid.ModeGeometric,
		MakerFee:     0.001,
		MinReturn:    0.002,
		VolatilityK:  1,
		ATRPeriod:    14,
		PollInterval: time.Millisecond,
		StatusEvery:  1,
		Risk:         config.RiskLimits{MaxPositionUSD: 1e6, MaxDrawdownPct: 0.5},
		DryRun:       true,
	}
}

func fixedClock() func() time.Time {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func ladder(cfg Config) []float64 {
	prices, err := grid.GenerateLadder(cfg.Support, cfg.Resistance, 10, cfg.Mode)
	if err != nil {
		panic(err)
	}
	return prices
}

type memJournal struct {
	mu    sync.Mutex
	runs  []model.GridRunModel
	fills []model.GridFillModel
}

func (j *memJournal) SaveRun(_ context.Context, run *model.GridRunModel) error {
	j.mu.Lock()
	j.runs = append(j.runs, *run)
	j.mu.Unlock()
	return nil
}

func (j *memJournal) RecordFill(_ context.Context, fill *model.GridFillModel) error {
	j.mu.Lock()
	j.fills = append(j.fills, *fill)
	j.mu.Unlock()
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) SendText(_ context.Context, text string) error {
	n.mu.Lock()
	n.msgs = append(n.msgs, text)
	n.mu.Unlock()
	return nil
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) PlaceLimitOrder(ctx context.Context, symbol string, side exchange.Side, price, qty float64) (string, error) {
	args := m.Called(ctx, symbol, side, price, qty)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	args := m.Called(ctx, symbol, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGateway) GetOrderStatus(ctx context.Context, symbol, orderID string) (exchange.OrderStatus, error) {
	args := m.Called(ctx, symbol, orderID)
	return args.Get(0).(exchange.OrderStatus), args.Error(1)
}
