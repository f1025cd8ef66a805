// Package backtest replays cached klines through the grid matching engine to
// estimate how a ladder would have traded.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gridbot/internal/analysis/indicator"
	"gridbot/internal/grid"
	"gridbot/internal/logger"
	"gridbot/internal/market"
	"gridbot/internal/reconciler"
)

// Replayer 将历史 K 线逐根喂给撮合引擎，按收盘价盯市记录权益。
type Replayer struct {
	source market.Source
	now    func() time.Time
}

func NewReplayer(src market.Source) (*Replayer, error) {
	if src == nil {
		return nil, fmt.Errorf("backtest source cannot be nil")
	}
	return &Replayer{source: src, now: time.Now}, nil
}

// Run executes one replay. Bars before StartTS (or the first Warmup bars when
// StartTS is 0) only feed the spacing estimate and never trade.
func (r *Replayer) Run(ctx context.Context, cfg RunConfig) (Result, error) {
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}
	tf, err := ParseTimeframe(cfg.Timeframe)
	if err != nil {
		return Result{}, err
	}
	bars, err := r.source.GetKlines(ctx, cfg.Symbol, tf.Key, 0)
	if err != nil {
		return Result{}, fmt.Errorf("load %s@%s: %w", cfg.Symbol, tf.Key, err)
	}
	if cfg.EndTS > 0 {
		end := len(bars)
		for end > 0 && bars[end-1].OpenTime > cfg.EndTS {
			end--
		}
		bars = bars[:end]
	}
	warm, replay := splitWarmup(bars, cfg)
	if len(replay) == 0 {
		return Result{}, fmt.Errorf("no %s@%s bars to replay after warmup (have %d)", cfg.Symbol, tf.Key, len(bars))
	}

	count, spacing := cfg.GridCount, 0.0
	if count == 0 {
		if cfg.Warmup > 0 && len(warm) > cfg.Warmup {
			warm = warm[len(warm)-cfg.Warmup:]
		}
		spacing, err = indicator.AverageSpacing(warm, indicator.SpacingSettings{
			ATRPeriod:   cfg.ATRPeriod,
			VolatilityK: cfg.VolatilityK,
			MinReturn:   cfg.MinReturn,
			MakerFee:    cfg.MakerFee,
		})
		if err != nil {
			return Result{}, fmt.Errorf("warmup spacing: %w", err)
		}
		count = grid.CountFromSpacing(cfg.Support, cfg.Resistance, spacing)
	}
	engine, err := grid.NewEngine(grid.Params{
		Lower:           cfg.Support,
		Upper:           cfg.Resistance,
		GridCount:       count,
		Mode:            cfg.Mode,
		TotalInvestment: cfg.InitialCash * cfg.Leverage,
		MakerFee:        cfg.MakerFee,
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{ID: uuid.NewString(), Config: cfg, Gaps: tf.FindGaps(replay)}
	res.Config.GridCount = count
	if len(res.Gaps) > 0 {
		logger.Warnf("[backtest] %s@%s has %d gaps in the replay window", cfg.Symbol, tf.Key, len(res.Gaps))
	}

	first := replay[0]
	engine.InitializeGrid(first.Open, time.UnixMilli(first.OpenTime))
	book := &ledger{initial: cfg.InitialCash, makerFee: engine.MakerFee()}
	limits := cfg.stopLimits()
	progressStep := max(10, len(replay)/10)
	last := first

	for i, bar := range replay {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		for _, o := range engine.CheckAndFillOrders(bar.High, bar.Low, time.UnixMilli(bar.CloseTime)) {
			book.apply(o)
			res.Fills = append(res.Fills, o)
		}
		last = bar
		res.Stats.Bars++
		if (i+1)%progressStep == 0 {
			logger.Debugf("[backtest] %s %d/%d bars, equity %.2f", cfg.Symbol, i+1, len(replay), book.mark(bar.Close))
		}
		st := engine.Statistics()
		if breach := reconciler.EvaluateSafety(cfg.InitialCash, st.NetPnL, st.NetPosition, bar.Close, limits); breach != nil {
			res.Stats.StoppedEarly = true
			res.Stats.StopReason = breach.Reason
			logger.Infof("[backtest] %s stopped at bar %d: %s", cfg.Symbol, i+1, breach.Reason)
			break
		}
	}

	res.Grid = engine.Statistics()
	final := book.mark(last.Close)
	res.Stats.Spacing = spacing
	res.Stats.FinalEquity = final
	res.Stats.Profit = final - cfg.InitialCash
	res.Stats.RoundTrips = book.roundTrips
	res.Stats.FinishedAt = r.now().UTC()
	return res, nil
}

// Sweep runs every config concurrently, at most limit at a time. Results keep
// the order of cfgs; the first failure cancels the rest.
func (r *Replayer) Sweep(ctx context.Context, cfgs []RunConfig, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 1
	}
	out := make([]Result, len(cfgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range cfgs {
		g.Go(func() error {
			res, err := r.Run(gctx, cfgs[i])
			if err != nil {
				return fmt.Errorf("config %d (%s, %d grids): %w", i, cfgs[i].Mode, cfgs[i].GridCount, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func splitWarmup(bars []market.Candle, cfg RunConfig) (warm, replay []market.Candle) {
	if cfg.StartTS > 0 {
		idx := 0
		for idx < len(bars) && bars[idx].OpenTime < cfg.StartTS {
			idx++
		}
		return bars[:idx], bars[idx:]
	}
	n := cfg.Warmup
	if cfg.GridCount > 0 {
		n = 0
	}
	if n > len(bars) {
		n = len(bars)
	}
	return bars[:n], bars[n:]
}

// ledger tracks quote cash flow and base holdings so equity can be marked at
// any price, independent of the engine's realized-only PnL.
type ledger struct {
	initial    float64
	makerFee   float64
	cash       float64
	base       float64
	roundTrips int
}

func (l *ledger) apply(o grid.Order) {
	notional := o.Size * o.FillPrice
	fee := notional * l.makerFee
	switch o.Side {
	case grid.SideBuy:
		l.cash -= notional + fee
		l.base += o.Size
	case grid.SideSell:
		l.cash += notional - fee
		l.base -= o.Size
		if o.GridIndex > 0 {
			l.roundTrips++
		}
	}
}

func (l *ledger) mark(price float64) float64 {
	return l.initial + l.cash + l.base*price
}
