// Package reconciler keeps an exchange's order book in step with the grid
// engine: it places the engine's desired orders, polls them for fills, feeds
// fills back into the engine and shuts the grid down when a risk limit trips.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridbot/internal/config"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/gateway/notifier"
	"gridbot/internal/gateway/paper"
	"gridbot/internal/grid"
	"gridbot/internal/logger"
	"gridbot/internal/market"
)

const cleanupTimeout = 30 * time.Second

// Config 是单个网格运行所需的参数。
type Config struct {
	Symbol      string
	Timeframe   string
	Lookback    int
	Support     float64
	Resistance  float64
	InitialCash float64
	Leverage    float64
	Mode        grid.Mode
	MakerFee    float64
	MinReturn   float64
	VolatilityK float64
	ATRPeriod   int

	PollInterval time.Duration
	StatusEvery  int
	Risk         config.RiskLimits
	DryRun       bool
}

// ConfigFrom maps the loaded application config onto a reconciler Config.
func ConfigFrom(cfg *config.Config) (Config, error) {
	mode, err := grid.ParseMode(cfg.Grid.Mode)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Symbol:       cfg.Grid.Symbol,
		Timeframe:    cfg.Grid.Timeframe,
		Lookback:     cfg.Grid.Lookback,
		Support:      cfg.Grid.Support,
		Resistance:   cfg.Grid.Resistance,
		InitialCash:  cfg.Grid.InitialCash,
		Leverage:     cfg.Grid.Leverage,
		Mode:         mode,
		MakerFee:     cfg.Grid.MakerFee,
		MinReturn:    cfg.Grid.MinReturn,
		VolatilityK:  cfg.Grid.VolatilityK,
		ATRPeriod:    cfg.Grid.ATRPeriod,
		PollInterval: cfg.Risk.PollInterval(),
		StatusEvery:  cfg.Risk.StatusEvery,
		Risk:         cfg.Risk.Limits(),
		DryRun:       cfg.Exchange.DryRun,
	}, nil
}

// Deps 汇总对账循环的外部协作者。Source 必填，Gateway 仅实盘必填，其余可为空。
type Deps struct {
	Source   market.Source
	Gateway  exchange.Gateway
	Journal  Journal
	Notifier notifier.TextNotifier
	Metrics  *Metrics
	Risk     *config.RiskHolder

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Termination describes how a run ended.
type Termination struct {
	Reason string
	Breach *SafetyBreach
	Err    error
}

type Reconciler struct {
	cfg      Config
	source   market.Source
	gateway  exchange.Gateway
	paper    *paper.Gateway
	journal  Journal
	notifier notifier.TextNotifier
	metrics  *Metrics
	risk     *config.RiskHolder
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	engine    *grid.Engine
	table     *orderTable
	state     State
	runID     string
	startedAt time.Time
	spacing   float64
	lastPrice float64
	iteration int
	resync    bool
	run       *runRecord
	term      Termination

	mu   sync.RWMutex
	snap Snapshot
}

func New(cfg Config, deps Deps) (*Reconciler, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("reconciler: market source is required")
	}
	if deps.Gateway == nil && !cfg.DryRun {
		return nil, fmt.Errorf("reconciler: order gateway is required")
	}
	if cfg.InitialCash <= 0 {
		return nil, &grid.ConfigError{Field: "initial_cash", Reason: "must be > 0"}
	}
	if cfg.Leverage < 1 || cfg.Leverage > 100 {
		return nil, &grid.ConfigError{Field: "leverage", Reason: fmt.Sprintf("must be within [1, 100], got %v", cfg.Leverage)}
	}
	gw := deps.Gateway
	var pg *paper.Gateway
	if cfg.DryRun {
		var ok bool
		if pg, ok = gw.(*paper.Gateway); !ok {
			pg = paper.NewGateway()
		}
		gw = pg
	}
	r := &Reconciler{
		cfg:      cfg,
		source:   deps.Source,
		gateway:  gw,
		paper:    pg,
		journal:  deps.Journal,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		risk:     deps.Risk,
		now:      deps.Now,
		sleep:    deps.Sleep,
		table:    newOrderTable(0),
	}
	if r.notifier == nil {
		r.notifier = notifier.Nop{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.sleep == nil {
		r.sleep = sleepCtx
	}
	r.publish()
	return r, nil
}

// Run drives the whole lifecycle and always cancels every tracked order
// before returning, whatever the exit path. A safety breach or an interrupt
// returns nil; fatal errors (config, market data, panics) are returned.
func (r *Reconciler) Run(ctx context.Context) (err error) {
	r.runID = uuid.NewString()
	r.startedAt = r.now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reconciler panic: %v", rec)
		}
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		r.shutdown(cleanupCtx, err)
	}()

	if err := r.Initialize(ctx); err != nil {
		return err
	}
	r.recordRunStart(ctx)
	r.SyncOrdersToExchange(ctx)

	for {
		r.iteration++
		r.setState(StatePolling)
		fills, err := r.CheckFills(ctx)
		if err != nil {
			return err
		}
		if fills > 0 || r.resync {
			r.SyncOrdersToExchange(ctx)
		}
		breach, err := r.CheckSafetyLimits(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.term.Reason = "interrupted"
				return nil
			}
			return err
		}
		if breach != nil {
			r.term.Breach = breach
			r.term.Reason = breach.Reason
			return nil
		}
		if r.cfg.StatusEvery > 0 && r.iteration%r.cfg.StatusEvery == 0 {
			r.reportStatus()
		}
		r.setState(StatePolling)
		if err := r.sleep(ctx, r.cfg.PollInterval); err != nil {
			r.term.Reason = "interrupted"
			return nil
		}
	}
}

// Initialize 拉取历史 K 线推导网格间距与数量，构造引擎并在最新收盘价处铺设买单。
func (r *Reconciler) Initialize(ctx context.Context) error {
	r.setState(StateInit)
	bars, err := r.source.GetKlines(ctx, r.cfg.Symbol, r.cfg.Timeframe, r.cfg.Lookback)
	if err != nil {
		return dataUnavailable("fetch klines", err)
	}
	if len(bars) == 0 {
		return dataUnavailable("no klines returned for "+r.cfg.Symbol, nil)
	}
	price, ok := market.LastClose(bars)
	if !ok {
		return dataUnavailable("latest close is not positive", nil)
	}
	spacing, err := averageSpacing(bars, r.cfg)
	if err != nil {
		return dataUnavailable("derive spacing", err)
	}
	count := grid.CountFromSpacing(r.cfg.Support, r.cfg.Resistance, spacing)
	engine, err := grid.NewEngine(grid.Params{
		Lower:           r.cfg.Support,
		Upper:           r.cfg.Resistance,
		GridCount:       count,
		Mode:            r.cfg.Mode,
		TotalInvestment: r.cfg.InitialCash * r.cfg.Leverage,
		MakerFee:        r.cfg.MakerFee,
		Observer:        logObserver{symbol: r.cfg.Symbol},
	})
	if err != nil {
		return err
	}
	r.engine = engine
	r.table = newOrderTable(engine.LevelCount())
	r.spacing = spacing
	r.lastPrice = price
	r.metrics.observeLadder(count, spacing)
	r.metrics.observePrice(price)

	engine.InitializeGrid(price, r.now())
	logger.Infof("[%s] ladder %.8g-%.8g %s, %d grids, spacing %.4f%%, investment %.2f (dry_run=%v)",
		r.cfg.Symbol, r.cfg.Support, r.cfg.Resistance, r.cfg.Mode, count, spacing*100,
		r.cfg.InitialCash*r.cfg.Leverage, r.cfg.DryRun)
	r.publish()
	return nil
}

// Engine exposes the underlying matching engine (nil before Initialize).
func (r *Reconciler) Engine() *grid.Engine { return r.engine }

// Termination returns why the last Run ended.
func (r *Reconciler) Termination() Termination { return r.term }

func (r *Reconciler) setState(s State) {
	r.state = s
	r.metrics.setState(s)
	r.publish()
}

func (r *Reconciler) limits() config.RiskLimits {
	if r.risk != nil {
		return r.risk.Get()
	}
	return r.cfg.Risk
}

func (r *Reconciler) shutdown(ctx context.Context, err error) {
	r.setState(StateShuttingDown)
	r.term.Err = err
	if err != nil && r.term.Reason == "" {
		r.term.Reason = err.Error()
	}
	if r.term.Reason == "" {
		r.term.Reason = "stopped"
	}
	cancelled := r.cancelAllTracked(ctx)
	logger.Infof("[%s] shutdown: %s (cancelled %d orders)", r.cfg.Symbol, r.term.Reason, cancelled)
	r.recordRunEnd(ctx)
	r.notifyTermination(ctx)
	r.setState(StateStopped)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isCtxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
