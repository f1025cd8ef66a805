package app

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"gridbot/internal/config"
	"gridbot/internal/gateway"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/gateway/notifier"
	"gridbot/internal/logger"
	"gridbot/internal/market"
	"gridbot/internal/market/klinecache"
	"gridbot/internal/reconciler"
	"gridbot/internal/store"
	"gridbot/internal/store/sqlite"
	livehttp "gridbot/internal/transport/http/live"
)

type AppBuilder struct {
	cfg        *config.Config
	configPath string

	sourceFn  func(*config.Config) (market.Source, error)
	gatewayFn func(*config.Config) (exchange.Gateway, error)
	storeFn   func(path string) (store.Store, error)
}

type AppBuilderOption func(*AppBuilder)

// WithConfigPath enables hot reload of risk limits from path.
func WithConfigPath(path string) AppBuilderOption {
	return func(b *AppBuilder) { b.configPath = path }
}

// WithSource overrides the market data source (tests, replays).
func WithSource(src market.Source) AppBuilderOption {
	return func(b *AppBuilder) {
		b.sourceFn = func(*config.Config) (market.Source, error) { return src, nil }
	}
}

// WithGateway overrides the order gateway.
func WithGateway(gw exchange.Gateway) AppBuilderOption {
	return func(b *AppBuilder) {
		b.gatewayFn = func(*config.Config) (exchange.Gateway, error) { return gw, nil }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:       cfg,
		sourceFn:  gateway.NewSourceFromConfig,
		gatewayFn: gateway.NewGatewayFromConfig,
		storeFn:   openStore,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func openStore(path string) (store.Store, error) {
	return sqlite.NewSqliteStore(path)
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	var closers []io.Closer
	fail := func(err error) (*App, error) {
		closeAll(closers)
		return nil, err
	}

	src, err := b.sourceFn(cfg)
	if err != nil {
		return fail(fmt.Errorf("market source: %w", err))
	}
	if dir := cfg.Store.KlineCacheDir; dir != "" {
		cache, err := klinecache.New(dir)
		if err != nil {
			return fail(fmt.Errorf("kline cache: %w", err))
		}
		closers = append(closers, cache)
		src = cache.Recorder(src)
		logger.Infof("✓ kline cache at %s", dir)
	}

	gw, err := b.gatewayFn(cfg)
	if err != nil {
		return fail(fmt.Errorf("order gateway: %w", err))
	}

	st, err := b.storeFn(cfg.Store.Path)
	if err != nil {
		return fail(fmt.Errorf("open store %s: %w", cfg.Store.Path, err))
	}
	closers = append(closers, st)
	journal := store.NewJournal(st)

	var textNotifier notifier.TextNotifier = notifier.Nop{}
	if tg := cfg.Notify.Telegram; tg.Enabled {
		textNotifier = notifier.NewTelegram(tg.BotToken, tg.ChatID)
		logger.Infof("✓ telegram notifications enabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := reconciler.NewMetrics(reg)

	risk := config.NewRiskHolder(cfg.Risk.Limits())
	if b.configPath != "" {
		if err := config.WatchRisk(b.configPath, risk); err != nil {
			logger.Warnf("risk hot reload disabled: %v", err)
		}
	}

	rcfg, err := reconciler.ConfigFrom(cfg)
	if err != nil {
		return fail(err)
	}
	rec, err := reconciler.New(rcfg, reconciler.Deps{
		Source:   src,
		Gateway:  gw,
		Journal:  journal,
		Notifier: textNotifier,
		Metrics:  metrics,
		Risk:     risk,
	})
	if err != nil {
		return fail(err)
	}

	var httpSrv *livehttp.Server
	if cfg.App.HTTPAddr != "" {
		httpSrv, err = livehttp.NewServer(livehttp.ServerConfig{
			Addr:     cfg.App.HTTPAddr,
			Status:   rec,
			History:  journal,
			Gatherer: reg,
		})
		if err != nil {
			return fail(err)
		}
	}

	return &App{
		cfg:        cfg,
		reconciler: rec,
		liveHTTP:   httpSrv,
		closers:    closers,
		Summary:    newStartupSummary(cfg),
	}, nil
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warnf("close failed: %v", err)
		}
	}
}
