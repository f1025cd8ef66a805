// Command gridreplay replays cached klines through the grid engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"gridbot/internal/backtest"
	gbcfg "gridbot/internal/config"
	"gridbot/internal/gateway"
	"gridbot/internal/grid"
	"gridbot/internal/logger"
	"gridbot/internal/market/klinecache"
)

func main() {
	var (
		cfgPath   = flag.String("config", "configs/config.yaml", "gridbot config used for grid defaults")
		sweepPath = flag.String("sweep", "", "yaml file with a list of run configs; overrides the single run")
		syncBars  = flag.Int("sync", 0, "fetch this many bars from the exchange into the cache first")
		warmup    = flag.Int("warmup", 0, "warmup bars (defaults to grid.lookback)")
		gridCount = flag.Int("grids", 0, "fixed grid count; 0 derives it from ATR")
		stopDD    = flag.Float64("stop-dd", 0, "stop once realized loss exceeds this fraction of initial cash")
		stopPos   = flag.Float64("stop-pos", 0, "stop once position notional exceeds this many USD")
		parallel  = flag.Int("parallel", 4, "concurrent runs for -sweep")
		outPath   = flag.String("out", "", "write the yaml report here instead of stdout")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := gbcfg.Load(*cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logger.SetLevel(cfg.App.LogLevel)

	cache, err := klinecache.New(cfg.Store.KlineCacheDir)
	if err != nil {
		log.Fatalf("打开 K 线缓存失败: %v", err)
	}
	defer cache.Close()

	if *syncBars > 0 {
		upstream, err := gateway.NewSourceFromConfig(cfg)
		if err != nil {
			log.Fatalf("初始化行情源失败: %v", err)
		}
		n, err := cache.Sync(ctx, upstream, cfg.Grid.Symbol, cfg.Grid.Timeframe, *syncBars)
		if err != nil {
			log.Fatalf("同步 K 线失败: %v", err)
		}
		logger.Infof("✓ synced %d bars for %s@%s", n, cfg.Grid.Symbol, cfg.Grid.Timeframe)
	}

	rp, err := backtest.NewReplayer(cache)
	if err != nil {
		log.Fatalf("初始化回放失败: %v", err)
	}

	var report any
	if *sweepPath != "" {
		runs, err := backtest.LoadSweepFile(*sweepPath, baseRun(cfg))
		if err != nil {
			log.Fatalf("读取 sweep 失败: %v", err)
		}
		results, err := rp.Sweep(ctx, runs, *parallel)
		if err != nil {
			log.Fatalf("回放失败: %v", err)
		}
		report = results
	} else {
		run := baseRun(cfg)
		if *warmup > 0 {
			run.Warmup = *warmup
		}
		run.GridCount = *gridCount
		run.MaxDrawdownPct = *stopDD
		run.MaxPositionUSD = *stopPos
		res, err := rp.Run(ctx, run)
		if err != nil {
			log.Fatalf("回放失败: %v", err)
		}
		report = res
	}

	out, err := yaml.Marshal(report)
	if err != nil {
		log.Fatalf("编码报告失败: %v", err)
	}
	if *outPath == "" {
		fmt.Print(string(out))
		return
	}
	if err := os.WriteFile(*outPath, out, 0o644); err != nil {
		log.Fatalf("写入报告失败: %v", err)
	}
	logger.Infof("✓ report written to %s", *outPath)
}

func baseRun(cfg *gbcfg.Config) backtest.RunConfig {
	g := cfg.Grid
	return backtest.RunConfig{
		Symbol:      g.Symbol,
		Timeframe:   g.Timeframe,
		Warmup:      g.Lookback,
		Support:     g.Support,
		Resistance:  g.Resistance,
		Mode:        grid.Mode(g.Mode),
		InitialCash: g.InitialCash,
		Leverage:    g.Leverage,
		MakerFee:    g.MakerFee,
		MinReturn:   g.MinReturn,
		VolatilityK: g.VolatilityK,
		ATRPeriod:   g.ATRPeriod,
	}
}
