package app

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"gridbot/internal/config"
	"gridbot/internal/logger"
	"gridbot/internal/reconciler"
	livehttp "gridbot/internal/transport/http/live"
)

// App 负责应用级编排：加载配置→初始化依赖→运行对账循环与状态接口。
type App struct {
	cfg        *config.Config
	reconciler *reconciler.Reconciler
	liveHTTP   *livehttp.Server
	closers    []io.Closer
	Summary    *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg, opts)
}

// Run blocks until the reconciler stops. The HTTP server is shut down when
// the reconciler returns, and an HTTP failure interrupts the reconciler.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.reconciler == nil {
		return fmt.Errorf("app not initialized")
	}
	defer closeAll(a.closers)
	if a.Summary != nil {
		a.Summary.Print()
	}

	group, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	if a.liveHTTP != nil {
		group.Go(func() error {
			logger.Infof("✓ status api listening on %s", a.liveHTTP.Addr())
			if err := a.liveHTTP.Start(runCtx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		defer stop()
		if err := a.reconciler.Run(runCtx); err != nil {
			return fmt.Errorf("reconciler: %w", err)
		}
		term := a.reconciler.Termination()
		logger.Infof("grid stopped: %s", term.Reason)
		return nil
	})

	return group.Wait()
}

// Reconciler exposes the running reconciler (for tests and status probes).
func (a *App) Reconciler() *reconciler.Reconciler {
	if a == nil {
		return nil
	}
	return a.reconciler
}
