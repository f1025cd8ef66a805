package reconciler

import (
	"context"
	"errors"

	"gridbot/internal/analysis/indicator"
	"gridbot/internal/gateway/exchange"
	"gridbot/internal/grid"
	"gridbot/internal/logger"
	"gridbot/internal/market"
)

// SyncOrdersToExchange cancels everything tracked, then places one limit
// order per resting engine order and tracks the returned id by (level, side).
// A failed placement leaves that slot untracked.
func (r *Reconciler) SyncOrdersToExchange(ctx context.Context) int {
	if r.engine == nil {
		return 0
	}
	r.setState(StateSyncing)
	r.resync = false
	r.cancelAllTracked(ctx)

	placed := 0
	for _, o := range r.engine.ActiveOrders() {
		side := toExchangeSide(o.Side)
		id, err := r.gateway.PlaceLimitOrder(ctx, r.cfg.Symbol, side, o.Price, o.Size)
		if err != nil {
			r.gatewayFailed("place", exchange.AsGatewayError("place", r.cfg.Symbol, side, o.Price, "", err))
			continue
		}
		if id == "" {
			logger.Warn("gateway returned empty order id", "symbol", r.cfg.Symbol, "side", string(side), "price", o.Price)
			continue
		}
		r.table.set(o.GridIndex, o.Side, id)
		r.metrics.incPlaced(string(side))
		placed++
	}
	logger.Infof("[%s] synced %d/%d orders to exchange", r.cfg.Symbol, placed, len(r.engine.ActiveOrders()))
	r.publish()
	return placed
}

// cancelAllTracked cancels every tracked id and clears the table whether or
// not the cancels succeed. Returns how many the gateway accepted.
func (r *Reconciler) cancelAllTracked(ctx context.Context) int {
	if r.table == nil {
		return 0
	}
	ok := 0
	for _, e := range r.table.entries() {
		cancelled, err := r.gateway.CancelOrder(ctx, r.cfg.Symbol, e.OrderID)
		if err != nil {
			r.gatewayFailed("cancel", exchange.AsGatewayError("cancel", r.cfg.Symbol, toExchangeSide(e.Side), 0, e.OrderID, err))
			continue
		}
		if cancelled {
			ok++
			r.metrics.incCancel()
		}
	}
	r.table.clear()
	return ok
}

func (r *Reconciler) gatewayFailed(op string, err error) {
	r.metrics.incGatewayError(op)
	var ge *exchange.GatewayError
	if errors.As(err, &ge) {
		if isCtxErr(err) {
			logger.Debugf("gateway %s interrupted: %v", op, err)
			return
		}
		logger.Warn("gateway call failed", ge.LogArgs()...)
		return
	}
	logger.Warn("gateway call failed", "op", op, "symbol", r.cfg.Symbol, "err", err)
}

// latestPrice reads the close of the most recent bar.
func (r *Reconciler) latestPrice(ctx context.Context) (float64, error) {
	bars, err := r.source.GetKlines(ctx, r.cfg.Symbol, r.cfg.Timeframe, 1)
	if err != nil {
		return 0, dataUnavailable("fetch latest price", err)
	}
	price, ok := market.LastClose(bars)
	if !ok {
		return 0, dataUnavailable("no latest price for "+r.cfg.Symbol, nil)
	}
	r.lastPrice = price
	r.metrics.observePrice(price)
	return price, nil
}

func averageSpacing(bars []market.Candle, cfg Config) (float64, error) {
	return indicator.AverageSpacing(bars, indicator.SpacingSettings{
		ATRPeriod:   cfg.ATRPeriod,
		VolatilityK: cfg.VolatilityK,
		MinReturn:   cfg.MinReturn,
		MakerFee:    cfg.MakerFee,
	})
}

func toExchangeSide(s grid.Side) exchange.Side {
	if s == grid.SideSell {
		return exchange.SideSell
	}
	return exchange.SideBuy
}
