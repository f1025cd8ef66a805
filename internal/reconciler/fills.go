package reconciler

import (
	"context"
	"fmt"

	"gridbot/internal/grid"
	"gridbot/internal/logger"
)

// CheckFills 轮询每个已跟踪订单；成交则回填引擎并取消跟踪，返回成交数量。
// 交易所已撤销/过期/拒绝的订单同样取消跟踪，并标记下一轮需要重新同步挂单。
// 干跑模式下不查询网关，而是用最新价与价位价格比较：买单 price <= level，卖单 price >= level。
func (r *Reconciler) CheckFills(ctx context.Context) (int, error) {
	if r.engine == nil {
		return 0, fmt.Errorf("reconciler not initialized")
	}
	entries := r.table.entries()
	if len(entries) == 0 {
		return 0, nil
	}

	var last float64
	if r.cfg.DryRun {
		p, err := r.latestPrice(ctx)
		if err != nil {
			logger.Warnf("[%s] dry-run fill check skipped: %v", r.cfg.Symbol, err)
			return 0, nil
		}
		last = p
	}

	filled := 0
	for _, e := range entries {
		levelPrice, ok := r.engine.Price(e.Index)
		if !ok {
			r.table.remove(e.Index, e.Side)
			continue
		}
		var fillPrice float64
		if r.cfg.DryRun {
			touched := (e.Side == grid.SideBuy && last <= levelPrice) ||
				(e.Side == grid.SideSell && last >= levelPrice)
			if !touched {
				continue
			}
			fillPrice = levelPrice
			if r.paper != nil {
				r.paper.MarkFilled(e.OrderID, fillPrice)
			}
		} else {
			st, err := r.gateway.GetOrderStatus(ctx, r.cfg.Symbol, e.OrderID)
			if err != nil {
				r.gatewayFailed("status", err)
				continue
			}
			if st.Dropped() {
				r.table.remove(e.Index, e.Side)
				r.resync = true
				r.metrics.incDropped(e.Side.String())
				logger.Warn("tracked order closed without fill", "symbol", r.cfg.Symbol, "level", e.Index,
					"side", e.Side.String(), "id", e.OrderID, "status", st.Status)
				continue
			}
			if !st.Filled() {
				continue
			}
			fillPrice = st.AveragePrice
			if fillPrice <= 0 {
				fillPrice = levelPrice
			}
		}

		r.setState(StateReconciling)
		var o grid.Order
		if e.Side == grid.SideBuy {
			o, ok = r.engine.FillBuy(e.Index, fillPrice, r.now())
		} else {
			o, ok = r.engine.FillSell(e.Index, fillPrice, r.now())
		}
		r.table.remove(e.Index, e.Side)
		if !ok {
			logger.Warn("tracked order has no engine counterpart", "symbol", r.cfg.Symbol, "level", e.Index, "side", e.Side.String(), "id", e.OrderID)
			continue
		}
		filled++
		r.metrics.incFill(e.Side.String())
		r.recordFill(ctx, o, e.OrderID)
	}
	if filled > 0 {
		st := r.engine.Statistics()
		r.metrics.observeStats(st.NetPnL, st.TotalFees, st.NetPosition)
		logger.Infof("[%s] %d fills reconciled, net pnl %.4f, position %.8g", r.cfg.Symbol, filled, st.NetPnL, st.NetPosition)
	}
	r.publish()
	return filled, nil
}
