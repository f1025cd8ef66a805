package reconciler

import (
	"context"
	"fmt"
	"math"

	"gridbot/internal/config"
	"gridbot/internal/logger"
)

// CheckSafetyLimits 检查回撤与持仓名义价值两条熔断线。
// 行情获取失败返回 ErrDataUnavailable，对本次运行是致命的。
func (r *Reconciler) CheckSafetyLimits(ctx context.Context) (*SafetyBreach, error) {
	if r.engine == nil {
		return nil, fmt.Errorf("reconciler not initialized")
	}
	price, err := r.latestPrice(ctx)
	if err != nil {
		return nil, err
	}
	st := r.engine.Statistics()
	breach := EvaluateSafety(r.cfg.InitialCash, st.NetPnL, st.NetPosition, price, r.limits())
	if breach != nil {
		r.metrics.incBreach(breach.Kind)
		logger.Warn("safety limit breached", "symbol", r.cfg.Symbol, "kind", string(breach.Kind), "reason", breach.Reason)
	}
	r.publish()
	return breach, nil
}

// EvaluateSafety 以初始本金为基准计算回撤（仅计已实现净盈亏）；持仓名义价值取绝对值。
// 回放工具复用同一规则决定是否提前停止。
func EvaluateSafety(initialCash, netPnL, netPosition, price float64, limits config.RiskLimits) *SafetyBreach {
	equity := initialCash + netPnL
	drawdown := (equity - initialCash) / initialCash
	if drawdown < -limits.MaxDrawdownPct {
		return &SafetyBreach{
			Kind:  SafetyDrawdown,
			Value: drawdown,
			Limit: limits.MaxDrawdownPct,
			Reason: fmt.Sprintf("drawdown %.2f%% exceeds max drawdown %.2f%% (equity %.2f of %.2f)",
				drawdown*100, limits.MaxDrawdownPct*100, equity, initialCash),
		}
	}
	notional := math.Abs(netPosition * price)
	if notional > limits.MaxPositionUSD {
		return &SafetyBreach{
			Kind:  SafetyPosition,
			Value: notional,
			Limit: limits.MaxPositionUSD,
			Reason: fmt.Sprintf("position notional %.2f USD exceeds max %.2f USD (position %.8g @ %.8g)",
				notional, limits.MaxPositionUSD, netPosition, price),
		}
	}
	return nil
}
