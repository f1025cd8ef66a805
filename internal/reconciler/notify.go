package reconciler

import (
	"context"
	"fmt"

	"gridbot/internal/gateway/notifier"
	"gridbot/internal/logger"
)

func (r *Reconciler) notifyStart(ctx context.Context) {
	msg := notifier.StructuredMessage{
		Icon:      "🟢",
		Title:     "grid started: " + r.cfg.Symbol,
		Footer:    "run " + r.runID,
		Timestamp: r.now(),
	}
	if r.cfg.DryRun {
		msg.Footer += " (dry-run)"
	}
	lines := []string{
		fmt.Sprintf("range: %.8g - %.8g (%s)", r.cfg.Support, r.cfg.Resistance, r.cfg.Mode),
		fmt.Sprintf("investment: %.2f x%.0f", r.cfg.InitialCash, r.cfg.Leverage),
		fmt.Sprintf("spacing: %.4f%%", r.spacing*100),
		fmt.Sprintf("price: %.8g", r.lastPrice),
	}
	if r.engine != nil {
		lines = append(lines, fmt.Sprintf("grids: %d, buys: %d", r.engine.GridCount(), r.engine.Statistics().ActiveBuyOrders))
	}
	msg.AddSection("ladder", lines...)
	r.send(ctx, msg)
}

func (r *Reconciler) notifyTermination(ctx context.Context) {
	icon := "🔴"
	if r.term.Err == nil && r.term.Breach == nil {
		icon = "⚪"
	}
	msg := notifier.StructuredMessage{
		Icon:      icon,
		Title:     "grid stopped: " + r.cfg.Symbol,
		Footer:    "run " + r.runID,
		Timestamp: r.now(),
	}
	msg.AddSection("reason", r.term.Reason)
	if r.engine != nil {
		st := r.engine.Statistics()
		msg.AddSection("result",
			fmt.Sprintf("net pnl: %.4f", st.NetPnL),
			fmt.Sprintf("fees: %.4f", st.TotalFees),
			fmt.Sprintf("trades: %d", st.TotalTrades),
			fmt.Sprintf("position: %.8g", st.NetPosition),
		)
	}
	r.send(ctx, msg)
}

func (r *Reconciler) send(ctx context.Context, msg notifier.StructuredMessage) {
	if err := r.notifier.SendText(ctx, msg.RenderMarkdown()); err != nil {
		logger.Warnf("[%s] notify failed: %v", r.cfg.Symbol, err)
	}
}
