package reconciler

import (
	"time"

	"gridbot/internal/grid"
	"gridbot/internal/logger"
)

// TrackedOrder is one broker order the reconciler is watching.
type TrackedOrder struct {
	GridIndex int     `json:"grid_index"`
	Side      string  `json:"side"`
	OrderID   string  `json:"order_id"`
	Price     float64 `json:"price"`
}

// Snapshot 是对外发布的只读状态副本，供 HTTP 状态接口读取。
type Snapshot struct {
	RunID     string          `json:"run_id"`
	Symbol    string          `json:"symbol"`
	State     State           `json:"state"`
	DryRun    bool            `json:"dry_run"`
	Spacing   float64         `json:"spacing"`
	LastPrice float64         `json:"last_price"`
	Iteration int             `json:"iteration"`
	Stats     grid.Statistics `json:"stats"`
	Tracked   []TrackedOrder  `json:"tracked"`
	Reason    string          `json:"reason,omitempty"`
	StartedAt time.Time       `json:"started_at,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Status returns the latest published snapshot. Safe from any goroutine.
func (r *Reconciler) Status() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.snap
	out.Tracked = append([]TrackedOrder(nil), r.snap.Tracked...)
	return out
}

// publish copies loop-owned state into the shared snapshot.
func (r *Reconciler) publish() {
	snap := Snapshot{
		RunID:     r.runID,
		Symbol:    r.cfg.Symbol,
		State:     r.state,
		DryRun:    r.cfg.DryRun,
		Spacing:   r.spacing,
		LastPrice: r.lastPrice,
		Iteration: r.iteration,
		Reason:    r.term.Reason,
		StartedAt: r.startedAt,
		UpdatedAt: r.now(),
	}
	if r.engine != nil {
		snap.Stats = r.engine.Statistics()
		buys, sells := 0, 0
		for _, e := range r.table.entries() {
			price, _ := r.engine.Price(e.Index)
			snap.Tracked = append(snap.Tracked, TrackedOrder{
				GridIndex: e.Index,
				Side:      e.Side.String(),
				OrderID:   e.OrderID,
				Price:     price,
			})
			if e.Side == grid.SideBuy {
				buys++
			} else {
				sells++
			}
		}
		r.metrics.observeTracked(buys, sells)
	}
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
}

func (r *Reconciler) reportStatus() {
	if r.engine == nil {
		return
	}
	st := r.engine.Statistics()
	logger.Info("grid status",
		"symbol", r.cfg.Symbol,
		"iteration", r.iteration,
		"price", r.lastPrice,
		"net_pnl", st.NetPnL,
		"fees", st.TotalFees,
		"position", st.NetPosition,
		"trades", st.TotalTrades,
		"active_buys", st.ActiveBuyOrders,
		"active_sells", st.ActiveSellOrders,
		"tracked", r.table.len(),
	)
}
