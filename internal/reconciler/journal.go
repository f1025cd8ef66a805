package reconciler

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"

	"gridbot/internal/grid"
	"gridbot/internal/logger"
	"gridbot/internal/store/model"
)

// Journal persists run summaries and fills. Write failures are logged and
// never stop the loop.
type Journal interface {
	SaveRun(ctx context.Context, run *model.GridRunModel) error
	RecordFill(ctx context.Context, fill *model.GridFillModel) error
}

type runRecord = model.GridRunModel

func (r *Reconciler) recordRunStart(ctx context.Context) {
	if r.journal == nil || r.engine == nil {
		r.notifyStart(ctx)
		return
	}
	r.run = &runRecord{
		RunID:         r.runID,
		Symbol:        r.cfg.Symbol,
		Mode:          r.cfg.Mode.String(),
		GridCount:     r.engine.GridCount(),
		Lower:         r.cfg.Support,
		Upper:         r.cfg.Resistance,
		InitialCash:   r.cfg.InitialCash,
		Leverage:      r.cfg.Leverage,
		DryRun:        r.cfg.DryRun,
		Status:        model.RunStatusRunning,
		StartedAtUnix: r.startedAt.UnixMilli(),
	}
	if err := r.journal.SaveRun(ctx, r.run); err != nil {
		logger.Warnf("[%s] persist run start failed: %v", r.cfg.Symbol, err)
	}
	r.notifyStart(ctx)
}

func (r *Reconciler) recordRunEnd(ctx context.Context) {
	if r.journal == nil || r.run == nil {
		return
	}
	r.run.Status = model.RunStatusStopped
	if r.term.Err != nil {
		r.run.Status = model.RunStatusFailed
	}
	r.run.Reason = r.term.Reason
	r.run.EndedAtUnix = r.now().UnixMilli()
	if r.engine != nil {
		if raw, err := json.Marshal(r.engine.Statistics()); err == nil {
			r.run.StatsJSON = datatypes.JSON(raw)
		}
	}
	if err := r.journal.SaveRun(ctx, r.run); err != nil {
		logger.Warnf("[%s] persist run end failed: %v", r.cfg.Symbol, err)
	}
}

func (r *Reconciler) recordFill(ctx context.Context, o grid.Order, orderID string) {
	if r.journal == nil {
		return
	}
	raw, _ := json.Marshal(o)
	fill := &model.GridFillModel{
		RunID:           r.runID,
		Symbol:          r.cfg.Symbol,
		GridIndex:       o.GridIndex,
		Side:            o.Side.String(),
		OrderID:         orderID,
		Price:           o.Price,
		FillPrice:       o.FillPrice,
		Size:            o.Size,
		Fee:             o.Size * o.FillPrice * r.engine.MakerFee(),
		PairedGridIndex: o.PairedGridIndex,
		RawJSON:         datatypes.JSON(raw),
		FilledAtUnix:    o.FilledAt.UnixMilli(),
	}
	if err := r.journal.RecordFill(ctx, fill); err != nil {
		logger.Warnf("[%s] persist fill failed (level %d %s): %v", r.cfg.Symbol, o.GridIndex, o.Side, err)
	}
}
