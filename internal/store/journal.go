package store

import (
	"context"
	"fmt"

	"gridbot/internal/store/model"
)

// Journal wraps single-row writes in their own transaction.
type Journal struct {
	st Store
}

func NewJournal(st Store) *Journal {
	return &Journal{st: st}
}

func (j *Journal) SaveRun(ctx context.Context, run *model.GridRunModel) error {
	return j.withTx(ctx, func(uow UnitOfWork) error {
		return uow.Runs().Save(ctx, run)
	})
}

func (j *Journal) RecordFill(ctx context.Context, fill *model.GridFillModel) error {
	return j.withTx(ctx, func(uow UnitOfWork) error {
		return uow.Fills().Insert(ctx, fill)
	})
}

func (j *Journal) withTx(ctx context.Context, fn func(UnitOfWork) error) error {
	if j == nil || j.st == nil {
		return fmt.Errorf("journal store not configured")
	}
	uow, err := j.st.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

// RecentRuns lists the newest runs first.
func (j *Journal) RecentRuns(ctx context.Context, limit int) ([]model.GridRunModel, error) {
	var out []model.GridRunModel
	err := j.withTx(ctx, func(uow UnitOfWork) error {
		runs, err := uow.Runs().ListRecent(ctx, limit)
		out = runs
		return err
	})
	return out, err
}

// RunFills lists the fills of one run, oldest first.
func (j *Journal) RunFills(ctx context.Context, runID string, limit int) ([]model.GridFillModel, error) {
	var out []model.GridFillModel
	err := j.withTx(ctx, func(uow UnitOfWork) error {
		fills, err := uow.Fills().ListByRun(ctx, runID, limit)
		out = fills
		return err
	})
	return out, err
}
