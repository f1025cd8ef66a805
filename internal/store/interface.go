package store

import (
	"context"

	"gridbot/internal/store/model"
)

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	Commit() error
	Rollback() error

	Runs() RunRepository
	Fills() FillRepository
}

// Store is the entry point for database access.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Close() error
}

// RunRepository persists one row per reconciler run.
type RunRepository interface {
	Save(ctx context.Context, run *model.GridRunModel) error
	FindByRunID(ctx context.Context, runID string) (*model.GridRunModel, error)
	ListRecent(ctx context.Context, limit int) ([]model.GridRunModel, error)
}

// FillRepository appends fills; rows are never updated.
type FillRepository interface {
	Insert(ctx context.Context, fill *model.GridFillModel) error
	ListByRun(ctx context.Context, runID string, limit int) ([]model.GridFillModel, error)
}
