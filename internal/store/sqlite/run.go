package sqlite

import (
	"context"
	"errors"

	"gridbot/internal/store/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type runRepository struct {
	db *gorm.DB
}

func NewRunRepo(db *gorm.DB) *runRepository {
	return &runRepository{db: db}
}

// Save inserts or updates a run keyed by run_id.
func (r *runRepository) Save(ctx context.Context, run *model.GridRunModel) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}
	if run.ID != 0 {
		return r.db.WithContext(ctx).Save(run).Error
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}},
		UpdateAll: true,
	}).Create(run).Error
}

func (r *runRepository) FindByRunID(ctx context.Context, runID string) (*model.GridRunModel, error) {
	var run model.GridRunModel
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *runRepository) ListRecent(ctx context.Context, limit int) ([]model.GridRunModel, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []model.GridRunModel
	if err := r.db.WithContext(ctx).
		Order("started_at DESC, id DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
