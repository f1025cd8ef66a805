package sqlite

import (
	"context"
	"errors"

	"gridbot/internal/store/model"

	"gorm.io/gorm"
)

type fillRepository struct {
	db *gorm.DB
}

func NewFillRepo(db *gorm.DB) *fillRepository {
	return &fillRepository{db: db}
}

func (r *fillRepository) Insert(ctx context.Context, fill *model.GridFillModel) error {
	if fill == nil {
		return errors.New("fill cannot be nil")
	}
	return r.db.WithContext(ctx).Create(fill).Error
}

// ListByRun returns fills oldest first; limit <= 0 returns all.
func (r *fillRepository) ListByRun(ctx context.Context, runID string, limit int) ([]model.GridFillModel, error) {
	q := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("filled_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var fills []model.GridFillModel
	if err := q.Find(&fills).Error; err != nil {
		return nil, err
	}
	return fills, nil
}
