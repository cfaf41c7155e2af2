package repository

import (
	"context"

	"boilerplate/internal/domain/model"
	repo "boilerplate/internal/repository"

	"gorm.io/gorm"
)

type requestLogGormRepository struct {
	db *gorm.DB
}

func NewRequestLogGormRepository(db *gorm.DB) repo.RequestLogRepository {
	return &requestLogGormRepository{db: db}
}

func (r *requestLogGormRepository) Create(ctx context.Context, log model.RequestLog) error {
	if err := r.db.WithContext(ctx).Create(&log).Error; err != nil {
		return err
	}
	return nil
}

func (r *requestLogGormRepository) List(ctx context.Context, filter repo.RequestLogFilter) ([]model.RequestLog, int64, error) {
	var total int64
	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit, offset := repo.NormalizePage(filter.Limit, filter.Offset)

	//新しい順
	var logs []model.RequestLog
	if err := r.filtered(ctx, filter).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// Countと一覧で同じ条件を使う（gormのStatementを使い回さない）
func (r *requestLogGormRepository) filtered(ctx context.Context, filter repo.RequestLogFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.RequestLog{})

	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.Method != nil {
		q = q.Where("method = ?", *filter.Method)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at <= ?", *filter.CreatedTo)
	}
	return q
}
