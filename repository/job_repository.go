package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/parkerpayne/bard/model"
)

// JobHistoryRepository 已结束下载任务的历史
type JobHistoryRepository interface {
	Record(ctx context.Context, job model.Job) error
	Recent(ctx context.Context, limit int) ([]model.JobRecord, error)
}

type gormJobHistory struct {
	db *gorm.DB
}

func NewJobHistoryRepository(db *gorm.DB) JobHistoryRepository {
	return &gormJobHistory{db: db}
}

// Record upserts the terminal job row.
func (r *gormJobHistory) Record(ctx context.Context, job model.Job) error {
	rec := model.NewJobRecord(job)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("record job %s: %w", job.ID, err)
	}
	return nil
}

func (r *gormJobHistory) Recent(ctx context.Context, limit int) ([]model.JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []model.JobRecord
	err := r.db.WithContext(ctx).
		Order("finished_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query job history: %w", err)
	}
	return records, nil
}
