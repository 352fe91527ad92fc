package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"orgsetup/internal/executor"
	"orgsetup/internal/models"
)

// Gorm is a RunStore backed by the runs table.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) Save(ctx context.Context, run *models.Run) error {
	var existing models.Run
	err := g.db.WithContext(ctx).Where("run_id = ?", run.RunID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := g.db.WithContext(ctx).Create(run).Error; err != nil {
			return fmt.Errorf("create run %s: %w", run.RunID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("load run %s: %w", run.RunID, err)
	}
	run.ID = existing.ID
	run.CreatedAt = existing.CreatedAt
	if err := g.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("update run %s: %w", run.RunID, err)
	}
	return nil
}

func (g *Gorm) Get(ctx context.Context, runID string) (*models.Run, error) {
	var run models.Run
	err := g.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (g *Gorm) List(ctx context.Context, opts ListOptions) ([]models.Run, int64, error) {
	opts = opts.normalize()
	query := g.db.WithContext(ctx).Model(&models.Run{})
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}
	if opts.Kind != "" {
		query = query.Where("kind = ?", opts.Kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runs []models.Run
	offset := (opts.Page - 1) * opts.PageSize
	// the list view does not need the JSON columns
	err := query.Omit("records", "execution_logs").
		Order("id DESC").
		Offset(offset).
		Limit(opts.PageSize).
		Find(&runs).Error
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

func (g *Gorm) MarkStale(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	now := time.Now()
	res := g.db.WithContext(ctx).Model(&models.Run{}).
		Where("status = ? AND start_time < ?", executor.StatusRunning, cutoff).
		Updates(map[string]interface{}{
			"status":        executor.StatusFailed,
			"error_message": reason,
			"end_time":      now,
		})
	return res.RowsAffected, res.Error
}
