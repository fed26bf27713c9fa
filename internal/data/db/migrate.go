package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/scoolish-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return err
	}
	if db.Dialector.Name() == "postgres" {
		return EnsureQueueIndexes(db)
	}
	return nil
}

// EnsureQueueIndexes adds the partial index the worker claim query scans.
func EnsureQueueIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_job_run_runnable
		ON job_run(created_at)
		WHERE deleted_at IS NULL AND status IN ('queued', 'failed', 'running');
	`).Error; err != nil {
		return fmt.Errorf("create idx_job_run_runnable: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_progress_user_active
		ON progress(user_id, updated_at DESC)
		WHERE status = 'in_progress';
	`).Error; err != nil {
		return fmt.Errorf("create idx_progress_user_active: %w", err)
	}
	return nil
}
