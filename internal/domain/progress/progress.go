package progress

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Terminal reports whether a status can no longer change.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

type Progress struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string         `gorm:"not null;index;column:user_id" json:"user_id"`
	FileID     *uuid.UUID     `gorm:"type:uuid;index;column:file_id" json:"file_id"`
	Tool       string         `gorm:"not null;size:50;index;column:tool" json:"tool"`
	Status     string         `gorm:"not null;default:in_progress;index;column:status" json:"status"`
	Percentage int            `gorm:"not null;default:0;column:percentage" json:"percentage"`
	ResultJSON datatypes.JSON `gorm:"column:result_json;type:jsonb" json:"result_json,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;index" json:"updated_at"`
}

func (Progress) TableName() string { return "progress" }

func (p *Progress) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusInProgress
	}
	return nil
}

// BatchFile is one entry of BatchJob.FilesJSON.
type BatchFile struct {
	FileID       string `json:"file_id"`
	OriginalName string `json:"original_name"`
	Source       string `json:"source,omitempty"`
	ProgressID   string `json:"progress_id"`
	Status       string `json:"status"`
	Percentage   int    `json:"percentage"`
}

type BatchJob struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string         `gorm:"not null;index;column:user_id" json:"user_id"`
	Tool       string         `gorm:"not null;size:50;column:tool" json:"tool"`
	Status     string         `gorm:"not null;default:in_progress;column:status" json:"status"`
	Percentage int            `gorm:"not null;default:0;column:percentage" json:"percentage"`
	FilesJSON  datatypes.JSON `gorm:"column:files_json;type:jsonb;not null" json:"files"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (BatchJob) TableName() string { return "batch_jobs" }

func (b *BatchJob) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
