package knowledge

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ScrapePending    = "pending"
	ScrapeInProgress = "in_progress"
	ScrapeDone       = "done"
	ScrapeFailed     = "failed"
)

type WebScrapeJob struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string     `gorm:"not null;index;column:user_id" json:"user_id"`
	URL       string     `gorm:"type:text;not null;column:url" json:"url"`
	Domain    string     `gorm:"size:255;column:domain" json:"domain"`
	Title     string     `gorm:"type:text;column:title" json:"title,omitempty"`
	Status    string     `gorm:"size:50;not null;default:pending;index;column:status" json:"status"`
	Progress  int        `gorm:"not null;default:0;column:progress" json:"progress"`
	JobRunID  *uuid.UUID `gorm:"type:uuid;column:job_run_id" json:"job_run_id,omitempty"`
	Error     string     `gorm:"type:text;column:error" json:"error,omitempty"`
	ResultID  *uuid.UUID `gorm:"type:uuid;column:result_id" json:"result_id,omitempty"`
	CreatedAt time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}

func (WebScrapeJob) TableName() string { return "web_scrape_jobs" }

func (j *WebScrapeJob) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

type KnowledgeItem struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string         `gorm:"not null;index;column:user_id" json:"user_id"`
	SourceType     string         `gorm:"size:50;not null;default:web;column:source_type" json:"source_type"`
	SourceURL      string         `gorm:"type:text;column:source_url" json:"source_url"`
	Title          string         `gorm:"type:text;column:title" json:"title"`
	Summary        string         `gorm:"type:text;column:summary" json:"summary"`
	StructuredJSON datatypes.JSON `gorm:"column:structured_json;type:jsonb" json:"structured"`
	MetadataJSON   datatypes.JSON `gorm:"column:metadata_json;type:jsonb" json:"metadata"`
	BlobPathRaw    string         `gorm:"type:text;column:blob_path_raw" json:"blob_path_raw"`
	BlobPathText   string         `gorm:"type:text;column:blob_path_text" json:"blob_path_text"`
	Saved          bool           `gorm:"not null;default:true;column:saved" json:"saved"`
	CreatedAt      time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null" json:"updated_at"`
}

func (KnowledgeItem) TableName() string { return "knowledge_items" }

func (k *KnowledgeItem) BeforeCreate(*gorm.DB) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	return nil
}
