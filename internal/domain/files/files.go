package files

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TypeDocument = "document"
	TypeAudio    = "audio"
	TypeVideo    = "video"
	TypeImage    = "image"

	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

type UploadedFile struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           string         `gorm:"not null;index;uniqueIndex:idx_file_user_hash;column:user_id" json:"user_id"`
	OriginalFileName string         `gorm:"not null;column:original_file_name" json:"original_file_name"`
	StoredFileName   string         `gorm:"not null;index;column:stored_file_name" json:"stored_file_name"`
	FilePath         string         `gorm:"not null;column:file_path" json:"file_path"`
	FileType         string         `gorm:"not null;column:file_type" json:"file_type"`
	MimeType         string         `gorm:"column:mime_type" json:"mime_type,omitempty"`
	SizeBytes        int64          `gorm:"column:size_bytes" json:"size_bytes"`
	TotalPages       *int           `gorm:"column:total_pages" json:"total_pages,omitempty"`
	Status           string         `gorm:"not null;default:pending;index;column:status" json:"status"`
	Error            string         `gorm:"column:error" json:"error,omitempty"`
	Hash             *string        `gorm:"size:64;uniqueIndex:idx_file_user_hash;column:hash" json:"hash,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UploadedFile) TableName() string { return "uploaded_files" }

func (f *UploadedFile) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

type FilePage struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FileID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_file_page;column:file_id" json:"file_id"`
	PageNumber int       `gorm:"not null;uniqueIndex:idx_file_page;column:page_number" json:"page_number"`
	PageText   string    `gorm:"type:text;not null;column:page_text" json:"page_text"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
}

func (FilePage) TableName() string { return "file_pages" }

func (p *FilePage) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PageResult is one tool's output for one page, unique per (file, page, tool).
type PageResult struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FileID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_page_result;column:file_id" json:"file_id"`
	PageNumber int            `gorm:"not null;uniqueIndex:idx_page_result;column:page_number" json:"page_number"`
	Tool       string         `gorm:"not null;size:50;uniqueIndex:idx_page_result;column:tool" json:"tool"`
	Result     datatypes.JSON `gorm:"column:result;type:jsonb" json:"result"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (PageResult) TableName() string { return "page_results" }

func (r *PageResult) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
