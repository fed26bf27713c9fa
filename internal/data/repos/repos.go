package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/scoolish-backend/internal/data/repos/files"
	"github.com/yungbote/scoolish-backend/internal/data/repos/jobs"
	"github.com/yungbote/scoolish-backend/internal/data/repos/knowledge"
	"github.com/yungbote/scoolish-backend/internal/data/repos/progress"
	"github.com/yungbote/scoolish-backend/internal/data/repos/user"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo

type FileRepo = files.FileRepo
type PageRepo = files.PageRepo
type PageResultRepo = files.PageResultRepo

type ProgressRepo = progress.ProgressRepo
type ProgressActiveRow = progress.ActiveRow
type BatchJobRepo = progress.BatchJobRepo

type JobRunRepo = jobs.JobRunRepo

type ScrapeJobRepo = knowledge.ScrapeJobRepo
type KnowledgeItemRepo = knowledge.KnowledgeItemRepo

var ErrDuplicate = files.ErrDuplicate

type Repos struct {
	User       UserRepo
	File       FileRepo
	Page       PageRepo
	PageResult PageResultRepo
	Progress   ProgressRepo
	Batch      BatchJobRepo
	JobRun     JobRunRepo
	ScrapeJob  ScrapeJobRepo
	Knowledge  KnowledgeItemRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		User:       user.NewUserRepo(db, log),
		File:       files.NewFileRepo(db, log),
		Page:       files.NewPageRepo(db, log),
		PageResult: files.NewPageResultRepo(db, log),
		Progress:   progress.NewProgressRepo(db, log),
		Batch:      progress.NewBatchJobRepo(db, log),
		JobRun:     jobs.NewJobRunRepo(db, log),
		ScrapeJob:  knowledge.NewScrapeJobRepo(db, log),
		Knowledge:  knowledge.NewKnowledgeItemRepo(db, log),
	}
}
