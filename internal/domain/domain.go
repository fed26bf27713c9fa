package domain

import (
	"github.com/yungbote/scoolish-backend/internal/domain/files"
	"github.com/yungbote/scoolish-backend/internal/domain/jobs"
	"github.com/yungbote/scoolish-backend/internal/domain/knowledge"
	"github.com/yungbote/scoolish-backend/internal/domain/progress"
	"github.com/yungbote/scoolish-backend/internal/domain/user"
)

type (
	User    = user.User
	Profile = user.Profile

	UploadedFile = files.UploadedFile
	FilePage     = files.FilePage
	PageResult   = files.PageResult

	Progress  = progress.Progress
	BatchJob  = progress.BatchJob
	BatchFile = progress.BatchFile

	JobRun = jobs.JobRun

	WebScrapeJob  = knowledge.WebScrapeJob
	KnowledgeItem = knowledge.KnowledgeItem
)

// Models lists every table in migration order.
func Models() []any {
	return []any{
		// Users
		&User{},
		&Profile{},

		// Files
		&UploadedFile{},
		&FilePage{},
		&PageResult{},

		// Progress
		&Progress{},
		&BatchJob{},

		// Jobs
		&JobRun{},

		// Knowledge
		&WebScrapeJob{},
		&KnowledgeItem{},
	}
}
