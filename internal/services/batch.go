package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	types "github.com/yungbote/scoolish-backend/internal/domain"
	domjobs "github.com/yungbote/scoolish-backend/internal/domain/jobs"
	domprogress "github.com/yungbote/scoolish-backend/internal/domain/progress"
	"github.com/yungbote/scoolish-backend/internal/platform/apierr"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
	"github.com/yungbote/scoolish-backend/internal/tools/summarizer"
)

const (
	maxBatchFiles = 5
	batchStagger  = 3 * time.Second
)

type BatchView struct {
	BatchID    string                  `json:"batch_id"`
	Status     string                  `json:"status,omitempty"`
	Percentage int                     `json:"percentage"`
	Files      []domprogress.BatchFile `json:"files"`
}

type BatchService interface {
	// Start summarizes up to five vault files, queuing file i with a start
	// delay of i*3s.
	Start(dbc dbctx.Context, userID string, vault []string) (*BatchView, error)
	// Progress refreshes every file from its progress row and saves the
	// recomputed totals on the batch.
	Progress(dbc dbctx.Context, userID string, batchID uuid.UUID) (*BatchView, error)
}

type batchService struct {
	db   *gorm.DB
	log  *logger.Logger
	r    repos.Repos
	jobs JobService
}

func NewBatchService(db *gorm.DB, baseLog *logger.Logger, r repos.Repos, jobs JobService) BatchService {
	return &batchService{db: db, log: baseLog.With("service", "BatchService"), r: r, jobs: jobs}
}

func (s *batchService) Start(dbc dbctx.Context, userID string, vault []string) (*BatchView, error) {
	switch {
	case len(vault) == 0:
		return nil, apierr.BadRequest("no_files", "No files provided")
	case len(vault) > maxBatchFiles:
		return nil, apierr.BadRequest("too_many_files", "You can process up to %d files at once", maxBatchFiles)
	}

	files := make([]*types.UploadedFile, len(vault))
	for i, name := range vault {
		f, err := s.r.File.FindByName(dbc, userID, strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", name, err)
		}
		if f == nil {
			return nil, apierr.NotFound("vault_file_not_found", "Vault file not found: %s", name)
		}
		files[i] = f
	}

	specs := make([]domprogress.BatchFile, len(files))
	batch := &types.BatchJob{UserID: userID, Tool: summarizer.Name, Status: domprogress.StatusInProgress}
	err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		for i, f := range files {
			p := &types.Progress{UserID: userID, FileID: &f.ID, Tool: summarizer.Name, Status: domprogress.StatusInProgress}
			if err := s.r.Progress.Create(inner, p); err != nil {
				return fmt.Errorf("create progress: %w", err)
			}
			specs[i] = domprogress.BatchFile{
				FileID:       f.ID.String(),
				OriginalName: f.OriginalFileName,
				Source:       "vault",
				ProgressID:   p.ID.String(),
				Status:       domprogress.StatusInProgress,
			}
			if _, err := s.jobs.Enqueue(inner, EnqueueRequest{
				OwnerUserID: userID,
				JobType:     domjobs.TypePageTool,
				EntityType:  "progress",
				EntityID:    &p.ID,
				Delay:       time.Duration(i) * batchStagger,
				Payload: map[string]any{
					"progress_id": p.ID.String(),
					"file_id":     f.ID.String(),
					"tool":        summarizer.Name,
				},
			}); err != nil {
				return err
			}
		}
		b, err := json.Marshal(specs)
		if err != nil {
			return err
		}
		batch.FilesJSON = datatypes.JSON(b)
		return s.r.Batch.Create(inner, batch)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Summarizer batch started", "batch_id", batch.ID, "files", len(specs))
	return &BatchView{BatchID: batch.ID.String(), Files: specs}, nil
}

func (s *batchService) Progress(dbc dbctx.Context, userID string, batchID uuid.UUID) (*BatchView, error) {
	batch, err := s.r.Batch.Get(dbc, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil || (batch.UserID != "" && batch.UserID != userID) {
		return nil, apierr.NotFound("batch_not_found", "Batch not found")
	}
	var specs []domprogress.BatchFile
	if err := json.Unmarshal(batch.FilesJSON, &specs); err != nil {
		return nil, fmt.Errorf("decode batch files: %w", err)
	}

	var lookupErr error
	status, overall := RollupBatch(specs, func(id string) *types.Progress {
		pid, err := uuid.Parse(id)
		if err != nil || lookupErr != nil {
			return nil
		}
		p, err := s.r.Progress.Get(dbc, pid)
		if err != nil {
			lookupErr = fmt.Errorf("load progress %s: %w", pid, err)
			return nil
		}
		return p
	})
	if lookupErr != nil {
		return nil, lookupErr
	}

	b, err := json.Marshal(specs)
	if err != nil {
		return nil, err
	}
	if err := s.r.Batch.UpdateFields(dbc, batch.ID, map[string]interface{}{
		"status":     status,
		"percentage": overall,
		"files_json": datatypes.JSON(b),
	}); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}
	return &BatchView{BatchID: batch.ID.String(), Status: status, Percentage: overall, Files: specs}, nil
}

// RollupBatch refreshes specs in place from lookup and returns the batch
// status and the integer average of the file percentages. A file counts as
// finished when it is completed or at 100%.
func RollupBatch(specs []domprogress.BatchFile, lookup func(progressID string) *types.Progress) (string, int) {
	sum, finished := 0, 0
	for i := range specs {
		if p := lookup(specs[i].ProgressID); p != nil {
			specs[i].Status = p.Status
			specs[i].Percentage = p.Percentage
		}
		sum += specs[i].Percentage
		if specs[i].Status == domprogress.StatusCompleted || specs[i].Percentage >= 100 {
			finished++
		}
	}
	n := len(specs)
	if n == 0 {
		n = 1
	}
	status := domprogress.StatusInProgress
	if finished == len(specs) {
		status = domprogress.StatusCompleted
	}
	return status, sum / n
}
