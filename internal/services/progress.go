package services

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	types "github.com/yungbote/scoolish-backend/internal/domain"
	"github.com/yungbote/scoolish-backend/internal/platform/apierr"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

// ProgressView is the wire shape of a progress row.
func ProgressView(p *types.Progress) map[string]any {
	if p == nil {
		return nil
	}
	var fileID any
	if p.FileID != nil {
		fileID = p.FileID.String()
	}
	return map[string]any{
		"progress_id": p.ID.String(),
		"file_id":     fileID,
		"tool":        p.Tool,
		"status":      p.Status,
		"percentage":  p.Percentage,
		"updated_at":  p.UpdatedAt,
	}
}

type ProgressService interface {
	// Get returns the row when it belongs to userID. Rows created before a
	// user was known (empty owner) are readable by anyone holding the id.
	Get(dbc dbctx.Context, userID string, id uuid.UUID) (*types.Progress, error)
	ListActive(dbc dbctx.Context, userID string) ([]map[string]any, error)
	Overview(dbc dbctx.Context, userID string) ([]map[string]any, error)
}

type progressService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.ProgressRepo
}

func NewProgressService(db *gorm.DB, baseLog *logger.Logger, repo repos.ProgressRepo) ProgressService {
	return &progressService{db: db, log: baseLog.With("service", "ProgressService"), repo: repo}
}

func (s *progressService) Get(dbc dbctx.Context, userID string, id uuid.UUID) (*types.Progress, error) {
	p, err := s.repo.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	if p == nil || (p.UserID != "" && userID != "" && p.UserID != userID) {
		return nil, apierr.NotFound("progress_not_found", "progress %s not found", id)
	}
	return p, nil
}

func (s *progressService) ListActive(dbc dbctx.Context, userID string) ([]map[string]any, error) {
	rows, err := s.repo.ListActiveByUser(dbc, userID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		v := ProgressView(r.Progress)
		v["file_name"] = r.FileName
		out = append(out, v)
	}
	return out, nil
}

func (s *progressService) Overview(dbc dbctx.Context, userID string) ([]map[string]any, error) {
	rows, err := s.repo.LatestPerTool(dbc, userID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(rows))
	for _, p := range rows {
		out = append(out, ProgressView(p))
	}
	return out, nil
}
