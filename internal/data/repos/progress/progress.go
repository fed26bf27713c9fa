package progress

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/scoolish-backend/internal/domain"
	domprogress "github.com/yungbote/scoolish-backend/internal/domain/progress"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

const unknownFileName = "Unknown"

// ActiveRow is an in-progress row joined with its file's original name.
type ActiveRow struct {
	*types.Progress
	FileName string
}

type ProgressRepo interface {
	Create(dbc dbctx.Context, p *types.Progress) error
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Progress, error)
	// Bump merges pct into the row as max(percentage, pct). Terminal rows are
	// left untouched; the returned bool reports whether a row matched.
	Bump(dbc dbctx.Context, id uuid.UUID, pct int) (bool, error)
	// Finish moves an in-progress row to a terminal status, optionally
	// setting the percentage.
	Finish(dbc dbctx.Context, id uuid.UUID, status string, pct *int) (bool, error)
	SetResult(dbc dbctx.Context, id uuid.UUID, result datatypes.JSON) error
	ListActiveByUser(dbc dbctx.Context, userID string) ([]ActiveRow, error)
	LatestPerTool(dbc dbctx.Context, userID string) ([]*types.Progress, error)
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	return &progressRepo{db: db, log: baseLog.With("repo", "ProgressRepo")}
}

func clamp(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func (r *progressRepo) Create(dbc dbctx.Context, p *types.Progress) error {
	p.Percentage = clamp(p.Percentage)
	return dbc.DB(r.db).Create(p).Error
}

func (r *progressRepo) Get(dbc dbctx.Context, id uuid.UUID) (*types.Progress, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var p types.Progress
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&p).Error; err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, nil
	}
	return &p, nil
}

func (r *progressRepo) Bump(dbc dbctx.Context, id uuid.UUID, pct int) (bool, error) {
	pct = clamp(pct)
	res := dbc.DB(r.db).
		Model(&types.Progress{}).
		Where("id = ? AND status = ?", id, domprogress.StatusInProgress).
		Updates(map[string]interface{}{
			"percentage": gorm.Expr("CASE WHEN percentage < ? THEN ? ELSE percentage END", pct, pct),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *progressRepo) Finish(dbc dbctx.Context, id uuid.UUID, status string, pct *int) (bool, error) {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if pct != nil {
		updates["percentage"] = clamp(*pct)
	}
	res := dbc.DB(r.db).
		Model(&types.Progress{}).
		Where("id = ? AND status = ?", id, domprogress.StatusInProgress).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *progressRepo) SetResult(dbc dbctx.Context, id uuid.UUID, result datatypes.JSON) error {
	return dbc.DB(r.db).
		Model(&types.Progress{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"result_json": result,
			"updated_at":  time.Now(),
		}).Error
}

func (r *progressRepo) ListActiveByUser(dbc dbctx.Context, userID string) ([]ActiveRow, error) {
	var rows []*types.Progress
	err := dbc.DB(r.db).
		Where("user_id = ? AND status = ?", userID, domprogress.StatusInProgress).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	fileIDs := []uuid.UUID{}
	for _, p := range rows {
		if p.FileID != nil {
			fileIDs = append(fileIDs, *p.FileID)
		}
	}
	names := map[uuid.UUID]string{}
	if len(fileIDs) > 0 {
		var fs []*types.UploadedFile
		if err := dbc.DB(r.db).Where("id IN ?", fileIDs).Find(&fs).Error; err != nil {
			return nil, err
		}
		for _, f := range fs {
			names[f.ID] = f.OriginalFileName
		}
	}

	out := make([]ActiveRow, 0, len(rows))
	for _, p := range rows {
		name := unknownFileName
		if p.FileID != nil {
			if n, ok := names[*p.FileID]; ok && n != "" {
				name = n
			}
		}
		out = append(out, ActiveRow{Progress: p, FileName: name})
	}
	return out, nil
}

func (r *progressRepo) LatestPerTool(dbc dbctx.Context, userID string) ([]*types.Progress, error) {
	var rows []*types.Progress
	err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := []*types.Progress{}
	for _, p := range rows {
		if seen[p.Tool] {
			continue
		}
		seen[p.Tool] = true
		out = append(out, p)
	}
	return out, nil
}
