package files

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/scoolish-backend/internal/domain"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

type PageRepo interface {
	// Replace swaps the file's pages for texts, numbered from 1.
	Replace(dbc dbctx.Context, fileID uuid.UUID, texts []string) ([]*types.FilePage, error)
	ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.FilePage, error)
	Count(dbc dbctx.Context, fileID uuid.UUID) (int64, error)
}

type pageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPageRepo(db *gorm.DB, baseLog *logger.Logger) PageRepo {
	return &pageRepo{db: db, log: baseLog.With("repo", "PageRepo")}
}

func (r *pageRepo) Replace(dbc dbctx.Context, fileID uuid.UUID, texts []string) ([]*types.FilePage, error) {
	pages := make([]*types.FilePage, 0, len(texts))
	for i, t := range texts {
		pages = append(pages, &types.FilePage{FileID: fileID, PageNumber: i + 1, PageText: t})
	}
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("file_id = ?", fileID).Delete(&types.FilePage{}).Error; err != nil {
			return err
		}
		if len(pages) == 0 {
			return nil
		}
		return txx.CreateInBatches(pages, 200).Error
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

func (r *pageRepo) ListByFile(dbc dbctx.Context, fileID uuid.UUID) ([]*types.FilePage, error) {
	out := []*types.FilePage{}
	err := dbc.DB(r.db).Where("file_id = ?", fileID).Order("page_number ASC").Find(&out).Error
	return out, err
}

func (r *pageRepo) Count(dbc dbctx.Context, fileID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.FilePage{}).Where("file_id = ?", fileID).Count(&n).Error
	return n, err
}

type PageResultRepo interface {
	Upsert(dbc dbctx.Context, fileID uuid.UUID, page int, tool string, result datatypes.JSON) error
	ListByFileTool(dbc dbctx.Context, fileID uuid.UUID, tool string) ([]*types.PageResult, error)
	// DonePages returns the page numbers that already hold a result.
	DonePages(dbc dbctx.Context, fileID uuid.UUID, tool string) (map[int]bool, error)
}

type pageResultRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPageResultRepo(db *gorm.DB, baseLog *logger.Logger) PageResultRepo {
	return &pageResultRepo{db: db, log: baseLog.With("repo", "PageResultRepo")}
}

func (r *pageResultRepo) Upsert(dbc dbctx.Context, fileID uuid.UUID, page int, tool string, result datatypes.JSON) error {
	now := time.Now()
	row := &types.PageResult{
		FileID:     fileID,
		PageNumber: page,
		Tool:       tool,
		Result:     result,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "file_id"}, {Name: "page_number"}, {Name: "tool"}},
		DoUpdates: clause.AssignmentColumns([]string{"result", "updated_at"}),
	}).Create(row).Error
}

func (r *pageResultRepo) ListByFileTool(dbc dbctx.Context, fileID uuid.UUID, tool string) ([]*types.PageResult, error) {
	out := []*types.PageResult{}
	err := dbc.DB(r.db).
		Where("file_id = ? AND tool = ?", fileID, tool).
		Order("page_number ASC").
		Find(&out).Error
	return out, err
}

func (r *pageResultRepo) DonePages(dbc dbctx.Context, fileID uuid.UUID, tool string) (map[int]bool, error) {
	var nums []int
	err := dbc.DB(r.db).
		Model(&types.PageResult{}).
		Where("file_id = ? AND tool = ? AND result IS NOT NULL", fileID, tool).
		Pluck("page_number", &nums).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(nums))
	for _, n := range nums {
		out[n] = true
	}
	return out, nil
}
