package knowledge

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/scoolish-backend/internal/domain"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

type ScrapeJobRepo interface {
	Create(dbc dbctx.Context, jobs []*types.WebScrapeJob) error
	GetForUser(dbc dbctx.Context, userID string, id uuid.UUID) (*types.WebScrapeJob, error)
	ListByUser(dbc dbctx.Context, userID string, limit int) ([]*types.WebScrapeJob, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type scrapeJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScrapeJobRepo(db *gorm.DB, baseLog *logger.Logger) ScrapeJobRepo {
	return &scrapeJobRepo{db: db, log: baseLog.With("repo", "ScrapeJobRepo")}
}

func (r *scrapeJobRepo) Create(dbc dbctx.Context, jobs []*types.WebScrapeJob) error {
	if len(jobs) == 0 {
		return nil
	}
	return dbc.DB(r.db).Create(&jobs).Error
}

func (r *scrapeJobRepo) GetForUser(dbc dbctx.Context, userID string, id uuid.UUID) (*types.WebScrapeJob, error) {
	var j types.WebScrapeJob
	err := dbc.DB(r.db).Where("id = ? AND user_id = ?", id, userID).Limit(1).Find(&j).Error
	if err != nil {
		return nil, err
	}
	if j.ID == uuid.Nil {
		return nil, nil
	}
	return &j, nil
}

func (r *scrapeJobRepo) ListByUser(dbc dbctx.Context, userID string, limit int) ([]*types.WebScrapeJob, error) {
	if limit <= 0 {
		limit = 100
	}
	out := []*types.WebScrapeJob{}
	err := dbc.DB(r.db).Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *scrapeJobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.DB(r.db).Model(&types.WebScrapeJob{}).Where("id = ?", id).Updates(updates).Error
}

type KnowledgeItemRepo interface {
	Create(dbc dbctx.Context, k *types.KnowledgeItem) error
	GetForUser(dbc dbctx.Context, userID string, id uuid.UUID) (*types.KnowledgeItem, error)
	ListByUser(dbc dbctx.Context, userID string, limit int) ([]*types.KnowledgeItem, error)
}

type knowledgeItemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewKnowledgeItemRepo(db *gorm.DB, baseLog *logger.Logger) KnowledgeItemRepo {
	return &knowledgeItemRepo{db: db, log: baseLog.With("repo", "KnowledgeItemRepo")}
}

func (r *knowledgeItemRepo) Create(dbc dbctx.Context, k *types.KnowledgeItem) error {
	return dbc.DB(r.db).Create(k).Error
}

func (r *knowledgeItemRepo) GetForUser(dbc dbctx.Context, userID string, id uuid.UUID) (*types.KnowledgeItem, error) {
	var k types.KnowledgeItem
	err := dbc.DB(r.db).Where("id = ? AND user_id = ?", id, userID).Limit(1).Find(&k).Error
	if err != nil {
		return nil, err
	}
	if k.ID == uuid.Nil {
		return nil, nil
	}
	return &k, nil
}

func (r *knowledgeItemRepo) ListByUser(dbc dbctx.Context, userID string, limit int) ([]*types.KnowledgeItem, error) {
	if limit <= 0 {
		limit = 100
	}
	out := []*types.KnowledgeItem{}
	err := dbc.DB(r.db).
		Where("user_id = ? AND saved = ?", userID, true).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
