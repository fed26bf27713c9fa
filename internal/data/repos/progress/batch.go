package progress

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/scoolish-backend/internal/domain"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

type BatchJobRepo interface {
	Create(dbc dbctx.Context, b *types.BatchJob) error
	Get(dbc dbctx.Context, id uuid.UUID) (*types.BatchJob, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type batchJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchJobRepo(db *gorm.DB, baseLog *logger.Logger) BatchJobRepo {
	return &batchJobRepo{db: db, log: baseLog.With("repo", "BatchJobRepo")}
}

func (r *batchJobRepo) Create(dbc dbctx.Context, b *types.BatchJob) error {
	return dbc.DB(r.db).Create(b).Error
}

func (r *batchJobRepo) Get(dbc dbctx.Context, id uuid.UUID) (*types.BatchJob, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var b types.BatchJob
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&b).Error; err != nil {
		return nil, err
	}
	if b.ID == uuid.Nil {
		return nil, nil
	}
	return &b, nil
}

func (r *batchJobRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.DB(r.db).Model(&types.BatchJob{}).Where("id = ?", id).Updates(updates).Error
}
