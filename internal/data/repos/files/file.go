package files

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/scoolish-backend/internal/domain"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

type FileRepo interface {
	// Create returns ErrDuplicate when the user already stored the same hash.
	Create(dbc dbctx.Context, f *types.UploadedFile) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.UploadedFile, error)
	GetByHash(dbc dbctx.Context, userID, hash string) (*types.UploadedFile, error)
	// FindByName resolves a stored name first, then an original name. An
	// empty userID searches every user's files.
	FindByName(dbc dbctx.Context, userID, name string) (*types.UploadedFile, error)
	ListByUser(dbc dbctx.Context, userID string) ([]*types.UploadedFile, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type fileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFileRepo(db *gorm.DB, baseLog *logger.Logger) FileRepo {
	return &fileRepo{db: db, log: baseLog.With("repo", "FileRepo")}
}

func (r *fileRepo) Create(dbc dbctx.Context, f *types.UploadedFile) error {
	err := dbc.DB(r.db).Create(f).Error
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: file hash", ErrDuplicate)
	}
	return err
}

func (r *fileRepo) first(dbc dbctx.Context, query string, args ...interface{}) (*types.UploadedFile, error) {
	var f types.UploadedFile
	err := dbc.DB(r.db).Where(query, args...).Order("created_at DESC").Limit(1).Find(&f).Error
	if err != nil {
		return nil, err
	}
	if f.ID == uuid.Nil {
		return nil, nil
	}
	return &f, nil
}

func (r *fileRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.UploadedFile, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc, "id = ?", id)
}

func (r *fileRepo) GetByHash(dbc dbctx.Context, userID, hash string) (*types.UploadedFile, error) {
	if hash == "" {
		return nil, nil
	}
	return r.first(dbc, "user_id = ? AND hash = ?", userID, hash)
}

func (r *fileRepo) FindByName(dbc dbctx.Context, userID, name string) (*types.UploadedFile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	for _, col := range []string{"stored_file_name", "original_file_name"} {
		q, args := col+" = ?", []interface{}{name}
		if userID != "" {
			q += " AND user_id = ?"
			args = append(args, userID)
		}
		f, err := r.first(dbc, q, args...)
		if err != nil || f != nil {
			return f, err
		}
	}
	return nil, nil
}

func (r *fileRepo) ListByUser(dbc dbctx.Context, userID string) ([]*types.UploadedFile, error) {
	out := []*types.UploadedFile{}
	err := dbc.DB(r.db).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *fileRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.DB(r.db).Model(&types.UploadedFile{}).Where("id = ?", id).Updates(updates).Error
}
