package services

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	types "github.com/yungbote/scoolish-backend/internal/domain"
	domfiles "github.com/yungbote/scoolish-backend/internal/domain/files"
	domjobs "github.com/yungbote/scoolish-backend/internal/domain/jobs"
	"github.com/yungbote/scoolish-backend/internal/ingestion/extractor"
	"github.com/yungbote/scoolish-backend/internal/platform/apierr"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/gcp"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

var fileTypes = map[string]string{
	".pdf":  domfiles.TypeDocument,
	".docx": domfiles.TypeDocument,
	".txt":  domfiles.TypeDocument,
	".mp3":  domfiles.TypeAudio,
	".wav":  domfiles.TypeAudio,
	".m4a":  domfiles.TypeAudio,
	".mp4":  domfiles.TypeVideo,
	".avi":  domfiles.TypeVideo,
	".mov":  domfiles.TypeVideo,
	".png":  domfiles.TypeImage,
	".jpg":  domfiles.TypeImage,
	".jpeg": domfiles.TypeImage,
}

// FileTypeFor maps an upload name to its file type by extension.
func FileTypeFor(name string) (string, bool) {
	t, ok := fileTypes[strings.ToLower(filepath.Ext(name))]
	return t, ok
}

type UploadInput struct {
	UserID   string
	FileName string
	MimeType string
	Data     []byte
}

type FileService interface {
	// Upload stores the blob and the file row and queues extraction. A file
	// the user already uploaded (same sha256) is returned with duplicate set.
	Upload(dbc dbctx.Context, in UploadInput) (f *types.UploadedFile, duplicate bool, err error)
	List(dbc dbctx.Context, userID string) ([]*types.UploadedFile, error)
	Pages(dbc dbctx.Context, userID string, fileID uuid.UUID) ([]*types.FilePage, error)
	// Resolve finds the caller's file by id, or by stored then original name.
	Resolve(dbc dbctx.Context, userID, fileID, filename string) (*types.UploadedFile, error)
}

type fileService struct {
	db     *gorm.DB
	log    *logger.Logger
	bucket gcp.BucketService
	files  repos.FileRepo
	pages  repos.PageRepo
	jobs   JobService
	now    func() time.Time
}

func NewFileService(db *gorm.DB, baseLog *logger.Logger, bucket gcp.BucketService, r repos.Repos, jobs JobService) FileService {
	return &fileService{
		db:     db,
		log:    baseLog.With("service", "FileService"),
		bucket: bucket,
		files:  r.File,
		pages:  r.Page,
		jobs:   jobs,
		now:    time.Now,
	}
}

func (s *fileService) Upload(dbc dbctx.Context, in UploadInput) (*types.UploadedFile, bool, error) {
	name := filepath.Base(strings.TrimSpace(in.FileName))
	if name == "" || name == "." || name == "/" {
		return nil, false, apierr.BadRequest("missing_file", "No file part")
	}
	fileType, ok := FileTypeFor(name)
	if !ok {
		return nil, false, apierr.BadRequest("unsupported_file_type", "unsupported file type %q", filepath.Ext(name))
	}
	if len(in.Data) == 0 {
		return nil, false, apierr.BadRequest("empty_file", "file is empty")
	}

	sum := sha256.Sum256(in.Data)
	hash := hex.EncodeToString(sum[:])
	if existing, err := s.files.GetByHash(dbc, in.UserID, hash); err != nil {
		return nil, false, fmt.Errorf("lookup hash: %w", err)
	} else if existing != nil {
		return existing, true, nil
	}

	stored := StoredName(name, s.now())
	f := &types.UploadedFile{
		UserID:           in.UserID,
		OriginalFileName: name,
		StoredFileName:   stored,
		FilePath:         in.UserID + "/uploads/" + stored,
		FileType:         fileType,
		MimeType:         in.MimeType,
		SizeBytes:        int64(len(in.Data)),
		Status:           domfiles.StatusPending,
		Hash:             &hash,
	}
	if extractor.ClassifyKind(name, in.MimeType) == extractor.KindPDF {
		if n, err := extractor.PageCount(in.Data); err != nil {
			s.log.Warn("PDF page count failed", "name", name, "error", err)
		} else {
			f.TotalPages = &n
		}
	}

	if err := s.bucket.Upload(dbc.Ctx, f.FilePath, bytes.NewReader(in.Data)); err != nil {
		return nil, false, fmt.Errorf("upload blob: %w", err)
	}

	err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		if err := s.files.Create(inner, f); err != nil {
			return err
		}
		_, err := s.jobs.Enqueue(inner, EnqueueRequest{
			OwnerUserID: in.UserID,
			JobType:     domjobs.TypeFileExtract,
			EntityType:  "file",
			EntityID:    &f.ID,
			Payload:     map[string]any{"file_id": f.ID.String()},
		})
		return err
	})
	if err != nil {
		_ = s.bucket.Delete(dbc.Ctx, f.FilePath)
		if errors.Is(err, repos.ErrDuplicate) {
			existing, lerr := s.files.GetByHash(dbc, in.UserID, hash)
			if lerr == nil && existing != nil {
				return existing, true, nil
			}
		}
		return nil, false, fmt.Errorf("save file: %w", err)
	}
	s.log.Info("File uploaded", "file_id", f.ID, "type", fileType, "bytes", f.SizeBytes)
	return f, false, nil
}

func (s *fileService) List(dbc dbctx.Context, userID string) ([]*types.UploadedFile, error) {
	return s.files.ListByUser(dbc, userID)
}

func (s *fileService) Pages(dbc dbctx.Context, userID string, fileID uuid.UUID) ([]*types.FilePage, error) {
	f, err := s.files.GetByID(dbc, fileID)
	if err != nil {
		return nil, err
	}
	if f == nil || f.UserID != userID {
		return nil, apierr.NotFound("file_not_found", "file %s not found", fileID)
	}
	return s.pages.ListByFile(dbc, fileID)
}

func (s *fileService) Resolve(dbc dbctx.Context, userID, fileID, filename string) (*types.UploadedFile, error) {
	fileID, filename = strings.TrimSpace(fileID), strings.TrimSpace(filename)
	var (
		f   *types.UploadedFile
		err error
	)
	switch {
	case fileID != "":
		id, perr := uuid.Parse(fileID)
		if perr != nil {
			return nil, apierr.BadRequest("invalid_file_id", "invalid file_id %q", fileID)
		}
		f, err = s.files.GetByID(dbc, id)
		if f != nil && f.UserID != userID {
			f = nil
		}
	case filename != "":
		f, err = s.files.FindByName(dbc, userID, filename)
	default:
		return nil, apierr.BadRequest("missing_file", "file_id or filename is required")
	}
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	if f == nil {
		return nil, apierr.NotFound("file_not_found", "File not found")
	}
	return f, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// StoredName is {YYYYmmddHHMMSS}_{uuid hex}_{sanitized original}.
func StoredName(original string, at time.Time) string {
	safe := strings.Trim(unsafeFileChars.ReplaceAllString(original, "_"), "_")
	if safe == "" {
		safe = "file"
	}
	return fmt.Sprintf("%s_%s_%s", at.UTC().Format("20060102150405"),
		strings.ReplaceAll(uuid.NewString(), "-", ""), safe)
}
