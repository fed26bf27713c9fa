package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	types "github.com/yungbote/scoolish-backend/internal/domain"
	domfiles "github.com/yungbote/scoolish-backend/internal/domain/files"
	domjobs "github.com/yungbote/scoolish-backend/internal/domain/jobs"
	"github.com/yungbote/scoolish-backend/internal/ingestion/extractor"
	"github.com/yungbote/scoolish-backend/internal/jobs/runtime"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

type Extractor interface {
	Extract(ctx context.Context, f *types.UploadedFile) (*extractor.Result, error)
}

// FileExtract downloads an upload, turns it into page texts and stores
// them, moving the file pending -> processing -> ready|failed.
type FileExtract struct {
	log   *logger.Logger
	ex    Extractor
	files repos.FileRepo
	pages repos.PageRepo
}

func NewFileExtract(log *logger.Logger, ex Extractor, r repos.Repos) *FileExtract {
	return &FileExtract{
		log:   log.With("job", domjobs.TypeFileExtract),
		ex:    ex,
		files: r.File,
		pages: r.Page,
	}
}

func (h *FileExtract) Type() string { return domjobs.TypeFileExtract }

func (h *FileExtract) Run(jc *runtime.Context) error {
	fileID, ok := jc.PayloadUUID("file_id")
	if !ok {
		return runtime.Permanent(fmt.Errorf("missing file_id"))
	}
	dbc := dbctx.New(jc.Ctx)
	f, err := h.files.GetByID(dbc, fileID)
	if err != nil {
		return fmt.Errorf("load file: %w", err)
	}
	if f == nil {
		return runtime.Permanent(fmt.Errorf("file %s not found", fileID))
	}
	log := h.log.With("file_id", f.ID, "name", f.OriginalFileName)

	if err := h.setStatus(dbc, f.ID, domfiles.StatusProcessing, ""); err != nil {
		return err
	}
	jc.Progress("extract", 10, "Extracting text")

	res, err := h.ex.Extract(jc.Ctx, f)
	if err != nil {
		if errors.Is(err, extractor.ErrUnsupported) {
			err = runtime.Permanent(err)
		}
		return h.fail(jc, dbc, f.ID, err)
	}

	jc.Progress("store", 80, fmt.Sprintf("Storing %d pages", len(res.Pages)))
	if _, err := h.pages.Replace(dbc, f.ID, res.Pages); err != nil {
		return h.fail(jc, dbc, f.ID, fmt.Errorf("store pages: %w", err))
	}
	n := len(res.Pages)
	if err := h.files.UpdateFields(dbc, f.ID, map[string]interface{}{
		"status":      domfiles.StatusReady,
		"total_pages": n,
		"error":       "",
		"updated_at":  time.Now(),
	}); err != nil {
		return fmt.Errorf("mark file ready: %w", err)
	}
	if len(res.Warnings) > 0 {
		log.Warn("Extraction finished with warnings", "warnings", res.Warnings)
	}
	log.Info("File extracted", "kind", res.Kind, "pages", n)
	jc.Succeed("done", map[string]any{"file_id": f.ID, "kind": res.Kind, "pages": n, "warnings": res.Warnings})
	return nil
}

// fail records the error on the file only once no retry will follow, so a
// retrying file stays in processing.
func (h *FileExtract) fail(jc *runtime.Context, dbc dbctx.Context, id uuid.UUID, err error) error {
	if jc.Terminal(err) {
		if uerr := h.setStatus(dbc, id, domfiles.StatusFailed, err.Error()); uerr != nil {
			h.log.Warn("Marking file failed did not persist", "file_id", id, "error", uerr)
		}
	}
	return err
}

func (h *FileExtract) setStatus(dbc dbctx.Context, id uuid.UUID, status, msg string) error {
	if err := h.files.UpdateFields(dbc, id, map[string]interface{}{
		"status":     status,
		"error":      msg,
		"updated_at": time.Now(),
	}); err != nil {
		return fmt.Errorf("set file status %s: %w", status, err)
	}
	return nil
}
