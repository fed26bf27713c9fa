package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	types "github.com/yungbote/scoolish-backend/internal/domain"
	domjobs "github.com/yungbote/scoolish-backend/internal/domain/jobs"
	domprogress "github.com/yungbote/scoolish-backend/internal/domain/progress"
	"github.com/yungbote/scoolish-backend/internal/platform/apierr"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

type PageToolStart struct {
	FileID   string
	Filename string
	Force    bool
	Options  tools.Options
}

type ToolService interface {
	IsPageTool(name string) bool
	IsDocTool(name string) bool
	// StartPageTool creates the progress row for tool over the file's pages
	// and queues the fan-out job.
	StartPageTool(dbc dbctx.Context, userID, tool string, in PageToolStart) (*types.Progress, error)
	PageResults(dbc dbctx.Context, userID, tool, fileID string, opts tools.Options) (map[string]any, error)
	StartDocTool(dbc dbctx.Context, userID, tool string, req tools.DocRequest) (*types.Progress, error)
	// DocResult returns the stored result of tool's run once it completed.
	DocResult(dbc dbctx.Context, userID, tool string, progressID uuid.UUID) (json.RawMessage, error)
}

type toolService struct {
	db        *gorm.DB
	log       *logger.Logger
	pageTools *tools.Registry
	docTools  map[string]tools.DocTool
	files     FileService
	progress  ProgressService
	jobs      JobService
	r         repos.Repos
}

func NewToolService(db *gorm.DB, baseLog *logger.Logger, pageTools *tools.Registry, docTools []tools.DocTool, r repos.Repos, files FileService, progress ProgressService, jobs JobService) ToolService {
	m := make(map[string]tools.DocTool, len(docTools))
	for _, t := range docTools {
		m[t.Name()] = t
	}
	return &toolService{
		db:        db,
		log:       baseLog.With("service", "ToolService"),
		pageTools: pageTools,
		docTools:  m,
		files:     files,
		progress:  progress,
		jobs:      jobs,
		r:         r,
	}
}

func (s *toolService) IsPageTool(name string) bool {
	_, err := s.pageTools.Get(name)
	return err == nil
}

func (s *toolService) IsDocTool(name string) bool {
	_, ok := s.docTools[name]
	return ok
}

func (s *toolService) StartPageTool(dbc dbctx.Context, userID, tool string, in PageToolStart) (*types.Progress, error) {
	if !s.IsPageTool(tool) {
		return nil, apierr.NotFound("unknown_tool", "unknown tool %q", tool)
	}
	f, err := s.files.Resolve(dbc, userID, in.FileID, in.Filename)
	if err != nil {
		return nil, err
	}
	n, err := s.r.Page.Count(dbc, f.ID)
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}
	if n == 0 {
		return nil, apierr.NotFound("no_pages", "No pages for file_id")
	}
	return s.queue(dbc, userID, tool, &f.ID, domjobs.TypePageTool, map[string]any{
		"file_id": f.ID.String(),
		"tool":    tool,
		"force":   in.Force,
		"options": in.Options,
	})
}

// queue creates an in-progress row and its job in one transaction. The
// payload gains the new progress_id.
func (s *toolService) queue(dbc dbctx.Context, userID, tool string, fileID *uuid.UUID, jobType string, payload map[string]any) (*types.Progress, error) {
	p := &types.Progress{UserID: userID, FileID: fileID, Tool: tool, Status: domprogress.StatusInProgress}
	err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		if err := s.r.Progress.Create(inner, p); err != nil {
			return fmt.Errorf("create progress: %w", err)
		}
		payload["progress_id"] = p.ID.String()
		_, err := s.jobs.Enqueue(inner, EnqueueRequest{
			OwnerUserID: userID,
			JobType:     jobType,
			EntityType:  "progress",
			EntityID:    &p.ID,
			Payload:     payload,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("Tool run queued", "tool", tool, "progress_id", p.ID, "user_id", userID)
	return p, nil
}

func (s *toolService) PageResults(dbc dbctx.Context, userID, tool, fileID string, opts tools.Options) (map[string]any, error) {
	pt, err := s.pageTools.Get(tool)
	if err != nil {
		return nil, apierr.NotFound("unknown_tool", "unknown tool %q", tool)
	}
	if strings.TrimSpace(fileID) == "" {
		return nil, apierr.BadRequest("missing_file_id", "file_id is required")
	}
	f, err := s.files.Resolve(dbc, userID, fileID, "")
	if err != nil {
		return nil, err
	}
	stored, err := s.r.Page.ListByFile(dbc, f.ID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	results, err := s.r.PageResult.ListByFileTool(dbc, f.ID, tool)
	if err != nil {
		return nil, fmt.Errorf("list page results: %w", err)
	}
	byPage := make(map[int]json.RawMessage, len(results))
	for _, r := range results {
		byPage[r.PageNumber] = json.RawMessage(r.Result)
	}
	pages := make([]tools.Page, len(stored))
	for i, pg := range stored {
		pages[i] = tools.Page{Number: pg.PageNumber, Text: pg.PageText, Result: byPage[pg.PageNumber]}
	}
	return pt.Results(dbc.Ctx, f.ID.String(), pages, opts)
}

func (s *toolService) StartDocTool(dbc dbctx.Context, userID, tool string, req tools.DocRequest) (*types.Progress, error) {
	dt, ok := s.docTools[tool]
	if !ok {
		return nil, apierr.NotFound("unknown_tool", "unknown tool %q", tool)
	}
	if err := dt.Validate(&req); err != nil {
		if errors.Is(err, tools.ErrInvalidRequest) {
			return nil, apierr.New(http.StatusBadRequest, "invalid_request",
				fmt.Errorf("%w: %s", apierr.ErrInvalidArgument, strings.TrimPrefix(err.Error(), tools.ErrInvalidRequest.Error()+": ")))
		}
		return nil, err
	}
	var fileID *uuid.UUID
	if req.Method == tools.MethodDocument {
		f, err := s.files.Resolve(dbc, userID, req.FileID, req.Filename)
		if err != nil {
			return nil, err
		}
		n, err := s.r.Page.Count(dbc, f.ID)
		if err != nil {
			return nil, fmt.Errorf("count pages: %w", err)
		}
		if n == 0 {
			return nil, apierr.NotFound("no_pages", "No pages for file_id")
		}
		req.FileID, req.Filename = f.ID.String(), ""
		fileID = &f.ID
	}
	return s.queue(dbc, userID, tool, fileID, domjobs.TypeDocTool, map[string]any{
		"tool":    tool,
		"request": req,
	})
}

func (s *toolService) DocResult(dbc dbctx.Context, userID, tool string, progressID uuid.UUID) (json.RawMessage, error) {
	p, err := s.progress.Get(dbc, userID, progressID)
	if err != nil {
		return nil, err
	}
	if p.Tool != tool {
		return nil, apierr.NotFound("progress_not_found", "progress %s not found", progressID)
	}
	if p.Status != domprogress.StatusCompleted || len(p.ResultJSON) == 0 {
		return nil, apierr.NotFound("result_not_ready", "Result not ready")
	}
	return json.RawMessage(p.ResultJSON), nil
}
