package tasks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	domjobs "github.com/yungbote/scoolish-backend/internal/domain/jobs"
	domprogress "github.com/yungbote/scoolish-backend/internal/domain/progress"
	"github.com/yungbote/scoolish-backend/internal/jobs/pages"
	"github.com/yungbote/scoolish-backend/internal/jobs/runtime"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

type docToolPayload struct {
	ProgressID string           `json:"progress_id"`
	Tool       string           `json:"tool"`
	Request    tools.DocRequest `json:"request"`
}

// DocTool runs a single-shot document tool and stores its JSON on the
// progress row. Progress moves 10 -> 85 -> 100.
type DocTool struct {
	log      *logger.Logger
	tools    map[string]tools.DocTool
	files    repos.FileRepo
	pages    repos.PageRepo
	progress repos.ProgressRepo
	notify   pages.ProgressNotifier
}

func NewDocTool(log *logger.Logger, r repos.Repos, notify pages.ProgressNotifier, ts ...tools.DocTool) *DocTool {
	m := make(map[string]tools.DocTool, len(ts))
	for _, t := range ts {
		m[t.Name()] = t
	}
	return &DocTool{
		log:      log.With("job", domjobs.TypeDocTool),
		tools:    m,
		files:    r.File,
		pages:    r.Page,
		progress: r.Progress,
		notify:   notify,
	}
}

func (h *DocTool) Type() string { return domjobs.TypeDocTool }

func (h *DocTool) Run(jc *runtime.Context) error {
	var p docToolPayload
	if err := jc.Decode(&p); err != nil {
		return runtime.Permanent(fmt.Errorf("decode payload: %w", err))
	}
	progressID, err := uuid.Parse(p.ProgressID)
	if err != nil {
		return runtime.Permanent(fmt.Errorf("invalid progress_id %q", p.ProgressID))
	}
	tracker := pages.NewTracker(h.progress, h.notify, h.log, progressID, jc.Job.OwnerUserID, 1)
	defer failProgressOnPanic(jc, &tracker)
	fail := func(err error) error {
		if jc.Terminal(err) {
			_ = tracker.Fail(jc.Ctx)
		}
		return err
	}

	tool, ok := h.tools[p.Tool]
	if !ok {
		return fail(runtime.Permanent(fmt.Errorf("%w: %s", tools.ErrUnknownTool, p.Tool)))
	}
	dbc := dbctx.New(jc.Ctx)
	h.bump(jc, dbc, progressID, 10)

	req := p.Request
	if req.Method == tools.MethodDocument && strings.TrimSpace(req.Text) == "" {
		text, err := h.documentText(dbc, req.FileID)
		if err != nil {
			return fail(err)
		}
		req.Text = text
	}

	out, err := tool.Run(jc.Ctx, req)
	if err != nil {
		return fail(err)
	}
	h.bump(jc, dbc, progressID, 85)

	b, err := json.Marshal(out)
	if err != nil {
		return fail(runtime.Permanent(fmt.Errorf("encode result: %w", err)))
	}
	if err := h.progress.SetResult(dbc, progressID, datatypes.JSON(b)); err != nil {
		return fail(fmt.Errorf("store result: %w", err))
	}
	if err := tracker.Done(jc.Ctx, true); err != nil {
		return fail(err)
	}
	jc.Succeed("done", map[string]any{"progress_id": progressID, "tool": p.Tool})
	return nil
}

func (h *DocTool) bump(jc *runtime.Context, dbc dbctx.Context, id uuid.UUID, pct int) {
	if _, err := h.progress.Bump(dbc, id, pct); err != nil {
		h.log.Warn("Progress bump failed", "progress_id", id, "pct", pct, "error", err)
	}
	if h.notify != nil {
		if p, err := h.progress.Get(dbc, id); err == nil && p != nil && p.Status == domprogress.StatusInProgress {
			h.notify.ProgressUpdated(jc.Job.OwnerUserID, p)
		}
	}
	jc.Progress("run", pct, "")
}

func (h *DocTool) documentText(dbc dbctx.Context, rawFileID string) (string, error) {
	fileID, err := uuid.Parse(strings.TrimSpace(rawFileID))
	if err != nil {
		return "", runtime.Permanent(fmt.Errorf("invalid file_id %q", rawFileID))
	}
	stored, err := h.pages.ListByFile(dbc, fileID)
	if err != nil {
		return "", fmt.Errorf("list pages: %w", err)
	}
	if len(stored) == 0 {
		return "", runtime.Permanent(fmt.Errorf("no pages for file_id %s", fileID))
	}
	parts := make([]string, 0, len(stored))
	for _, pg := range stored {
		if s := strings.TrimSpace(pg.PageText); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
