package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	domjobs "github.com/yungbote/scoolish-backend/internal/domain/jobs"
	"github.com/yungbote/scoolish-backend/internal/jobs/pages"
	"github.com/yungbote/scoolish-backend/internal/jobs/runtime"
	"github.com/yungbote/scoolish-backend/internal/observability"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
	"github.com/yungbote/scoolish-backend/internal/tools"
)

type pageToolPayload struct {
	ProgressID string        `json:"progress_id"`
	FileID     string        `json:"file_id"`
	Tool       string        `json:"tool"`
	Force      bool          `json:"force"`
	Options    tools.Options `json:"options"`
}

// PageTool runs one page tool over every page of a file, storing a result
// per page and advancing the file's progress row as pages land.
type PageTool struct {
	log      *logger.Logger
	tools    *tools.Registry
	pages    repos.PageRepo
	results  repos.PageResultRepo
	progress repos.ProgressRepo
	notify   pages.ProgressNotifier
	cfg      pages.RunConfig
}

func NewPageTool(log *logger.Logger, registry *tools.Registry, r repos.Repos, notify pages.ProgressNotifier, cfg pages.RunConfig) *PageTool {
	return &PageTool{
		log:      log.With("job", domjobs.TypePageTool),
		tools:    registry,
		pages:    r.Page,
		results:  r.PageResult,
		progress: r.Progress,
		notify:   notify,
		cfg:      cfg,
	}
}

func (h *PageTool) Type() string { return domjobs.TypePageTool }

func (h *PageTool) Run(jc *runtime.Context) error {
	var p pageToolPayload
	if err := jc.Decode(&p); err != nil {
		return runtime.Permanent(fmt.Errorf("decode payload: %w", err))
	}
	progressID, err := uuid.Parse(p.ProgressID)
	if err != nil {
		return runtime.Permanent(fmt.Errorf("invalid progress_id %q", p.ProgressID))
	}
	fileID, err := uuid.Parse(p.FileID)
	if err != nil {
		return runtime.Permanent(fmt.Errorf("invalid file_id %q", p.FileID))
	}
	log := h.log.With("progress_id", progressID, "file_id", fileID, "tool", p.Tool)

	tracker := pages.NewTracker(h.progress, h.notify, log, progressID, jc.Job.OwnerUserID, 0)
	defer failProgressOnPanic(jc, &tracker)
	fail := func(err error) error {
		if jc.Terminal(err) {
			_ = tracker.Fail(jc.Ctx)
		}
		return err
	}

	tool, err := h.tools.Get(p.Tool)
	if err != nil {
		return fail(runtime.Permanent(err))
	}

	dbc := dbctx.New(jc.Ctx)
	stored, err := h.pages.ListByFile(dbc, fileID)
	if err != nil {
		return fail(fmt.Errorf("list pages: %w", err))
	}
	done, err := h.results.DonePages(dbc, fileID, p.Tool)
	if err != nil {
		return fail(fmt.Errorf("load page results: %w", err))
	}

	tracker = pages.NewTracker(h.progress, h.notify, log, progressID, jc.Job.OwnerUserID, len(stored))
	if len(stored) == 0 {
		if err := tracker.Start(jc.Ctx); err != nil {
			return fail(err)
		}
		jc.Succeed("done", pages.Summary{})
		return nil
	}

	units := make([]pages.Unit, len(stored))
	for i, pg := range stored {
		units[i] = pages.Unit{Number: pg.PageNumber, Text: pg.PageText, Done: done[pg.PageNumber]}
	}

	cfg := h.cfg
	cfg.Log = log
	// Force only applies to the first attempt; a retry keeps what it already
	// recomputed.
	cfg.Force = p.Force && jc.Job.Attempts <= 1
	cfg.OnProcessed = func(ctx context.Context, ok bool) {
		_ = tracker.Done(ctx, ok)
		jc.Heartbeat()
	}

	jc.Progress("pages", 0, fmt.Sprintf("Running %s over %d pages", p.Tool, len(units)))
	total := len(units)
	summary, err := pages.Run(jc.Ctx, cfg, units, func(ctx context.Context, u pages.Unit) error {
		res, err := tool.AnalyzePage(ctx, tools.PageInput{Number: u.Number, Text: u.Text, Total: total, Options: p.Options})
		if err != nil {
			return err
		}
		b, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("encode page %d: %w", u.Number, err)
		}
		return h.results.Upsert(dbctx.New(ctx), fileID, u.Number, p.Tool, datatypes.JSON(b))
	})
	observability.Current().AddPageUnits(p.Tool, summary.Succeeded, summary.Skipped, summary.Failed)
	if err != nil {
		if errors.Is(err, llm.ErrRateLimited) {
			log.Warn("Page tool rate limited; job will retry", "attempt", jc.Job.Attempts, "summary", summary)
		}
		return fail(err)
	}

	log.Info("Page tool finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	jc.Succeed("done", summary)
	return nil
}

// failProgressOnPanic closes the progress row when a handler panics on its
// last attempt, then re-panics for the worker to record the job failure.
func failProgressOnPanic(jc *runtime.Context, tracker **pages.Tracker) {
	r := recover()
	if r == nil {
		return
	}
	if jc.FinalAttempt() && *tracker != nil {
		_ = (*tracker).Fail(jc.Ctx)
	}
	panic(r)
}
