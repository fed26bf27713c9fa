package pages

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	types "github.com/yungbote/scoolish-backend/internal/domain"
	domprogress "github.com/yungbote/scoolish-backend/internal/domain/progress"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

// ProgressStore is the slice of the progress repository a Tracker writes to.
type ProgressStore interface {
	Get(dbc dbctx.Context, id uuid.UUID) (*types.Progress, error)
	Bump(dbc dbctx.Context, id uuid.UUID, pct int) (bool, error)
	Finish(dbc dbctx.Context, id uuid.UUID, status string, pct *int) (bool, error)
}

type ProgressNotifier interface {
	ProgressUpdated(userID string, p *types.Progress)
	ProgressCompleted(userID string, p *types.Progress)
	ProgressFailed(userID string, p *types.Progress)
}

// Tracker turns per-unit completions into progress-row writes. Bumps are
// max-merged by the store, so completions arriving out of order never
// lower the stored percentage.
type Tracker struct {
	store      ProgressStore
	notify     ProgressNotifier
	log        *logger.Logger
	progressID uuid.UUID
	userID     string
	total      int64
	done       atomic.Int64
	failed     atomic.Int64
}

func NewTracker(store ProgressStore, notify ProgressNotifier, log *logger.Logger, progressID uuid.UUID, userID string, total int) *Tracker {
	if log == nil {
		log = logger.Nop()
	}
	return &Tracker{
		store:      store,
		notify:     notify,
		log:        log.With("progress_id", progressID),
		progressID: progressID,
		userID:     userID,
		total:      int64(total),
	}
}

// Start completes the row at once when there is nothing to process.
func (t *Tracker) Start(ctx context.Context) error {
	if t.total > 0 {
		return nil
	}
	return t.finish(ctx, domprogress.StatusCompleted)
}

// Done records one processed unit. Failed units still count toward the
// total; the row completes when the last unit lands.
func (t *Tracker) Done(ctx context.Context, ok bool) error {
	if !ok {
		t.failed.Add(1)
	}
	n := t.done.Add(1)
	if t.total <= 0 {
		return nil
	}
	if n >= t.total {
		if n == t.total {
			return t.finish(ctx, domprogress.StatusCompleted)
		}
		return nil
	}
	pct := int(n * 100 / t.total)
	changed, err := t.store.Bump(dbctx.New(ctx), t.progressID, pct)
	if err != nil {
		t.log.Warn("Progress bump failed", "pct", pct, "error", err)
		return err
	}
	if changed {
		t.emit(ctx, t.notifyUpdated)
	}
	return nil
}

// Fail flips the row to failed. A row that already finished stays as it is.
func (t *Tracker) Fail(ctx context.Context) error {
	return t.finish(ctx, domprogress.StatusFailed)
}

func (t *Tracker) Processed() int { return int(t.done.Load()) }
func (t *Tracker) Failed() int    { return int(t.failed.Load()) }

func (t *Tracker) finish(ctx context.Context, status string) error {
	var pct *int
	if status == domprogress.StatusCompleted {
		full := 100
		pct = &full
	}
	changed, err := t.store.Finish(dbctx.New(ctx), t.progressID, status, pct)
	if err != nil {
		t.log.Warn("Progress finish failed", "status", status, "error", err)
		return err
	}
	if !changed {
		return nil
	}
	if status == domprogress.StatusCompleted {
		t.emit(ctx, t.notifyCompleted)
	} else {
		t.emit(ctx, t.notifyFailed)
	}
	return nil
}

func (t *Tracker) emit(ctx context.Context, send func(*types.Progress)) {
	if t.notify == nil {
		return
	}
	p, err := t.store.Get(dbctx.New(ctx), t.progressID)
	if err != nil || p == nil {
		return
	}
	send(p)
}

func (t *Tracker) notifyUpdated(p *types.Progress)   { t.notify.ProgressUpdated(t.userID, p) }
func (t *Tracker) notifyCompleted(p *types.Progress) { t.notify.ProgressCompleted(t.userID, p) }
func (t *Tracker) notifyFailed(p *types.Progress)    { t.notify.ProgressFailed(t.userID, p) }
