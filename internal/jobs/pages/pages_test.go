package pages

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/scoolish-backend/internal/data/repos"
	"github.com/yungbote/scoolish-backend/internal/data/repos/testutil"
	types "github.com/yungbote/scoolish-backend/internal/domain"
	domprogress "github.com/yungbote/scoolish-backend/internal/domain/progress"
	"github.com/yungbote/scoolish-backend/internal/platform/dbctx"
	"github.com/yungbote/scoolish-backend/internal/platform/llm"
)

func units(n int) []Unit {
	out := make([]Unit, n)
	for i := range out {
		out[i] = Unit{Number: i + 1, Text: fmt.Sprintf("page %d", i+1)}
	}
	return out
}

func TestRunBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	fn := func(ctx context.Context, u Unit) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	}
	sum, err := Run(context.Background(), RunConfig{Concurrency: 2}, units(8), fn)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Total != 8 || sum.Succeeded != 8 {
		t.Fatalf("summary: %+v", sum)
	}
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency: want<=2 got=%d", peak.Load())
	}
}

func TestRunStaggersStarts(t *testing.T) {
	var mu sync.Mutex
	started := map[int]time.Duration{}
	begin := time.Now()
	fn := func(ctx context.Context, u Unit) error {
		mu.Lock()
		started[u.Number] = time.Since(begin)
		mu.Unlock()
		return nil
	}
	stagger := 20 * time.Millisecond
	if _, err := Run(context.Background(), RunConfig{Concurrency: 4, Stagger: stagger}, units(4), fn); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for n, at := range started {
		if earliest := time.Duration(n-1) * stagger; at < earliest {
			t.Fatalf("page %d started at %v, want >= %v", n, at, earliest)
		}
	}
}

func TestRunSkipsDoneUnlessForced(t *testing.T) {
	in := units(3)
	in[1].Done = true

	var ran []int
	var mu sync.Mutex
	fn := func(ctx context.Context, u Unit) error {
		mu.Lock()
		ran = append(ran, u.Number)
		mu.Unlock()
		return nil
	}
	var processed atomic.Int64
	cfg := RunConfig{Concurrency: 1, OnProcessed: func(context.Context, bool) { processed.Add(1) }}

	sum, err := Run(context.Background(), cfg, in, fn)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Skipped != 1 || sum.Succeeded != 2 || len(ran) != 2 {
		t.Fatalf("summary=%+v ran=%v", sum, ran)
	}
	if processed.Load() != 3 {
		t.Fatalf("processed: want=3 got=%d", processed.Load())
	}

	ran = nil
	cfg.Force = true
	sum, err = Run(context.Background(), cfg, in, fn)
	if err != nil {
		t.Fatalf("forced Run: %v", err)
	}
	if sum.Skipped != 0 || len(ran) != 3 {
		t.Fatalf("forced summary=%+v ran=%v", sum, ran)
	}
}

func TestRunCountsPageErrorsAndContinues(t *testing.T) {
	fn := func(ctx context.Context, u Unit) error {
		if u.Number == 2 {
			return errors.New("bad reply")
		}
		return nil
	}
	var bad atomic.Int64
	cfg := RunConfig{Concurrency: 2, OnProcessed: func(_ context.Context, ok bool) {
		if !ok {
			bad.Add(1)
		}
	}}
	sum, err := Run(context.Background(), cfg, units(4), fn)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed != 1 || sum.Succeeded != 3 || bad.Load() != 1 {
		t.Fatalf("summary=%+v bad=%d", sum, bad.Load())
	}
}

func TestRunRecoversPanickingUnit(t *testing.T) {
	fn := func(ctx context.Context, u Unit) error {
		if u.Number == 3 {
			var m map[string]int
			m["boom"] = 1
		}
		return nil
	}
	var bad atomic.Int64
	cfg := RunConfig{Concurrency: 2, OnProcessed: func(_ context.Context, ok bool) {
		if !ok {
			bad.Add(1)
		}
	}}
	sum, err := Run(context.Background(), cfg, units(4), fn)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed != 1 || sum.Succeeded != 3 || bad.Load() != 1 {
		t.Fatalf("summary=%+v bad=%d", sum, bad.Load())
	}
}

func TestRunAbortsOnRateLimit(t *testing.T) {
	var calls atomic.Int64
	fn := func(ctx context.Context, u Unit) error {
		calls.Add(1)
		if u.Number == 1 {
			return fmt.Errorf("chat: %w", llm.ErrRateLimited)
		}
		return nil
	}
	_, err := Run(context.Background(), RunConfig{Concurrency: 1, Stagger: 10 * time.Millisecond}, units(5), fn)
	if !errors.Is(err, llm.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	if calls.Load() >= 5 {
		t.Fatalf("remaining pages were not canceled: calls=%d", calls.Load())
	}
}

type captureNotifier struct {
	mu        sync.Mutex
	updated   []int
	completed int
	failed    int
}

func (c *captureNotifier) ProgressUpdated(_ string, p *types.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updated = append(c.updated, p.Percentage)
}

func (c *captureNotifier) ProgressCompleted(string, *types.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed++
}

func (c *captureNotifier) ProgressFailed(string, *types.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed++
}

func newTracker(t *testing.T, total int) (*Tracker, repos.ProgressRepo, *types.Progress, *captureNotifier) {
	t.Helper()
	db := testutil.DB(t)
	ctx := context.Background()
	repo := repos.New(db, testutil.Logger(t)).Progress
	p := testutil.SeedProgress(t, ctx, db, "u1", "topics", nil)
	n := &captureNotifier{}
	return NewTracker(repo, n, testutil.Logger(t), p.ID, "u1", total), repo, p, n
}

func TestTrackerCompletesOnLastUnit(t *testing.T) {
	tr, repo, p, n := newTracker(t, 4)
	ctx := context.Background()

	for i, ok := range []bool{true, false, true} {
		if err := tr.Done(ctx, ok); err != nil {
			t.Fatalf("Done %d: %v", i, err)
		}
	}
	got, _ := repo.Get(dbctx.New(ctx), p.ID)
	if got.Status != domprogress.StatusInProgress || got.Percentage != 75 {
		t.Fatalf("after 3/4: status=%q pct=%d", got.Status, got.Percentage)
	}

	if err := tr.Done(ctx, true); err != nil {
		t.Fatalf("Done last: %v", err)
	}
	got, _ = repo.Get(dbctx.New(ctx), p.ID)
	if got.Status != domprogress.StatusCompleted || got.Percentage != 100 {
		t.Fatalf("after 4/4: status=%q pct=%d", got.Status, got.Percentage)
	}
	if tr.Failed() != 1 || tr.Processed() != 4 {
		t.Fatalf("counts: processed=%d failed=%d", tr.Processed(), tr.Failed())
	}
	if n.completed != 1 || len(n.updated) != 3 {
		t.Fatalf("notifications: %+v", n)
	}

	// A finished row stays finished.
	if err := tr.Fail(ctx); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	got, _ = repo.Get(dbctx.New(ctx), p.ID)
	if got.Status != domprogress.StatusCompleted || n.failed != 0 {
		t.Fatalf("terminal row reopened: status=%q failed=%d", got.Status, n.failed)
	}
}

func TestTrackerZeroTotalCompletesImmediately(t *testing.T) {
	tr, repo, p, n := newTracker(t, 0)
	ctx := context.Background()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	got, _ := repo.Get(dbctx.New(ctx), p.ID)
	if got.Status != domprogress.StatusCompleted || got.Percentage != 100 || n.completed != 1 {
		t.Fatalf("status=%q pct=%d completed=%d", got.Status, got.Percentage, n.completed)
	}
}

func TestTrackerWithConcurrentRun(t *testing.T) {
	tr, repo, p, n := newTracker(t, 10)
	ctx := context.Background()
	cfg := RunConfig{
		Concurrency: 4,
		OnProcessed: func(ctx context.Context, ok bool) { _ = tr.Done(ctx, ok) },
	}
	sum, err := Run(ctx, cfg, units(10), func(context.Context, Unit) error { return nil })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Succeeded != 10 {
		t.Fatalf("summary: %+v", sum)
	}
	got, _ := repo.Get(dbctx.New(ctx), p.ID)
	if got.Status != domprogress.StatusCompleted || got.Percentage != 100 {
		t.Fatalf("status=%q pct=%d", got.Status, got.Percentage)
	}
	if n.completed != 1 {
		t.Fatalf("completed notifications: want=1 got=%d", n.completed)
	}
}
