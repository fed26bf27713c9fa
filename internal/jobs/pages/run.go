package pages

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/scoolish-backend/internal/platform/envutil"
	"github.com/yungbote/scoolish-backend/internal/platform/llm"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

// Unit is one page of a fan-out. Done marks pages that already carry a
// stored result for the tool being run.
type Unit struct {
	Number int
	Text   string
	Done   bool
}

type Func func(ctx context.Context, u Unit) error

type RunConfig struct {
	Concurrency int
	Stagger     time.Duration
	Force       bool
	Log         *logger.Logger
	// OnProcessed fires once per unit that reached an outcome, skipped
	// units included. It may be called from several goroutines.
	OnProcessed func(ctx context.Context, ok bool)
}

func ConfigFromEnv() RunConfig {
	return RunConfig{
		Concurrency: envutil.Int("PAGE_CONCURRENCY", 2),
		Stagger:     envutil.Duration("PAGE_STAGGER_MS", 200*time.Millisecond, time.Millisecond),
	}
}

func (c RunConfig) withDefaults() RunConfig {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Stagger < 0 {
		c.Stagger = 0
	}
	if c.Log == nil {
		c.Log = logger.Nop()
	}
	return c
}

func (c RunConfig) processed(ctx context.Context, ok bool) {
	if c.OnProcessed != nil {
		c.OnProcessed(ctx, ok)
	}
}

type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

/*
Run executes fn over units with at most Concurrency in flight. The i-th
unit that actually runs starts no earlier than i*Stagger after Run began.

A unit error or panic is logged and counted as a failed page; the run
carries on.
A rate-limit error is different: it cancels the remaining units and is
returned, so the job fails and the worker retries it later. Units that
already succeeded keep their stored results and are skipped on the retry.
*/
func Run(ctx context.Context, cfg RunConfig, units []Unit, fn Func) (Summary, error) {
	cfg = cfg.withDefaults()
	sum := Summary{Total: len(units)}

	var succeeded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	start := time.Now()
	slot := 0
	for _, u := range units {
		if gctx.Err() != nil {
			break
		}
		if u.Done && !cfg.Force {
			sum.Skipped++
			cfg.processed(gctx, true)
			continue
		}
		delay := time.Duration(slot) * cfg.Stagger
		slot++

		u := u
		g.Go(func() error {
			if err := sleepUntil(gctx, start.Add(delay)); err != nil {
				return err
			}
			err := callUnit(gctx, fn, u)
			switch {
			case err == nil:
				succeeded.Add(1)
				cfg.processed(gctx, true)
			case errors.Is(err, llm.ErrRateLimited):
				cfg.Log.Warn("Page rate limited; aborting run", "page", u.Number, "error", err)
				return fmt.Errorf("page %d: %w", u.Number, err)
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				failed.Add(1)
				cfg.Log.Warn("Page failed", "page", u.Number, "error", err)
				cfg.processed(gctx, false)
			}
			return nil
		})
	}

	err := g.Wait()
	sum.Succeeded = int(succeeded.Load())
	sum.Failed = int(failed.Load())
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return sum, err
}

// callUnit runs fn and turns a panic into an ordinary page error. Units run
// on errgroup goroutines, out of reach of the worker's recover.
func callUnit(ctx context.Context, fn Func, u Unit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d panicked: %v", u.Number, r)
		}
	}()
	return fn(ctx, u)
}

func sleepUntil(ctx context.Context, at time.Time) error {
	wait := time.Until(at)
	if wait <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
