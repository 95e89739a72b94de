package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fleetguard/internal/checklist"
	"fleetguard/internal/inspection"
)

const DefaultTimeout = 60 * time.Second

var ErrVisionDisabled = errors.New("vision analysis is not configured")

// Vision describes a single photo of a checklist item.
type Vision interface {
	Describe(ctx context.Context, photo inspection.Photo, item checklist.Item) (inspection.Analysis, error)
}

// Disabled is used when no vision backend is configured. Every photo gets an error outcome.
type Disabled struct{}

func (Disabled) Describe(context.Context, inspection.Photo, checklist.Item) (inspection.Analysis, error) {
	return inspection.Analysis{}, ErrVisionDisabled
}

// Fanout analyzes the photos of an item concurrently. Each photo has its own deadline
// and a failure or timeout on one photo never affects the others.
type Fanout struct {
	vision      Vision
	timeout     time.Duration
	maxParallel int
	log         zerolog.Logger
}

func NewFanout(vision Vision, timeout time.Duration, maxParallel int, log zerolog.Logger) *Fanout {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fanout{
		vision:      vision,
		timeout:     timeout,
		maxParallel: maxParallel,
		log:         log.With().Str("component", "analysis").Logger(),
	}
}

// Analyze starts every photo's deadline before any of them runs, so a photo queued behind the
// parallelism limit never waits longer than its own timeout.
func (f *Fanout) Analyze(ctx context.Context, photos []inspection.Photo, item checklist.Item) []inspection.Analysis {
	out := make([]inspection.Analysis, len(photos))

	deadlines := make([]context.Context, len(photos))
	for i := range photos {
		dctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		deadlines[i] = dctx
	}

	var g errgroup.Group
	if f.maxParallel > 0 {
		g.SetLimit(f.maxParallel)
	}
	for i, p := range photos {
		g.Go(func() error {
			out[i] = f.describe(deadlines[i], i, p, item)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

type outcome struct {
	analysis inspection.Analysis
	err      error
}

func (f *Fanout) describe(ctx context.Context, index int, p inspection.Photo, item checklist.Item) inspection.Analysis {
	started := time.Now()
	if err := ctx.Err(); err != nil {
		return f.failed(fmt.Errorf("photo %d not analyzed within %s: %w", index+1, f.timeout, err), item, index, started)
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("vision panic: %v", r)}
			}
		}()
		a, err := f.vision.Describe(ctx, p, item)
		done <- outcome{analysis: a, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = fmt.Errorf("photo %d not analyzed within %s: %w", index+1, f.timeout, ctx.Err())
	}

	if res.err != nil {
		return f.failed(res.err, item, index, started)
	}

	f.log.Debug().
		Str("item", item.ID).
		Int("photo", index+1).
		Str("status", res.analysis.Status).
		Dur("elapsed", time.Since(started)).
		Msg("photo analyzed")
	return res.analysis
}

func (f *Fanout) failed(err error, item checklist.Item, index int, started time.Time) inspection.Analysis {
	f.log.Warn().Err(err).
		Str("item", item.ID).
		Int("photo", index+1).
		Dur("elapsed", time.Since(started)).
		Msg("photo analysis failed")
	return inspection.ErrorAnalysis(err)
}
