package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var errFailFast = errors.New("fail-fast: a step failed")

// Runner discovers modules under a root, executes them on a bounded number of
// workers and aggregates their records.
type Runner struct {
	Discovery *Discovery
	Executor  *Executor
	Logger    Logger

	// Parallelism is the number of modules run at once; units inside a module
	// always run sequentially. Values below 1 mean 1.
	Parallelism int
	// FailFast cancels the run after the first failed or errored record.
	FailFast bool
	// RunTimeout bounds the whole run; zero disables it.
	RunTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelCauseFunc
}

func NewRunner(l Logger, d *Discovery, e *Executor) *Runner {
	return &Runner{
		Discovery:   d,
		Executor:    e,
		Logger:      l,
		Parallelism: 1,
	}
}

// Run discovers root and executes the catalog. The returned error is only set
// for problems detected before any module runs.
func (r *Runner) Run(ctx context.Context, root string) (*RunResult, error) {
	cat, err := r.Discovery.Discover(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	return r.Execute(ctx, cat), nil
}

// Execute runs every entry of cat. Cancelling ctx, calling Cancel, reaching
// RunTimeout or a fail-fast stop all end the run the same way: modules in
// flight wind down and modules not yet started record their units as
// skipped.
func (r *Runner) Execute(ctx context.Context, cat *Catalog) *RunResult {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if r.RunTimeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeoutCause(runCtx, r.RunTimeout, ErrRunCancelled)
		defer cancelTimeout()
	}

	r.setCancel(cancel)
	defer r.setCancel(nil)

	agg := NewAggregator(cat.Root)
	log := withField(r.logger(), "run", agg.RunID().String())
	log.Noticef("Run started: %d module(s), %d unit(s), parallelism %d",
		len(cat.Entries), cat.UnitCount(), r.parallelism())

	slots := make(chan struct{}, r.parallelism())

	var wg sync.WaitGroup
	for i, entry := range cat.Entries {
		if entry.Err != nil {
			rec := r.Executor.RecordLoadError(entry)
			agg.Add(i, []StepRecord{rec})
			if r.FailFast {
				cancel(errFailFast)
			}
			continue
		}

		acquired := false
		select {
		case slots <- struct{}{}:
			acquired = true
		case <-runCtx.Done():
		}
		if runCtx.Err() != nil {
			if acquired {
				<-slots
			}
			agg.Add(i, r.Executor.SkipModule(entry.Module, ReasonRunCancelled))
			continue
		}

		wg.Go(func() {
			defer func() { <-slots }()

			var observe func(StepRecord)
			if r.FailFast {
				observe = func(rec StepRecord) {
					if rec.Outcome.IsFailure() {
						cancel(errFailFast)
					}
				}
			}
			agg.Add(i, r.Executor.run(runCtx, entry.Module, observe))
		})
	}
	wg.Wait()

	res := agg.Finalize()
	if cause := context.Cause(runCtx); cause != nil && runCtx.Err() != nil && !errors.Is(cause, context.Canceled) {
		log.Warningf("Run stopped early: %v", cause)
	}
	if r.Executor.Metrics != nil {
		r.Executor.Metrics.RecordRun(res.Duration)
	}

	s := res.Summary
	log.Noticef("Run finished in %s: %d unit(s), %d passed, %d failed, %d errored, %d skipped, %d hook failure(s), %d load error(s)",
		res.Duration, s.Total, s.Passed, s.Failed, s.Errored, s.Skipped, s.HookFailures, s.LoadErrors)
	return res
}

// Cancel stops the run in progress, if any.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel(ErrRunCancelled)
	}
}

func (r *Runner) setCancel(c context.CancelCauseFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancel = c
}

func (r *Runner) parallelism() int {
	return max(r.Parallelism, 1)
}

func (r *Runner) logger() Logger {
	if r.Logger == nil {
		return nopLogger{}
	}
	return r.Logger
}
