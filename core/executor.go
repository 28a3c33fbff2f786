package core

import (
	"context"
	"fmt"
	"time"
)

// MetricsRecorder receives the outcome of every step, module and run.
type MetricsRecorder interface {
	RecordStep(rec StepRecord)
	RecordModule(path string, ok bool)
	RecordRun(d time.Duration)
}

// Executor runs one module through its lifecycle:
//
//	before_all -> (before -> unit -> after)* -> after_all
//
// Every step goes through the middleware chain and produces one StepRecord.
type Executor struct {
	middlewareContainer

	Logger Logger
	// StepTimeout bounds every hook and unit invocation; zero disables it.
	StepTimeout time.Duration
	Metrics     MetricsRecorder
}

func NewExecutor(l Logger) *Executor {
	return &Executor{Logger: l}
}

type moduleState int

const (
	stateInit moduleState = iota
	stateBeforeAll
	stateUnits
	stateAfterAll
	stateDone
)

func (s moduleState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateBeforeAll:
		return "running_before_all"
	case stateUnits:
		return "running_units"
	case stateAfterAll:
		return "running_after_all"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("moduleState(%d)", int(s))
	}
}

// Run executes m and returns its records in execution order. Cancelling ctx
// stops scheduling further units: the step in flight completes, its after
// hook runs, the remaining units are recorded as skipped and after_all runs
// if the module had started.
func (e *Executor) Run(ctx context.Context, m *Module) []StepRecord {
	return e.run(ctx, m, nil)
}

// run is Run with an observer called for each record as it is produced.
func (e *Executor) run(ctx context.Context, m *Module, observe func(StepRecord)) []StepRecord {
	r := &moduleRun{
		e:       e,
		ctx:     ctx,
		mod:     m,
		log:     withField(e.logger(), "module", m.Path),
		clock:   GetDefaultClock(),
		observe: observe,
	}
	r.run()

	if e.Metrics != nil {
		e.Metrics.RecordModule(m.Path, !hasFailure(r.records))
	}
	return r.records
}

// RecordLoadError turns a failed catalog entry into its single module_load
// record.
func (e *Executor) RecordLoadError(entry CatalogEntry) StepRecord {
	rec := StepRecord{
		ModulePath: entry.Path,
		Kind:       StepModuleLoad,
		Name:       entry.Path,
		Outcome:    Errored(entry.Err.Error(), ""),
		Started:    GetDefaultClock().Now(),
	}
	e.logger().Errorf("Module %q failed to load: %v", entry.Path, entry.Err)
	if e.Metrics != nil {
		e.Metrics.RecordStep(rec)
		e.Metrics.RecordModule(entry.Path, false)
	}
	return rec
}

// SkipModule records every unit of m as skipped with reason, running nothing.
func (e *Executor) SkipModule(m *Module, reason string) []StepRecord {
	r := &moduleRun{e: e, mod: m, log: e.logger(), clock: GetDefaultClock()}
	for _, u := range m.Units {
		r.skip(u, reason)
	}
	return r.records
}

func (e *Executor) logger() Logger {
	if e.Logger == nil {
		return nopLogger{}
	}
	return e.Logger
}

type moduleRun struct {
	e       *Executor
	ctx     context.Context //nolint:containedctx // run cancellation, checked between units
	mod     *Module
	log     Logger
	clock   Clock
	observe func(StepRecord)

	state   moduleState
	records []StepRecord
	// started is set once any step ran; after_all pairs with it
	started bool
	// suiteSkip is the reason every unit is skipped once before_all did not pass
	suiteSkip string
}

func (r *moduleRun) run() {
	for r.state != stateDone {
		r.log.Debugf("Module %q: %s", r.mod.Path, r.state)

		switch r.state {
		case stateInit:
			r.state = stateBeforeAll
		case stateBeforeAll:
			r.runBeforeAll()
			r.state = stateUnits
		case stateUnits:
			r.runUnits()
			r.state = stateAfterAll
		case stateAfterAll:
			r.runAfterAll()
			r.state = stateDone
		}
	}
}

func (r *moduleRun) runBeforeAll() {
	if r.mod.Hooks.BeforeAll == nil || r.cancelled() {
		return
	}

	rec := r.step(StepBeforeAll, string(StepBeforeAll), r.mod.Hooks.BeforeAll)
	switch rec.Outcome.Status {
	case StatusPassed:
	case StatusSkipped:
		r.suiteSkip = orDefault(rec.Outcome.Message, ReasonBeforeAllFailed)
	default:
		r.suiteSkip = ReasonBeforeAllFailed
	}
}

func (r *moduleRun) runUnits() {
	for _, u := range r.mod.Units {
		switch {
		case r.suiteSkip != "":
			r.skip(u, r.suiteSkip)
		case r.cancelled():
			r.skip(u, ReasonRunCancelled)
		case u.SkipReason != "":
			r.skip(u, u.SkipReason)
		default:
			r.runUnit(u)
		}
	}
}

// runUnit runs before, the unit and after. after runs whatever happened
// before it, and its outcome never changes the unit's record.
func (r *moduleRun) runUnit(u *Unit) {
	hooks := r.mod.Hooks

	beforeOk := true
	if hooks.Before != nil {
		rec := r.step(StepBefore, u.Name, hooks.Before)
		beforeOk = rec.Outcome.Ok()
	}

	if beforeOk {
		r.step(StepTest, u.Name, u.Callable)
	} else {
		r.skip(u, ReasonBeforeFailed)
	}

	if hooks.After != nil {
		r.step(StepAfter, u.Name, hooks.After)
	}
}

func (r *moduleRun) runAfterAll() {
	if r.mod.Hooks.AfterAll == nil || !r.started {
		return
	}
	r.step(StepAfterAll, string(StepAfterAll), r.mod.Hooks.AfterAll)
}

func (r *moduleRun) cancelled() bool {
	return r.ctx != nil && r.ctx.Err() != nil
}

// step runs one callable through the middleware chain and records it. The
// step context keeps the run's values but not its cancellation, so a step in
// flight is never cut short by a cancelled run.
func (r *moduleRun) step(kind StepKind, name string, c Callable) StepRecord {
	r.started = true

	s := &Step{ModulePath: r.mod.Path, Kind: kind, Name: name, Callable: c}

	parent := context.Background()
	if r.ctx != nil {
		parent = context.WithoutCancel(r.ctx)
	}
	ctx := WithStep(parent, s)
	if r.e.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.e.StepTimeout)
		defer cancel()
	}

	e, err := NewExecution()
	if err != nil {
		rec := StepRecord{
			ModulePath: s.ModulePath,
			Kind:       kind,
			Name:       name,
			Outcome:    Classify(fmt.Errorf("create execution: %w", err)),
			Started:    r.clock.Now(),
		}
		return r.append(rec)
	}

	sctx := NewContext(ctx, r.log, s, e, r.e.Middlewares())
	sctx.Start()
	sctx.Log("Started")

	err = sctx.Next()
	sctx.Stop(err)

	e.Cleanup()
	sctx.Log(fmt.Sprintf("Finished in %q, status: %s", e.Duration, describe(e.Outcome)))

	return r.append(StepRecord{
		ModulePath: s.ModulePath,
		Kind:       kind,
		Name:       name,
		Outcome:    e.Outcome,
		Started:    e.Date,
		Duration:   e.Duration,
		Stdout:     e.CapturedStdout,
		Stderr:     e.CapturedStderr,
	})
}

func (r *moduleRun) skip(u *Unit, reason string) {
	r.log.Warningf("Unit %s:%s skipped: %s", u.ModulePath, u.Name, reason)
	r.append(StepRecord{
		ModulePath: u.ModulePath,
		Kind:       StepTest,
		Name:       u.Name,
		Outcome:    Skipped(reason),
		Started:    r.clock.Now(),
	})
}

func (r *moduleRun) append(rec StepRecord) StepRecord {
	r.records = append(r.records, rec)
	if r.e.Metrics != nil {
		r.e.Metrics.RecordStep(rec)
	}
	if r.observe != nil {
		r.observe(rec)
	}
	return rec
}

func describe(o Outcome) string {
	if o.Message == "" {
		return string(o.Status)
	}
	return fmt.Sprintf("%s (%s)", o.Status, o.Message)
}

func hasFailure(records []StepRecord) bool {
	for _, rec := range records {
		if rec.Outcome.IsFailure() {
			return true
		}
	}
	return false
}
