package core

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Summary holds the counters of a run. The four status counters count unit
// records only.
type Summary struct {
	Total        int `json:"total"`
	Passed       int `json:"passed"`
	Failed       int `json:"failed"`
	Errored      int `json:"errored"`
	Skipped      int `json:"skipped"`
	HookFailures int `json:"hook_failures"`
	LoadErrors   int `json:"load_errors"`
}

// RunResult is the ordered outcome of a whole run.
type RunResult struct {
	RunID    uuid.UUID     `json:"run_id"`
	Root     string        `json:"root"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Records  []StepRecord  `json:"records"`
	Summary  Summary       `json:"summary"`
}

// HadFailure reports whether any record, hooks and module loads included,
// failed or errored.
func (r *RunResult) HadFailure() bool {
	return hasFailure(r.Records)
}

// Units returns the unit records in run order.
func (r *RunResult) Units() []StepRecord {
	var units []StepRecord
	for _, rec := range r.Records {
		if rec.Kind == StepTest {
			units = append(units, rec)
		}
	}
	return units
}

// Summarize folds records into a Summary.
func Summarize(records []StepRecord) Summary {
	var s Summary
	for _, rec := range records {
		switch {
		case rec.Kind == StepModuleLoad:
			s.LoadErrors++
		case rec.Kind.IsHook():
			if rec.Outcome.IsFailure() {
				s.HookFailures++
			}
		default:
			s.Total++
			switch rec.Outcome.Status {
			case StatusPassed:
				s.Passed++
			case StatusFailed:
				s.Failed++
			case StatusErrored:
				s.Errored++
			case StatusSkipped:
				s.Skipped++
			}
		}
	}
	return s
}

// Aggregator collects per-module records, in any order and from any
// goroutine, and orders them by catalog index.
type Aggregator struct {
	mu      sync.Mutex
	byIndex map[int][]StepRecord
	root    string
	started time.Time
	clock   Clock
	runID   uuid.UUID
}

func NewAggregator(root string) *Aggregator {
	clock := GetDefaultClock()
	return &Aggregator{
		byIndex: make(map[int][]StepRecord),
		root:    root,
		started: clock.Now(),
		clock:   clock,
		runID:   uuid.New(),
	}
}

// RunID identifies the run being aggregated.
func (a *Aggregator) RunID() uuid.UUID {
	return a.runID
}

// Add stores the records of the catalog entry at index. Records added for an
// index already present are appended to it.
func (a *Aggregator) Add(index int, records []StepRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byIndex[index] = append(a.byIndex[index], records...)
}

// Finalize returns the RunResult. Records follow catalog order whatever the
// completion order was.
func (a *Aggregator) Finalize() *RunResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	indexes := make([]int, 0, len(a.byIndex))
	for i := range a.byIndex {
		indexes = append(indexes, i)
	}
	slices.Sort(indexes)

	var records []StepRecord
	for _, i := range indexes {
		records = append(records, a.byIndex[i]...)
	}

	return &RunResult{
		RunID:    a.runID,
		Root:     a.root,
		Started:  a.started,
		Duration: max(a.clock.Now().Sub(a.started), 0),
		Records:  records,
		Summary:  Summarize(records),
	}
}
