package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner() *Runner {
	l := &TestLogger{}
	return NewRunner(l, newTestDiscovery(), NewExecutor(l))
}

func moduleEntry(m *Module) CatalogEntry {
	return CatalogEntry{Path: m.Path, Module: m}
}

func TestRunnerEmptyDirectory(t *testing.T) {
	t.Parallel()

	res, err := newTestRunner().Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, Summary{}, res.Summary)
	assert.False(t, res.HadFailure())
	assert.NotEqual(t, uuid.Nil, res.RunID)
}

func TestRunnerMissingRootIsFatal(t *testing.T) {
	t.Parallel()

	_, err := newTestRunner().Run(context.Background(), "/definitely/not/here")
	require.ErrorIs(t, err, ErrRootNotFound)
}

func TestRunnerLoadErrorDoesNotStopRun(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	cat := &Catalog{Root: "suite", Entries: []CatalogEntry{
		{Path: "broken_test.sh", Err: &ModuleLoadError{Module: "broken_test.sh", Err: errors.New("syntax error near line 3")}},
		moduleEntry(newTestModule("ok_test.sh", Hooks{}, &Unit{Name: "test_ok", Callable: log.fn("test_ok", nil)})),
	}}

	res := newTestRunner().Execute(context.Background(), cat)

	assert.Equal(t, []string{"module_load:broken_test.sh=errored", "test:test_ok=passed"}, summaryOf(res.Records))
	assert.Contains(t, res.Records[0].Outcome.Message, "syntax error near line 3")
	assert.Equal(t, Summary{Total: 1, Passed: 1, LoadErrors: 1}, res.Summary)
	assert.True(t, res.HadFailure())
}

func TestRunnerOrderIndependentOfCompletion(t *testing.T) {
	t.Parallel()

	var entries []CatalogEntry
	var want []string
	for i := range 8 {
		path := fmt.Sprintf("m%d_test.sh", i)
		var units []*Unit
		for j := range 3 {
			name := fmt.Sprintf("test_%d_%d", i, j)
			delay := time.Duration(rand.IntN(15)) * time.Millisecond
			units = append(units, &Unit{Name: name, Callable: Func(func(context.Context, io.Writer, io.Writer) error {
				time.Sleep(delay)
				return nil
			})})
			want = append(want, "test:"+name+"=passed")
		}
		entries = append(entries, moduleEntry(newTestModule(path, Hooks{}, units...)))
	}

	r := newTestRunner()
	r.Parallelism = 4
	res := r.Execute(context.Background(), &Catalog{Entries: entries})

	assert.Equal(t, want, summaryOf(res.Records))
	assert.Equal(t, 24, res.Summary.Passed)
}

func TestRunnerParallelismBound(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	running, peak := 0, 0
	track := Func(func(context.Context, io.Writer, io.Writer) error {
		mu.Lock()
		running++
		peak = max(peak, running)
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return nil
	})

	var entries []CatalogEntry
	for i := range 6 {
		entries = append(entries, moduleEntry(newTestModule(fmt.Sprintf("p%d_test.sh", i), Hooks{},
			&Unit{Name: "test_track", Callable: track})))
	}

	r := newTestRunner()
	r.Parallelism = 2
	r.Execute(context.Background(), &Catalog{Entries: entries})

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
	assert.GreaterOrEqual(t, peak, 1)
}

func TestRunnerCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cat := &Catalog{Entries: []CatalogEntry{
		moduleEntry(newTestModule("a_test.sh", Hooks{BeforeAll: log.fn("before_all", nil)},
			&Unit{Name: "test_a1", Callable: log.fn("test_a1", nil)},
			&Unit{Name: "test_a2", Callable: log.fn("test_a2", nil)},
		)),
		{Path: "b_test.sh", Err: &ModuleLoadError{Module: "b_test.sh", Err: errors.New("bad")}},
	}}

	res := newTestRunner().Execute(ctx, cat)

	assert.Equal(t, []string{
		"test:test_a1=skipped",
		"test:test_a2=skipped",
		"module_load:b_test.sh=errored",
	}, summaryOf(res.Records))
	assert.Equal(t, ReasonRunCancelled, res.Records[0].Outcome.Message)
	assert.Empty(t, log.get())
}

func TestRunnerFailFast(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	cat := &Catalog{Entries: []CatalogEntry{
		moduleEntry(newTestModule("a_test.sh", Hooks{After: log.fn("after", nil)},
			&Unit{Name: "test_bad", Callable: log.fn("test_bad", &AssertionError{Message: "nope"})},
			&Unit{Name: "test_never", Callable: log.fn("test_never", nil)},
		)),
		moduleEntry(newTestModule("b_test.sh", Hooks{},
			&Unit{Name: "test_later", Callable: log.fn("test_later", nil)},
		)),
	}}

	r := newTestRunner()
	r.FailFast = true
	res := r.Execute(context.Background(), cat)

	assert.Equal(t, []string{
		"test:test_bad=failed",
		"after:test_bad=passed",
		"test:test_never=skipped",
		"test:test_later=skipped",
	}, summaryOf(res.Records))
	assert.Equal(t, []string{"test_bad", "after"}, log.get())
}

func TestRunnerCancelFromStep(t *testing.T) {
	t.Parallel()

	r := newTestRunner()
	log := &callLog{}
	cat := &Catalog{Entries: []CatalogEntry{
		moduleEntry(newTestModule("a_test.sh", Hooks{AfterAll: log.fn("after_all", nil)},
			&Unit{Name: "test_interrupt", Callable: Func(func(context.Context, io.Writer, io.Writer) error {
				log.add("test_interrupt")
				r.Cancel()
				return nil
			})},
			&Unit{Name: "test_after_interrupt", Callable: log.fn("test_after_interrupt", nil)},
		)),
		moduleEntry(newTestModule("b_test.sh", Hooks{}, &Unit{Name: "test_b", Callable: log.fn("test_b", nil)})),
	}}

	res := r.Execute(context.Background(), cat)

	assert.Equal(t, []string{
		"test:test_interrupt=passed",
		"test:test_after_interrupt=skipped",
		"after_all:after_all=passed",
		"test:test_b=skipped",
	}, summaryOf(res.Records))
	assert.Equal(t, []string{"test_interrupt", "after_all"}, log.get())
	assert.False(t, res.HadFailure())

	// Cancel outside a run is a no-op
	r.Cancel()
}

func TestRunnerRunTimeout(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	slow := Func(func(context.Context, io.Writer, io.Writer) error {
		time.Sleep(150 * time.Millisecond)
		log.add("slow")
		return nil
	})
	cat := &Catalog{Entries: []CatalogEntry{
		moduleEntry(newTestModule("a_test.sh", Hooks{},
			&Unit{Name: "test_slow", Callable: slow},
			&Unit{Name: "test_next", Callable: log.fn("test_next", nil)},
		)),
	}}

	r := newTestRunner()
	r.RunTimeout = 50 * time.Millisecond
	res := r.Execute(context.Background(), cat)

	assert.Equal(t, []string{"test:test_slow=passed", "test:test_next=skipped"}, summaryOf(res.Records))
}

func TestRunnerRecordsRunMetrics(t *testing.T) {
	t.Parallel()

	fm := &fakeMetrics{}
	r := newTestRunner()
	r.Executor.Metrics = fm

	log := &callLog{}
	r.Execute(context.Background(), &Catalog{Entries: []CatalogEntry{
		moduleEntry(newTestModule("a_test.sh", Hooks{}, &Unit{Name: "test_a", Callable: log.fn("test_a", nil)})),
		{Path: "b_test.sh", Err: &ModuleLoadError{Module: "b_test.sh", Err: errors.New("bad")}},
	}})

	assert.Equal(t, 1, fm.runs)
	assert.Len(t, fm.steps, 2)
	assert.Equal(t, map[string]bool{"a_test.sh": true, "b_test.sh": false}, fm.modules)
}

func TestRunnerEndToEndWithScripts(t *testing.T) {
	t.Parallel()
	requireShell(t)

	root := t.TempDir()
	writeFile(t, root, "math_test.sh", `
COUNTER_FILE="$(pwd)/.counter"
before() { echo -n b >> "$COUNTER_FILE"; }
after() { echo -n a >> "$COUNTER_FILE"; }
test_add() { [ "$((1 + 1))" -eq 2 ]; }
test_sub() { echo "3 - 1 != 1" >&2; return 1; }
`)
	writeFile(t, root, "suite/db_test.yaml", `
before_all: bash -c "echo 'database unreachable' >&2; exit 2"
test_query: "true"
test_insert: "true"
after_all: "true"
`)

	res, err := newTestRunner().Run(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"before:test_add=passed",
		"test:test_add=passed",
		"after:test_add=passed",
		"before:test_sub=passed",
		"test:test_sub=failed",
		"after:test_sub=passed",
		"before_all:before_all=errored",
		"test:test_query=skipped",
		"test:test_insert=skipped",
		"after_all:after_all=passed",
	}, summaryOf(res.Records))
	assert.Equal(t, "3 - 1 != 1", res.Records[4].Outcome.Message)
	assert.Equal(t, Summary{Total: 4, Passed: 1, Failed: 1, Skipped: 2, HookFailures: 1}, res.Summary)
	assert.True(t, res.HadFailure())
}
