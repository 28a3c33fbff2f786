package metrics

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netresearch/zrunner/core"
	"github.com/netresearch/zrunner/test"
)

func record(kind core.StepKind, o core.Outcome, d time.Duration) core.StepRecord {
	return core.StepRecord{ModulePath: "m_test.sh", Kind: kind, Name: "test_x", Outcome: o, Duration: d}
}

func TestRecorderSteps(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.RecordStep(record(core.StepTest, core.Passed(), 20*time.Millisecond))
	r.RecordStep(record(core.StepTest, core.Passed(), 2*time.Second))
	r.RecordStep(record(core.StepTest, core.Failed("exit status 1", ""), time.Millisecond))
	r.RecordStep(record(core.StepBefore, core.Errored("boom", ""), time.Millisecond))

	assert.InDelta(t, 2, testutil.ToFloat64(r.steps.WithLabelValues("test", "passed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.steps.WithLabelValues("test", "failed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.steps.WithLabelValues("before", "errored")), 0)
	assert.Equal(t, 3, testutil.CollectAndCount(r.steps))

	families, err := r.Registry().Gather()
	require.NoError(t, err)

	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() != "zrunner_step_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "kind" && l.GetValue() == "test" {
					hist = m.GetHistogram()
				}
			}
		}
	}
	require.NotNil(t, hist)
	assert.Equal(t, uint64(3), hist.GetSampleCount())
	assert.InDelta(t, 2.021, hist.GetSampleSum(), 1e-9)
}

func TestRecorderModulesAndRuns(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.RecordModule("a_test.sh", true)
	r.RecordModule("b_test.sh", false)
	r.RecordModule("c_test.sh", false)
	r.RecordRun(1500 * time.Millisecond)
	r.RecordRun(3 * time.Second)

	assert.InDelta(t, 1, testutil.ToFloat64(r.modules.WithLabelValues("passed")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(r.modules.WithLabelValues("failed")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(r.runs), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(r.runDuration), 0)
}

func TestRecordersAreIndependent(t *testing.T) {
	t.Parallel()

	a, b := NewRecorder(), NewRecorder()
	a.RecordRun(time.Second)
	assert.InDelta(t, 0, testutil.ToFloat64(b.runs), 0)
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	r.RecordStep(record(core.StepTest, core.Skipped("later"), 0))
	r.RecordRun(time.Second)

	path := filepath.Join(t.TempDir(), "zrunner.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `zrunner_steps_total{kind="test",status="skipped"} 1`)
	assert.Contains(t, string(data), "zrunner_run_duration_seconds 1")

	require.Error(t, r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")))
}

func TestRecorderWithExecutor(t *testing.T) {
	t.Parallel()

	r := NewRecorder()
	e := core.NewExecutor(test.NewTestLogger())
	e.Metrics = r

	m := &core.Module{Path: "m_test.sh", Units: []*core.Unit{{ModulePath: "m_test.sh", Name: "test_ok", Callable: core.Func(func(context.Context, io.Writer, io.Writer) error { return nil })}}}
	records := e.Run(t.Context(), m)
	require.Len(t, records, 1)

	assert.InDelta(t, 1, testutil.ToFloat64(r.steps.WithLabelValues("test", "passed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.modules.WithLabelValues("passed")), 0)
}
