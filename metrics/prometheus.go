// Package metrics exports run statistics in the Prometheus format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/netresearch/zrunner/core"
)

const namespace = "zrunner"

// Recorder implements core.MetricsRecorder on a private registry, so several
// runs in one process never collide on the default registry.
type Recorder struct {
	registry *prometheus.Registry

	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	modules      *prometheus.CounterVec
	runs         prometheus.Counter
	runDuration  prometheus.Gauge
}

var _ core.MetricsRecorder = (*Recorder)(nil)

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Executed steps by kind and status",
		}, []string{"kind", "status"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step duration by kind",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"kind"}),
		modules: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "modules_total",
			Help:      "Executed modules by result",
		}, []string{"result"}),
		runs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs",
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run",
		}),
	}
}

// Registry exposes the registry for scraping or inspection.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) RecordStep(rec core.StepRecord) {
	r.steps.WithLabelValues(string(rec.Kind), string(rec.Outcome.Status)).Inc()
	r.stepDuration.WithLabelValues(string(rec.Kind)).Observe(rec.Duration.Seconds())
}

func (r *Recorder) RecordModule(_ string, ok bool) {
	result := "passed"
	if !ok {
		result = "failed"
	}
	r.modules.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordRun(d time.Duration) {
	r.runs.Inc()
	r.runDuration.Set(d.Seconds())
}

// WriteTextfile writes every metric to path for the node exporter textfile
// collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %q: %w", path, err)
	}
	return nil
}
