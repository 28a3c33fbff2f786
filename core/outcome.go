package core

import (
	"time"
)

// Status is the classification of one executed step.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
)

// StepKind distinguishes hook invocations, unit invocations and module loading.
type StepKind string

const (
	StepModuleLoad StepKind = "module_load"
	StepBeforeAll  StepKind = "before_all"
	StepBefore     StepKind = "before"
	StepTest       StepKind = "test"
	StepAfter      StepKind = "after"
	StepAfterAll   StepKind = "after_all"
)

// IsHook reports whether the kind is one of the four lifecycle hooks.
func (k StepKind) IsHook() bool {
	switch k {
	case StepBeforeAll, StepBefore, StepAfter, StepAfterAll:
		return true
	default:
		return false
	}
}

// Outcome is the immutable result of one step. Message carries the failure
// detail or the skip reason, Trace a stack or stderr tail when one exists.
type Outcome struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

func Passed() Outcome {
	return Outcome{Status: StatusPassed}
}

func Failed(msg, trace string) Outcome {
	return Outcome{Status: StatusFailed, Message: msg, Trace: trace}
}

func Errored(msg, trace string) Outcome {
	return Outcome{Status: StatusErrored, Message: msg, Trace: trace}
}

func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Message: reason}
}

// Ok reports whether the step passed.
func (o Outcome) Ok() bool {
	return o.Status == StatusPassed
}

// IsFailure reports whether the outcome counts against the run.
func (o Outcome) IsFailure() bool {
	return o.Status == StatusFailed || o.Status == StatusErrored
}

// StepRecord is one entry of a RunResult.
type StepRecord struct {
	ModulePath string        `json:"module"`
	Kind       StepKind      `json:"kind"`
	Name       string        `json:"name"`
	Outcome    Outcome       `json:"outcome"`
	Started    time.Time     `json:"started"`
	Duration   time.Duration `json:"duration"`
	Stdout     string        `json:"stdout,omitempty"`
	Stderr     string        `json:"stderr,omitempty"`
}

// ID returns the "module:name" identifier used in reports.
func (r StepRecord) ID() string {
	return r.ModulePath + ":" + r.Name
}
