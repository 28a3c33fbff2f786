// Package testutil holds polling helpers for tests that wait on runs, steps
// and shutdown hooks running in other goroutines.
package testutil

import (
	"testing"
	"time"
)

// DefaultTimeout is the default timeout for Eventually and Never.
const DefaultTimeout = 5 * time.Second

// DefaultInterval is the default polling interval.
const DefaultInterval = 10 * time.Millisecond

type config struct {
	timeout  time.Duration
	interval time.Duration
	message  string
}

// Option configures polling.
type Option func(*config)

// WithTimeout sets the maximum time to wait for the condition.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(c *config) { c.interval = d }
}

// WithMessage sets the error message shown on failure.
func WithMessage(msg string) Option {
	return func(c *config) { c.message = msg }
}

func newConfig(message string, opts []Option) *config {
	cfg := &config{timeout: DefaultTimeout, interval: DefaultInterval, message: message}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// poll evaluates condition immediately and then on every tick until it holds
// or the timeout expires. It reports whether the condition held.
func poll(cfg *config, condition func() bool) bool {
	if condition() {
		return true
	}

	deadline := time.NewTimer(cfg.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	for {
		select {
		case <-deadline.C:
			return false
		case <-ticker.C:
			if condition() {
				return true
			}
		}
	}
}

// Eventually polls condition until it returns true, failing t on timeout.
//
//	testutil.Eventually(t, sm.IsShuttingDown, testutil.WithTimeout(time.Second))
func Eventually(t testing.TB, condition func() bool, opts ...Option) bool {
	t.Helper()

	cfg := newConfig("condition was not satisfied", opts)
	if !poll(cfg, condition) {
		t.Errorf("Eventually timed out after %v: %s", cfg.timeout, cfg.message)
		return false
	}
	return true
}

// Never asserts that condition stays false for the whole timeout.
func Never(t testing.TB, condition func() bool, opts ...Option) bool {
	t.Helper()

	cfg := newConfig("condition became true unexpectedly", opts)
	if poll(cfg, condition) {
		t.Errorf("Never failed: %s", cfg.message)
		return false
	}
	return true
}

// WaitForChan receives one value from ch, failing t on timeout. A closed
// channel counts as received and yields the zero value.
func WaitForChan[T any](t testing.TB, ch <-chan T, timeout time.Duration) (T, bool) {
	t.Helper()

	select {
	case v := <-ch:
		return v, true
	case <-time.After(timeout):
		var zero T
		t.Errorf("WaitForChan timed out after %v", timeout)
		return zero, false
	}
}
