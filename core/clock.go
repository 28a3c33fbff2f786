package core

import (
	"sync"
	"time"
)

// Clock provides the time source for step timestamps and durations.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func NewRealClock() Clock {
	return &realClock{}
}

func (c *realClock) Now() time.Time {
	return time.Now()
}

var (
	clockMu      sync.RWMutex
	defaultClock Clock = NewRealClock()
)

func SetDefaultClock(c Clock) {
	clockMu.Lock()
	defer clockMu.Unlock()
	defaultClock = c
}

func GetDefaultClock() Clock {
	clockMu.RLock()
	defer clockMu.RUnlock()
	return defaultClock
}

// FakeClock is a manually driven Clock for tests. Each call to Now may advance
// the clock by a fixed step so that consecutive readings differ.
type FakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// NewSteppingFakeClock returns a FakeClock that moves forward by step on every
// reading.
func NewSteppingFakeClock(start time.Time, step time.Duration) *FakeClock {
	return &FakeClock{now: start, step: step}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
