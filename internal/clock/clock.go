// Package clock abstracts time so expiry and delays can be tested
// deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock is a source of time.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock uses the real time.
type SystemClock struct{}

// NewSystemClock returns the real clock.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

// FixtureClock is a manually advanced clock for tests.
// Sleep advances the clock instead of blocking.
type FixtureClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixtureClock returns a clock frozen at now.
func NewFixtureClock(now time.Time) *FixtureClock {
	return &FixtureClock{now: now}
}

func (c *FixtureClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FixtureClock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance moves the clock forward by d.
func (c *FixtureClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
