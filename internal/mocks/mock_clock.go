package mocks

import (
	"sync"
	"time"

	"github.com/you/walletgate/domain"
)

// MockClock is a manually advanced domain.Clock. With a tick set, every
// call to Now also moves it forward by the tick.
type MockClock struct {
	mu   sync.Mutex
	now  time.Time
	tick time.Duration
}

var _ domain.Clock = (*MockClock)(nil)

// NewMockClock creates a clock frozen at start
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start.UTC()}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.tick)
	return now
}

// Tick makes every later call to Now advance the clock by d
func (c *MockClock) Tick(d time.Duration) {
	c.mu.Lock()
	c.tick = d
	c.mu.Unlock()
}

// Advance moves the clock forward by d
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set jumps the clock to t
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}
