package testutil

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// StubClock is a qvcs.Clock under test control. Commit dates only move when
// a test calls Advance, so "most recent activity" is predictable.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t.UTC()}
}

// FixedClock starts at 2024-03-04 09:00:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	now := c.now
	c.mu.Unlock()
	return now
}

func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator hands out session ids Prefix-1, Prefix-2, ...
type StubIDGenerator struct {
	Prefix string
	n      atomic.Int64
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{Prefix: "sess"}
}

func (g *StubIDGenerator) New() string {
	return g.Prefix + "-" + strconv.FormatInt(g.n.Add(1), 10)
}
