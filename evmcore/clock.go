package evmcore

import (
	"sync"
	"time"

	"github.com/rony4d/go-opera-raffle/inter"
)

// Clock is the source of block times.
type Clock interface {
	Now() inter.Timestamp
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() inter.Timestamp {
	return inter.FromTime(time.Now())
}

// FakeClock is a manually driven Clock, the substrate's equivalent of a
// devnet's time travel RPC.
type FakeClock struct {
	mu  sync.Mutex
	now inter.Timestamp
}

// NewFakeClock returns a clock frozen at start.
func NewFakeClock(start inter.Timestamp) *FakeClock {
	return &FakeClock{now: start}
}

// Now implements Clock.
func (c *FakeClock) Now() inter.Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t. Block times never run backwards even if t is in
// the past, the Machine bumps them.
func (c *FakeClock) Set(t inter.Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
