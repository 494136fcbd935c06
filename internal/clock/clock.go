// Package clock supplies the current time to ledger transitions. Production
// nodes use the block header time so every replica sees the same instant;
// tests drive a manual clock.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time in unix seconds.
type Clock interface {
	Now() int64
}

// Seeder is a clock that can be started from a persisted reading.
type Seeder interface {
	Seed(unix int64)
}

// BlockClock holds the time of the block being executed.
type BlockClock struct {
	mu  sync.RWMutex
	now int64
}

// NewBlockClock returns a clock set to t.
func NewBlockClock(t time.Time) *BlockClock {
	c := &BlockClock{}
	c.Set(t)
	return c
}

// Set moves the clock to the block time. Earlier times are ignored so the
// clock never runs backwards.
func (c *BlockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s := t.Unix(); s > c.now {
		c.now = s
	}
}

// Seed moves the clock to the block time recorded in a snapshot. Like Set it
// never moves backwards.
func (c *BlockClock) Seed(unix int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if unix > c.now {
		c.now = unix
	}
}

// Now returns the current block time.
func (c *BlockClock) Now() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// ManualClock is a clock moved explicitly.
type ManualClock struct {
	mu  sync.Mutex
	now int64
}

// NewManual returns a manual clock at unix second start.
func NewManual(start int64) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d, truncated to seconds.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += int64(d / time.Second)
}

// Set moves the clock to unix second t.
func (c *ManualClock) Set(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
