// Package simharness is the deterministic test harness for pkg/raft:
// a controllable logical clock, a transport with seeded message
// drop/partition, and safety/linearizability checkers — generalized from
// the teacher's pkg/testing package onto the new raft.Instance/raft.Host
// surface (see DESIGN.md).
package simharness

import "sync"

// Clock is a controllable logical clock in raft.Time units
// (milliseconds). Unlike the teacher's DeterministicClock (which wraps
// time.Time), this exposes raft.Time directly since the core never reads
// a wall clock.
type Clock struct {
	mu  sync.Mutex
	now int64
}

// NewClock constructs a clock starting at 0.
func NewClock() *Clock { return &Clock{} }

// Now returns the current reading.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by delta milliseconds and returns the
// new reading.
func (c *Clock) Advance(delta int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += delta
	return c.now
}

// Set pins the clock to an absolute reading (used when replaying a
// specific scenario timeline).
func (c *Clock) Set(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
