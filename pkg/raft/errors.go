package raft

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLeader names the condition of an instance that does not
	// currently believe itself to be leader. Instance.Propose does not
	// return it: calling Propose while not leader panics (see precondition).
	ErrNotLeader = errors.New("raft: not the leader")

	// ErrStopped names the condition of an instance after Stop has been
	// called. Instance methods do not return it: after Stop, Tick and Run
	// return without effect.
	ErrStopped = errors.New("raft: instance stopped")

	// ErrNotStarted names the condition of an instance before Start has
	// been called. Instance methods do not return it: Tick and Run panic
	// when called before Start.
	ErrNotStarted = errors.New("raft: instance not started")
)

// precondition panics with a descriptive message when a caller violates
// an API precondition (e.g. Propose while not leader). The core does not
// return error codes for programmer mistakes; see SPEC_FULL.md §7.
func precondition(ok bool, format string, args ...any) {
	if !ok {
		panic(fmt.Errorf("raft: precondition violated: "+format, args...))
	}
}
