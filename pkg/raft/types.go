// Package raft implements a host-agnostic Raft consensus core: leader
// election, log replication, snapshotting, and joint-quorum membership
// changes. The core owns no threads, timers, or I/O; an embedding Host
// supplies all of that through the Host interface in host.go.
package raft

import "fmt"

// NodeID identifies a participant. The empty NodeID means "no node" (for
// example an unknown leader).
type NodeID string

// Term is a monotonically non-decreasing election epoch.
type Term uint64

// Index is a position in the replicated log. Index 0 is never assigned to
// a real entry; it is used as the "nothing yet" sentinel.
type Index uint64

// Time is a host-supplied monotonic clock reading in milliseconds. The
// core never reads a wall clock itself; every time-dependent decision is
// driven by the Time value passed into Tick/Run/Start.
type Time int64

// Configuration names the voting and non-voting members of a cluster at a
// point in the log. Term/Index record the entry that installed it.
type Configuration struct {
	Nodes    []NodeID
	Replicas []NodeID
	Term     Term
	Index    Index
}

// HasNode reports whether id is a voting member of this configuration.
func (c Configuration) HasNode(id NodeID) bool {
	for _, n := range c.Nodes {
		if n == id {
			return true
		}
	}
	return false
}

// votersExcept returns the voting members other than self.
func (c Configuration) votersExcept(self NodeID) []NodeID {
	out := make([]NodeID, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		if n != self {
			out = append(out, n)
		}
	}
	return out
}

func (c Configuration) String() string {
	return fmt.Sprintf("config{nodes:%v replicas:%v term:%d index:%d}", c.Nodes, c.Replicas, c.Term, c.Index)
}

// LogEntry is the single envelope type used for both the durable log and
// the wire. Every field beyond Payload/Extent is optional; nil/zero means
// absent, per the pointer-optional convention described in the design
// notes (no separate "has_" bits).
type LogEntry struct {
	// Term/Index are set once the entry has passed through a leader.
	// A nil Term means this is a summary entry standing in for a range
	// of entries the host has already compacted away.
	Term  *Term
	Index Index

	PreviousLogTerm  Term
	PreviousLogIndex Index

	// Extent is the number of additional contiguous indices this entry
	// covers beyond Index (0 for a single position).
	Extent Index

	Payload []byte

	Config *Configuration

	Leader *NodeID
	Vote   *NodeID

	DataCommitted   Index
	ConfigCommitted Index
}

// IsSummary reports whether this entry stands in for a compacted range
// rather than carrying a leader-assigned term.
func (e LogEntry) IsSummary() bool {
	return e.Term == nil
}

// IsMetadataOnly reports whether this entry carries no log position at
// all (pure term/vote/leader/config bookkeeping).
func (e LogEntry) IsMetadataOnly() bool {
	return e.Index == 0
}

func termPtr(t Term) *Term     { return &t }
func nodePtr(n NodeID) *NodeID { return &n }

func (e LogEntry) termOr(def Term) Term {
	if e.Term == nil {
		return def
	}
	return *e.Term
}
