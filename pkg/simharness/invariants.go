package simharness

import (
	"fmt"
	"sync"

	"github.com/quorumkv/raft/pkg/raft"
)

// Violation describes one broken safety invariant, grounded on the
// teacher's InvariantViolation.
type Violation struct {
	Kind    string
	Message string
}

// InvariantChecker accumulates committed entries across every node in a
// Cluster and checks the safety invariants from SPEC_FULL.md §8:
// agreement on committed entries, monotonic commit, and single-leader-
// per-term.
type InvariantChecker struct {
	mu        sync.Mutex
	committed map[raft.NodeID][]raft.LogEntry
	leaders   map[raft.Term]map[raft.NodeID]bool
}

// NewInvariantChecker constructs an empty checker.
func NewInvariantChecker() *InvariantChecker {
	return &InvariantChecker{
		committed: make(map[raft.NodeID][]raft.LogEntry),
		leaders:   make(map[raft.Term]map[raft.NodeID]bool),
	}
}

// RecordCommit registers one committed entry observed at node.
func (ic *InvariantChecker) RecordCommit(node raft.NodeID, e raft.LogEntry) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ic.committed[node] = append(ic.committed[node], e)
}

// RecordLeader registers that node believes itself leader at term.
func (ic *InvariantChecker) RecordLeader(term raft.Term, node raft.NodeID) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.leaders[term] == nil {
		ic.leaders[term] = make(map[raft.NodeID]bool)
	}
	ic.leaders[term][node] = true
}

// Check runs every invariant and returns every violation found.
func (ic *InvariantChecker) Check() []Violation {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	var out []Violation
	out = append(out, ic.checkAgreement()...)
	out = append(out, ic.checkMonotonic()...)
	out = append(out, ic.checkSingleLeaderPerTerm()...)
	return out
}

func (ic *InvariantChecker) checkAgreement() []Violation {
	byIndex := make(map[raft.Index]map[string]bool)
	for node, entries := range ic.committed {
		for _, e := range entries {
			key := string(e.Payload)
			if byIndex[e.Index] == nil {
				byIndex[e.Index] = make(map[string]bool)
			}
			byIndex[e.Index][key] = true
			_ = node
		}
	}
	var out []Violation
	for idx, values := range byIndex {
		if len(values) > 1 {
			out = append(out, Violation{
				Kind:    "agreement",
				Message: fmt.Sprintf("index %d committed with %d distinct payloads across nodes", idx, len(values)),
			})
		}
	}
	return out
}

func (ic *InvariantChecker) checkMonotonic() []Violation {
	var out []Violation
	for node, entries := range ic.committed {
		var last raft.Index
		for _, e := range entries {
			if e.Index < last {
				out = append(out, Violation{
					Kind:    "monotonic-commit",
					Message: fmt.Sprintf("node %s committed index %d after %d", node, e.Index, last),
				})
			}
			last = e.Index
		}
	}
	return out
}

func (ic *InvariantChecker) checkSingleLeaderPerTerm() []Violation {
	var out []Violation
	for term, nodes := range ic.leaders {
		if len(nodes) > 1 {
			out = append(out, Violation{
				Kind:    "single-leader",
				Message: fmt.Sprintf("term %d has %d simultaneous leaders", term, len(nodes)),
			})
		}
	}
	return out
}

// Sync drains every committed entry and current leader from cluster's
// hosts/instances into the checker. Call periodically or once at the end
// of a scenario.
func (ic *InvariantChecker) Sync(c *Cluster) {
	for id, host := range c.hosts {
		commits := host.Commits()
		recorded := len(ic.committed[id])
		for _, e := range commits[recorded:] {
			ic.RecordCommit(id, e)
		}
		if inst := c.insts[id]; inst.IsLeader() {
			ic.RecordLeader(inst.Term(), id)
		}
	}
}
