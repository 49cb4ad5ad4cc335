package raft

import (
	"testing"

	"github.com/rs/zerolog"
)

// fakeHost is a minimal in-memory Host used by unit tests in this
// package; the full deterministic multi-instance harness lives in
// pkg/simharness and drives the seed scenarios end to end.
type fakeHost struct {
	id      NodeID
	cluster map[NodeID]*Instance
	clock   *Time
	entries []LogEntry
	commits []LogEntry
	leader  NodeID
	config  Configuration
	drop    map[NodeID]bool
}

func newFakeHost(id NodeID) *fakeHost {
	return &fakeHost{id: id, drop: map[NodeID]bool{}}
}

func (h *fakeHost) SendMessage(dest NodeID, msg Message) bool {
	if h.drop[dest] {
		return false
	}
	target, ok := h.cluster[dest]
	if !ok {
		return false
	}
	var now Time
	if h.clock != nil {
		now = *h.clock
	}
	target.Run(now, msg)
	return true
}

func (h *fakeHost) GetLogEntry(term Term, start, end Index) (LogEntry, bool) {
	for _, e := range h.entries {
		if e.Index > start && e.Index <= end {
			return e, true
		}
	}
	return LogEntry{}, false
}

func (h *fakeHost) WriteLogEntry(e LogEntry) {
	if e.IsMetadataOnly() {
		return
	}
	h.entries = append(h.entries, e)
}

func (h *fakeHost) CommitLogEntry(e LogEntry) { h.commits = append(h.commits, e) }
func (h *fakeHost) LeaderChange(l NodeID)     { h.leader = l }
func (h *fakeHost) ConfigChange(c Configuration) { h.config = c }

func testLogger() zerolog.Logger { return zerolog.Nop() }

func TestSingleNodeTwoProposalsCommitImmediately(t *testing.T) {
	host := newFakeHost("0")
	inst := NewInstance("0", host, testLogger())
	host.cluster = map[NodeID]*Instance{"0": inst}

	inst.Recover(LogEntry{Config: &Configuration{Nodes: []NodeID{"0"}}})
	inst.Start(0, 1)

	if !inst.IsLeader() {
		t.Fatalf("single node must be its own leader immediately, leader=%q", inst.Leader())
	}

	inst.Propose([]byte("a"), nil)
	inst.Propose([]byte("b"), nil)

	if len(host.commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(host.commits))
	}
	if string(host.commits[0].Payload) != "a" || string(host.commits[1].Payload) != "b" {
		t.Fatalf("unexpected commit payloads: %v", host.commits)
	}
}

func TestThreeNodeElection(t *testing.T) {
	cfg := Configuration{Nodes: []NodeID{"0", "1", "2"}}
	hosts := map[NodeID]*fakeHost{}
	insts := map[NodeID]*Instance{}
	cluster := map[NodeID]*Instance{}
	var clock Time

	for _, id := range cfg.Nodes {
		h := newFakeHost(id)
		h.cluster = cluster
		h.clock = &clock
		inst := NewInstance(id, h, testLogger())
		inst.SetElectionTimeout(100)
		hosts[id] = h
		insts[id] = inst
		cluster[id] = inst
	}
	for _, id := range cfg.Nodes {
		insts[id].Recover(LogEntry{Config: &cfg})
	}
	for i, id := range cfg.Nodes {
		insts[id].Start(Time(i), int64(i)+1)
	}

	leaderFound := false
	for tick := 0; tick < 500 && !leaderFound; tick++ {
		clock += 10
		for _, id := range cfg.Nodes {
			insts[id].Tick(clock)
		}
		for _, id := range cfg.Nodes {
			if insts[id].IsLeader() {
				leaderFound = true
			}
		}
	}
	if !leaderFound {
		t.Fatalf("no leader elected within simulated ticks")
	}

	var leaderID NodeID
	for _, id := range cfg.Nodes {
		if insts[id].IsLeader() {
			leaderID = id
		}
	}
	insts[leaderID].Propose([]byte("a"), nil)
	insts[leaderID].Propose([]byte("b"), nil)

	for tick := 0; tick < 200; tick++ {
		clock += 10
		for _, id := range cfg.Nodes {
			insts[id].Tick(clock)
		}
	}

	for _, id := range cfg.Nodes {
		if len(hosts[id].commits) < 2 {
			t.Fatalf("node %s did not commit both entries: %v", id, hosts[id].commits)
		}
	}
}
