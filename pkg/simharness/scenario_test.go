package simharness

import (
	"testing"

	"github.com/quorumkv/raft/pkg/raft"
)

// payloads extracts the application payloads from a list of committed
// entries, skipping config-only entries (nil Payload).
func payloads(entries []raft.LogEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if len(e.Payload) > 0 {
			out = append(out, string(e.Payload))
		}
	}
	return out
}

func requireCommits(t *testing.T, c *Cluster, id raft.NodeID, want ...string) {
	t.Helper()
	got := payloads(c.Host(id).Commits())
	if len(got) != len(want) {
		t.Fatalf("node %s commits = %v, want %v", id, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("node %s commits = %v, want %v", id, got, want)
		}
	}
}

// Scenario 1: one-node, two proposals (SPEC_FULL.md §8.1).
func TestOneNodeTwoProposalsCommitImmediately(t *testing.T) {
	c := NewCluster([]raft.NodeID{"0"}, 5)
	leader, err := c.WaitForLeader(2000, 20)
	if err != nil {
		t.Fatalf("election: %v", err)
	}
	if leader != "0" {
		t.Fatalf("expected node 0 to be leader, got %s", leader)
	}

	c.Instance("0").Propose([]byte("a"), nil)
	c.Instance("0").Propose([]byte("b"), nil)

	requireCommits(t, c, "0", "a", "b")
	if c.Instance("0").Leader() != "0" {
		t.Fatalf("leader should remain 0 throughout, got %s", c.Instance("0").Leader())
	}
}

// Scenario 2: three-node election with leader crash (SPEC_FULL.md §8.2).
func TestThreeNodeElectionAndLeaderCrash(t *testing.T) {
	c := NewCluster([]raft.NodeID{"0", "1", "2"}, 42)

	leader, err := c.WaitForLeader(5000, 20)
	if err != nil {
		t.Fatalf("initial election: %v", err)
	}

	c.Instance(leader).Propose([]byte("a"), nil)
	c.Instance(leader).Propose([]byte("b"), nil)
	c.AdvanceBy(1000, 20)

	for _, id := range []raft.NodeID{"0", "1", "2"} {
		requireCommits(t, c, id, "a", "b")
	}

	ic := NewInvariantChecker()
	ic.Sync(c)
	if v := ic.Check(); len(v) > 0 {
		t.Fatalf("invariant violations before crash: %v", v)
	}

	c.Crash(leader)
	newLeader, err := c.WaitForLeader(5000, 20)
	if err != nil {
		t.Fatalf("re-election after crash: %v", err)
	}
	if newLeader == leader {
		t.Fatalf("expected a different leader after crashing %s", leader)
	}

	var survivors []raft.NodeID
	for _, id := range []raft.NodeID{"0", "1", "2"} {
		if id != leader {
			survivors = append(survivors, id)
		}
	}
	for _, id := range survivors {
		requireCommits(t, c, id, "a", "b")
		if c.Instance(id).Leader() != newLeader {
			t.Fatalf("node %s leader = %s, want %s", id, c.Instance(id).Leader(), newLeader)
		}
	}

	ic.Sync(c)
	if v := ic.Check(); len(v) > 0 {
		t.Fatalf("invariant violations after crash: %v", v)
	}
}

// Scenario 3: minority-partition writes lose, majority-partition writes
// win (SPEC_FULL.md §8.3).
func TestMinorityPartitionLosesMajorityPartitionWins(t *testing.T) {
	nodes := []raft.NodeID{"0", "1", "2", "3", "4"}
	c := NewCluster(nodes, 7)
	leader, err := c.WaitForLeader(5000, 20)
	if err != nil {
		t.Fatalf("election: %v", err)
	}

	var others []raft.NodeID
	for _, id := range nodes {
		if id != leader {
			others = append(others, id)
		}
	}
	// Partition three of the four followers away, leaving the leader
	// with only a minority (itself + one follower).
	for i := 0; i < 3; i++ {
		for _, id := range nodes {
			if id != others[i] {
				c.Partition(others[i], id)
			}
		}
	}

	c.Instance(leader).Propose([]byte("a"), nil)
	c.Instance(leader).Propose([]byte("b"), nil)
	c.AdvanceBy(2000, 20)

	for _, id := range nodes {
		if got := payloads(c.Host(id).Commits()); len(got) != 0 {
			t.Fatalf("node %s must not commit without a majority, got %v", id, got)
		}
	}

	c.HealAll()

	// Partition the old leader and one follower away instead, leaving a
	// three-node majority to elect a new leader.
	strandedA, strandedB := leader, others[0]
	for _, id := range nodes {
		if id != strandedA {
			c.Partition(strandedA, id)
		}
	}
	for _, id := range nodes {
		if id != strandedB && id != strandedA {
			c.Partition(strandedB, id)
		}
	}

	newLeader, err := c.WaitForLeader(5000, 20)
	if err != nil {
		t.Fatalf("majority-side election: %v", err)
	}
	if newLeader == strandedA || newLeader == strandedB {
		t.Fatalf("expected the majority side to elect a leader, got stranded node %s", newLeader)
	}

	c.Instance(newLeader).Propose([]byte("c"), nil)
	c.Instance(newLeader).Propose([]byte("d"), nil)
	c.AdvanceBy(2000, 20)

	c.HealAll()
	c.AdvanceBy(2000, 20)

	for _, id := range nodes {
		requireCommits(t, c, id, "c", "d")
	}
}

// Scenario 4: configuration growth (SPEC_FULL.md §8.4).
func TestConfigurationGrowth(t *testing.T) {
	c := NewCluster([]raft.NodeID{"0", "1"}, 11)
	leader, err := c.WaitForLeader(2000, 20)
	if err != nil {
		t.Fatalf("election: %v", err)
	}

	c.Instance(leader).Propose([]byte("a"), nil)
	c.Instance(leader).Propose([]byte("b"), nil)
	c.AdvanceBy(500, 20)

	c.AddNode("2", raft.Configuration{Nodes: []raft.NodeID{"0", "1"}})

	grown := raft.Configuration{Nodes: []raft.NodeID{"0", "1", "2"}}
	c.Instance(leader).Propose(nil, &grown)
	c.AdvanceBy(3000, 20)

	commits2 := c.Host("2").Commits()
	if len(commits2) != 3 {
		t.Fatalf("node 2 commits = %v, want 3 entries (a, b, config)", payloads(commits2))
	}
	if string(commits2[0].Payload) != "a" || string(commits2[1].Payload) != "b" {
		t.Fatalf("node 2 data commits = %v, want [a b]", payloads(commits2))
	}
	if commits2[2].Config == nil || !commits2[2].Config.HasNode("2") {
		t.Fatalf("node 2's third commit should be the growth config, got %+v", commits2[2])
	}

	want := c.Instance(leader).Leader()
	for _, id := range []raft.NodeID{"0", "1", "2"} {
		if c.Instance(id).Leader() != want {
			t.Fatalf("node %s leader = %s, want %s", id, c.Instance(id).Leader(), want)
		}
	}
}

// Scenario 5: configuration shrink with handoff (SPEC_FULL.md §8.5).
func TestConfigurationShrinkWithHandoff(t *testing.T) {
	c := NewCluster([]raft.NodeID{"0"}, 21)
	if _, err := c.WaitForLeader(2000, 20); err != nil {
		t.Fatalf("election: %v", err)
	}

	c.AddNode("1", raft.Configuration{Nodes: []raft.NodeID{"0"}})

	grown := raft.Configuration{Nodes: []raft.NodeID{"0", "1"}}
	c.Instance("0").Propose(nil, &grown)
	c.AdvanceBy(2000, 20)

	if c.Instance("0").Leader() != "0" {
		t.Fatalf("leader should still be 0 after growth, got %s", c.Instance("0").Leader())
	}

	shrunk := raft.Configuration{Nodes: []raft.NodeID{"1"}, Replicas: []raft.NodeID{"0"}}
	c.Instance("0").Propose(nil, &shrunk)
	c.AdvanceBy(2000, 20)

	if c.Instance("1").Leader() != "1" {
		t.Fatalf("expected node 1 to take over as leader, got %s", c.Instance("1").Leader())
	}
	if c.Instance("0").Leader() != "1" {
		t.Fatalf("expected node 0 to recognize the handoff, leader = %s", c.Instance("0").Leader())
	}
}

// Scenario 6: snapshot, crash, recover (SPEC_FULL.md §8.6).
func TestSnapshotRecoverReproducesState(t *testing.T) {
	c := NewCluster([]raft.NodeID{"0"}, 1)
	_, err := c.WaitForLeader(2000, 20)
	if err != nil {
		t.Fatalf("election: %v", err)
	}

	c.Instance("0").Propose([]byte("a=1"), nil)
	c.Instance("0").Propose([]byte("b=3"), nil)
	c.AdvanceBy(200, 20)

	snap := c.Instance("0").Snapshot(true)
	if len(snap) == 0 {
		t.Fatalf("expected a non-empty snapshot sequence")
	}

	host := NewSimHost("0r", c.Network, nil)
	inst := raft.NewInstance("0r", host, c.log)
	for _, e := range snap {
		inst.Recover(e)
	}
	inst.Start(raft.Time(c.Clock.Now()), 99)

	if inst.DataCommitted() != c.Instance("0").DataCommitted() {
		t.Fatalf("recovered instance data_committed = %d, want %d", inst.DataCommitted(), c.Instance("0").DataCommitted())
	}
}
