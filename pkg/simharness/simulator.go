package simharness

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quorumkv/raft/pkg/raft"
	"github.com/quorumkv/raft/pkg/statemachine"
)

// SimHost is an in-memory raft.Host that records everything an
// application host would otherwise persist/apply, so scenario tests can
// assert on it directly. Message delivery is delegated to a shared
// Network so drop/partition/delay behavior is simulator-controlled
// rather than real network jitter.
type SimHost struct {
	id      raft.NodeID
	net     *Network
	store   *statemachine.Store
	entries []raft.LogEntry
	commits []raft.LogEntry
	leader  raft.NodeID
	config  raft.Configuration
}

// NewSimHost constructs a SimHost for id, wired to net.
func NewSimHost(id raft.NodeID, net *Network, store *statemachine.Store) *SimHost {
	return &SimHost{id: id, net: net, store: store}
}

func (h *SimHost) SendMessage(dest raft.NodeID, msg raft.Message) bool {
	return h.net.SendFrom(h.id)(dest, msg)
}

func (h *SimHost) GetLogEntry(term raft.Term, start, end raft.Index) (raft.LogEntry, bool) {
	for _, e := range h.entries {
		if e.Index > start && e.Index <= end {
			return e, true
		}
	}
	return raft.LogEntry{}, false
}

func (h *SimHost) WriteLogEntry(e raft.LogEntry) {
	if e.IsMetadataOnly() {
		return
	}
	h.entries = append(h.entries, e)
}

func (h *SimHost) CommitLogEntry(e raft.LogEntry) {
	h.commits = append(h.commits, e)
	if h.store != nil && len(e.Payload) > 0 {
		_, _ = h.store.Apply(e.Payload)
	}
}

func (h *SimHost) LeaderChange(l raft.NodeID)      { h.leader = l }
func (h *SimHost) ConfigChange(c raft.Configuration) { h.config = c }

// Commits returns every entry committed so far, in order.
func (h *SimHost) Commits() []raft.LogEntry { return append([]raft.LogEntry(nil), h.commits...) }

// Cluster drives a set of raft.Instance values sharing one Clock and
// Network, generalized from the teacher's Simulator/TestCluster.
type Cluster struct {
	Clock   *Clock
	Network *Network
	log     zerolog.Logger

	nodes   []raft.NodeID
	insts   map[raft.NodeID]*raft.Instance
	hosts   map[raft.NodeID]*SimHost
	crashed map[raft.NodeID]bool

	seed int64
}

// NewCluster builds a Cluster of len(nodes) instances with the given
// initial (bootstrap) configuration, all sharing a deterministic Network
// seeded by seed.
func NewCluster(nodes []raft.NodeID, seed int64) *Cluster {
	clock := NewClock()
	net := NewNetwork(clock, seed)
	c := &Cluster{
		Clock:   clock,
		Network: net,
		log:     zerolog.Nop(),
		nodes:   nodes,
		insts:   make(map[raft.NodeID]*raft.Instance),
		hosts:   make(map[raft.NodeID]*SimHost),
		crashed: make(map[raft.NodeID]bool),
		seed:    seed,
	}

	cfg := raft.Configuration{Nodes: nodes}
	for i, id := range nodes {
		c.spawn(id, cfg, int64(i)+1)
	}
	return c
}

func (c *Cluster) spawn(id raft.NodeID, cfg raft.Configuration, seed int64) {
	host := NewSimHost(id, c.Network, statemachine.NewStore())
	inst := raft.NewInstance(id, host, c.log)
	inst.Recover(raft.LogEntry{Config: &cfg})
	inst.Start(raft.Time(c.Clock.Now()), seed)

	c.insts[id] = inst
	c.hosts[id] = host
	c.Network.Register(id, inst)
	c.crashed[id] = false
}

// AddNode spawns a new instance for id, registered with the network and
// ticking alongside the rest of the cluster, bootstrapped with cfg (the
// configuration in effect before any reconfiguration names id as a
// member). It does not itself vote or propose until a committed
// configuration change adds it, matching scenario 4/5's "start the new
// node, then reconfigure" sequencing (SPEC_FULL.md §8).
func (c *Cluster) AddNode(id raft.NodeID, cfg raft.Configuration) {
	c.nodes = append(c.nodes, id)
	c.spawn(id, cfg, int64(len(c.nodes)))
}

// Instance returns the live raft.Instance for id.
func (c *Cluster) Instance(id raft.NodeID) *raft.Instance { return c.insts[id] }

// Host returns the SimHost for id, for asserting on commits/entries.
func (c *Cluster) Host(id raft.NodeID) *SimHost { return c.hosts[id] }

// AdvanceBy ticks the clock forward by stepMillis, delivering any due
// network events and then ticking every non-crashed instance. It repeats
// until the total elapsed time reaches durationMillis.
func (c *Cluster) AdvanceBy(durationMillis, stepMillis int64) {
	var elapsed int64
	for elapsed < durationMillis {
		now := c.Clock.Advance(stepMillis)
		c.Network.DrainDueAt(now)
		for _, id := range c.nodes {
			if !c.crashed[id] {
				c.insts[id].Tick(raft.Time(now))
			}
		}
		elapsed += stepMillis
	}
}

// Leader returns the node currently believing itself leader, or "" if
// none or more than one (the latter would itself be a safety violation
// the invariant checker would catch).
func (c *Cluster) Leader() raft.NodeID {
	var found raft.NodeID
	for _, id := range c.nodes {
		if !c.crashed[id] && c.insts[id].IsLeader() {
			if found != "" {
				return ""
			}
			found = id
		}
	}
	return found
}

// WaitForLeader advances the cluster in stepMillis increments until a
// leader is observed or budgetMillis is exhausted.
func (c *Cluster) WaitForLeader(budgetMillis, stepMillis int64) (raft.NodeID, error) {
	var elapsed int64
	for elapsed < budgetMillis {
		c.AdvanceBy(stepMillis, stepMillis)
		elapsed += stepMillis
		if l := c.Leader(); l != "" {
			return l, nil
		}
	}
	return "", fmt.Errorf("simharness: no leader elected within %dms", budgetMillis)
}

// Partition cuts traffic between a and b in both directions.
func (c *Cluster) Partition(a, b raft.NodeID) { c.Network.Partition(a, b) }

// Heal restores traffic between a and b.
func (c *Cluster) Heal(a, b raft.NodeID) { c.Network.Heal(a, b) }

// HealAll clears every partition/drop condition in the cluster.
func (c *Cluster) HealAll() { c.Network.HealAll() }

// Crash marks id as down: its Tick/Run calls stop being driven and the
// network stops delivering to it (messages addressed to it are simply
// not scheduled, since Network.dest still resolves it — Crash instead
// removes it from the active tick set and partitions it from everyone).
func (c *Cluster) Crash(id raft.NodeID) {
	c.crashed[id] = true
	for _, other := range c.nodes {
		if other != id {
			c.Network.Partition(id, other)
		}
	}
}

// Recover brings a previously Crash-ed node back with a fresh Instance
// seeded from the entries its SimHost had already durably written,
// emulating a process restart reading back its log (SPEC_FULL.md §4.6).
func (c *Cluster) Recover(id raft.NodeID) {
	oldHost := c.hosts[id]
	cfg := raft.Configuration{Nodes: c.nodes}

	newHost := NewSimHost(id, c.Network, statemachine.NewStore())
	newHost.entries = append([]raft.LogEntry(nil), oldHost.entries...)
	inst := raft.NewInstance(id, newHost, c.log)
	inst.Recover(raft.LogEntry{Config: &cfg})
	for _, e := range newHost.entries {
		inst.Recover(e)
	}
	c.seed++
	inst.Start(raft.Time(c.Clock.Now()), c.seed)

	c.insts[id] = inst
	c.hosts[id] = newHost
	c.Network.Register(id, inst)
	for _, other := range c.nodes {
		if other != id {
			c.Network.Heal(id, other)
		}
	}
	c.crashed[id] = false
}
