package main

import (
	"sync"

	"github.com/quorumkv/raft/pkg/raft"
)

// guardedInstance serializes every call into a *raft.Instance. The core
// itself holds no lock (SPEC_FULL.md §5); the host — here, three
// goroutines: the tick loop, the transport's accept loop, and the HTTP
// handler — is responsible for the mutex.
type guardedInstance struct {
	mu   sync.Mutex
	inst *raft.Instance
}

func newGuardedInstance(inst *raft.Instance) *guardedInstance {
	return &guardedInstance{inst: inst}
}

func (g *guardedInstance) Tick(now raft.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inst.Tick(now)
}

func (g *guardedInstance) Run(now raft.Time, msg raft.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inst.Run(now, msg)
}

func (g *guardedInstance) Propose(payload []byte, config *raft.Configuration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inst.Propose(payload, config)
}

func (g *guardedInstance) IsLeader() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inst.IsLeader()
}

func (g *guardedInstance) Leader() raft.NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inst.Leader()
}

func (g *guardedInstance) ID() raft.NodeID { return g.inst.ID() }

func (g *guardedInstance) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inst.Stop()
}
