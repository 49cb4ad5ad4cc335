// Package membership is the node-id to network-address directory a host
// needs to dial peers. raft.Configuration intentionally carries no
// addresses (SPEC_FULL.md §3), so the host tracks them separately here,
// generalized from the teacher's pkg/cluster/membership.go.
package membership

import (
	"fmt"
	"sync"

	"github.com/quorumkv/raft/pkg/raft"
)

// Member is one entry in the directory.
type Member struct {
	ID      raft.NodeID
	Address string
	Voting  bool
}

// Directory is a mutex-guarded node-id to address map.
type Directory struct {
	mu      sync.RWMutex
	members map[raft.NodeID]Member
}

// NewDirectory constructs an empty Directory.
func NewDirectory() *Directory {
	return &Directory{members: make(map[raft.NodeID]Member)}
}

// Add inserts or replaces a member entry.
func (d *Directory) Add(m Member) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[m.ID] = m
}

// Remove deletes a member entry.
func (d *Directory) Remove(id raft.NodeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.members, id)
}

// Address returns the network address for id.
func (d *Directory) Address(id raft.NodeID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.members[id]
	if !ok {
		return "", fmt.Errorf("membership: unknown node %q", id)
	}
	return m.Address, nil
}

// Members returns a snapshot of all known members.
func (d *Directory) Members() []Member {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Member, 0, len(d.members))
	for _, m := range d.members {
		out = append(out, m)
	}
	return out
}

// Sync replaces voting-member entries to match the given configuration,
// called from raft.Host.ConfigChange. Addresses for newly-added nodes
// must already have been Add-ed out of band (e.g. from the cluster
// config file) since raft.Configuration carries no address information.
func (d *Directory) Sync(cfg raft.Configuration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	voting := make(map[raft.NodeID]bool, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		voting[n] = true
	}
	for id, m := range d.members {
		m.Voting = voting[id]
		d.members[id] = m
	}
}

// QuorumSize returns the strict-majority size for n voting members.
func QuorumSize(n int) int {
	return n/2 + 1
}
