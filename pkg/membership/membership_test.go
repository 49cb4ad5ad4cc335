package membership

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumkv/raft/pkg/raft"
)

func TestAddRemoveAddress(t *testing.T) {
	d := NewDirectory()
	d.Add(Member{ID: "0", Address: "127.0.0.1:9000", Voting: true})

	addr, err := d.Address("0")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", addr)

	d.Remove("0")
	_, err = d.Address("0")
	require.Error(t, err)
}

func TestSyncMarksVotingFromConfig(t *testing.T) {
	d := NewDirectory()
	d.Add(Member{ID: "0", Address: "a:1"})
	d.Add(Member{ID: "1", Address: "b:1"})

	d.Sync(raft.Configuration{Nodes: []raft.NodeID{"0"}, Replicas: []raft.NodeID{"1"}})

	members := map[raft.NodeID]Member{}
	for _, m := range d.Members() {
		members[m.ID] = m
	}
	require.True(t, members["0"].Voting)
	require.False(t, members["1"].Voting)
}

func TestQuorumSize(t *testing.T) {
	require.Equal(t, 1, QuorumSize(1))
	require.Equal(t, 2, QuorumSize(3))
	require.Equal(t, 3, QuorumSize(5))
}
