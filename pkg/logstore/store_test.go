package logstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quorumkv/raft/pkg/raft"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raft.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWriteAndGetLogEntry(t *testing.T) {
	s := openTestStore(t)
	term := raft.Term(1)
	entry := raft.LogEntry{Term: &term, Index: 1, Payload: []byte("hello")}

	s.WriteLogEntry(entry)

	got, ok := s.GetLogEntry(term, 0, 1)
	require.True(t, ok)
	require.Equal(t, entry.Index, got.Index)
	require.Equal(t, entry.Payload, got.Payload)
}

func TestReplayRoundTrip(t *testing.T) {
	s := openTestStore(t)
	term := raft.Term(2)
	s.WriteLogEntry(raft.LogEntry{Term: &term, Index: 1, Payload: []byte("a")})
	s.WriteLogEntry(raft.LogEntry{Term: &term, Index: 2, Payload: []byte("b")})

	var replayed []raft.LogEntry
	err := s.Replay(func(e raft.LogEntry) { replayed = append(replayed, e) })
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(replayed), 2)
}

func TestSaveSnapshotCompactsOldEntries(t *testing.T) {
	s := openTestStore(t)
	term := raft.Term(1)
	s.WriteLogEntry(raft.LogEntry{Term: &term, Index: 1, Payload: []byte("a")})
	s.WriteLogEntry(raft.LogEntry{Term: &term, Index: 2, Payload: []byte("b")})

	require.NoError(t, s.SaveSnapshot(raft.LogEntry{Term: &term, Index: 2}))

	_, ok := s.GetLogEntry(term, 0, 1)
	require.True(t, ok, "expected a snapshot summary entry to stand in for the compacted range")
}
