package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/quorumkv/raft/pkg/membership"
	"github.com/quorumkv/raft/pkg/raft"
)

type recordingDispatcher struct {
	mu  sync.Mutex
	got []raft.Message
}

func (r *recordingDispatcher) Deliver(dest raft.NodeID, msg raft.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, msg)
}

func (r *recordingDispatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func TestSendMessageDeliversAcrossTCP(t *testing.T) {
	dir := membership.NewDirectory()
	disp := &recordingDispatcher{}

	serverXport := New(NodeSelf("server"), dir, disp, zerolog.Nop())
	require.NoError(t, serverXport.Listen("127.0.0.1:0"))
	defer serverXport.Close()

	addr := serverXport.listener.Addr().String()
	dir.Add(membership.Member{ID: "server", Address: addr})

	clientXport := New(NodeSelf("client"), dir, &recordingDispatcher{}, zerolog.Nop())
	defer clientXport.Close()

	ok := clientXport.SendMessage("server", raft.Message{From: "client", Term: 1})
	require.True(t, ok)

	require.Eventually(t, func() bool { return disp.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSendMessageToUnknownNodeFails(t *testing.T) {
	dir := membership.NewDirectory()
	disp := &recordingDispatcher{}
	xport := New(NodeSelf("client"), dir, disp, zerolog.Nop())
	defer xport.Close()

	ok := xport.SendMessage("ghost", raft.Message{})
	require.False(t, ok)
}
