package simharness

import (
	"container/heap"
	"math/rand"
	"sync"

	"github.com/quorumkv/raft/pkg/raft"
)

// event is a scheduled action in the simulation, grounded on the
// teacher's Event/EventHeap (container/heap) design.
type event struct {
	time   int64
	seq    int64 // tiebreaker preserving submission order at equal time
	action func()
	index  int
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *eventHeap) Push(x any) {
	e := x.(*event)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// NetworkCondition describes the simulated behavior of one directed link.
type NetworkCondition struct {
	DropRate    float64
	Partitioned bool
}

// Network is a deterministic raft.Host transport shim: every SendMessage
// call is scheduled as a future event on the shared clock/queue instead
// of being delivered synchronously, and can be dropped or blocked
// according to per-link NetworkCondition, grounded on the teacher's
// DeterministicTransport.
type Network struct {
	mu         sync.Mutex
	clock      *Clock
	rng        *rand.Rand
	conditions map[raft.NodeID]map[raft.NodeID]NetworkCondition
	dest       map[raft.NodeID]*raft.Instance
	queue      eventHeap
	seq        int64
	history    []DeliveredMessage
}

// DeliveredMessage records one message that was actually handed to a
// destination instance, for assertions in tests.
type DeliveredMessage struct {
	From, To raft.NodeID
	Time     int64
	Msg      raft.Message
}

// NewNetwork constructs a Network sharing clock and seeded for
// reproducible drop decisions.
func NewNetwork(clock *Clock, seed int64) *Network {
	return &Network{
		clock:      clock,
		rng:        rand.New(rand.NewSource(seed)),
		conditions: make(map[raft.NodeID]map[raft.NodeID]NetworkCondition),
		dest:       make(map[raft.NodeID]*raft.Instance),
	}
}

// Register associates a node id with the Instance that should receive
// messages addressed to it.
func (n *Network) Register(id raft.NodeID, inst *raft.Instance) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dest[id] = inst
}

// SetCondition configures message loss/partition behavior from -> to.
func (n *Network) SetCondition(from, to raft.NodeID, cond NetworkCondition) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conditions[from] == nil {
		n.conditions[from] = make(map[raft.NodeID]NetworkCondition)
	}
	n.conditions[from][to] = cond
}

// Partition cuts all traffic in both directions between a and b.
func (n *Network) Partition(a, b raft.NodeID) {
	n.SetCondition(a, b, NetworkCondition{Partitioned: true})
	n.SetCondition(b, a, NetworkCondition{Partitioned: true})
}

// Heal restores traffic in both directions between a and b.
func (n *Network) Heal(a, b raft.NodeID) {
	n.SetCondition(a, b, NetworkCondition{})
	n.SetCondition(b, a, NetworkCondition{})
}

// HealAll clears every configured condition.
func (n *Network) HealAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.conditions = make(map[raft.NodeID]map[raft.NodeID]NetworkCondition)
}

func (n *Network) condition(from, to raft.NodeID) NetworkCondition {
	if m, ok := n.conditions[from]; ok {
		return m[to]
	}
	return NetworkCondition{}
}

// SendFrom returns a raft.Host-shaped SendMessage closure bound to from,
// for embedding in a per-instance harness host (see simulator.go).
func (n *Network) SendFrom(from raft.NodeID) func(dest raft.NodeID, msg raft.Message) bool {
	return func(dest raft.NodeID, msg raft.Message) bool {
		n.mu.Lock()
		cond := n.condition(from, dest)
		if cond.Partitioned {
			n.mu.Unlock()
			return false
		}
		if cond.DropRate > 0 && n.rng.Float64() < cond.DropRate {
			n.mu.Unlock()
			return false
		}
		target, ok := n.dest[dest]
		if !ok {
			n.mu.Unlock()
			return false
		}
		n.seq++
		seq := n.seq
		n.mu.Unlock()

		deliverAt := n.clock.Now()
		n.schedule(deliverAt, seq, func() {
			target.Run(raft.Time(deliverAt), msg)
			n.mu.Lock()
			n.history = append(n.history, DeliveredMessage{From: from, To: dest, Time: deliverAt, Msg: msg})
			n.mu.Unlock()
		})
		return true
	}
}

func (n *Network) schedule(at, seq int64, action func()) {
	n.mu.Lock()
	heap.Push(&n.queue, &event{time: at, seq: seq, action: action})
	n.mu.Unlock()
}

// DrainDueAt runs every event scheduled at or before now, in (time, seq)
// order. Call this once per tick after advancing the clock.
func (n *Network) DrainDueAt(now int64) {
	for {
		n.mu.Lock()
		if n.queue.Len() == 0 || n.queue[0].time > now {
			n.mu.Unlock()
			return
		}
		e := heap.Pop(&n.queue).(*event)
		n.mu.Unlock()
		e.action()
	}
}

// History returns every message actually delivered so far.
func (n *Network) History() []DeliveredMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]DeliveredMessage(nil), n.history...)
}
