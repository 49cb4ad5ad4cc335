package main

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/quorumkv/raft/pkg/api"
	"github.com/quorumkv/raft/pkg/logstore"
	"github.com/quorumkv/raft/pkg/membership"
	"github.com/quorumkv/raft/pkg/raft"
	"github.com/quorumkv/raft/pkg/statemachine"
	"github.com/quorumkv/raft/pkg/transport"
)

// serverHost is the concrete raft.Host wiring this binary uses: durable
// persistence via pkg/logstore, network delivery via pkg/transport,
// application state via pkg/statemachine, client result delivery via
// pkg/api's PendingResults, and Prometheus gauges, grounded on the
// teacher's cmd/server/main.go wiring order.
type serverHost struct {
	log       zerolog.Logger
	store     *logstore.Store
	xport     *transport.Transport
	sm        *statemachine.Store
	pending   *api.PendingResults
	dir       *membership.Directory
	metrics   *serverMetrics

	mu   sync.Mutex
	inst *guardedInstance // set after construction, for Deliver/config metrics
}

type serverMetrics struct {
	term          prometheus.Gauge
	dataCommitted prometheus.Gauge
	isLeader      prometheus.Gauge
	messagesSent  prometheus.Counter
	messagesDropped prometheus.Counter
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	m := &serverMetrics{
		term:            prometheus.NewGauge(prometheus.GaugeOpts{Name: "quorumkv_raft_term", Help: "Current term."}),
		dataCommitted:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "quorumkv_raft_data_committed", Help: "Data-committed watermark."}),
		isLeader:        prometheus.NewGauge(prometheus.GaugeOpts{Name: "quorumkv_raft_is_leader", Help: "1 if this node believes itself leader."}),
		messagesSent:    prometheus.NewCounter(prometheus.CounterOpts{Name: "quorumkv_raft_messages_sent_total", Help: "Messages accepted by the transport."}),
		messagesDropped: prometheus.NewCounter(prometheus.CounterOpts{Name: "quorumkv_raft_messages_dropped_total", Help: "Messages the transport failed to send."}),
	}
	reg.MustRegister(m.term, m.dataCommitted, m.isLeader, m.messagesSent, m.messagesDropped)
	return m
}

func newServerHost(log zerolog.Logger, store *logstore.Store, xport *transport.Transport, sm *statemachine.Store, pending *api.PendingResults, dir *membership.Directory, metrics *serverMetrics) *serverHost {
	return &serverHost{log: log, store: store, xport: xport, sm: sm, pending: pending, dir: dir, metrics: metrics}
}

func (h *serverHost) bind(inst *guardedInstance) {
	h.mu.Lock()
	h.inst = inst
	h.mu.Unlock()
}

func (h *serverHost) SendMessage(dest raft.NodeID, msg raft.Message) bool {
	ok := h.xport.SendMessage(dest, msg)
	if ok {
		h.metrics.messagesSent.Inc()
	} else {
		h.metrics.messagesDropped.Inc()
	}
	return ok
}

func (h *serverHost) GetLogEntry(term raft.Term, start, end raft.Index) (raft.LogEntry, bool) {
	return h.store.GetLogEntry(term, start, end)
}

func (h *serverHost) WriteLogEntry(entry raft.LogEntry) {
	h.store.WriteLogEntry(entry)
	if entry.Term != nil {
		h.metrics.term.Set(float64(*entry.Term))
	}
	h.metrics.dataCommitted.Set(float64(entry.DataCommitted))
}

func (h *serverHost) CommitLogEntry(entry raft.LogEntry) {
	if len(entry.Payload) == 0 {
		return
	}
	cmd, err := statemachine.Decode(entry.Payload)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to decode committed payload")
		return
	}
	_, applyErr := h.sm.Apply(entry.Payload)
	if cmd.ClientID != "" {
		h.pending.Resolve(cmd.ClientID, cmd.RequestID, applyErr)
	}
}

func (h *serverHost) LeaderChange(leader raft.NodeID) {
	h.mu.Lock()
	isLeader := h.inst != nil && leader == h.inst.ID()
	h.mu.Unlock()
	if isLeader {
		h.metrics.isLeader.Set(1)
	} else {
		h.metrics.isLeader.Set(0)
	}
	h.log.Info().Str("leader", string(leader)).Msg("leader changed")
}

func (h *serverHost) ConfigChange(cfg raft.Configuration) {
	h.dir.Sync(cfg)
	h.log.Info().Str("config", cfg.String()).Msg("configuration changed")
}

// Deliver implements transport.Dispatcher, routing an inbound frame to
// this node's single Instance. A multi-instance-per-process deployment
// would route by dest; this binary only ever hosts one.
func (h *serverHost) Deliver(dest raft.NodeID, msg raft.Message) {
	h.mu.Lock()
	inst := h.inst
	h.mu.Unlock()
	if inst == nil || dest != inst.ID() {
		return
	}
	inst.Run(raft.Time(nowMillis()), msg)
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
