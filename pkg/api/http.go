// Package api is the client-facing HTTP surface for a raft-backed key
// value store, generalized from the teacher's pkg/api/http.go onto the
// new raft.Instance + statemachine.Store types.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quorumkv/raft/pkg/raft"
	"github.com/quorumkv/raft/pkg/statemachine"
)

// Proposer is the subset of *raft.Instance the HTTP handler needs.
type Proposer interface {
	IsLeader() bool
	Leader() raft.NodeID
	Propose(payload []byte, config *raft.Configuration)
}

// AddressResolver maps a raft.NodeID to a dialable address, so a
// not-leader response can point the client at the right node.
type AddressResolver interface {
	Address(id raft.NodeID) (string, error)
}

// Handler serves Get/Set/Delete/status over HTTP.
type Handler struct {
	inst    Proposer
	store   *statemachine.Store
	dir     AddressResolver
	pending *PendingResults
	mux     *http.ServeMux
}

// NewHandler constructs a Handler. dir may be nil, in which case
// not-leader responses omit the redirect address.
func NewHandler(inst Proposer, store *statemachine.Store, dir AddressResolver, pending *PendingResults) *Handler {
	h := &Handler{inst: inst, store: store, dir: dir, pending: pending, mux: http.NewServeMux()}
	h.mux.HandleFunc("/kv/", h.handleKV)
	h.mux.HandleFunc("/status", h.handleStatus)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.mux.ServeHTTP(w, r) }

func (h *Handler) handleKV(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/kv/")
	if key == "" {
		http.Error(w, "key required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		value, ok := h.store.Get(key)
		if !ok {
			http.Error(w, "key not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"value": string(value)})

	case http.MethodPut, http.MethodPost:
		if !h.inst.IsLeader() {
			h.respondNotLeader(w)
			return
		}
		var req struct {
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.proposeAndWait(r.Context(), statemachine.Set, key, []byte(req.Value)); err != nil {
			http.Error(w, err.Error(), http.StatusGatewayTimeout)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case http.MethodDelete:
		if !h.inst.IsLeader() {
			h.respondNotLeader(w)
			return
		}
		if err := h.proposeAndWait(r.Context(), statemachine.Delete, key, nil); err != nil {
			http.Error(w, err.Error(), http.StatusGatewayTimeout)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) proposeAndWait(ctx context.Context, cmdType statemachine.CommandType, key string, value []byte) error {
	clientID := uuid.NewString()
	var requestID uint64 = 1
	payload, err := statemachine.Encode(statemachine.Command{
		Type: cmdType, Key: key, Value: value, ClientID: clientID, RequestID: requestID,
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ch := h.pending.Register(clientID, requestID)
	h.inst.Propose(payload, nil)
	return h.pending.Wait(ctx, clientID, requestID, ch)
}

func (h *Handler) respondNotLeader(w http.ResponseWriter) {
	body := map[string]any{"error": "not leader", "leader_id": string(h.inst.Leader())}
	if h.dir != nil && h.inst.Leader() != "" {
		if addr, err := h.dir.Address(h.inst.Leader()); err == nil {
			body["leader_address"] = addr
		}
	}
	writeJSON(w, http.StatusServiceUnavailable, body)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"is_leader": h.inst.IsLeader(),
		"leader_id": string(h.inst.Leader()),
		"keys":      h.store.Size(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
