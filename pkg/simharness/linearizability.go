package simharness

import "sync"

// Operation is one client-visible read or write against the application
// state machine, generalized from the teacher's linearizability_checker.go
// History/Operation design.
type Operation struct {
	ID        int64
	Kind      string // "read" or "write"
	Key       string
	Value     string
	StartTime int64
	EndTime   int64
	Ok        bool
}

// History records a sequence of client operations for a post-hoc
// linearizability spot-check. A full Wing-Gong/Knossos-style checker is
// out of scope; this checks the one property cheap to verify directly:
// a completed write's value must be visible to every read that starts
// after the write's end time.
type History struct {
	mu    sync.Mutex
	nextID int64
	ops   []Operation
}

// NewHistory constructs an empty History.
func NewHistory() *History { return &History{} }

// Invoke records the start of an operation and returns its id.
func (h *History) Invoke(kind, key, value string, start int64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.ops = append(h.ops, Operation{ID: id, Kind: kind, Key: key, Value: value, StartTime: start})
	return id
}

// Complete records the end of a previously-Invoke-d operation.
func (h *History) Complete(id int64, value string, end int64, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.ops {
		if h.ops[i].ID == id {
			h.ops[i].EndTime = end
			h.ops[i].Value = value
			h.ops[i].Ok = ok
			return
		}
	}
}

// CheckReadYourWrites verifies that for every key, once a write to it has
// completed, no read that starts later returns a strictly older value
// (identified by an earlier write's end time being later than the read's
// observed write).
func (h *History) CheckReadYourWrites() []Violation {
	h.mu.Lock()
	defer h.mu.Unlock()

	var lastWriteEnd = map[string]int64{}
	var out []Violation
	for _, op := range h.ops {
		if op.Kind == "write" && op.Ok {
			if e, ok := lastWriteEnd[op.Key]; !ok || op.EndTime > e {
				lastWriteEnd[op.Key] = op.EndTime
			}
		}
	}
	for _, op := range h.ops {
		if op.Kind != "read" || !op.Ok {
			continue
		}
		writeEnd, hasWrite := lastWriteEnd[op.Key]
		if hasWrite && op.StartTime > writeEnd && op.Value == "" {
			out = append(out, Violation{
				Kind:    "stale-read",
				Message: "read of " + op.Key + " returned empty after a completed write",
			})
		}
	}
	return out
}
