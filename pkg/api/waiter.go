package api

import (
	"context"
	"fmt"
	"sync"
)

// pendingKey identifies one in-flight client request.
type pendingKey struct {
	clientID  string
	requestID uint64
}

// PendingResults lets the HTTP handler block a write until the
// application's CommitLogEntry callback resolves it, matching the
// teacher's SubmitWithResult/pending-command design (SPEC_FULL.md §4.12)
// without requiring *raft.Instance itself to know about clients.
type PendingResults struct {
	mu      sync.Mutex
	waiters map[pendingKey]chan error
}

// NewPendingResults constructs an empty table.
func NewPendingResults() *PendingResults {
	return &PendingResults{waiters: make(map[pendingKey]chan error)}
}

// Register must be called before Propose-ing the corresponding command.
func (p *PendingResults) Register(clientID string, requestID uint64) <-chan error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan error, 1)
	p.waiters[pendingKey{clientID, requestID}] = ch
	return ch
}

// Resolve is called from the host's CommitLogEntry callback once the
// command has actually been applied.
func (p *PendingResults) Resolve(clientID string, requestID uint64, err error) {
	p.mu.Lock()
	ch, ok := p.waiters[pendingKey{clientID, requestID}]
	if ok {
		delete(p.waiters, pendingKey{clientID, requestID})
	}
	p.mu.Unlock()
	if ok {
		ch <- err
	}
}

// Wait blocks until Resolve is called for (clientID, requestID) or ctx is
// done, whichever comes first.
func (p *PendingResults) Wait(ctx context.Context, clientID string, requestID uint64, ch <-chan error) error {
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		p.mu.Lock()
		delete(p.waiters, pendingKey{clientID, requestID})
		p.mu.Unlock()
		return fmt.Errorf("api: request timed out waiting for commit: %w", ctx.Err())
	}
}
