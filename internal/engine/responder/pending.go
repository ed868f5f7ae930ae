package responder

import (
	"sync"

	"github.com/flowgrid-go/internal/domain/workflow"
)

// PendingReplies tracks inbound webhook requests still waiting for a
// synchronous reply, keyed by request id. The HTTP handler registers before
// enqueueing the job and waits on the returned channel; the responder
// resolves it when the graph produces output.
type PendingReplies struct {
	mu      sync.Mutex
	pending map[string]chan workflow.NodeResponse
}

func NewPendingReplies() *PendingReplies {
	return &PendingReplies{pending: make(map[string]chan workflow.NodeResponse)}
}

// Register opens a reply slot for a request id.
func (p *PendingReplies) Register(requestID string) <-chan workflow.NodeResponse {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan workflow.NodeResponse, 1)
	p.pending[requestID] = ch
	return ch
}

// Resolve delivers a response to a waiting request. Reports false when the
// request is no longer waiting.
func (p *PendingReplies) Resolve(requestID string, resp workflow.NodeResponse) bool {
	p.mu.Lock()
	ch, ok := p.pending[requestID]
	if ok {
		delete(p.pending, requestID)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}

	select {
	case ch <- resp:
		return true
	default:
		return false
	}
}

// Reject drops the slot, used when the HTTP exchange times out.
func (p *PendingReplies) Reject(requestID string) {
	p.mu.Lock()
	delete(p.pending, requestID)
	p.mu.Unlock()
}
