package mcpserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventEmitter allows the approval queue to notify the frontend.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// PendingAction represents a destructive operation awaiting user approval.
type PendingAction struct {
	ID          string `json:"id"`
	Tool        string `json:"tool"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

// Policy decides what happens to a destructive tool call.
type Policy int

const (
	// PolicyRefuse rejects every destructive call. Used when no frontend
	// is attached to ask.
	PolicyRefuse Policy = iota
	// PolicyAsk emits mcp:approval-required and waits for Approve/Reject.
	PolicyAsk
	// PolicyAllow runs destructive calls without asking.
	PolicyAllow
)

// ApprovalQueue manages human-in-the-loop approval for destructive MCP
// tool calls such as deletes and batch deletes.
type ApprovalQueue struct {
	mu      sync.Mutex
	pending map[string]chan bool
	ctx     context.Context
	emitter EventEmitter
	policy  Policy
	timeout time.Duration
}

func NewApprovalQueue(ctx context.Context, emitter EventEmitter, policy Policy) *ApprovalQueue {
	return &ApprovalQueue{
		pending: make(map[string]chan bool),
		ctx:     ctx,
		emitter: emitter,
		policy:  policy,
		timeout: 120 * time.Second,
	}
}

// SetTimeout changes how long Request waits for a decision.
func (q *ApprovalQueue) SetTimeout(d time.Duration) { q.timeout = d }

// Request blocks until the action is approved, rejected or times out.
func (q *ApprovalQueue) Request(tool, description string) (bool, error) {
	switch q.policy {
	case PolicyAllow:
		return true, nil
	case PolicyRefuse:
		return false, fmt.Errorf("%s needs approval and no console is attached; restart with --allow-writes", tool)
	}

	id := uuid.New().String()
	ch := make(chan bool, 1)
	q.mu.Lock()
	q.pending[id] = ch
	q.mu.Unlock()
	defer q.cleanup(id)

	q.emitter.Emit(q.ctx, "mcp:approval-required", PendingAction{
		ID:          id,
		Tool:        tool,
		Description: description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	})

	select {
	case approved := <-ch:
		if !approved {
			return false, fmt.Errorf("action rejected by user: %s", tool)
		}
		return true, nil
	case <-time.After(q.timeout):
		q.emitter.Emit(q.ctx, "mcp:approval-dismissed", map[string]string{"id": id})
		return false, fmt.Errorf("action timed out after %s: %s", q.timeout, tool)
	case <-q.ctx.Done():
		return false, fmt.Errorf("context cancelled")
	}
}

// Pending lists the ids awaiting a decision.
func (q *ApprovalQueue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	return ids
}

// Approve marks a pending action as approved.
func (q *ApprovalQueue) Approve(actionID string) { q.resolve(actionID, true) }

// Reject marks a pending action as rejected.
func (q *ApprovalQueue) Reject(actionID string) { q.resolve(actionID, false) }

func (q *ApprovalQueue) resolve(id string, approved bool) {
	q.mu.Lock()
	ch, ok := q.pending[id]
	q.mu.Unlock()
	if ok {
		select {
		case ch <- approved:
		default:
		}
	}
}

func (q *ApprovalQueue) cleanup(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}
