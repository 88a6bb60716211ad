// Package prompt implements the human-in-the-loop bridge: an action can
// suspend mid-execution and wait for an interactively supplied value. The
// bridge is injected into the engine as a Service so tests and alternative
// UI transports can supply their own implementation.
package prompt

import (
	"context"
	"sync"
	"time"

	"pipeline_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Kind identifies what the prompt is asking for.
type Kind string

const (
	// KindTaskDueDate asks the user to confirm or edit a task due date.
	KindTaskDueDate Kind = "task_due_date"
	// KindMarkSold asks for the sale value and optional notes.
	KindMarkSold Kind = "mark_sold"
	// KindMarkLost asks for the loss reason category and optional notes.
	KindMarkLost Kind = "mark_lost"
)

// TaskDefaults pre-fills the due-date prompt with the computed default.
type TaskDefaults struct {
	Title   string
	DueAt   time.Time
	HasTime bool
}

// Request describes what an action needs from the user.
type Request struct {
	Kind     Kind
	TenantID uuid.UUID
	LeadID   uuid.UUID
	RuleName string

	// TaskDefaults is set for KindTaskDueDate.
	TaskDefaults *TaskDefaults
}

// Response carries the user's answer. Only the fields for the request's Kind
// are populated. A nil *Response means the user cancelled.
type Response struct {
	// KindTaskDueDate
	DueAt   *time.Time
	HasTime bool

	// KindMarkSold
	SoldValue *int64
	SaleNotes *string

	// KindMarkLost
	LossReasonCategory *string
	LossReasonNotes    *string
}

// Service is the bridge the action executor suspends on. A nil response with
// a nil error means "user cancelled" and is a normal outcome, never an error.
type Service interface {
	Request(ctx context.Context, req Request) (*Response, error)
}

// Handler answers prompt requests. It typically forwards the request to the
// active UI session and blocks until the user responds.
type Handler func(ctx context.Context, req Request) (*Response, error)

// Hub is the production Service: it holds at most one registered handler at a
// time (a later registration replaces the earlier one, mirroring a single
// active UI session) and bounds every request with a timeout. No handler,
// a handler error, a panic, or timeout all resolve to cancellation.
type Hub struct {
	mu      sync.RWMutex
	handler Handler
	timeout time.Duration
	log     *logger.Logger
}

// NewHub creates a Hub with the given request timeout.
func NewHub(timeout time.Duration, log *logger.Logger) *Hub {
	return &Hub{timeout: timeout, log: log}
}

// Register installs the handler. The last registration wins.
func (h *Hub) Register(handler Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

// Unregister removes the current handler; subsequent requests cancel.
func (h *Hub) Unregister() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = nil
}

type promptResult struct {
	resp *Response
	err  error
}

// Request forwards the request to the registered handler and waits for the
// answer, the timeout, or context cancellation, whichever comes first.
func (h *Hub) Request(ctx context.Context, req Request) (*Response, error) {
	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()

	if handler == nil {
		h.log.Debug("prompt cancelled, no handler registered", "kind", string(req.Kind), "lead_id", req.LeadID.String())
		return nil, nil
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	results := make(chan promptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- promptResult{}
			}
		}()
		resp, err := handler(ctx, req)
		results <- promptResult{resp: resp, err: err}
	}()

	select {
	case result := <-results:
		if result.err != nil {
			h.log.Warn("prompt handler failed, treating as cancelled", "kind", string(req.Kind), "error", result.err)
			return nil, nil
		}
		return result.resp, nil
	case <-ctx.Done():
		h.log.Info("prompt timed out, treating as cancelled", "kind", string(req.Kind), "lead_id", req.LeadID.String())
		return nil, nil
	}
}

// Compile-time check that Hub implements Service.
var _ Service = (*Hub)(nil)
