package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pipeline_crm_backend/platform/httpkit"
	"pipeline_crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// promptEvent is the payload the operator UI receives on the stream.
type promptEvent struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	LeadID     string     `json:"leadId"`
	RuleName   string     `json:"ruleName"`
	TaskTitle  string     `json:"taskTitle,omitempty"`
	DueAt      *time.Time `json:"dueAt,omitempty"`
	HasDueTime bool       `json:"hasDueTime,omitempty"`
}

// AnswerRequest is the operator's reply to a streamed prompt. Cancelled
// dismisses the prompt; otherwise only the fields for the prompt's kind
// are read.
type AnswerRequest struct {
	Cancelled          bool       `json:"cancelled"`
	DueAt              *time.Time `json:"dueAt"`
	HasDueTime         bool       `json:"hasDueTime"`
	SoldValue          *int64     `json:"soldValue"`
	SaleNotes          *string    `json:"saleNotes"`
	LossReasonCategory *string    `json:"lossReasonCategory"`
	LossReasonNotes    *string    `json:"lossReasonNotes"`
}

func (r AnswerRequest) toResponse() *Response {
	if r.Cancelled {
		return nil
	}
	return &Response{
		DueAt:              r.DueAt,
		HasTime:            r.HasDueTime,
		SoldValue:          r.SoldValue,
		SaleNotes:          r.SaleNotes,
		LossReasonCategory: r.LossReasonCategory,
		LossReasonNotes:    r.LossReasonNotes,
	}
}

type session struct {
	events chan promptEvent
}

type pendingPrompt struct {
	tenantID uuid.UUID
	done     chan *Response
}

// Transport bridges the Hub to operator UIs over Server-Sent Events. A GET
// on /automation-prompts/stream opens the tenant's answering session (a
// newer stream replaces the older one) and every suspended action shows up
// as one "prompt" event carrying an ID; a POST to
// /automation-prompts/:id/answer resolves that action.
type Transport struct {
	log *logger.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	pending  map[uuid.UUID]*pendingPrompt
}

// NewTransport creates the SSE bridge and installs it as the hub's handler.
func NewTransport(hub *Hub, log *logger.Logger) *Transport {
	t := &Transport{
		log:      log,
		sessions: make(map[uuid.UUID]*session),
		pending:  make(map[uuid.UUID]*pendingPrompt),
	}
	hub.Register(t.relay)
	return t
}

// RegisterRoutes mounts the stream and answer endpoints. The group is
// expected to already carry authentication.
func (t *Transport) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/automation-prompts")
	group.GET("/stream", t.Stream)
	group.POST("/:id/answer", t.Answer)
}

// relay forwards a hub request to the tenant's connected session and blocks
// until the operator answers or the hub's deadline fires. No session means
// nobody can answer, which resolves to cancelled immediately.
func (t *Transport) relay(ctx context.Context, req Request) (*Response, error) {
	id := uuid.New()
	ev := promptEvent{
		ID:       id.String(),
		Kind:     string(req.Kind),
		LeadID:   req.LeadID.String(),
		RuleName: req.RuleName,
	}
	if req.TaskDefaults != nil {
		due := req.TaskDefaults.DueAt
		ev.TaskTitle = req.TaskDefaults.Title
		ev.DueAt = &due
		ev.HasDueTime = req.TaskDefaults.HasTime
	}

	p := &pendingPrompt{tenantID: req.TenantID, done: make(chan *Response, 1)}

	t.mu.Lock()
	s := t.sessions[req.TenantID]
	if s == nil {
		t.mu.Unlock()
		t.log.Debug("prompt cancelled, no session connected", "tenant_id", req.TenantID.String(), "kind", string(req.Kind))
		return nil, nil
	}
	select {
	case s.events <- ev:
		t.pending[id] = p
	default:
		t.mu.Unlock()
		return nil, fmt.Errorf("prompt stream buffer full for tenant %s", req.TenantID)
	}
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	select {
	case resp := <-p.done:
		return resp, nil
	case <-ctx.Done():
		return nil, nil
	}
}

// attach makes s the tenant's answering session. The last stream wins.
func (t *Transport) attach(tenantID uuid.UUID, s *session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev := t.sessions[tenantID]; prev != nil {
		close(prev.events)
	}
	t.sessions[tenantID] = s
}

func (t *Transport) detach(tenantID uuid.UUID, s *session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessions[tenantID] != s {
		return
	}
	delete(t.sessions, tenantID)
	close(s.events)
}

// resolve delivers the operator's answer to the waiting action. The tenant
// check keeps one tenant's operators from answering another's prompts.
func (t *Transport) resolve(id, tenantID uuid.UUID, resp *Response) bool {
	t.mu.Lock()
	p := t.pending[id]
	if p == nil || p.tenantID != tenantID {
		t.mu.Unlock()
		return false
	}
	delete(t.pending, id)
	t.mu.Unlock()
	p.done <- resp
	return true
}

// Stream handles the SSE connection for the tenant's operator UI.
// GET /api/v1/automation-prompts/stream
func (t *Transport) Stream(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	s := &session{events: make(chan promptEvent, 16)}
	t.attach(tenantID, s)
	defer t.detach(tenantID, s)

	c.SSEvent("connected", gin.H{"tenantId": tenantID})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case ev, open := <-s.events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				t.log.Warn("prompt event marshal failed", "error", err)
				continue
			}
			c.SSEvent("prompt", string(data))
			c.Writer.Flush()
		}
	}
}

// Answer handles the operator's reply to a streamed prompt.
// POST /api/v1/automation-prompts/:id/answer
func (t *Transport) Answer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid prompt ID", nil)
		return
	}
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	if !t.resolve(id, tenantID, req.toResponse()) {
		httpkit.Error(c, http.StatusNotFound, "prompt not found or already answered", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

func tenantOf(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, false
	}
	tenantID := identity.TenantID()
	if tenantID == uuid.Nil {
		httpkit.Error(c, http.StatusForbidden, "tenant scope required", nil)
		return uuid.Nil, false
	}
	return tenantID, true
}
