package prompt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pipeline_crm_backend/platform/httpkit"
	"pipeline_crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newTestTransport(t *testing.T) (*Hub, *Transport) {
	t.Helper()
	hub := newTestHub(2 * time.Second)
	return hub, NewTransport(hub, logger.New("development"))
}

func TestTransport_NoSessionResolvesToCancelled(t *testing.T) {
	hub, _ := newTestTransport(t)

	resp, err := hub.Request(context.Background(), Request{
		Kind:     KindMarkSold,
		TenantID: uuid.New(),
		LeadID:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != nil {
		t.Fatal("expected cancellation when no operator session is connected")
	}
}

func TestTransport_StreamedPromptAnswered(t *testing.T) {
	hub, tr := newTestTransport(t)
	tenantID := uuid.New()
	leadID := uuid.New()

	s := &session{events: make(chan promptEvent, 16)}
	tr.attach(tenantID, s)
	defer tr.detach(tenantID, s)

	value := int64(98000)
	go func() {
		ev := <-s.events
		id, err := uuid.Parse(ev.ID)
		if err != nil {
			return
		}
		answer := AnswerRequest{SoldValue: &value}
		tr.resolve(id, tenantID, answer.toResponse())
	}()

	resp, err := hub.Request(context.Background(), Request{
		Kind:     KindMarkSold,
		TenantID: tenantID,
		LeadID:   leadID,
		RuleName: "close won",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil || resp.SoldValue == nil || *resp.SoldValue != value {
		t.Fatalf("expected sold value %d, got %+v", value, resp)
	}
}

func TestTransport_CancelledAnswerResolvesToNil(t *testing.T) {
	hub, tr := newTestTransport(t)
	tenantID := uuid.New()

	s := &session{events: make(chan promptEvent, 16)}
	tr.attach(tenantID, s)
	defer tr.detach(tenantID, s)

	go func() {
		ev := <-s.events
		id, err := uuid.Parse(ev.ID)
		if err != nil {
			return
		}
		tr.resolve(id, tenantID, AnswerRequest{Cancelled: true}.toResponse())
	}()

	resp, err := hub.Request(context.Background(), Request{
		Kind:     KindMarkLost,
		TenantID: tenantID,
		LeadID:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != nil {
		t.Fatal("cancelled answer must resolve to nil response")
	}
}

func TestTransport_AnswerFromOtherTenantRejected(t *testing.T) {
	hub, tr := newTestTransport(t)
	tenantID := uuid.New()
	otherTenant := uuid.New()

	s := &session{events: make(chan promptEvent, 16)}
	tr.attach(tenantID, s)
	defer tr.detach(tenantID, s)

	value := int64(1)
	go func() {
		ev := <-s.events
		id, err := uuid.Parse(ev.ID)
		if err != nil {
			return
		}
		if tr.resolve(id, otherTenant, (AnswerRequest{SoldValue: &value}).toResponse()) {
			t.Error("answer from another tenant must be rejected")
		}
		tr.resolve(id, tenantID, AnswerRequest{Cancelled: true}.toResponse())
	}()

	resp, err := hub.Request(context.Background(), Request{
		Kind:     KindMarkSold,
		TenantID: tenantID,
		LeadID:   uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != nil {
		t.Fatal("prompt must stay unanswered for the foreign tenant")
	}
}

func TestTransport_NewStreamReplacesOldSession(t *testing.T) {
	_, tr := newTestTransport(t)
	tenantID := uuid.New()

	old := &session{events: make(chan promptEvent, 16)}
	tr.attach(tenantID, old)
	replacement := &session{events: make(chan promptEvent, 16)}
	tr.attach(tenantID, replacement)
	defer tr.detach(tenantID, replacement)

	select {
	case _, open := <-old.events:
		if open {
			t.Fatal("replaced session must be closed, not sent to")
		}
	default:
		t.Fatal("replaced session channel must be closed")
	}
}

func TestTransport_AnswerEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub, tr := newTestTransport(t)
	tenantID := uuid.New()

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		c.Set(httpkit.ContextTenantIDKey, tenantID)
	})
	tr.RegisterRoutes(engine.Group("/"))

	s := &session{events: make(chan promptEvent, 16)}
	tr.attach(tenantID, s)
	defer tr.detach(tenantID, s)

	done := make(chan *Response, 1)
	go func() {
		resp, _ := hub.Request(context.Background(), Request{
			Kind:     KindMarkLost,
			TenantID: tenantID,
			LeadID:   uuid.New(),
		})
		done <- resp
	}()

	ev := <-s.events

	rec := httptest.NewRecorder()
	body := `{"lossReasonCategory":"price","lossReasonNotes":"went with a cheaper offer"}`
	req := httptest.NewRequest(http.MethodPost, "/automation-prompts/"+ev.ID+"/answer", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("answer status = %d, want 204", rec.Code)
	}

	resp := <-done
	if resp == nil || resp.LossReasonCategory == nil || *resp.LossReasonCategory != "price" {
		t.Fatalf("expected loss category to reach the waiting action, got %+v", resp)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/automation-prompts/"+uuid.NewString()+"/answer", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown prompt status = %d, want 404", rec.Code)
	}
}

func TestTransport_TaskDefaultsCarriedOnStream(t *testing.T) {
	hub, tr := newTestTransport(t)
	tenantID := uuid.New()

	s := &session{events: make(chan promptEvent, 16)}
	tr.attach(tenantID, s)
	defer tr.detach(tenantID, s)

	due := time.Date(2026, 4, 2, 16, 30, 0, 0, time.UTC)
	go func() {
		ev := <-s.events
		if ev.TaskTitle != "Call the lead" {
			t.Errorf("task title = %q", ev.TaskTitle)
		}
		if ev.DueAt == nil || !ev.DueAt.Equal(due) {
			t.Errorf("due at = %v, want %v", ev.DueAt, due)
		}
		if !ev.HasDueTime {
			t.Error("expected hasDueTime on the streamed prompt")
		}
		id, err := uuid.Parse(ev.ID)
		if err != nil {
			return
		}
		tr.resolve(id, tenantID, AnswerRequest{DueAt: &due, HasDueTime: true}.toResponse())
	}()

	resp, err := hub.Request(context.Background(), Request{
		Kind:     KindTaskDueDate,
		TenantID: tenantID,
		LeadID:   uuid.New(),
		TaskDefaults: &TaskDefaults{
			Title:   "Call the lead",
			DueAt:   due,
			HasTime: true,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil || resp.DueAt == nil || !resp.DueAt.Equal(due) {
		t.Fatalf("expected confirmed due date, got %+v", resp)
	}
}
