package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pipeline_crm_backend/platform/logger"
)

type dispatcherConfig struct {
	url      string
	token    string
	attempts int
	backoff  time.Duration
}

func (c dispatcherConfig) GetWebhookEgressURL() string           { return c.url }
func (c dispatcherConfig) GetWebhookEgressToken() string         { return c.token }
func (c dispatcherConfig) GetWebhookRetryAttempts() int          { return c.attempts }
func (c dispatcherConfig) GetWebhookRetryBackoff() time.Duration { return c.backoff }
func (c dispatcherConfig) GetPromptTimeout() time.Duration       { return time.Minute }

func testRequest() Request {
	return Request{
		URL:    "https://hooks.example.com/crm",
		Method: "POST",
		Payload: Payload{
			EventType:      "lead_stage_changed",
			AutomationName: "notify ops",
			Timestamp:      time.Now(),
			Lead:           map[string]any{"name": "Jane"},
		},
	}
}

func TestDispatch_SendsEnvelopeWithAuth(t *testing.T) {
	var received Request
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewEgressDispatcher(dispatcherConfig{url: server.URL, token: "secret", attempts: 1, backoff: time.Millisecond}, logger.New("development"))

	if err := d.Dispatch(context.Background(), testRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("expected bearer auth, got %q", auth)
	}
	if received.URL != "https://hooks.example.com/crm" || received.Method != "POST" {
		t.Fatalf("unexpected envelope: %+v", received)
	}
	if received.Payload.EventType != "lead_stage_changed" {
		t.Fatalf("unexpected payload: %+v", received.Payload)
	}
}

func TestDispatch_RetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewEgressDispatcher(dispatcherConfig{url: server.URL, attempts: 3, backoff: time.Millisecond}, logger.New("development"))

	if err := d.Dispatch(context.Background(), testRequest()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDispatch_DoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	d := NewEgressDispatcher(dispatcherConfig{url: server.URL, attempts: 3, backoff: time.Millisecond}, logger.New("development"))

	if err := d.Dispatch(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error for 403 response")
	}
	if calls != 1 {
		t.Fatalf("expected a single call for a client error, got %d", calls)
	}
}

func TestDispatch_GivesUpAfterConfiguredAttempts(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := NewEgressDispatcher(dispatcherConfig{url: server.URL, attempts: 2, backoff: time.Millisecond}, logger.New("development"))

	if err := d.Dispatch(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDispatch_MissingEndpointFails(t *testing.T) {
	d := NewEgressDispatcher(dispatcherConfig{attempts: 1, backoff: time.Millisecond}, logger.New("development"))

	if err := d.Dispatch(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error when egress endpoint is not configured")
	}
}
