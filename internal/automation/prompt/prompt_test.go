package prompt

import (
	"context"
	"errors"
	"testing"
	"time"

	"pipeline_crm_backend/platform/logger"

	"github.com/google/uuid"
)

func newTestHub(timeout time.Duration) *Hub {
	return NewHub(timeout, logger.New("development"))
}

func TestRequest_NoHandlerResolvesToCancelled(t *testing.T) {
	hub := newTestHub(time.Second)

	resp, err := hub.Request(context.Background(), Request{Kind: KindMarkSold, LeadID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != nil {
		t.Fatal("expected nil response when no handler is registered")
	}
}

func TestRequest_ForwardsToHandler(t *testing.T) {
	hub := newTestHub(time.Second)
	value := int64(125000)
	hub.Register(func(_ context.Context, req Request) (*Response, error) {
		if req.Kind != KindMarkSold {
			t.Fatalf("unexpected kind %q", req.Kind)
		}
		return &Response{SoldValue: &value}, nil
	})

	resp, err := hub.Request(context.Background(), Request{Kind: KindMarkSold})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp == nil || resp.SoldValue == nil || *resp.SoldValue != value {
		t.Fatalf("expected sold value %d, got %+v", value, resp)
	}
}

func TestRequest_LastRegistrationWins(t *testing.T) {
	hub := newTestHub(time.Second)
	hub.Register(func(_ context.Context, _ Request) (*Response, error) {
		t.Fatal("replaced handler must not be called")
		return nil, nil
	})
	called := false
	hub.Register(func(_ context.Context, _ Request) (*Response, error) {
		called = true
		return &Response{}, nil
	})

	if _, err := hub.Request(context.Background(), Request{Kind: KindTaskDueDate}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected the most recent handler to be called")
	}
}

func TestRequest_HandlerErrorIsCancellation(t *testing.T) {
	hub := newTestHub(time.Second)
	hub.Register(func(_ context.Context, _ Request) (*Response, error) {
		return nil, errors.New("session closed")
	})

	resp, err := hub.Request(context.Background(), Request{Kind: KindMarkLost})
	if err != nil {
		t.Fatalf("handler errors must not propagate, got %v", err)
	}
	if resp != nil {
		t.Fatal("expected nil response for a failing handler")
	}
}

func TestRequest_HandlerPanicIsCancellation(t *testing.T) {
	hub := newTestHub(time.Second)
	hub.Register(func(_ context.Context, _ Request) (*Response, error) {
		panic("ui session went away")
	})

	resp, err := hub.Request(context.Background(), Request{Kind: KindMarkSold})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != nil {
		t.Fatal("expected nil response for a panicking handler")
	}
}

func TestRequest_TimesOutToCancelled(t *testing.T) {
	hub := newTestHub(25 * time.Millisecond)
	hub.Register(func(ctx context.Context, _ Request) (*Response, error) {
		<-ctx.Done()
		return &Response{}, ctx.Err()
	})

	start := time.Now()
	resp, err := hub.Request(context.Background(), Request{Kind: KindTaskDueDate})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != nil {
		t.Fatal("expected nil response on timeout")
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout did not bound the request")
	}
}

func TestRequest_UnregisterCancelsFollowingRequests(t *testing.T) {
	hub := newTestHub(time.Second)
	hub.Register(func(_ context.Context, _ Request) (*Response, error) {
		return &Response{}, nil
	})
	hub.Unregister()

	resp, err := hub.Request(context.Background(), Request{Kind: KindMarkSold})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != nil {
		t.Fatal("expected nil response after unregistering")
	}
}
