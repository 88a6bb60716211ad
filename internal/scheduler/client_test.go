package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type schedulerConfig struct {
	redisURL string
}

func (c schedulerConfig) GetRedisURL() string                  { return c.redisURL }
func (c schedulerConfig) GetRedisTLSInsecure() bool            { return false }
func (c schedulerConfig) GetAsynqQueueName() string            { return "automation" }
func (c schedulerConfig) GetAsynqConcurrency() int             { return 1 }
func (c schedulerConfig) GetOutboxPollInterval() time.Duration { return time.Second }
func (c schedulerConfig) GetOutboxBatchSize() int              { return 10 }

func TestClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(schedulerConfig{}); err == nil {
		t.Fatal("expected error for missing redis url")
	}
}

func TestOutboxDispatcherUsesSharedClient(t *testing.T) {
	mr := miniredis.RunT(t)

	d, err := NewOutboxDispatcher(schedulerConfig{redisURL: "redis://" + mr.Addr()}, nil, nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	defer d.Close()

	if d.client == nil {
		t.Fatal("dispatcher must enqueue through the scheduler client")
	}
	if d.client.queue != "automation" {
		t.Fatalf("dispatcher queue = %q, want client's configured queue", d.client.queue)
	}
}

func TestEnqueueAutomationEvent(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := schedulerConfig{redisURL: "redis://" + mr.Addr()}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	payload := AutomationEventDuePayload{
		OutboxID: "0de5ccd0-0f3b-4b61-9cf9-43945c812a4c",
		TenantID: "9a1f1f36-9a0b-4dc7-8f36-5a2a1f0a8a11",
	}
	if err := client.EnqueueAutomationEvent(context.Background(), payload); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	opt, err := redisClientOpt(cfg.redisURL, false)
	if err != nil {
		t.Fatalf("redis opt: %v", err)
	}
	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	pending, err := inspector.ListPendingTasks("automation")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(pending))
	}
	if pending[0].Type != TaskAutomationEventDue {
		t.Fatalf("task type = %q, want %q", pending[0].Type, TaskAutomationEventDue)
	}

	got, err := ParseAutomationEventDuePayload(asynq.NewTask(pending[0].Type, pending[0].Payload))
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if got != payload {
		t.Fatalf("payload = %+v, want %+v", got, payload)
	}
}
