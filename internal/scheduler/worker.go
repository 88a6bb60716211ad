package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"pipeline_crm_backend/internal/automation/outbox"
	"pipeline_crm_backend/internal/events"
	"pipeline_crm_backend/platform/config"
	"pipeline_crm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const outboxMaxAttempts = 5

// Worker consumes delivery tasks and republishes the stored lead events on
// the in-process bus, where the automation engine handles them.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	repo   *outbox.Repository
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		repo:   outbox.New(pool),
		bus:    bus,
		log:    log,
	}

	mux.HandleFunc(TaskAutomationEventDue, w.handleAutomationEventDue)

	return w, nil
}

func (w *Worker) handleAutomationEventDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAutomationEventDuePayload(task)
	if err != nil {
		return err
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return err
	}

	rec, err := w.repo.GetByID(ctx, outboxID)
	if err != nil {
		return fmt.Errorf("load outbox record %s: %w", outboxID, err)
	}

	event, err := decodeLeadEvent(rec.EventName, rec.Payload)
	if err != nil {
		// Undecodable rows would fail forever; park them instead of retrying.
		_ = w.repo.MarkFailed(ctx, rec.ID, err.Error(), 1)
		w.log.Error("automation outbox event undecodable", "outbox_id", rec.ID.String(), "error", err)
		return nil
	}

	if err := w.bus.PublishSync(ctx, event); err != nil {
		_ = w.repo.MarkFailed(ctx, rec.ID, err.Error(), outboxMaxAttempts)
		return fmt.Errorf("publish %s: %w", rec.EventName, err)
	}

	return w.repo.MarkSucceeded(ctx, rec.ID)
}

// decodeLeadEvent rehydrates the stored JSON into the concrete event type the
// engine switches on.
func decodeLeadEvent(eventName string, payload json.RawMessage) (events.Event, error) {
	switch eventName {
	case events.LeadStageChanged{}.EventName():
		var ev events.LeadStageChanged
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case events.LeadMarkedSold{}.EventName():
		var ev events.LeadMarkedSold
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case events.LeadMarkedLost{}.EventName():
		var ev events.LeadMarkedLost
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case events.LeadResponsibleAssigned{}.EventName():
		var ev events.LeadResponsibleAssigned
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event name %q", eventName)
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
