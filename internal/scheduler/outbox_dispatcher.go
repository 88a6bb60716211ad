package scheduler

import (
	"context"
	"time"

	"pipeline_crm_backend/internal/automation/outbox"
	"pipeline_crm_backend/platform/config"
	"pipeline_crm_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxDispatcher polls the automation outbox and moves claimed rows onto
// the task queue through the shared Client. It is safe to run several
// dispatchers: claiming uses SKIP LOCKED so each row is enqueued once.
type OutboxDispatcher struct {
	client    *Client
	repo      *outbox.Repository
	interval  time.Duration
	batchSize int
	log       *logger.Logger
}

func NewOutboxDispatcher(cfg config.SchedulerConfig, pool *pgxpool.Pool, log *logger.Logger) (*OutboxDispatcher, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	interval := cfg.GetOutboxPollInterval()
	if interval <= 0 {
		interval = 2 * time.Second
	}

	batchSize := cfg.GetOutboxBatchSize()
	if batchSize < 1 {
		batchSize = 50
	}

	return &OutboxDispatcher{
		client:    client,
		repo:      outbox.New(pool),
		interval:  interval,
		batchSize: batchSize,
		log:       log,
	}, nil
}

func (d *OutboxDispatcher) Close() error {
	if d == nil {
		return nil
	}
	return d.client.Close()
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		records, err := d.repo.ClaimPending(ctx, d.batchSize)
		if err != nil {
			d.log.Warn("automation outbox claim failed", "error", err)
			continue
		}

		for _, rec := range records {
			payload := AutomationEventDuePayload{
				OutboxID: rec.ID.String(),
				TenantID: rec.TenantID.String(),
			}
			if err := d.client.EnqueueAutomationEvent(ctx, payload); err != nil {
				d.log.Warn("automation outbox enqueue failed", "outbox_id", rec.ID.String(), "error", err)
				_ = d.repo.MarkFailed(ctx, rec.ID, err.Error(), 5)
			}
		}
	}
}
