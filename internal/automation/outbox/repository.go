// Package outbox persists lead events in the same transaction as the lead
// mutation that caused them. A poller claims pending rows and hands them to
// the task queue, which gives at-least-once delivery to the rule engine even
// when the process dies between commit and enqueue.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusEnqueued  Status = "enqueued"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Record is one outbox row: the bus event name plus its JSON body.
type Record struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	EventName string
	Payload   json.RawMessage
	RunAt     time.Time
	Status    Status
	Attempts  int
}

// Repository provides data access for the automation event outbox.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new outbox repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes one event row inside the caller's transaction, so the event
// commits or rolls back together with the lead mutation.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, tenantID uuid.UUID, eventName string, payload any) (uuid.UUID, error) {
	if tenantID == uuid.Nil {
		return uuid.Nil, errors.New("tenantId is required")
	}
	if eventName == "" {
		return uuid.Nil, errors.New("eventName is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal event payload: %w", err)
	}

	var id uuid.UUID
	err = tx.QueryRow(ctx,
		`INSERT INTO automation_outbox (tenant_id, event_name, payload, run_at, status)
		 VALUES ($1, $2, $3, now(), 'pending')
		 RETURNING id`,
		tenantID, eventName, body,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert outbox event: %w", err)
	}
	return id, nil
}

// GetByID loads a single outbox row.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	var (
		rec    Record
		status string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, event_name, payload, run_at, status, attempts
		 FROM automation_outbox
		 WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.TenantID, &rec.EventName, &rec.Payload, &rec.RunAt, &status, &rec.Attempts)
	if err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	return rec, nil
}

// ClaimPending atomically flips up to limit rows to enqueued and
// returns them. FOR UPDATE SKIP LOCKED lets multiple pollers share the table
// without double-claiming.
func (r *Repository) ClaimPending(ctx context.Context, limit int) ([]Record, error) {
	if limit < 1 {
		limit = 50
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT id
		FROM automation_outbox
		WHERE status = 'pending' AND run_at <= now()
		ORDER BY run_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE automation_outbox o
	SET status = 'enqueued', updated_at = now()
	FROM cte
	WHERE o.id = cte.id
	RETURNING o.id, o.tenant_id, o.event_name, o.payload, o.run_at, o.status, o.attempts`, limit)
	if err != nil {
		return nil, err
	}

	records, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return records, nil
}

// MarkSucceeded finalizes a delivered event.
func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE automation_outbox SET status = 'succeeded', updated_at = now() WHERE id = $1`, id)
	return err
}

// MarkFailed records a delivery failure. Rows under the attempt cap go back
// to pending with a small delay so the poller retries them.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, cause string, maxAttempts int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE automation_outbox
		SET attempts = attempts + 1,
		    last_error = $2,
		    status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END,
		    run_at = now() + interval '30 seconds',
		    updated_at = now()
		WHERE id = $1`,
		id, cause, maxAttempts)
	return err
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec    Record
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.EventName, &rec.Payload, &rec.RunAt, &status, &rec.Attempts); err != nil {
			return nil, err
		}
		rec.Status = Status(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}
