// Package tasks provides the follow-up task store the automation engine
// creates records through.
package tasks

import (
	"context"
	"fmt"

	"pipeline_crm_backend/internal/automation/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides data access for lead tasks.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new task repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts one task and returns its ID. has_due_time distinguishes a
// date-only due from one carrying a time of day.
func (r *Repository) Create(ctx context.Context, params ports.CreateTaskParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lead_tasks (organization_id, lead_id, title, priority, task_type_id, assigned_to, due_at, has_due_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, params.TenantID, params.LeadID, params.Title, params.Priority, params.TaskTypeID, params.AssignedTo, params.DueAt, params.HasDueTime).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert lead task: %w", err)
	}
	return id, nil
}

// Compile-time check that the repository satisfies the engine's task port.
var _ ports.TaskStore = (*Repository)(nil)
