// Package directory provides read access to the tenant's pipeline/stage
// structure and custom field definitions. The automation engine uses it to
// resolve conditions and webhook payload fields.
package directory

import (
	"context"
	"errors"

	"pipeline_crm_backend/internal/automation/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrStageNotFound = errors.New("pipeline stage not found")

// Repository provides data access for pipelines, stages and custom fields.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new directory repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StagesOf returns the stages of one pipeline in board order.
func (r *Repository) StagesOf(ctx context.Context, tenantID, pipelineID uuid.UUID) ([]ports.Stage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.pipeline_id, s.name, s.position
		FROM pipeline_stages s
		JOIN pipelines p ON p.id = s.pipeline_id
		WHERE p.organization_id = $1 AND s.pipeline_id = $2
		ORDER BY s.position ASC
	`, tenantID, pipelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []ports.Stage
	for rows.Next() {
		var stage ports.Stage
		if err := rows.Scan(&stage.ID, &stage.PipelineID, &stage.Name, &stage.Position); err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

// PipelineOf resolves the pipeline a stage belongs to.
func (r *Repository) PipelineOf(ctx context.Context, tenantID, stageID uuid.UUID) (uuid.UUID, error) {
	var pipelineID uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT s.pipeline_id
		FROM pipeline_stages s
		JOIN pipelines p ON p.id = s.pipeline_id
		WHERE p.organization_id = $1 AND s.id = $2
	`, tenantID, stageID).Scan(&pipelineID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrStageNotFound
	}
	return pipelineID, err
}

// FieldsFor returns the tenant's custom field definitions, optionally
// narrowed to one pipeline. Fields without a pipeline apply everywhere.
func (r *Repository) FieldsFor(ctx context.Context, tenantID uuid.UUID, pipelineID *uuid.UUID) ([]ports.FieldDef, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, pipeline_id, name, kind
		FROM custom_field_defs
		WHERE organization_id = $1 AND ($2::uuid IS NULL OR pipeline_id IS NULL OR pipeline_id = $2)
		ORDER BY name ASC
	`, tenantID, pipelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []ports.FieldDef
	for rows.Next() {
		var def ports.FieldDef
		if err := rows.Scan(&def.ID, &def.PipelineID, &def.Name, &def.Kind); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// ValuesFor returns the custom field values stored on one lead.
func (r *Repository) ValuesFor(ctx context.Context, leadID uuid.UUID) ([]ports.FieldValue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT field_id, value
		FROM custom_field_values
		WHERE lead_id = $1
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []ports.FieldValue
	for rows.Next() {
		var value ports.FieldValue
		if err := rows.Scan(&value.FieldID, &value.Value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, rows.Err()
}

// Compile-time checks that the repository satisfies the engine's ports.
var (
	_ ports.StageDirectory   = (*Repository)(nil)
	_ ports.CustomFieldStore = (*Repository)(nil)
)
