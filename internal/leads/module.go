// Package leads provides the lead bounded context. Lifecycle transitions
// write their automation events into the outbox in the same transaction as
// the lead row update.
package leads

import (
	"pipeline_crm_backend/internal/automation/outbox"
	apphttp "pipeline_crm_backend/internal/http"
	"pipeline_crm_backend/internal/leads/handler"
	"pipeline_crm_backend/internal/leads/repository"
	"pipeline_crm_backend/internal/leads/service"
	"pipeline_crm_backend/platform/logger"
	"pipeline_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the leads module with all its
// dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, outbox.New(pool), log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the service layer, which also implements the automation
// engine's lead store and tenant resolver ports.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the lead transition routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
