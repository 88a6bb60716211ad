// Package automation provides the rule engine bounded context. It owns rule
// configuration, event evaluation and the interactive prompt bridge, and
// reaches other contexts only through the ports interfaces.
package automation

import (
	"context"

	"pipeline_crm_backend/internal/automation/condition"
	"pipeline_crm_backend/internal/automation/engine"
	"pipeline_crm_backend/internal/automation/executor"
	"pipeline_crm_backend/internal/automation/handler"
	"pipeline_crm_backend/internal/automation/ports"
	"pipeline_crm_backend/internal/automation/prompt"
	"pipeline_crm_backend/internal/automation/repository"
	"pipeline_crm_backend/internal/automation/service"
	"pipeline_crm_backend/internal/automation/webhook"
	"pipeline_crm_backend/internal/events"
	apphttp "pipeline_crm_backend/internal/http"
	"pipeline_crm_backend/platform/config"
	"pipeline_crm_backend/platform/logger"
	"pipeline_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Collaborators are the external stores the engine acts through. They are
// implemented by the leads, directory and tasks contexts.
type Collaborators struct {
	Leads   ports.LeadStore
	Tenants ports.TenantResolver
	Stages  ports.StageDirectory
	Tasks   ports.TaskStore
	Fields  ports.CustomFieldStore
}

// Module is the automation bounded context module implementing http.Module.
type Module struct {
	handler   *handler.Handler
	engine    *engine.Engine
	promptAPI *prompt.Transport
}

// NewModule creates and initializes the automation module with all its
// dependencies.
func NewModule(pool *pgxpool.Pool, collab Collaborators, cfg config.AutomationConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.NewRepository(pool)
	svc := service.New(repo)
	h := handler.New(svc, val)

	prompts := prompt.NewHub(cfg.GetPromptTimeout(), log)
	promptAPI := prompt.NewTransport(prompts, log)
	dispatcher := webhook.NewEgressDispatcher(cfg, log)
	exec := executor.New(collab.Leads, collab.Tasks, collab.Fields, prompts, dispatcher, log)
	eng := engine.New(repo, collab.Leads, collab.Tenants, condition.New(collab.Stages), exec, log)

	return &Module{
		handler:   h,
		engine:    eng,
		promptAPI: promptAPI,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "automation"
}

// RegisterRoutes mounts the rule admin endpoints and the interactive
// prompt stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin)
	m.promptAPI.RegisterRoutes(ctx.Protected)
}

// RegisterHandlers subscribes the engine to the lead events it reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadStageChanged{}.EventName(), m)
	bus.Subscribe(events.LeadMarkedSold{}.EventName(), m)
	bus.Subscribe(events.LeadMarkedLost{}.EventName(), m)
	bus.Subscribe(events.LeadResponsibleAssigned{}.EventName(), m)
}

// Handle routes events into the engine.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	return m.engine.Evaluate(ctx, event)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
