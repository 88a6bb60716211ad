package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pipeline_crm_backend/internal/automation/ports"
	"pipeline_crm_backend/internal/leads/service"
	"pipeline_crm_backend/internal/leads/transport"
	"pipeline_crm_backend/platform/httpkit"
	"pipeline_crm_backend/platform/validator"
)

// Handler handles HTTP requests for lead lifecycle transitions.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid lead ID"
)

// New creates a new leads handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Move moves a lead to another pipeline stage.
// POST /api/v1/leads/:id/move
func (h *Handler) Move(c *gin.Context) {
	leadID, identity, ok := h.bindLead(c)
	if !ok {
		return
	}
	var req transport.MoveLeadRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	actorID := identity.UserID()
	err := h.svc.Move(c.Request.Context(), leadID, identity.TenantID(), req.PipelineID, req.StageID, &actorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"moved": true})
}

// AssignResponsible changes the lead's responsible owner.
// POST /api/v1/leads/:id/assign-responsible
func (h *Handler) AssignResponsible(c *gin.Context) {
	leadID, identity, ok := h.bindLead(c)
	if !ok {
		return
	}
	var req transport.AssignResponsibleRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	actorID := identity.UserID()
	err := h.svc.AssignResponsible(c.Request.Context(), leadID, identity.TenantID(), req.ResponsibleUUID, &actorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"assigned": true})
}

// MarkSold closes a lead as sold.
// POST /api/v1/leads/:id/mark-sold
func (h *Handler) MarkSold(c *gin.Context) {
	leadID, identity, ok := h.bindLead(c)
	if !ok {
		return
	}
	var req transport.MarkSoldRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	actorID := identity.UserID()
	err := h.svc.MarkSold(c.Request.Context(), ports.MarkSoldParams{
		LeadID:    leadID,
		TenantID:  identity.TenantID(),
		ActorID:   &actorID,
		SoldValue: req.SoldValue,
		SaleNotes: req.SaleNotes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "sold"})
}

// MarkLost closes a lead as lost.
// POST /api/v1/leads/:id/mark-lost
func (h *Handler) MarkLost(c *gin.Context) {
	leadID, identity, ok := h.bindLead(c)
	if !ok {
		return
	}
	var req transport.MarkLostRequest
	if !h.bindAndValidate(c, &req) {
		return
	}

	actorID := identity.UserID()
	err := h.svc.MarkLost(c.Request.Context(), ports.MarkLostParams{
		LeadID:             leadID,
		TenantID:           identity.TenantID(),
		ActorID:            &actorID,
		LossReasonCategory: req.LossReasonCategory,
		LossReasonNotes:    req.LossReasonNotes,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "lost"})
}

// RegisterRoutes wires the lead transition endpoints onto the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	leads := rg.Group("/leads/:id")
	{
		leads.POST("/move", h.Move)
		leads.POST("/assign-responsible", h.AssignResponsible)
		leads.POST("/mark-sold", h.MarkSold)
		leads.POST("/mark-lost", h.MarkLost)
	}
}

func (h *Handler) bindLead(c *gin.Context) (uuid.UUID, httpkit.Identity, bool) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, nil, false
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, nil, false
	}
	if identity.TenantID() == uuid.Nil {
		httpkit.Error(c, http.StatusForbidden, "tenant scope required", nil)
		return uuid.Nil, nil, false
	}
	return leadID, identity, true
}

func (h *Handler) bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}
