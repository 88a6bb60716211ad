package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pipeline_crm_backend/internal/automation/service"
	"pipeline_crm_backend/internal/automation/transport"
	"pipeline_crm_backend/platform/httpkit"
	"pipeline_crm_backend/platform/validator"
)

// Handler handles HTTP requests for automation rule administration.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid automation rule ID"
)

// New creates a new automation rules handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// List retrieves all automation rules of the tenant.
// GET /api/v1/admin/automation-rules
func (h *Handler) List(c *gin.Context) {
	tenantID, ok := mustGetTenantID(c)
	if !ok {
		return
	}

	result, err := h.svc.List(c.Request.Context(), tenantID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetByID retrieves an automation rule by ID.
// GET /api/v1/admin/automation-rules/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	tenantID, ok := mustGetTenantID(c)
	if !ok {
		return
	}

	result, err := h.svc.GetByID(c.Request.Context(), tenantID, id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Create creates a new automation rule.
// POST /api/v1/admin/automation-rules
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	tenantID, ok := mustGetTenantID(c)
	if !ok {
		return
	}

	result, err := h.svc.Create(c.Request.Context(), tenantID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// Update replaces an existing automation rule.
// PUT /api/v1/admin/automation-rules/:id
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	var req transport.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	tenantID, ok := mustGetTenantID(c)
	if !ok {
		return
	}

	result, err := h.svc.Update(c.Request.Context(), tenantID, id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// SetActive toggles a rule without replacing its configuration.
// PATCH /api/v1/admin/automation-rules/:id/active
func (h *Handler) SetActive(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	var req transport.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	tenantID, ok := mustGetTenantID(c)
	if !ok {
		return
	}

	if err := h.svc.SetActive(c.Request.Context(), tenantID, id, req.Active); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"active": req.Active})
}

// Delete removes an automation rule.
// DELETE /api/v1/admin/automation-rules/:id
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	tenantID, ok := mustGetTenantID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), tenantID, id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes wires the admin rule endpoints onto the given group. The
// group is expected to already carry authentication and the admin role check.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rules := rg.Group("/automation-rules")
	{
		rules.GET("", h.List)
		rules.POST("", h.Create)
		rules.GET("/:id", h.GetByID)
		rules.PUT("/:id", h.Update)
		rules.PATCH("/:id/active", h.SetActive)
		rules.DELETE("/:id", h.Delete)
	}
}

func mustGetTenantID(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, false
	}
	tenantID := identity.TenantID()
	if tenantID == uuid.Nil {
		httpkit.Error(c, http.StatusForbidden, "tenant scope required", nil)
		return uuid.Nil, false
	}
	return tenantID, true
}
