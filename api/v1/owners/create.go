package owners

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"reacher-incidents/api/middleware"
	"reacher-incidents/api/v1/respond"
	"reacher-incidents/models"
	"reacher-incidents/services/v1/incident"
)

type AlertCreator interface {
	Create(ctx context.Context, in incident.AlertInput) (*models.Alert, error)
}

type MaintenanceScheduler interface {
	Create(ctx context.Context, in incident.MaintenanceInput) (*models.ScheduledMaintenance, error)
	ChangeState(ctx context.Context, id, stateID, userID string) (*models.TimelineEntry, error)
}

// CreateAlert abre um alerta manual. Projeto e autor vêm do token.
func (h *Handler) CreateAlert(c *gin.Context) {
	var in incident.AlertInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, models.BadData("%v", err))
		return
	}
	in.ProjectID = middleware.ProjectID(c)
	in.CreatedByUserID = middleware.UserID(c)
	in.CreatedByProbeID = ""
	alert, err := h.Alerts.Create(c.Request.Context(), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *Handler) CreateMaintenance(c *gin.Context) {
	var in incident.MaintenanceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, models.BadData("%v", err))
		return
	}
	in.ProjectID = middleware.ProjectID(c)
	in.CreatedByUserID = middleware.UserID(c)
	event, err := h.Maintenance.Create(c.Request.Context(), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

type stateRequest struct {
	StateID string `json:"stateId" binding:"required"`
}

func (h *Handler) ChangeMaintenanceState(c *gin.Context) {
	var req stateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, models.BadData("%v", err))
		return
	}
	ctx := c.Request.Context()
	event, err := h.Lookup.GetMaintenance(ctx, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if event.ProjectID != middleware.ProjectID(c) {
		respond.NotFound(c, "scheduled maintenance")
		return
	}
	entry, err := h.Maintenance.ChangeState(ctx, event.ID, req.StateID, middleware.UserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": entry != nil, "entry": entry})
}
