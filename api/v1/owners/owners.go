// Package owners expõe ack e resolve manuais de incidentes e alertas, a
// criação manual de alertas e o ciclo das manutenções agendadas.
package owners

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"reacher-incidents/api/middleware"
	"reacher-incidents/api/v1/respond"
	"reacher-incidents/models"
)

type States interface {
	Acknowledge(ctx context.Context, owner models.OwnerRef, userID string) (*models.TimelineEntry, error)
	Resolve(ctx context.Context, owner models.OwnerRef, userID string) (*models.TimelineEntry, error)
	IsAcknowledged(ctx context.Context, owner models.OwnerRef) (bool, error)
	IsResolved(ctx context.Context, owner models.OwnerRef) (bool, error)
}

type Lookup interface {
	GetIncident(ctx context.Context, id string) (*models.Incident, error)
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	GetMaintenance(ctx context.Context, id string) (*models.ScheduledMaintenance, error)
}

type Handler struct {
	States      States
	Lookup      Lookup
	Alerts      AlertCreator
	Maintenance MaintenanceScheduler
}

func (h *Handler) projectOf(ctx context.Context, owner models.OwnerRef) (string, error) {
	if owner.Kind == models.OwnerAlert {
		a, err := h.Lookup.GetAlert(ctx, owner.ID)
		if err != nil {
			return "", err
		}
		return a.ProjectID, nil
	}
	inc, err := h.Lookup.GetIncident(ctx, owner.ID)
	if err != nil {
		return "", err
	}
	return inc.ProjectID, nil
}

func (h *Handler) handle(kind models.OwnerKind, resolve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		owner := models.OwnerRef{Kind: kind, ID: c.Param("id")}
		project, err := h.projectOf(ctx, owner)
		if err != nil {
			respond.Error(c, err)
			return
		}
		if project != middleware.ProjectID(c) {
			respond.NotFound(c, string(kind))
			return
		}
		var entry *models.TimelineEntry
		if resolve {
			entry, err = h.States.Resolve(ctx, owner, middleware.UserID(c))
		} else {
			entry, err = h.States.Acknowledge(ctx, owner, middleware.UserID(c))
		}
		if err != nil {
			respond.Error(c, err)
			return
		}
		// entry nil: o owner já estava nesse estado
		c.JSON(http.StatusOK, gin.H{"changed": entry != nil, "entry": entry})
	}
}

func (h *Handler) status(kind models.OwnerKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		owner := models.OwnerRef{Kind: kind, ID: c.Param("id")}
		project, err := h.projectOf(ctx, owner)
		if err != nil {
			respond.Error(c, err)
			return
		}
		if project != middleware.ProjectID(c) {
			respond.NotFound(c, string(kind))
			return
		}
		acked, err := h.States.IsAcknowledged(ctx, owner)
		if err != nil {
			respond.Error(c, err)
			return
		}
		resolved, err := h.States.IsResolved(ctx, owner)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"acknowledged": acked, "resolved": resolved})
	}
}

func (h *Handler) IncidentStatus() gin.HandlerFunc { return h.status(models.OwnerIncident) }
func (h *Handler) AlertStatus() gin.HandlerFunc    { return h.status(models.OwnerAlert) }

func (h *Handler) AcknowledgeIncident() gin.HandlerFunc { return h.handle(models.OwnerIncident, false) }
func (h *Handler) ResolveIncident() gin.HandlerFunc     { return h.handle(models.OwnerIncident, true) }
func (h *Handler) AcknowledgeAlert() gin.HandlerFunc    { return h.handle(models.OwnerAlert, false) }
func (h *Handler) ResolveAlert() gin.HandlerFunc        { return h.handle(models.OwnerAlert, true) }
