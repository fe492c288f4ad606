package timelines

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"reacher-incidents/api/middleware"
	"reacher-incidents/api/v1/respond"
	"reacher-incidents/models"
	"reacher-incidents/services/v1/timeline"
)

type Timeline interface {
	Insert(ctx context.Context, in timeline.InsertInput) (*models.TimelineEntry, error)
	Delete(ctx context.Context, entryID string) error
}

type EntryGetter interface {
	GetTimelineEntry(ctx context.Context, id string) (*models.TimelineEntry, error)
}

type Handler struct {
	Timeline Timeline
	Entries  EntryGetter
}

type insertRequest struct {
	OwnerKind models.OwnerKind `json:"ownerKind" binding:"required"`
	OwnerID   string           `json:"ownerId" binding:"required"`
	StateID   string           `json:"stateId" binding:"required"`
	StartsAt  *time.Time       `json:"startsAt"`
	RootCause string           `json:"rootCause"`
}

// Insert grava uma mudança de estado manual. Sem startsAt vale o agora.
func (h *Handler) Insert(c *gin.Context) {
	var req insertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, models.BadData("%v", err))
		return
	}
	in := timeline.InsertInput{
		Owner:           models.OwnerRef{Kind: req.OwnerKind, ID: req.OwnerID},
		ProjectID:       middleware.ProjectID(c),
		StateID:         req.StateID,
		RootCause:       req.RootCause,
		CreatedByUserID: middleware.UserID(c),
	}
	if req.StartsAt != nil {
		in.At = *req.StartsAt
	}
	entry, err := h.Timeline.Insert(c.Request.Context(), in)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusOK, gin.H{"recorded": false})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recorded": true, "entry": entry})
}

func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	entry, err := h.Entries.GetTimelineEntry(c.Request.Context(), id)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if entry.ProjectID != middleware.ProjectID(c) {
		respond.NotFound(c, "timeline entry")
		return
	}
	if err := h.Timeline.Delete(c.Request.Context(), id); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
