// Package checks expõe o log de checks de um monitor: o último resultado,
// o histórico curto e os contadores do dia.
package checks

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"reacher-incidents/api/middleware"
	"reacher-incidents/api/v1/respond"
	"reacher-incidents/models"
	"reacher-incidents/services/v1/monitor"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

type Reader interface {
	Last(ctx context.Context, monitorID string) (models.CheckResult, error)
	History(ctx context.Context, monitorID string, n int64) ([]monitor.HistoryEntry, error)
	Counters(ctx context.Context, monitorID string, day time.Time) (map[string]int64, error)
}

type MonitorGetter interface {
	GetMonitor(ctx context.Context, id string) (*models.Monitor, error)
}

type Handler struct {
	Log      Reader
	Monitors MonitorGetter
	Now      func() time.Time
}

// List aceita ?limit=N (até 1000) e ?day=AAAA-MM-DD para os contadores.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	mon, err := h.Monitors.GetMonitor(ctx, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if mon.ProjectID != middleware.ProjectID(c) {
		respond.NotFound(c, "monitor")
		return
	}

	limit := int64(defaultLimit)
	if v := c.Query("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 || n > maxLimit {
			respond.Error(c, models.BadData("limit must be between 1 and %d", maxLimit))
			return
		}
		limit = n
	}
	day := h.now()
	if v := c.Query("day"); v != "" {
		if day, err = time.Parse("2006-01-02", v); err != nil {
			respond.Error(c, models.BadData("day must be YYYY-MM-DD"))
			return
		}
	}

	// monitor sem check ainda: last vai como null
	last, err := h.Log.Last(ctx, mon.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		respond.Error(c, err)
		return
	}
	history, err := h.Log.History(ctx, mon.ID, limit)
	if err != nil {
		respond.Error(c, err)
		return
	}
	counters, err := h.Log.Counters(ctx, mon.ID, day)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"monitorId": mon.ID,
		"last":      last,
		"history":   history,
		"counters":  counters,
		"day":       day.UTC().Format("2006-01-02"),
	})
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
