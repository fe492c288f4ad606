// Package probe recebe resultados de check dos probes e as requisições dos
// monitores de incoming request.
package probe

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"reacher-incidents/api/middleware"
	"reacher-incidents/api/v1/respond"
	"reacher-incidents/models"
	"reacher-incidents/services/v1/monitor"
)

const maxBody = 1 << 20

type Pipeline interface {
	Process(ctx context.Context, result models.CheckResult) (monitor.IngestResponse, error)
	ReceiveHeartbeat(ctx context.Context, secretKey string, req models.IncomingRequestResult) (monitor.IngestResponse, error)
}

type MonitorGetter interface {
	GetMonitor(ctx context.Context, id string) (*models.Monitor, error)
}

type Handler struct {
	Pipeline Pipeline
	Monitors MonitorGetter
}

// PostResult aceita {"kind": "...", "data": {...}} de um probe autenticado.
func (h *Handler) PostResult(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		respond.Error(c, models.BadData("unreadable body"))
		return
	}
	result, err := models.DecodeCheckResult(raw)
	if err != nil {
		respond.Error(c, err)
		return
	}
	monitorID := result.Common().MonitorID
	if monitorID == "" {
		respond.Error(c, models.BadData("monitorId is required"))
		return
	}
	mon, err := h.Monitors.GetMonitor(c.Request.Context(), monitorID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if mon.ProjectID != middleware.ProjectID(c) {
		respond.NotFound(c, "monitor")
		return
	}

	resp, err := h.Pipeline.Process(c.Request.Context(), result)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Incoming é público: a chave secreta na URL identifica o monitor.
func (h *Handler) Incoming(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		respond.Error(c, models.BadData("unreadable body"))
		return
	}
	headers := make(map[string]string, len(c.Request.Header))
	for k := range c.Request.Header {
		headers[k] = c.Request.Header.Get(k)
	}
	resp, err := h.Pipeline.ReceiveHeartbeat(c.Request.Context(), c.Param("secretKey"), models.IncomingRequestResult{
		Method:         c.Request.Method,
		RequestBody:    string(body),
		RequestHeaders: headers,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": http.StatusOK, "message": "received", "processed": resp.Processed})
}
