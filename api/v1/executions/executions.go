package executions

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"reacher-incidents/api/middleware"
	"reacher-incidents/api/v1/respond"
	"reacher-incidents/models"
)

type Lister interface {
	ListExecutionLogs(ctx context.Context, projectID string, status models.ExecutionStatus) ([]*models.ExecutionLog, error)
}

type Handler struct {
	Logs Lister
}

// List aceita ?status=Executing|Completed|Error; sem filtro lista todos.
func (h *Handler) List(c *gin.Context) {
	status := models.ExecutionStatus(c.Query("status"))
	switch status {
	case "", models.ExecutionExecuting, models.ExecutionCompleted, models.ExecutionError:
	default:
		respond.Error(c, models.BadData("unknown execution status %q", status))
		return
	}
	logs, err := h.Logs.ListExecutionLogs(c.Request.Context(), middleware.ProjectID(c), status)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if logs == nil {
		logs = []*models.ExecutionLog{}
	}
	c.JSON(http.StatusOK, gin.H{"data": logs, "count": len(logs)})
}
