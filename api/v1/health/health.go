package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check é uma dependência que responde a um ping (postgres, redis, nats).
type Check func(ctx context.Context) error

type Handler struct {
	Checks map[string]Check
}

// GetHealth responde 200 só se todas as dependências responderem.
func (h *Handler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	message := "ok"
	if status != http.StatusOK {
		message = "degraded"
	}
	c.JSON(status, gin.H{
		"status":       status,
		"message":      message,
		"dependencies": deps,
	})
}
