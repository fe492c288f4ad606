// Package respond traduz os erros dos serviços em respostas HTTP.
package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"reacher-incidents/models"
)

// Status devolve o código HTTP de um erro de serviço.
func Status(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrBadData):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case models.IsConfigurationError(err):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Error escreve {"status":..., "message":...}. Erros internos não vazam a
// mensagem original.
func Error(c *gin.Context, err error) {
	status := Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"status": status, "message": msg})
}

// NotFound esconde recursos de outro projeto atrás de um 404.
func NotFound(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"status": http.StatusNotFound, "message": what + " not found"})
}
