package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

// writeError maps service errors onto status codes and the error body.
func (h *Handler) writeError(c *gin.Context, err error, message string) {
	status, code := http.StatusInternalServerError, models.ErrCodeInternalError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status, code = http.StatusNotFound, models.ErrCodeNotFound
	case errors.Is(err, models.ErrForbidden):
		status, code = http.StatusForbidden, models.ErrCodeForbidden
	case errors.Is(err, models.ErrTimeout):
		status, code = http.StatusGatewayTimeout, models.ErrCodeTimeout
	case errors.Is(err, models.ErrValidation):
		status, code = http.StatusBadRequest, models.ErrCodeValidationFailed
	case errors.Is(err, models.ErrInvalidState):
		status, code = http.StatusBadRequest, models.ErrCodeInvalidRequest
	}

	_ = c.Error(err)
	resp := models.ErrorResponse{Error: message, Code: code}
	if status == http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err))
	} else {
		resp.Details = map[string]string{"reason": err.Error()}
	}
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "Invalid request",
		Code:    models.ErrCodeValidationFailed,
		Details: map[string]string{"reason": err.Error()},
	})
}
