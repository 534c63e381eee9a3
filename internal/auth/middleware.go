package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/models"
)

var middlewareTracer = otel.Tracer("auth-middleware")

// ClaimsKey is the gin context key holding validated download claims
const ClaimsKey = "download_claims"

// RequireDownloadToken is a Gin middleware that validates the ?token= query
// parameter against the job named by the :param path parameter
func RequireDownloadToken(jwtManager *JWTManager, param string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := middlewareTracer.Start(c.Request.Context(), "auth.require_download_token")
		defer span.End()

		jobID := c.Param(param)
		token := c.Query("token")
		if len(token) < 8 {
			span.SetAttributes(attribute.Bool("auth.token_present", false))
			c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "token query parameter is required",
				Code:  models.ErrCodeValidationFailed,
			})
			return
		}
		span.SetAttributes(attribute.Bool("auth.token_present", true))

		claims, err := jwtManager.ValidateDownloadToken(ctx, token, jobID)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.Bool("auth.token_valid", false))
			logger.Warn("rejected download token", zap.String("job_id", jobID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
				Error: "Invalid or expired token",
				Code:  models.ErrCodeForbidden,
			})
			return
		}

		span.SetAttributes(attribute.Bool("auth.token_valid", true))
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}
