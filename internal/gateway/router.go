package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/bizmatters/maker-orchestrator/internal/auth"
)

// RouterConfig collects what NewRouter wires together.
type RouterConfig struct {
	Handler     *Handler
	JWTManager  *auth.JWTManager
	RateLimiter *RateLimiter
	Logger      *zap.Logger
	// Ready reports backing-store health for /ready.
	Ready func(ctx context.Context) error
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(cfg RouterConfig) *gin.Engine {
	registerValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(accessLog(cfg.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", func(c *gin.Context) {
		if cfg.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Ready(ctx); err != nil {
				cfg.Logger.Warn("readiness check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "not ready",
					"error":  "store unavailable",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	throttled := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		if cfg.RateLimiter == nil {
			return []gin.HandlerFunc{handler}
		}
		return []gin.HandlerFunc{cfg.RateLimiter.Middleware(), handler}
	}

	h := cfg.Handler
	v1 := router.Group("/api/v1")

	v1.POST("/sessions", throttled(h.CreateSession)...)
	v1.GET("/sessions/:id", h.GetSession)
	v1.POST("/sessions/:id/answers", h.SubmitAnswers)
	v1.PATCH("/sessions/:id/spec", h.PatchSpecification)

	v1.POST("/builds", throttled(h.StartBuild)...)
	v1.GET("/builds/:id", h.GetBuild)
	v1.GET("/builds/:id/artifacts", h.GetBuild)
	v1.GET("/builds/:id/stream", h.StreamBuild)
	v1.GET("/builds/:id/files/:filename",
		h.ResolveBuild,
		auth.RequireDownloadToken(cfg.JWTManager, "id", cfg.Logger),
		h.DownloadArtifact,
	)

	return router
}
