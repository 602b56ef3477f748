package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/listcart/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger *zap.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		cart := v1.Group("/cart")
		cart.Use(RequireUserID())
		{
			cart.GET("", handler.GetCart)
			cart.POST("/bulk", handler.AddBulk)
			cart.POST("/ocr", handler.AddImage)
			cart.POST("/lines", handler.AddLines)
		}
	}

	return router
}
