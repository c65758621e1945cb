package api

import (
	"trial-sponsor-tracker/pkg/monitoring"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, handlers *Handlers, collector *monitoring.MetricsCollector, logger *zap.Logger) {
	router.Use(ErrorHandlerMiddleware(logger))
	router.Use(CORSMiddleware())
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(MetricsMiddleware(collector))
	router.Use(RateLimitMiddleware(100))

	router.GET("/health", handlers.Health)
	router.GET("/health/live", handlers.Liveness)
	router.GET("/health/ready", handlers.Readiness)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.Health)

		runs := v1.Group("/runs")
		{
			runs.GET("", handlers.ListRuns)
			runs.POST("", handlers.TriggerRun)
			runs.GET("/latest", handlers.GetLatestRun)
			runs.GET("/:id", handlers.GetRun)
			runs.GET("/:id/rows", handlers.GetRunRows)
		}

		sponsors := v1.Group("/sponsors")
		{
			sponsors.GET("/check", handlers.CheckSponsor)
		}

		system := v1.Group("/system")
		{
			system.GET("/metrics", handlers.GetMetrics)
			system.GET("/status", handlers.GetSystemStatus)
		}
	}
}
