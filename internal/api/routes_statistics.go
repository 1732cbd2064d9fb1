package api

import (
	"github.com/gin-gonic/gin"

	"github.com/schoolgate/schoolgate/internal/handlers"
	"github.com/schoolgate/schoolgate/internal/middleware"
	"github.com/schoolgate/schoolgate/internal/models"
)

func registerStatisticsRoutes(api *gin.RouterGroup, handler *handlers.StatisticsHandler) {
	statistics := api.Group("/statistics")
	statistics.Use(middleware.RequireRole(models.RoleManager, models.RoleAdmin))
	{
		statistics.GET("/dashboard", handler.Dashboard)
	}
}
