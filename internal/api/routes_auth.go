package api

import (
	"github.com/gin-gonic/gin"

	"github.com/schoolgate/schoolgate/internal/handlers"
	"github.com/schoolgate/schoolgate/internal/middleware"
	"github.com/schoolgate/schoolgate/internal/models"
)

func registerAuthRoutes(api *gin.RouterGroup, handler *handlers.AuthHandler) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", middleware.RequireRole(models.RoleManager, models.RoleAdmin), handler.Register)
		auth.POST("/logout", handler.Logout)
		auth.GET("/me", handler.Me)
		auth.PUT("/password", handler.UpdatePassword)
		auth.PUT("/device-token", handler.UpdateDeviceToken)
		auth.DELETE("/device-token", handler.ClearDeviceToken)
	}
}
