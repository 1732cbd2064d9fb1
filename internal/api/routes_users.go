package api

import (
	"github.com/gin-gonic/gin"

	"github.com/schoolgate/schoolgate/internal/handlers"
	"github.com/schoolgate/schoolgate/internal/middleware"
	"github.com/schoolgate/schoolgate/internal/models"
)

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.UserHandler) {
	manage := middleware.RequireRole(models.RoleManager, models.RoleAdmin)

	users := api.Group("/users")
	{
		users.GET("", manage, handler.List)
		users.GET("/:id", manage, handler.Get)
		users.PUT("/:id", manage, handler.Update)
		users.DELETE("/:id", manage, handler.Deactivate)
	}
}
