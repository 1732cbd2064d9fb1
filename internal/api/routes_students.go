package api

import (
	"github.com/gin-gonic/gin"

	"github.com/schoolgate/schoolgate/internal/handlers"
	"github.com/schoolgate/schoolgate/internal/middleware"
	"github.com/schoolgate/schoolgate/internal/models"
)

func registerStudentRoutes(api *gin.RouterGroup, handler *handlers.StudentHandler) {
	manage := middleware.RequireRole(models.RoleManager, models.RoleAdmin)

	students := api.Group("/students")
	{
		students.GET("", handler.List)
		students.GET("/code/:code", handler.GetByCode)
		students.GET("/:id", handler.Get)

		students.POST("", manage, handler.Create)
		students.PUT("/:id", manage, handler.Update)
		students.DELETE("/:id", manage, handler.Delete)
	}
}
