package api

import (
	"github.com/gin-gonic/gin"

	"github.com/schoolgate/schoolgate/internal/handlers"
	"github.com/schoolgate/schoolgate/internal/middleware"
	"github.com/schoolgate/schoolgate/internal/models"
)

func registerClassRoutes(api *gin.RouterGroup, handler *handlers.ClassHandler) {
	manage := middleware.RequireRole(models.RoleManager, models.RoleAdmin)

	classes := api.Group("/classes")
	{
		classes.GET("", handler.List)
		classes.GET("/mine", middleware.RequireRole(models.RoleTeacher), handler.ListMine)
		classes.GET("/:id", handler.Get)
		classes.GET("/:id/students", handler.ListStudents)

		classes.POST("", manage, handler.Create)
		classes.PUT("/:id", manage, handler.Update)
		classes.DELETE("/:id", manage, handler.Delete)
		classes.PUT("/:id/teacher", manage, handler.AssignTeacher)
		classes.DELETE("/:id/teacher", manage, handler.UnassignTeacher)
		classes.POST("/:id/students", manage, handler.AddStudent)
		classes.DELETE("/:id/students/:studentId", manage, handler.RemoveStudent)
	}
}
