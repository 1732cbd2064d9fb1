package api

import (
	"github.com/gin-gonic/gin"

	"github.com/schoolgate/schoolgate/internal/handlers"
	"github.com/schoolgate/schoolgate/internal/middleware"
	"github.com/schoolgate/schoolgate/internal/models"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	notifications := api.Group("/notifications")
	{
		notifications.GET("", handler.List)
		notifications.GET("/unread-count", handler.UnreadCount)
		notifications.GET("/student/:studentId", handler.ListByStudent)
		notifications.GET("/:id", handler.Get)
		notifications.PUT("/:id/read", handler.MarkRead)

		notifications.POST("/request",
			middleware.RequireRole(models.RoleReceptionist),
			handler.SendRequest)
		notifications.POST("/message",
			middleware.RequireRole(models.RoleTeacher),
			handler.SendMessage)
		notifications.PUT("/:id/respond",
			middleware.RequireRole(models.RoleTeacher),
			handler.Respond)

		notifications.DELETE("/cleanup",
			middleware.RequireRole(models.RoleManager, models.RoleAdmin),
			handler.Cleanup)
	}
}
