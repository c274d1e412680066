package routes

import (
	"github.com/gin-gonic/gin"

	"udaay-be/controllers"
	"udaay-be/middlewares"
)

// NotificationRoutes sets up the notification routes
func NotificationRoutes(r *gin.Engine, nc *controllers.NotificationController, opts Options) {
	notification := r.Group("/api/notifications", middlewares.AuthMiddleware(opts.JWTSecret))
	{
		notification.GET("", nc.List)
		notification.GET("/unread-count", nc.UnreadCount)
		notification.PATCH("/read-all", nc.MarkAllRead)
		notification.PATCH("/:id/read", nc.MarkRead)
	}
}
