package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"udaay-be/middlewares"
	"udaay-be/services"
)

// NotificationController serves /api/notifications.
type NotificationController struct {
	notifier *services.Notifier
}

func NewNotificationController(notifier *services.Notifier) *NotificationController {
	return &NotificationController{notifier: notifier}
}

func (nc *NotificationController) List(c *gin.Context) {
	list, err := nc.notifier.List(c.Request.Context(), c.GetString(middlewares.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(list), "data": gin.H{"notifications": list}})
}

func (nc *NotificationController) UnreadCount(c *gin.Context) {
	count, err := nc.notifier.UnreadCount(c.Request.Context(), c.GetString(middlewares.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"count": count}})
}

func (nc *NotificationController) MarkRead(c *gin.Context) {
	n, err := nc.notifier.MarkRead(c.Request.Context(), c.GetString(middlewares.UserIDKey), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"notification": n}})
}

func (nc *NotificationController) MarkAllRead(c *gin.Context) {
	modified, err := nc.notifier.MarkAllRead(c.Request.Context(), c.GetString(middlewares.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"modified": modified}})
}
