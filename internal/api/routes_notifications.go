package api

import (
	"github.com/gin-gonic/gin"

	"github.com/huddleapp/huddle/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	group := api.Group("/notifications")
	{
		group.GET("", handler.List)
		group.POST("/fanout", handler.Fanout)
		group.POST("/mark-read", handler.MarkRead)
		group.POST("/read-all", handler.MarkAllRead)
		group.POST("/clear", handler.Clear)
	}
}
