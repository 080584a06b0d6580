package api

import (
	"github.com/gin-gonic/gin"

	"github.com/huddleapp/huddle/internal/handlers"
)

func registerThreadRoutes(api *gin.RouterGroup, threads *handlers.ThreadHandler) {
	workspaceScoped := api.Group("/workspaces/:id/threads")
	{
		workspaceScoped.POST("", threads.CreateThread)
		workspaceScoped.GET("", threads.ListThreads)
	}

	group := api.Group("/threads/:threadId")
	{
		group.POST("/messages", threads.Post)
		group.GET("/messages", threads.ListMessages)
	}
}
