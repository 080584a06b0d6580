package api

import (
	"github.com/gin-gonic/gin"

	"github.com/huddleapp/huddle/internal/handlers"
)

func registerProjectRoutes(api *gin.RouterGroup, projects *handlers.ProjectHandler, tasks *handlers.TaskHandler) {
	workspaceScoped := api.Group("/workspaces/:id/projects")
	{
		workspaceScoped.POST("", projects.Create)
		workspaceScoped.GET("", projects.List)
	}

	group := api.Group("/projects/:projectId")
	{
		group.GET("", projects.Get)
		group.DELETE("", projects.Delete)

		group.POST("/tasks", tasks.Create)
		group.GET("/tasks", tasks.List)
	}

	taskGroup := api.Group("/tasks/:taskId")
	{
		taskGroup.GET("", tasks.Get)
		taskGroup.PATCH("", tasks.Update)
		taskGroup.DELETE("", tasks.Delete)
	}
}
