package api

import (
	"github.com/gin-gonic/gin"

	"github.com/huddleapp/huddle/internal/handlers"
)

func registerWorkspaceRoutes(api *gin.RouterGroup, workspaces *handlers.WorkspaceHandler, invites *handlers.InviteHandler) {
	group := api.Group("/workspaces")
	{
		group.POST("", workspaces.Create)
		group.GET("", workspaces.List)
		group.GET("/:id", workspaces.Get)
		group.PATCH("/:id", workspaces.Update)

		group.GET("/:id/members", workspaces.Members)
		group.POST("/:id/members", workspaces.AddMember)
		group.DELETE("/:id/members/:userId", workspaces.RemoveMember)

		group.POST("/:id/invites", invites.Create)
	}

	api.POST("/invites/accept", invites.Accept)
}
