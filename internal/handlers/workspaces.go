package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/huddleapp/huddle/internal/models"
	"github.com/huddleapp/huddle/internal/services"
	"github.com/huddleapp/huddle/pkg/errors"
	"github.com/huddleapp/huddle/pkg/response"
)

// WorkspaceHandler serves workspace CRUD and membership endpoints.
type WorkspaceHandler struct {
	workspaces *services.WorkspaceService
}

// NewWorkspaceHandler constructs a workspace handler.
func NewWorkspaceHandler(workspaces *services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaces: workspaces}
}

type createWorkspacePayload struct {
	Name        string `json:"name" validate:"required,min=1,max=128"`
	Description string `json:"description" validate:"max=1024"`
}

type updateWorkspacePayload struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=128"`
	Description *string `json:"description" validate:"omitempty,max=1024"`
}

// Create provisions a workspace owned by the caller.
func (h *WorkspaceHandler) Create(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload createWorkspacePayload
	if !bindAndValidate(c, &payload) {
		return
	}

	workspace, err := h.workspaces.Create(requestContext(c), services.CreateWorkspaceInput{
		Name:        payload.Name,
		Description: payload.Description,
		OwnerID:     userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, workspace)
}

// List returns the workspaces the caller belongs to.
func (h *WorkspaceHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	workspaces, err := h.workspaces.ListForUser(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, workspaces)
}

// Get returns a single workspace the caller is a member of.
func (h *WorkspaceHandler) Get(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	workspace, err := h.workspaces.Get(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, workspace)
}

// Update mutates workspace attributes. Owner only.
func (h *WorkspaceHandler) Update(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload updateWorkspacePayload
	if !bindAndValidate(c, &payload) {
		return
	}

	workspace, err := h.workspaces.Update(requestContext(c), userID, c.Param("id"), services.UpdateWorkspaceInput{
		Name:        payload.Name,
		Description: payload.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, workspace)
}

// Members lists the workspace roster.
func (h *WorkspaceHandler) Members(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	members, err := h.workspaces.ListMembers(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// AddMember enrols a user directly. Owner only.
func (h *WorkspaceHandler) AddMember(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		UserID string `json:"user_id" validate:"required"`
		Role   string `json:"role"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	ctx := requestContext(c)
	workspaceID := c.Param("id")
	if err := h.workspaces.RequireOwner(ctx, userID, workspaceID); err != nil {
		response.Error(c, err)
		return
	}

	role := payload.Role
	if role == "" {
		role = models.WorkspaceRoleMember
	}
	member, err := h.workspaces.AddMember(ctx, workspaceID, payload.UserID, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, member)
}

// RemoveMember drops a user from the roster. Owner only.
func (h *WorkspaceHandler) RemoveMember(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	err := h.workspaces.RemoveMember(requestContext(c), userID, c.Param("id"), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
