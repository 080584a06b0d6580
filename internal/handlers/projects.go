package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/huddleapp/huddle/internal/services"
	"github.com/huddleapp/huddle/pkg/errors"
	"github.com/huddleapp/huddle/pkg/response"
)

// ProjectHandler serves project endpoints nested under workspaces.
type ProjectHandler struct {
	projects *services.ProjectService
}

// NewProjectHandler constructs a project handler.
func NewProjectHandler(projects *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

type createProjectPayload struct {
	Name        string `json:"name" validate:"required,min=1,max=128"`
	Description string `json:"description" validate:"max=1024"`
}

// Create adds a project to a workspace the caller belongs to.
func (h *ProjectHandler) Create(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload createProjectPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	project, err := h.projects.Create(requestContext(c), services.CreateProjectInput{
		WorkspaceID: c.Param("id"),
		Name:        payload.Name,
		Description: payload.Description,
		CreatedBy:   userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, project)
}

// List returns the projects in a workspace.
func (h *ProjectHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	projects, err := h.projects.ListForWorkspace(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, projects)
}

// Get returns one project.
func (h *ProjectHandler) Get(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	project, err := h.projects.Get(requestContext(c), userID, c.Param("projectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, project)
}

// Delete removes a project and its tasks. Workspace owner only.
func (h *ProjectHandler) Delete(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.projects.Delete(requestContext(c), userID, c.Param("projectId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
