package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/huddleapp/huddle/internal/services"
	"github.com/huddleapp/huddle/pkg/errors"
	"github.com/huddleapp/huddle/pkg/response"
)

// TaskHandler serves task endpoints nested under projects.
type TaskHandler struct {
	tasks *services.TaskService
}

// NewTaskHandler constructs a task handler.
func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

type createTaskPayload struct {
	Title       string     `json:"title" validate:"required,min=1,max=256"`
	Description string     `json:"description" validate:"max=4096"`
	AssigneeID  string     `json:"assignee_id"`
	DueAt       *time.Time `json:"due_at"`
}

type updateTaskPayload struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=256"`
	Description *string    `json:"description" validate:"omitempty,max=4096"`
	Status      *string    `json:"status"`
	AssigneeID  *string    `json:"assignee_id"`
	DueAt       *time.Time `json:"due_at"`
}

// Create adds a task to a project. Assigning someone else fans out a
// task_assigned notification.
func (h *TaskHandler) Create(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload createTaskPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	task, err := h.tasks.Create(requestContext(c), services.CreateTaskInput{
		ProjectID:   c.Param("projectId"),
		Title:       payload.Title,
		Description: payload.Description,
		AssigneeID:  payload.AssigneeID,
		DueAt:       payload.DueAt,
		CreatedBy:   userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, task)
}

// List returns the tasks in a project, optionally filtered by status.
func (h *TaskHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	tasks, err := h.tasks.List(requestContext(c), userID, services.ListTasksInput{
		ProjectID: c.Param("projectId"),
		Status:    c.Query("status"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tasks)
}

// Get returns one task.
func (h *TaskHandler) Get(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	task, err := h.tasks.Get(requestContext(c), userID, c.Param("taskId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// Update mutates a task. Re-assignment and completion both drive fan-outs.
func (h *TaskHandler) Update(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload updateTaskPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	task, err := h.tasks.Update(requestContext(c), userID, c.Param("taskId"), services.UpdateTaskInput{
		Title:       payload.Title,
		Description: payload.Description,
		Status:      payload.Status,
		AssigneeID:  payload.AssigneeID,
		DueAt:       payload.DueAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, task)
}

// Delete removes a task.
func (h *TaskHandler) Delete(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.tasks.Delete(requestContext(c), userID, c.Param("taskId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
