package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/huddleapp/huddle/internal/services"
	"github.com/huddleapp/huddle/pkg/errors"
	"github.com/huddleapp/huddle/pkg/response"
)

// ThreadHandler serves discussion threads and their messages.
type ThreadHandler struct {
	messages *services.MessageService
}

// NewThreadHandler constructs a thread handler.
func NewThreadHandler(messages *services.MessageService) *ThreadHandler {
	return &ThreadHandler{messages: messages}
}

// CreateThread opens a discussion thread in a workspace.
func (h *ThreadHandler) CreateThread(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		Title string `json:"title" validate:"required,min=1,max=256"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	thread, err := h.messages.CreateThread(requestContext(c), userID, c.Param("id"), payload.Title)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, thread)
}

// ListThreads returns the threads in a workspace.
func (h *ThreadHandler) ListThreads(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	threads, err := h.messages.ListThreads(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, threads)
}

// Post appends a message to a thread, relaying it over the realtime stream
// and notifying the other participants.
func (h *ThreadHandler) Post(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		Content string `json:"content" validate:"required"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	message, err := h.messages.Post(requestContext(c), services.PostMessageInput{
		ThreadID: c.Param("threadId"),
		AuthorID: userID,
		Content:  payload.Content,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, message)
}

// ListMessages returns the messages in a thread in chronological order.
// An optional before parameter pages further back in time.
func (h *ThreadHandler) ListMessages(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var before time.Time
	if raw := strings.TrimSpace(c.Query("before")); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			response.Error(c, errors.NewBadRequest("before must be an RFC 3339 timestamp"))
			return
		}
		before = parsed
	}

	messages, err := h.messages.ListMessages(requestContext(c), userID, c.Param("threadId"), parseIntQuery(c, "limit", 50), before)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, messages)
}
