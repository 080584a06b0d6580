package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/huddleapp/huddle/internal/auth"
	"github.com/huddleapp/huddle/internal/notifications"
	"github.com/huddleapp/huddle/internal/realtime"
	"github.com/huddleapp/huddle/internal/services"
	"github.com/huddleapp/huddle/pkg/errors"
	"github.com/huddleapp/huddle/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for notification fan-out,
// listing, read-state transitions, and the realtime stream.
type NotificationHandler struct {
	service *services.NotificationService
	hub     *realtime.Hub
	jwt     *iauth.JWTService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService, hub *realtime.Hub, jwt *iauth.JWTService) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		hub:     hub,
		jwt:     jwt,
	}
}

type fanoutPayload struct {
	Type        string         `json:"type" validate:"required"`
	ActorID     string         `json:"actorId"`
	Recipients  []string       `json:"recipients"`
	WorkspaceID string         `json:"workspaceId"`
	ProjectID   string         `json:"projectId"`
	TaskID      string         `json:"taskId"`
	ThreadID    string         `json:"threadId"`
	MessageID   string         `json:"messageId"`
	Meta        map[string]any `json:"meta"`
}

// Fanout delivers one notification row per distinct recipient. Partial
// failures are embedded in the success response; only a total failure across
// a non-empty recipient list produces an error status.
func (h *NotificationHandler) Fanout(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload fanoutPayload
	if !bindAndValidate(c, &payload) {
		return
	}

	notificationType, err := notifications.ParseType(strings.TrimSpace(payload.Type))
	if err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}

	template, err := notifications.DecodeMeta(notificationType, payload.Meta)
	if err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}

	actorID := strings.TrimSpace(payload.ActorID)
	if actorID == "" {
		actorID = userID
	}

	result, err := h.service.Fanout(requestContext(c), services.FanoutInput{
		Type:        notificationType,
		ActorID:     actorID,
		Recipients:  payload.Recipients,
		WorkspaceID: payload.WorkspaceID,
		ProjectID:   payload.ProjectID,
		TaskID:      payload.TaskID,
		ThreadID:    payload.ThreadID,
		MessageID:   payload.MessageID,
		Template:    template,
		Meta:        payload.Meta,
		Dedupe:      wantsDedupe(payload.Meta),
	})
	if err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}

	if result.AllFailed() {
		response.Error(c, errors.ErrDeliveryFailed.WithDetails(gin.H{
			"recipients": result.Recipients,
			"errors":     result.Errors,
		}))
		return
	}

	response.Success(c, http.StatusOK, result)
}

// List returns one page of the caller's notifications plus unread count and
// pagination cursor.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	input := services.ListNotificationsInput{
		UserID: userID,
		Limit:  parseIntQuery(c, "limit", 25),
	}
	if raw := strings.TrimSpace(c.Query("cursor")); raw != "" {
		cursor, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			response.Error(c, errors.NewBadRequest("cursor must be an RFC 3339 timestamp"))
			return
		}
		input.Cursor = &cursor
	}

	page, err := h.service.ListForUser(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	meta := &response.Meta{UnreadCount: page.UnreadCount}
	if page.NextCursor != nil {
		formatted := page.NextCursor.Format(time.RFC3339Nano)
		meta.Cursor = &formatted
	}
	response.SuccessWithMeta(c, http.StatusOK, page.Items, meta)
}

// MarkRead flags the supplied notification ids as read for the caller.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		IDs []string `json:"ids" validate:"required"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	updated, err := h.service.MarkRead(requestContext(c), userID, payload.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// MarkAllRead marks all of the caller's notifications read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.service.MarkAllRead(requestContext(c), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}

// Clear hard-deletes all of the caller's notifications.
func (h *NotificationHandler) Clear(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	deleted, err := h.service.ClearAll(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": deleted})
}

// Stream upgrades the connection to a WebSocket scoped to the caller's user
// id. Browsers cannot set headers on WebSocket dials, so the token is also
// accepted as a query parameter.
func (h *NotificationHandler) Stream(c *gin.Context) {
	if h.jwt == nil || h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		authz := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}
	if token == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	streams := []string{realtime.StreamNotifications}
	if requested := strings.TrimSpace(c.Query("streams")); requested != "" {
		streams = strings.Split(requested, ",")
	}

	h.hub.Serve(claims.UserID, streams, c.Writer, c.Request)
}

// wantsDedupe reports whether the metadata opts this fan-out into the
// trailing-window duplicate suppression.
func wantsDedupe(meta map[string]any) bool {
	if meta == nil {
		return false
	}
	switch v := meta["dedupeKey"].(type) {
	case bool:
		return v
	case string:
		return v != ""
	default:
		return v != nil
	}
}
