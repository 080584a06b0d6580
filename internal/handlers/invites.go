package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/huddleapp/huddle/internal/services"
	"github.com/huddleapp/huddle/pkg/errors"
	"github.com/huddleapp/huddle/pkg/response"
)

// InviteHandler serves workspace invite creation and acceptance.
type InviteHandler struct {
	invites *services.InviteService
}

// NewInviteHandler constructs an invite handler.
func NewInviteHandler(invites *services.InviteService) *InviteHandler {
	return &InviteHandler{invites: invites}
}

// Create issues an invite token for an email address. Owner only.
func (h *InviteHandler) Create(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	token, link, err := h.invites.Create(requestContext(c), userID, c.Param("id"), payload.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"token": token, "link": link})
}

// Accept redeems an invite token for the authenticated user.
func (h *InviteHandler) Accept(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		Token string `json:"token" validate:"required"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	member, err := h.invites.Accept(requestContext(c), userID, payload.Token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, member)
}
