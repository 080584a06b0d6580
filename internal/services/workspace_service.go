package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/huddleapp/huddle/internal/models"
	"github.com/huddleapp/huddle/internal/notifications"
	apperrors "github.com/huddleapp/huddle/pkg/errors"
)

// CreateWorkspaceInput defines attributes for a new workspace.
type CreateWorkspaceInput struct {
	Name        string
	Description string
	OwnerID     string
}

// UpdateWorkspaceInput carries optional workspace mutations.
type UpdateWorkspaceInput struct {
	Name        *string
	Description *string
}

// WorkspaceService manages workspaces and their membership.
type WorkspaceService struct {
	db       *gorm.DB
	notifier *NotificationService
}

// NewWorkspaceService constructs a WorkspaceService. The notifier may be nil
// in contexts that do not fan out membership events.
func NewWorkspaceService(db *gorm.DB, notifier *NotificationService) (*WorkspaceService, error) {
	if db == nil {
		return nil, errors.New("workspace service: db is required")
	}
	return &WorkspaceService{db: db, notifier: notifier}, nil
}

// Create persists a workspace and enrols the creator as its owner member.
func (s *WorkspaceService) Create(ctx context.Context, input CreateWorkspaceInput) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	ownerID := strings.TrimSpace(input.OwnerID)
	if name == "" {
		return nil, apperrors.NewBadRequest("workspace name is required")
	}
	if ownerID == "" {
		return nil, errors.New("workspace service: owner id is required")
	}

	workspace := models.Workspace{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     ownerID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&workspace).Error; err != nil {
			return fmt.Errorf("create workspace: %w", err)
		}
		member := models.WorkspaceMember{
			WorkspaceID: workspace.ID,
			UserID:      ownerID,
			Role:        models.WorkspaceRoleOwner,
		}
		if err := tx.Create(&member).Error; err != nil {
			return fmt.Errorf("create owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("workspace service: %w", err)
	}

	return &workspace, nil
}

// ListForUser returns every workspace the user belongs to.
func (s *WorkspaceService) ListForUser(ctx context.Context, userID string) ([]models.Workspace, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("workspace service: user id is required")
	}

	var workspaces []models.Workspace
	if err := s.db.WithContext(ctx).
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.user_id = ?", userID).
		Order("workspaces.created_at ASC").
		Find(&workspaces).Error; err != nil {
		return nil, fmt.Errorf("workspace service: list workspaces: %w", err)
	}
	return workspaces, nil
}

// Get loads a workspace the user is a member of.
func (s *WorkspaceService) Get(ctx context.Context, userID, workspaceID string) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	if err := s.RequireMember(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	var workspace models.Workspace
	if err := s.db.WithContext(ctx).
		Preload("Members").
		Where("id = ?", workspaceID).
		First(&workspace).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("workspace service: load workspace: %w", err)
	}
	return &workspace, nil
}

// Update mutates workspace attributes; only the owner may update.
func (s *WorkspaceService) Update(ctx context.Context, userID, workspaceID string, input UpdateWorkspaceInput) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	if err := s.RequireOwner(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, apperrors.NewBadRequest("workspace name cannot be empty")
		}
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).
			Model(&models.Workspace{}).
			Where("id = ?", workspaceID).
			Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("workspace service: update workspace: %w", err)
		}
	}

	var workspace models.Workspace
	if err := s.db.WithContext(ctx).Where("id = ?", workspaceID).First(&workspace).Error; err != nil {
		return nil, fmt.Errorf("workspace service: reload workspace: %w", err)
	}
	return &workspace, nil
}

// ListMembers returns workspace membership with user details preloaded.
func (s *WorkspaceService) ListMembers(ctx context.Context, userID, workspaceID string) ([]models.WorkspaceMember, error) {
	ctx = ensureContext(ctx)

	if err := s.RequireMember(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	var members []models.WorkspaceMember
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("workspace service: list members: %w", err)
	}
	return members, nil
}

// AddMember enrols a user and announces the new member to existing members.
func (s *WorkspaceService) AddMember(ctx context.Context, workspaceID, userID, role string) (*models.WorkspaceMember, error) {
	ctx = ensureContext(ctx)
	workspaceID = strings.TrimSpace(workspaceID)
	userID = strings.TrimSpace(userID)
	if workspaceID == "" || userID == "" {
		return nil, errors.New("workspace service: workspace id and user id are required")
	}
	if role == "" {
		role = models.WorkspaceRoleMember
	}

	existingIDs, err := s.MemberIDs(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	for _, id := range existingIDs {
		if id == userID {
			return nil, apperrors.ErrConflict
		}
	}

	member := models.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
	}
	if err := s.db.WithContext(ctx).Create(&member).Error; err != nil {
		return nil, fmt.Errorf("workspace service: add member: %w", err)
	}

	s.announceJoin(ctx, workspaceID, userID, existingIDs)

	return &member, nil
}

// RemoveMember drops a member; only the owner may remove, and the owner
// cannot remove themselves.
func (s *WorkspaceService) RemoveMember(ctx context.Context, actorID, workspaceID, userID string) error {
	ctx = ensureContext(ctx)

	if err := s.RequireOwner(ctx, actorID, workspaceID); err != nil {
		return err
	}
	if actorID == userID {
		return apperrors.NewBadRequest("workspace owner cannot remove themselves")
	}

	result := s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Delete(&models.WorkspaceMember{})
	if result.Error != nil {
		return fmt.Errorf("workspace service: remove member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// MemberIDs returns the user ids of every workspace member.
func (s *WorkspaceService) MemberIDs(ctx context.Context, workspaceID string) ([]string, error) {
	ctx = ensureContext(ctx)

	var ids []string
	if err := s.db.WithContext(ctx).
		Model(&models.WorkspaceMember{}).
		Where("workspace_id = ?", workspaceID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("workspace service: member ids: %w", err)
	}
	return ids, nil
}

// RequireMember returns ErrForbidden when the user does not belong to the workspace.
func (s *WorkspaceService) RequireMember(ctx context.Context, userID, workspaceID string) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("workspace service: check membership: %w", err)
	}
	if count == 0 {
		return apperrors.ErrForbidden
	}
	return nil
}

// RequireOwner returns ErrForbidden unless the user holds the owner role.
func (s *WorkspaceService) RequireOwner(ctx context.Context, userID, workspaceID string) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ? AND role = ?", workspaceID, userID, models.WorkspaceRoleOwner).
		Count(&count).Error; err != nil {
		return fmt.Errorf("workspace service: check ownership: %w", err)
	}
	if count == 0 {
		return apperrors.ErrForbidden
	}
	return nil
}

// announceJoin fans out a member_joined notification to the members that were
// already present. Fan-out failures are an operational concern, never a
// reason to fail the membership change.
func (s *WorkspaceService) announceJoin(ctx context.Context, workspaceID, newUserID string, existing []string) {
	if s.notifier == nil || len(existing) == 0 {
		return
	}

	var workspace models.Workspace
	if err := s.db.WithContext(ctx).Where("id = ?", workspaceID).First(&workspace).Error; err != nil {
		return
	}
	var member models.User
	if err := s.db.WithContext(ctx).Where("id = ?", newUserID).First(&member).Error; err != nil {
		return
	}

	_, _ = s.notifier.Fanout(ctx, FanoutInput{
		Type:        notifications.TypeMemberJoined,
		ActorID:     newUserID,
		Recipients:  existing,
		WorkspaceID: workspaceID,
		Template: notifications.MemberJoined{
			Member:    member.Name(),
			Workspace: workspace.Name,
		},
		Dedupe: true,
	})
}
