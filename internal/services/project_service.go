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

// CreateProjectInput defines attributes for a new project.
type CreateProjectInput struct {
	WorkspaceID string
	Name        string
	Description string
	CreatedBy   string
}

// ProjectService manages projects within workspaces.
type ProjectService struct {
	db         *gorm.DB
	workspaces *WorkspaceService
	notifier   *NotificationService
}

// NewProjectService constructs a ProjectService.
func NewProjectService(db *gorm.DB, workspaces *WorkspaceService, notifier *NotificationService) (*ProjectService, error) {
	if db == nil {
		return nil, errors.New("project service: db is required")
	}
	if workspaces == nil {
		return nil, errors.New("project service: workspace service is required")
	}
	return &ProjectService{db: db, workspaces: workspaces, notifier: notifier}, nil
}

// Create persists a project and announces it to the other workspace members.
func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("project name is required")
	}

	if err := s.workspaces.RequireMember(ctx, input.CreatedBy, input.WorkspaceID); err != nil {
		return nil, err
	}

	project := models.Project{
		WorkspaceID: strings.TrimSpace(input.WorkspaceID),
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		CreatedBy:   strings.TrimSpace(input.CreatedBy),
	}
	if err := s.db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, fmt.Errorf("project service: create project: %w", err)
	}

	s.announceProject(ctx, &project)

	return &project, nil
}

// ListForWorkspace returns the workspace's projects.
func (s *ProjectService) ListForWorkspace(ctx context.Context, userID, workspaceID string) ([]models.Project, error) {
	ctx = ensureContext(ctx)

	if err := s.workspaces.RequireMember(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	var projects []models.Project
	if err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("project service: list projects: %w", err)
	}
	return projects, nil
}

// Get loads one project, enforcing workspace membership.
func (s *ProjectService) Get(ctx context.Context, userID, projectID string) (*models.Project, error) {
	ctx = ensureContext(ctx)

	var project models.Project
	if err := s.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(projectID)).
		First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("project service: load project: %w", err)
	}

	if err := s.workspaces.RequireMember(ctx, userID, project.WorkspaceID); err != nil {
		return nil, err
	}
	return &project, nil
}

// Delete removes a project; only the workspace owner may delete.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID string) error {
	ctx = ensureContext(ctx)

	project, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if err := s.workspaces.RequireOwner(ctx, userID, project.WorkspaceID); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).
		Where("project_id = ?", project.ID).
		Delete(&models.Task{}).Error; err != nil {
		return fmt.Errorf("project service: delete tasks: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(project).Error; err != nil {
		return fmt.Errorf("project service: delete project: %w", err)
	}
	return nil
}

func (s *ProjectService) announceProject(ctx context.Context, project *models.Project) {
	if s.notifier == nil {
		return
	}

	memberIDs, err := s.workspaces.MemberIDs(ctx, project.WorkspaceID)
	if err != nil {
		return
	}
	recipients := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		if id != project.CreatedBy {
			recipients = append(recipients, id)
		}
	}

	var creator models.User
	actorName := ""
	if err := s.db.WithContext(ctx).Where("id = ?", project.CreatedBy).First(&creator).Error; err == nil {
		actorName = creator.Name()
	}

	_, _ = s.notifier.Fanout(ctx, FanoutInput{
		Type:        notifications.TypeProjectCreated,
		ActorID:     project.CreatedBy,
		Recipients:  recipients,
		WorkspaceID: project.WorkspaceID,
		ProjectID:   project.ID,
		Template: notifications.ProjectCreated{
			Actor:   actorName,
			Project: project.Name,
		},
	})
}
