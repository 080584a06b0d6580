package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/huddleapp/huddle/internal/models"
	"github.com/huddleapp/huddle/internal/notifications"
	apperrors "github.com/huddleapp/huddle/pkg/errors"
)

// CreateTaskInput defines attributes for a new task.
type CreateTaskInput struct {
	ProjectID   string
	Title       string
	Description string
	AssigneeID  string
	DueAt       *time.Time
	CreatedBy   string
}

// UpdateTaskInput carries optional task mutations.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *string
	AssigneeID  *string
	DueAt       *time.Time
}

// ListTasksInput filters task queries.
type ListTasksInput struct {
	ProjectID string
	Status    string
}

// TaskService manages tasks and drives the task-related notification fan-outs.
type TaskService struct {
	db         *gorm.DB
	workspaces *WorkspaceService
	projects   *ProjectService
	notifier   *NotificationService
	now        func() time.Time
}

// NewTaskService constructs a TaskService.
func NewTaskService(db *gorm.DB, workspaces *WorkspaceService, projects *ProjectService, notifier *NotificationService) (*TaskService, error) {
	if db == nil {
		return nil, errors.New("task service: db is required")
	}
	if workspaces == nil || projects == nil {
		return nil, errors.New("task service: workspace and project services are required")
	}
	return &TaskService{
		db:         db,
		workspaces: workspaces,
		projects:   projects,
		notifier:   notifier,
		now:        time.Now,
	}, nil
}

// Create persists a task. Assigning at creation time notifies the assignee.
func (s *TaskService) Create(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("task title is required")
	}

	project, err := s.projects.Get(ctx, input.CreatedBy, input.ProjectID)
	if err != nil {
		return nil, err
	}

	task := models.Task{
		ProjectID:   project.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      models.TaskStatusTodo,
		CreatedBy:   strings.TrimSpace(input.CreatedBy),
		DueAt:       input.DueAt,
	}
	if assignee := strings.TrimSpace(input.AssigneeID); assignee != "" {
		if err := s.workspaces.RequireMember(ctx, assignee, project.WorkspaceID); err != nil {
			return nil, apperrors.NewBadRequest("assignee is not a workspace member")
		}
		task.AssigneeID = &assignee
	}

	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("task service: create task: %w", err)
	}

	if task.AssigneeID != nil && *task.AssigneeID != task.CreatedBy {
		s.notifyAssignment(ctx, &task, project.WorkspaceID, task.CreatedBy)
	}

	return &task, nil
}

// List returns tasks for a project, optionally filtered by status.
func (s *TaskService) List(ctx context.Context, userID string, input ListTasksInput) ([]models.Task, error) {
	ctx = ensureContext(ctx)

	if _, err := s.projects.Get(ctx, userID, input.ProjectID); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Where("project_id = ?", input.ProjectID).
		Order("created_at ASC")
	if status := strings.TrimSpace(input.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var tasks []models.Task
	if err := query.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task service: list tasks: %w", err)
	}
	return tasks, nil
}

// Get loads one task, enforcing workspace membership via the project.
func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*models.Task, error) {
	ctx = ensureContext(ctx)

	var task models.Task
	if err := s.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(taskID)).
		First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("task service: load task: %w", err)
	}

	if _, err := s.projects.Get(ctx, userID, task.ProjectID); err != nil {
		return nil, err
	}
	return &task, nil
}

// Update mutates task attributes. Re-assignment notifies the new assignee;
// a transition into done notifies the task creator.
func (s *TaskService) Update(ctx context.Context, userID, taskID string, input UpdateTaskInput) (*models.Task, error) {
	ctx = ensureContext(ctx)

	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.Get(ctx, userID, task.ProjectID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	assigneeChanged := false
	completed := false

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, apperrors.NewBadRequest("task title cannot be empty")
		}
		updates["title"] = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.DueAt != nil {
		updates["due_at"] = *input.DueAt
	}
	if input.Status != nil {
		status := strings.TrimSpace(*input.Status)
		switch status {
		case models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusDone:
		default:
			return nil, apperrors.NewBadRequest("invalid task status")
		}
		updates["status"] = status
		if status == models.TaskStatusDone && task.Status != models.TaskStatusDone {
			now := s.now().UTC()
			updates["completed_at"] = now
			completed = true
		}
	}
	if input.AssigneeID != nil {
		assignee := strings.TrimSpace(*input.AssigneeID)
		if assignee == "" {
			updates["assignee_id"] = nil
		} else {
			if err := s.workspaces.RequireMember(ctx, assignee, project.WorkspaceID); err != nil {
				return nil, apperrors.NewBadRequest("assignee is not a workspace member")
			}
			updates["assignee_id"] = assignee
			assigneeChanged = task.AssigneeID == nil || *task.AssigneeID != assignee
		}
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).
			Model(&models.Task{}).
			Where("id = ?", task.ID).
			Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("task service: update task: %w", err)
		}
	}

	if err := s.db.WithContext(ctx).Where("id = ?", task.ID).First(task).Error; err != nil {
		return nil, fmt.Errorf("task service: reload task: %w", err)
	}

	if assigneeChanged && task.AssigneeID != nil && *task.AssigneeID != userID {
		s.notifyAssignment(ctx, task, project.WorkspaceID, userID)
	}
	if completed && task.CreatedBy != "" && task.CreatedBy != userID {
		s.notifyCompletion(ctx, task, project.WorkspaceID, userID)
	}

	return task, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	ctx = ensureContext(ctx)

	task, err := s.Get(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(task).Error; err != nil {
		return fmt.Errorf("task service: delete task: %w", err)
	}
	return nil
}

func (s *TaskService) notifyAssignment(ctx context.Context, task *models.Task, workspaceID, actorID string) {
	if s.notifier == nil || task.AssigneeID == nil {
		return
	}

	actorName := s.userName(ctx, actorID)
	_, _ = s.notifier.Fanout(ctx, FanoutInput{
		Type:        notifications.TypeTaskAssigned,
		ActorID:     actorID,
		Recipients:  []string{*task.AssigneeID},
		WorkspaceID: workspaceID,
		ProjectID:   task.ProjectID,
		TaskID:      task.ID,
		Template: notifications.TaskAssigned{
			Actor:     actorName,
			TaskTitle: task.Title,
		},
	})
}

func (s *TaskService) notifyCompletion(ctx context.Context, task *models.Task, workspaceID, actorID string) {
	if s.notifier == nil {
		return
	}

	actorName := s.userName(ctx, actorID)
	_, _ = s.notifier.Fanout(ctx, FanoutInput{
		Type:        notifications.TypeTaskCompleted,
		ActorID:     actorID,
		Recipients:  []string{task.CreatedBy},
		WorkspaceID: workspaceID,
		ProjectID:   task.ProjectID,
		TaskID:      task.ID,
		Template: notifications.TaskCompleted{
			Actor:     actorName,
			TaskTitle: task.Title,
		},
	})
}

func (s *TaskService) userName(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return ""
	}
	return user.Name()
}
