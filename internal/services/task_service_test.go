package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/huddleapp/huddle/internal/database/testutil"
	"github.com/huddleapp/huddle/internal/models"
	apperrors "github.com/huddleapp/huddle/pkg/errors"
)

type taskFixture struct {
	tasks     *TaskService
	owner     models.User
	member    models.User
	workspace *models.Workspace
	project   *models.Project
}

func newTaskFixture(t *testing.T, db *gorm.DB) taskFixture {
	t.Helper()

	notifier, err := NewNotificationService(db, nil)
	require.NoError(t, err)
	workspaces, err := NewWorkspaceService(db, notifier)
	require.NoError(t, err)
	projects, err := NewProjectService(db, workspaces, notifier)
	require.NoError(t, err)
	tasks, err := NewTaskService(db, workspaces, projects, notifier)
	require.NoError(t, err)

	owner := newTestUser(t, db, "task-owner")
	workspace, err := workspaces.Create(context.Background(), CreateWorkspaceInput{
		Name:    "Task Co",
		OwnerID: owner.ID,
	})
	require.NoError(t, err)

	member := newTestUser(t, db, "task-member")
	_, err = workspaces.AddMember(context.Background(), workspace.ID, member.ID, "")
	require.NoError(t, err)

	project, err := projects.Create(context.Background(), CreateProjectInput{
		WorkspaceID: workspace.ID,
		Name:        "Atlas",
		CreatedBy:   owner.ID,
	})
	require.NoError(t, err)

	return taskFixture{
		tasks:     tasks,
		owner:     owner,
		member:    member,
		workspace: workspace,
		project:   project,
	}
}

func TestTaskCreateNotifiesAssignee(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	fx := newTaskFixture(t, db)

	task, err := fx.tasks.Create(context.Background(), CreateTaskInput{
		ProjectID:  fx.project.ID,
		Title:      "Write docs",
		AssigneeID: fx.member.ID,
		CreatedBy:  fx.owner.ID,
	})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusTodo, task.Status)

	var note models.Notification
	require.NoError(t, db.Where("user_id = ? AND type = ?", fx.member.ID, "task_assigned").First(&note).Error)
	require.Equal(t, task.ID, note.RefID)
	require.Equal(t, fx.owner.ID, note.ActorID)
}

func TestTaskCreateSelfAssignmentIsSilent(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	fx := newTaskFixture(t, db)

	_, err := fx.tasks.Create(context.Background(), CreateTaskInput{
		ProjectID:  fx.project.ID,
		Title:      "Solo work",
		AssigneeID: fx.owner.ID,
		CreatedBy:  fx.owner.ID,
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", fx.owner.ID, "task_assigned").
		Count(&count).Error)
	require.Zero(t, count)
}

func TestTaskCreateRejectsNonMemberAssignee(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	fx := newTaskFixture(t, db)

	outsider := newTestUser(t, db, "task-outsider")
	_, err := fx.tasks.Create(context.Background(), CreateTaskInput{
		ProjectID:  fx.project.ID,
		Title:      "Nope",
		AssigneeID: outsider.ID,
		CreatedBy:  fx.owner.ID,
	})
	require.Error(t, err)
}

func TestTaskUpdateCompletionNotifiesCreator(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	fx := newTaskFixture(t, db)

	task, err := fx.tasks.Create(context.Background(), CreateTaskInput{
		ProjectID:  fx.project.ID,
		Title:      "Finish me",
		AssigneeID: fx.member.ID,
		CreatedBy:  fx.owner.ID,
	})
	require.NoError(t, err)

	done := models.TaskStatusDone
	updated, err := fx.tasks.Update(context.Background(), fx.member.ID, task.ID, UpdateTaskInput{Status: &done})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusDone, updated.Status)
	require.NotNil(t, updated.CompletedAt)

	var note models.Notification
	require.NoError(t, db.Where("user_id = ? AND type = ?", fx.owner.ID, "task_completed").First(&note).Error)
	require.Equal(t, task.ID, note.RefID)
	require.Equal(t, fx.member.ID, note.ActorID)

	// Marking an already-done task done again stays silent.
	_, err = fx.tasks.Update(context.Background(), fx.member.ID, task.ID, UpdateTaskInput{Status: &done})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", fx.owner.ID, "task_completed").
		Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestTaskUpdateRejectsInvalidStatus(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	fx := newTaskFixture(t, db)

	task, err := fx.tasks.Create(context.Background(), CreateTaskInput{
		ProjectID: fx.project.ID,
		Title:     "Status check",
		CreatedBy: fx.owner.ID,
	})
	require.NoError(t, err)

	bogus := "paused"
	_, err = fx.tasks.Update(context.Background(), fx.owner.ID, task.ID, UpdateTaskInput{Status: &bogus})
	require.Error(t, err)
}

func TestTaskReassignmentNotifiesNewAssignee(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	fx := newTaskFixture(t, db)

	task, err := fx.tasks.Create(context.Background(), CreateTaskInput{
		ProjectID: fx.project.ID,
		Title:     "Handoff",
		CreatedBy: fx.owner.ID,
	})
	require.NoError(t, err)

	assignee := fx.member.ID
	_, err = fx.tasks.Update(context.Background(), fx.owner.ID, task.ID, UpdateTaskInput{AssigneeID: &assignee})
	require.NoError(t, err)

	var note models.Notification
	require.NoError(t, db.Where("user_id = ? AND type = ? AND ref_id = ?", fx.member.ID, "task_assigned", task.ID).First(&note).Error)
}

func TestTaskReassignmentAttributesActingUser(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	fx := newTaskFixture(t, db)

	workspaces, err := NewWorkspaceService(db, nil)
	require.NoError(t, err)
	second := newTestUser(t, db, "task-second")
	_, err = workspaces.AddMember(context.Background(), fx.workspace.ID, second.ID, "")
	require.NoError(t, err)

	task, err := fx.tasks.Create(context.Background(), CreateTaskInput{
		ProjectID: fx.project.ID,
		Title:     "Rotate on-call",
		CreatedBy: fx.owner.ID,
	})
	require.NoError(t, err)

	assignee := second.ID
	_, err = fx.tasks.Update(context.Background(), fx.member.ID, task.ID, UpdateTaskInput{AssigneeID: &assignee})
	require.NoError(t, err)

	var note models.Notification
	require.NoError(t, db.Where("user_id = ? AND type = ? AND ref_id = ?", second.ID, "task_assigned", task.ID).First(&note).Error)
	require.Equal(t, fx.member.ID, note.ActorID)
	require.Equal(t, fx.member.Name()+" assigned you a task", note.Title)
}

func TestTaskListFiltersByStatus(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	fx := newTaskFixture(t, db)

	first, err := fx.tasks.Create(context.Background(), CreateTaskInput{
		ProjectID: fx.project.ID,
		Title:     "one",
		CreatedBy: fx.owner.ID,
	})
	require.NoError(t, err)
	_, err = fx.tasks.Create(context.Background(), CreateTaskInput{
		ProjectID: fx.project.ID,
		Title:     "two",
		CreatedBy: fx.owner.ID,
	})
	require.NoError(t, err)

	inProgress := models.TaskStatusInProgress
	_, err = fx.tasks.Update(context.Background(), fx.owner.ID, first.ID, UpdateTaskInput{Status: &inProgress})
	require.NoError(t, err)

	all, err := fx.tasks.List(context.Background(), fx.owner.ID, ListTasksInput{ProjectID: fx.project.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)

	active, err := fx.tasks.List(context.Background(), fx.owner.ID, ListTasksInput{
		ProjectID: fx.project.ID,
		Status:    models.TaskStatusInProgress,
	})
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, first.ID, active[0].ID)
}

func TestTaskAccessRequiresMembership(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	fx := newTaskFixture(t, db)

	task, err := fx.tasks.Create(context.Background(), CreateTaskInput{
		ProjectID: fx.project.ID,
		Title:     "Private",
		CreatedBy: fx.owner.ID,
	})
	require.NoError(t, err)

	stranger := newTestUser(t, db, "task-stranger")
	_, err = fx.tasks.Get(context.Background(), stranger.ID, task.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}
