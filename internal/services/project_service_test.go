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

func newProjectFixture(t *testing.T, db *gorm.DB) (*ProjectService, *WorkspaceService, models.User, *models.Workspace) {
	t.Helper()

	notifier, err := NewNotificationService(db, nil)
	require.NoError(t, err)
	workspaces, err := NewWorkspaceService(db, notifier)
	require.NoError(t, err)
	projects, err := NewProjectService(db, workspaces, notifier)
	require.NoError(t, err)

	owner := newTestUser(t, db, "proj-owner")
	workspace, err := workspaces.Create(context.Background(), CreateWorkspaceInput{
		Name:    "Project Co",
		OwnerID: owner.ID,
	})
	require.NoError(t, err)

	return projects, workspaces, owner, workspace
}

func TestProjectCreateAnnouncesToOtherMembers(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	projects, workspaces, owner, workspace := newProjectFixture(t, db)

	member := newTestUser(t, db, "proj-member")
	_, err := workspaces.AddMember(context.Background(), workspace.ID, member.ID, "")
	require.NoError(t, err)

	project, err := projects.Create(context.Background(), CreateProjectInput{
		WorkspaceID: workspace.ID,
		Name:        "Atlas",
		CreatedBy:   owner.ID,
	})
	require.NoError(t, err)

	// Only the other member hears about it; the creator stays silent.
	var rows []models.Notification
	require.NoError(t, db.Where("workspace_id = ? AND type = ?", workspace.ID, "project_created").Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, member.ID, rows[0].UserID)
	require.Equal(t, project.ID, rows[0].RefID)
}

func TestProjectCreateRequiresMembership(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	projects, _, _, workspace := newProjectFixture(t, db)

	outsider := newTestUser(t, db, "proj-outsider")
	_, err := projects.Create(context.Background(), CreateProjectInput{
		WorkspaceID: workspace.ID,
		Name:        "Forbidden",
		CreatedBy:   outsider.ID,
	})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestProjectDeleteOwnerOnlyAndCascades(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	projects, workspaces, owner, workspace := newProjectFixture(t, db)

	member := newTestUser(t, db, "proj-deleter")
	_, err := workspaces.AddMember(context.Background(), workspace.ID, member.ID, "")
	require.NoError(t, err)

	project, err := projects.Create(context.Background(), CreateProjectInput{
		WorkspaceID: workspace.ID,
		Name:        "Doomed",
		CreatedBy:   owner.ID,
	})
	require.NoError(t, err)

	task := models.Task{ProjectID: project.ID, Title: "orphan-to-be", Status: models.TaskStatusTodo}
	require.NoError(t, db.Create(&task).Error)

	err = projects.Delete(context.Background(), member.ID, project.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	require.NoError(t, projects.Delete(context.Background(), owner.ID, project.ID))

	var taskCount int64
	require.NoError(t, db.Model(&models.Task{}).Where("project_id = ?", project.ID).Count(&taskCount).Error)
	require.Zero(t, taskCount)

	_, err = projects.Get(context.Background(), owner.ID, project.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProjectListForWorkspace(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	projects, _, owner, workspace := newProjectFixture(t, db)

	for _, name := range []string{"One", "Two"} {
		_, err := projects.Create(context.Background(), CreateProjectInput{
			WorkspaceID: workspace.ID,
			Name:        name,
			CreatedBy:   owner.ID,
		})
		require.NoError(t, err)
	}

	listed, err := projects.ListForWorkspace(context.Background(), owner.ID, workspace.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
}
