// internal/service/comment_service_test.go
package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurkanbulca/taskboard/internal/apperror"
	"github.com/gurkanbulca/taskboard/internal/models"
)

func TestCommentService(t *testing.T) {
	h := NewTestHelpers(t)
	alice := h.CreateTestUser("alice", models.RoleUser)
	bob := h.CreateTestUser("bob", models.RoleUser)
	admin := h.CreateTestUser("root", models.RoleAdmin)
	svc := h.CommentService()

	task := h.CreateTestTask(alice, CreateTaskInput{})

	first, err := svc.Create(h.ctx, alice, CreateCommentInput{TaskID: task.ID, Content: "first"})
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, first.AuthorID)
	second, err := svc.Create(h.ctx, bob, CreateCommentInput{TaskID: task.ID, Content: "second"})
	require.NoError(t, err)

	comments, err := svc.ListByTask(h.ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, first.ID, comments[0].ID)
	assert.Equal(t, second.ID, comments[1].ID)

	t.Run("create validation", func(t *testing.T) {
		_, err := svc.Create(h.ctx, alice, CreateCommentInput{TaskID: task.ID, Content: "   "})
		assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

		_, err = svc.Create(h.ctx, alice, CreateCommentInput{TaskID: uuid.New(), Content: "x"})
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

		ghost := &models.Principal{UserID: uuid.New(), Username: "ghost", Role: models.RoleUser}
		_, err = svc.Create(h.ctx, ghost, CreateCommentInput{TaskID: task.ID, Content: "x"})
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	})

	t.Run("update is author only", func(t *testing.T) {
		_, err := svc.Update(h.ctx, admin, first.ID, UpdateCommentInput{Content: "hijack"})
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
		_, err = svc.Update(h.ctx, bob, first.ID, UpdateCommentInput{Content: "hijack"})
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

		updated, err := svc.Update(h.ctx, alice, first.ID, UpdateCommentInput{Content: "edited"})
		require.NoError(t, err)
		assert.Equal(t, "edited", updated.Content)

		stored, err := h.comments.GetByID(h.ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "edited", stored.Content)
	})

	t.Run("delete by author or admin", func(t *testing.T) {
		err := svc.Delete(h.ctx, alice, second.ID)
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

		require.NoError(t, svc.Delete(h.ctx, admin, second.ID))
		require.NoError(t, svc.Delete(h.ctx, alice, first.ID))

		err = svc.Delete(h.ctx, alice, first.ID)
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	})

	t.Run("deleted task hides its comments", func(t *testing.T) {
		_, err := h.TaskService().Delete(h.ctx, alice, task.ID)
		require.NoError(t, err)

		_, err = svc.ListByTask(h.ctx, task.ID)
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	})
}

func TestActivityService(t *testing.T) {
	h := NewTestHelpers(t)
	alice := h.CreateTestUser("alice", models.RoleUser)
	bob := h.CreateTestUser("bob", models.RoleUser)
	svc := h.ActivityService()

	task := h.CreateTestTask(alice, CreateTaskInput{})

	defaulted, err := svc.Create(h.ctx, alice, CreateActivityInput{TaskID: task.ID, Detail: "touched"})
	require.NoError(t, err)
	assert.Equal(t, models.ActivityUpdated, defaulted.Type)
	require.NotNil(t, defaulted.ActorName)
	assert.Equal(t, "alice", *defaulted.ActorName)

	onBehalf, err := svc.Create(h.ctx, alice, CreateActivityInput{TaskID: task.ID, Type: models.ActivityComment, ActorID: &bob.UserID})
	require.NoError(t, err)
	assert.Equal(t, bob.UserID, *onBehalf.ActorID)
	assert.Equal(t, "bob", *onBehalf.ActorName)

	_, err = svc.Create(h.ctx, alice, CreateActivityInput{TaskID: task.ID, Type: "DELETED"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	_, err = svc.Create(h.ctx, alice, CreateActivityInput{TaskID: task.ID, ActorID: ptr(uuid.New())})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	_, err = svc.Create(h.ctx, alice, CreateActivityInput{TaskID: uuid.New()})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	activities, err := svc.ListByTask(h.ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, defaulted.ID, activities[0].ID)
	assert.Equal(t, onBehalf.ID, activities[1].ID)
}

func TestNotificationService_MarkRead(t *testing.T) {
	h := NewTestHelpers(t)
	alice := h.CreateTestUser("alice", models.RoleUser)
	bob := h.CreateTestUser("bob", models.RoleUser)
	svc := h.NotificationService()

	task := h.CreateTestTask(alice, CreateTaskInput{})
	forBob := &models.Notification{Type: models.NotificationEdited, TaskID: task.ID, Title: task.Title, AssigneeID: &bob.UserID, RecipientID: &bob.UserID}
	broadcast := &models.Notification{Type: models.NotificationCreated, TaskID: task.ID, Title: task.Title}
	require.NoError(t, h.notifications.Create(h.ctx, forBob))
	require.NoError(t, h.notifications.Create(h.ctx, broadcast))

	aliceSees, err := svc.List(h.ctx, alice)
	require.NoError(t, err)
	require.Len(t, aliceSees, 1)
	bobSees, err := svc.List(h.ctx, bob)
	require.NoError(t, err)
	assert.Len(t, bobSees, 2)

	_, err = svc.MarkRead(h.ctx, alice, forBob.ID)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	_, err = svc.MarkRead(h.ctx, alice, uuid.New())
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))

	read, err := svc.MarkRead(h.ctx, bob, forBob.ID)
	require.NoError(t, err)
	assert.True(t, read.ReadFlag)

	read, err = svc.MarkRead(h.ctx, alice, broadcast.ID)
	require.NoError(t, err)
	assert.True(t, read.ReadFlag)

	stored, err := h.notifications.GetByID(h.ctx, forBob.ID)
	require.NoError(t, err)
	assert.True(t, stored.ReadFlag)
}

func TestSeeder(t *testing.T) {
	h := NewTestHelpers(t)
	seeder := NewSeeder(h.users, h.tasks, h.passwordManager, h.logger)

	require.NoError(t, seeder.SeedTestUsers(h.ctx))
	require.NoError(t, seeder.SeedTestUsers(h.ctx), "seeding twice is a no-op")

	count, err := h.users.Count(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	admin, err := h.users.GetByUsername(h.ctx, "e2e-admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	_, err = h.AuthService().Login(h.ctx, LoginInput{Username: "e2e-guest", Password: SeedPassword})
	require.NoError(t, err)

	require.NoError(t, seeder.SeedDemoData(h.ctx))
	tasks, err := h.tasks.Count(h.ctx, repositoryAll)
	require.NoError(t, err)
	assert.Zero(t, tasks, "demo data is skipped once users exist")
}

func TestSeeder_DemoData(t *testing.T) {
	h := NewTestHelpers(t)
	seeder := NewSeeder(h.users, h.tasks, h.passwordManager, h.logger)

	require.NoError(t, seeder.SeedDemoData(h.ctx))

	count, err := h.users.Count(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	tasks, err := h.tasks.Count(h.ctx, repositoryAll)
	require.NoError(t, err)
	assert.Equal(t, 7, tasks)

	unassigned, err := h.tasks.Count(h.ctx, repositoryUnassigned)
	require.NoError(t, err)
	assert.Equal(t, 2, unassigned)
}
