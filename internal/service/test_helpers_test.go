// internal/service/test_helpers_test.go
package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gurkanbulca/taskboard/internal/database"
	"github.com/gurkanbulca/taskboard/internal/database/dbtest"
	"github.com/gurkanbulca/taskboard/internal/events"
	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/internal/repository"
	"github.com/gurkanbulca/taskboard/pkg/auth"
)

const testPassword = "TestPass123!"

// recordedEvent is a task event captured by recordingEvents
type recordedEvent struct {
	kind   string
	before *models.Task
	task   *models.Task
}

// recordingEvents captures task lifecycle events instead of fanning them out
type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEvents) record(e recordedEvent) events.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return events.Result{}
}

func (r *recordingEvents) TaskCreated(_ context.Context, task *models.Task) events.Result {
	return r.record(recordedEvent{kind: "created", task: task})
}

func (r *recordingEvents) TaskUpdated(_ context.Context, before, after *models.Task) events.Result {
	return r.record(recordedEvent{kind: "updated", before: before, task: after})
}

func (r *recordingEvents) TaskDeleted(_ context.Context, task *models.Task) events.Result {
	return r.record(recordedEvent{kind: "deleted", task: task})
}

func (r *recordingEvents) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.kind
	}
	return kinds
}

// TestHelpers bundles the stores and services used by service tests
type TestHelpers struct {
	t      *testing.T
	db     *database.DB
	ctx    context.Context
	logger *slog.Logger

	users         *repository.UserRepository
	tasks         *repository.TaskRepository
	comments      *repository.CommentRepository
	activities    *repository.ActivityRepository
	notifications *repository.NotificationRepository

	passwordManager *auth.PasswordManager
	tokenManager    *auth.TokenManager
	events          *recordingEvents
}

// NewTestHelpers creates a test helper over a fresh in-memory database
func NewTestHelpers(t *testing.T) *TestHelpers {
	db := dbtest.Open(t)
	return &TestHelpers{
		t:               t,
		db:              db,
		ctx:             context.Background(),
		logger:          slog.New(slog.DiscardHandler),
		users:           repository.NewUserRepository(db),
		tasks:           repository.NewTaskRepository(db),
		comments:        repository.NewCommentRepository(db),
		activities:      repository.NewActivityRepository(db),
		notifications:   repository.NewNotificationRepository(db),
		passwordManager: auth.NewPasswordManagerWithCost(bcrypt.MinCost),
		tokenManager:    auth.NewTokenManager("service-test-secret", time.Hour, ""),
		events:          &recordingEvents{},
	}
}

func (h *TestHelpers) AuthService() *AuthService {
	return NewAuthService(h.users, h.tokenManager, h.passwordManager, NewSecurityLogger(h.logger))
}

func (h *TestHelpers) TaskService() *TaskService {
	return NewTaskService(h.tasks, h.users, h.events, h.logger)
}

func (h *TestHelpers) CommentService() *CommentService {
	return NewCommentService(h.comments, h.tasks, h.users)
}

func (h *TestHelpers) ActivityService() *ActivityService {
	return NewActivityService(h.activities, h.tasks, h.users)
}

func (h *TestHelpers) NotificationService() *NotificationService {
	return NewNotificationService(h.notifications)
}

// CreateTestUser creates a user with the given role and returns its principal
func (h *TestHelpers) CreateTestUser(username string, role models.Role) *models.Principal {
	hashedPassword, err := h.passwordManager.HashPassword(testPassword)
	require.NoError(h.t, err)

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hashedPassword,
		Role:         role,
	}
	require.NoError(h.t, h.users.Create(h.ctx, user))
	return models.PrincipalOf(user)
}

// CreateTestTask creates a task through the task service
func (h *TestHelpers) CreateTestTask(creator *models.Principal, in CreateTaskInput) *models.Task {
	if in.Title == "" {
		in.Title = "Test Task"
	}
	task, err := h.TaskService().Create(h.ctx, creator, in)
	require.NoError(h.t, err)
	return task
}

var (
	repositoryAll        = repository.TaskFilter{}
	repositoryUnassigned = repository.TaskFilter{Unassigned: true}
)
