// internal/service/seeder.go
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/internal/repository"
	"github.com/gurkanbulca/taskboard/pkg/auth"
)

// SeedPassword is the password of every seeded account
const SeedPassword = "Password123!"

// Seeder creates fixed accounts and sample tasks for demo and end-to-end environments
type Seeder struct {
	users     *repository.UserRepository
	tasks     *repository.TaskRepository
	passwords *auth.PasswordManager
	logger    *slog.Logger
}

func NewSeeder(users *repository.UserRepository, tasks *repository.TaskRepository, passwords *auth.PasswordManager, logger *slog.Logger) *Seeder {
	if passwords == nil {
		passwords = auth.NewPasswordManager()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{users: users, tasks: tasks, passwords: passwords, logger: logger.With("component", "seeder")}
}

type seedUser struct {
	username string
	role     models.Role
}

// SeedTestUsers creates e2e-admin, e2e-user and e2e-guest when they do not exist yet
func (s *Seeder) SeedTestUsers(ctx context.Context) error {
	accounts := []seedUser{
		{"e2e-admin", models.RoleAdmin},
		{"e2e-user", models.RoleUser},
		{"e2e-guest", models.RoleUser},
	}

	created := 0
	for _, account := range accounts {
		exists, err := s.users.ExistsByUsername(ctx, account.username)
		if err != nil {
			return fmt.Errorf("check %s: %w", account.username, err)
		}
		if exists {
			continue
		}
		if _, err := s.createUser(ctx, account); err != nil {
			return err
		}
		created++
	}

	s.logger.Info("test users seeded", "created", created)
	return nil
}

// SeedDemoData creates the admin and user accounts with seven sample tasks. It does nothing if any user exists.
func (s *Seeder) SeedDemoData(ctx context.Context) error {
	existing, err := s.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if existing > 0 {
		s.logger.Info("demo seeding skipped", "existing_users", existing)
		return nil
	}

	admin, err := s.createUser(ctx, seedUser{"admin", models.RoleAdmin})
	if err != nil {
		return err
	}
	user, err := s.createUser(ctx, seedUser{"user", models.RoleUser})
	if err != nil {
		return err
	}

	adminID, userID := admin.ID, user.ID
	samples := []struct {
		title, description string
		status             models.TaskStatus
		priority           models.Priority
		assignee           *uuid.UUID
		creator            uuid.UUID
	}{
		{"Setup project README", "Create project README and documentation.", models.TaskStatusDone, models.PriorityLow, &adminID, adminID},
		{"Implement auth endpoints", "Add JWT authentication and user registration.", models.TaskStatusInProgress, models.PriorityHigh, &adminID, adminID},
		{"Design database schema", "Finalize entity relationships and migrations.", models.TaskStatusTodo, models.PriorityMedium, nil, adminID},
		{"Create frontend layout", "Implement top nav and basic pages.", models.TaskStatusInProgress, models.PriorityMedium, &userID, adminID},
		{"Write E2E tests", "Add browser tests for login and tasks flows.", models.TaskStatusTodo, models.PriorityHigh, &userID, userID},
		{"Fix bug in task update", "Correct status update logic.", models.TaskStatusTodo, models.PriorityMedium, nil, userID},
		{"Prepare release", "Bump version and prepare changelog.", models.TaskStatusTodo, models.PriorityLow, &adminID, adminID},
	}

	for _, sample := range samples {
		task := &models.Task{
			Title:       sample.title,
			Description: sample.description,
			Status:      sample.status,
			Priority:    sample.priority,
			AssigneeID:  sample.assignee,
			CreatorID:   sample.creator,
		}
		if err := s.tasks.Create(ctx, task); err != nil {
			return fmt.Errorf("seed task %q: %w", sample.title, err)
		}
	}

	s.logger.Info("demo data seeded", "users", 2, "tasks", len(samples))
	return nil
}

func (s *Seeder) createUser(ctx context.Context, account seedUser) (*models.User, error) {
	hash, err := s.passwords.HashPassword(SeedPassword)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}
	user := &models.User{
		Username:     account.username,
		Email:        account.username + "@example.com",
		PasswordHash: hash,
		Role:         account.role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("seed user %s: %w", account.username, err)
	}
	return user, nil
}
