// internal/service/user_service.go
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/gurkanbulca/taskboard/internal/apperror"
	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/internal/repository"
)

// UserService is the user directory
type UserService struct {
	users *repository.UserRepository
	// lookups coalesces concurrent principal resolution for the same username
	lookups singleflight.Group
}

func NewUserService(users *repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// List returns every user ordered by username
func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetByID returns a user
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("user %s not found", id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Me returns the record of the authenticated caller
func (s *UserService) Me(ctx context.Context, principal *models.Principal) (*models.User, error) {
	return s.GetByID(ctx, principal.UserID)
}

// ResolvePrincipal loads the current identity and role for a token subject
func (s *UserService) ResolvePrincipal(ctx context.Context, username string) (*models.Principal, error) {
	// the shared lookup outlives any one caller's cancellation
	lookupCtx := context.WithoutCancel(ctx)
	v, err, _ := s.lookups.Do(username, func() (interface{}, error) {
		user, err := s.users.GetByUsername(lookupCtx, username)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperror.NotFound("user %s not found", username)
			}
			return nil, fmt.Errorf("resolve principal: %w", err)
		}
		return models.PrincipalOf(user), nil
	})
	if err != nil {
		return nil, err
	}
	principal := *v.(*models.Principal)
	return &principal, nil
}
