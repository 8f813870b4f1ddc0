// internal/service/auth_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gurkanbulca/taskboard/internal/apperror"
	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/internal/repository"
	"github.com/gurkanbulca/taskboard/pkg/auth"
)

// RegisterInput is the body of a registration request
type RegisterInput struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,password"`
}

// LoginInput is the body of a login request
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token    string      `json:"token"`
	ID       uuid.UUID   `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
}

type AuthService struct {
	users           *repository.UserRepository
	tokenManager    *auth.TokenManager
	passwordManager *auth.PasswordManager
	securityLogger  *SecurityLogger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	users *repository.UserRepository,
	tokenManager *auth.TokenManager,
	passwordManager *auth.PasswordManager,
	securityLogger *SecurityLogger,
) *AuthService {
	if passwordManager == nil {
		passwordManager = auth.NewPasswordManager()
	}
	return &AuthService{
		users:           users,
		tokenManager:    tokenManager,
		passwordManager: passwordManager,
		securityLogger:  securityLogger,
	}
}

// Register creates a new USER account and signs a token for it
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResponse, error) {
	if err := s.validateRegisterInput(in); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))

	exists, err := s.users.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, apperror.BadRequest("username %q is already taken", in.Username)
	}

	exists, err = s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, apperror.BadRequest("email %q is already registered", email)
	}

	hashedPassword, err := s.passwordManager.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent registration
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.BadRequest("username or email is already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.securityLogger.LogRegistered(ctx, user.Username)
	return s.respond(user)
}

// Login verifies credentials and signs a token
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResponse, error) {
	if in.Username == "" || in.Password == "" {
		return nil, apperror.Authentication("invalid username or password")
	}

	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.securityLogger.LogLoginFailed(ctx, in.Username, "unknown user")
			return nil, apperror.Authentication("invalid username or password")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := s.passwordManager.ComparePassword(user.PasswordHash, in.Password); err != nil {
		s.securityLogger.LogLoginFailed(ctx, in.Username, "wrong password")
		return nil, apperror.Authentication("invalid username or password")
	}

	s.securityLogger.LogLoginSuccess(ctx, user.Username)
	return s.respond(user)
}

func (s *AuthService) respond(user *models.User) (*AuthResponse, error) {
	token, err := s.tokenManager.Issue(user.Username)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &AuthResponse{
		Token:    token,
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	}, nil
}

func (s *AuthService) validateRegisterInput(in RegisterInput) error {
	fields := map[string]string{}
	if err := auth.ValidateUsername(in.Username); err != nil {
		fields["username"] = err.Error()
	}
	if err := auth.ValidateEmail(strings.TrimSpace(in.Email)); err != nil {
		fields["email"] = err.Error()
	}
	if err := s.passwordManager.ValidatePassword(in.Password); err != nil {
		fields["password"] = err.Error()
	}
	if len(fields) > 0 {
		return apperror.Validation("validation failed", fields)
	}
	return nil
}
