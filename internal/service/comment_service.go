// internal/service/comment_service.go
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
)

// CreateCommentInput is the body of a create comment request
type CreateCommentInput struct {
	TaskID  uuid.UUID `json:"taskId" validate:"required"`
	Content string    `json:"content" validate:"required,notblank"`
}

// UpdateCommentInput is the body of an update comment request
type UpdateCommentInput struct {
	Content string `json:"content" validate:"required,notblank"`
}

type CommentService struct {
	comments *repository.CommentRepository
	tasks    *repository.TaskRepository
	users    *repository.UserRepository
}

func NewCommentService(comments *repository.CommentRepository, tasks *repository.TaskRepository, users *repository.UserRepository) *CommentService {
	return &CommentService{comments: comments, tasks: tasks, users: users}
}

// Create adds a comment by the caller to an active task
func (s *CommentService) Create(ctx context.Context, principal *models.Principal, in CreateCommentInput) (*models.Comment, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperror.ValidationField("content", "content must not be blank")
	}
	if err := s.ensureTask(ctx, in.TaskID); err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("check author: %w", err)
	}
	if !exists {
		return nil, apperror.NotFound("user %s not found", principal.UserID)
	}

	comment := &models.Comment{
		Content:  in.Content,
		TaskID:   in.TaskID,
		AuthorID: principal.UserID,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	return comment, nil
}

// ListByTask returns a task's comments, oldest first
func (s *CommentService) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Comment, error) {
	if err := s.ensureTask(ctx, taskID); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// Update changes a comment's content. Only the author may edit, administrators included.
func (s *CommentService) Update(ctx context.Context, principal *models.Principal, id uuid.UUID, in UpdateCommentInput) (*models.Comment, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, apperror.ValidationField("content", "content must not be blank")
	}

	comment, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != principal.UserID {
		return nil, apperror.Forbidden("only the author can edit this comment")
	}

	if err := s.comments.UpdateContent(ctx, id, in.Content); err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	comment.Content = in.Content
	return comment, nil
}

// Delete removes a comment. The author or an administrator may delete.
func (s *CommentService) Delete(ctx context.Context, principal *models.Principal, id uuid.UUID) error {
	comment, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if comment.AuthorID != principal.UserID && !principal.IsAdmin() {
		return apperror.Forbidden("only the author or an administrator can delete this comment")
	}

	if err := s.comments.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("comment %s not found", id)
		}
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return nil
}

func (s *CommentService) get(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("comment %s not found", id)
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return comment, nil
}

func (s *CommentService) ensureTask(ctx context.Context, taskID uuid.UUID) error {
	exists, err := s.tasks.Exists(ctx, taskID)
	if err != nil {
		return fmt.Errorf("check task: %w", err)
	}
	if !exists {
		return apperror.NotFound("task %s not found", taskID)
	}
	return nil
}
