// internal/service/notification_service.go
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gurkanbulca/taskboard/internal/apperror"
	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/internal/repository"
)

type NotificationService struct {
	notifications *repository.NotificationRepository
}

func NewNotificationService(notifications *repository.NotificationRepository) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// List returns the caller's notifications and broadcast ones, newest first
func (s *NotificationService) List(ctx context.Context, principal *models.Principal) ([]*models.Notification, error) {
	notifications, err := s.notifications.ListVisibleTo(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead flips the read flag of a notification addressed to the caller or to everyone
func (s *NotificationService) MarkRead(ctx context.Context, principal *models.Principal, id uuid.UUID) (*models.Notification, error) {
	n, err := s.notifications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("notification %s not found", id)
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	if !n.Broadcast() && *n.RecipientID != principal.UserID {
		return nil, apperror.Forbidden("notification belongs to another user")
	}

	if err := s.notifications.MarkRead(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	n.ReadFlag = true
	return n, nil
}
