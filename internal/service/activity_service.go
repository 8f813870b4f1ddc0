// internal/service/activity_service.go
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

// CreateActivityInput is the body of a log activity request. Type defaults to UPDATED and the actor to the caller.
type CreateActivityInput struct {
	TaskID  uuid.UUID           `json:"taskId" validate:"required"`
	Type    models.ActivityType `json:"type" validate:"omitempty,activitytype"`
	ActorID *uuid.UUID          `json:"actorId"`
	Detail  string              `json:"detail" validate:"max=1000"`
}

type ActivityService struct {
	activities *repository.ActivityRepository
	tasks      *repository.TaskRepository
	users      *repository.UserRepository
}

func NewActivityService(activities *repository.ActivityRepository, tasks *repository.TaskRepository, users *repository.UserRepository) *ActivityService {
	return &ActivityService{activities: activities, tasks: tasks, users: users}
}

// Create appends an activity to an active task's log
func (s *ActivityService) Create(ctx context.Context, principal *models.Principal, in CreateActivityInput) (*models.Activity, error) {
	if err := s.ensureTask(ctx, in.TaskID); err != nil {
		return nil, err
	}

	typ := in.Type
	if typ == "" {
		typ = models.ActivityUpdated
	}
	if !typ.Valid() {
		return nil, apperror.ValidationField("type", "type must be one of CREATED, UPDATED, STATUS_CHANGED, COMMENT")
	}

	actorID, actorName := principal.UserID, principal.Username
	if in.ActorID != nil && *in.ActorID != principal.UserID {
		actor, err := s.users.GetByID(ctx, *in.ActorID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperror.NotFound("user %s not found", *in.ActorID)
			}
			return nil, fmt.Errorf("load actor: %w", err)
		}
		actorID, actorName = actor.ID, actor.Username
	}

	activity := &models.Activity{
		TaskID:    in.TaskID,
		Type:      typ,
		ActorID:   &actorID,
		ActorName: &actorName,
		Detail:    in.Detail,
	}
	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}
	return activity, nil
}

// ListByTask returns a task's activity log, oldest first
func (s *ActivityService) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Activity, error) {
	if err := s.ensureTask(ctx, taskID); err != nil {
		return nil, err
	}
	activities, err := s.activities.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	return activities, nil
}

func (s *ActivityService) ensureTask(ctx context.Context, taskID uuid.UUID) error {
	exists, err := s.tasks.Exists(ctx, taskID)
	if err != nil {
		return fmt.Errorf("check task: %w", err)
	}
	if !exists {
		return apperror.NotFound("task %s not found", taskID)
	}
	return nil
}
