// internal/service/task_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gurkanbulca/taskboard/internal/apperror"
	"github.com/gurkanbulca/taskboard/internal/events"
	"github.com/gurkanbulca/taskboard/internal/models"
	"github.com/gurkanbulca/taskboard/internal/repository"
)

// TaskEvents receives task lifecycle changes after they are stored
type TaskEvents interface {
	TaskCreated(ctx context.Context, task *models.Task) events.Result
	TaskUpdated(ctx context.Context, before, after *models.Task) events.Result
	TaskDeleted(ctx context.Context, task *models.Task) events.Result
}

// CreateTaskInput is the body of a create request. Status and priority default to TODO and MEDIUM.
type CreateTaskInput struct {
	Title       string            `json:"title" validate:"required,notblank,max=100"`
	Description string            `json:"description" validate:"max=500"`
	Status      models.TaskStatus `json:"status" validate:"omitempty,taskstatus"`
	Priority    models.Priority   `json:"priority" validate:"omitempty,priority"`
	AssigneeID  *uuid.UUID        `json:"assigneeId"`
	DueDate     *time.Time        `json:"dueDate"`
}

// UpdateTaskInput replaces every mutable field of a task. A nil assignee or due date clears it.
type UpdateTaskInput struct {
	Title       string            `json:"title" validate:"required,notblank,max=100"`
	Description string            `json:"description" validate:"max=500"`
	Status      models.TaskStatus `json:"status" validate:"required,taskstatus"`
	Priority    models.Priority   `json:"priority" validate:"required,priority"`
	AssigneeID  *uuid.UUID        `json:"assigneeId"`
	DueDate     *time.Time        `json:"dueDate"`
}

// ListTasksInput filters and pages a task listing. AssigneeID wins over Unassigned.
type ListTasksInput struct {
	Status     models.TaskStatus
	Priority   models.Priority
	AssigneeID *uuid.UUID
	Unassigned bool
	// Search matches title or description, case-insensitively
	Search string
	// Sort is one of the keys of sortColumns; Order is asc or desc
	Sort   string
	Order  string
	Limit  int
	Offset int
}

// MaxListLimit bounds a single page of tasks
const MaxListLimit = 100

// maxDueMinutes bounds the look-ahead of DueWithin to one year
const maxDueMinutes = 365 * 24 * 60

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"dueDate":   "due_date",
	"title":     "title",
	"priority":  "priority",
	"status":    "status",
}

type TaskService struct {
	tasks  *repository.TaskRepository
	users  *repository.UserRepository
	events TaskEvents
	logger *slog.Logger
	now    func() time.Time
}

func NewTaskService(tasks *repository.TaskRepository, users *repository.UserRepository, events TaskEvents, logger *slog.Logger) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{
		tasks:  tasks,
		users:  users,
		events: events,
		logger: logger.With("component", "tasks"),
		now:    time.Now,
	}
}

// Create stores a new task owned by the caller and announces it
func (s *TaskService) Create(ctx context.Context, principal *models.Principal, in CreateTaskInput) (*models.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperror.ValidationField("title", "title is required")
	}

	task := &models.Task{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		AssigneeID:  in.AssigneeID,
		CreatorID:   principal.UserID,
		DueDate:     in.DueDate,
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}
	if err := validateStatusAndPriority(task.Status, task.Priority); err != nil {
		return nil, err
	}
	if err := s.ensureAssigneeExists(ctx, task.AssigneeID); err != nil {
		return nil, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info("task created", "task_id", task.ID, "creator", principal.Username)
	s.publish(func() events.Result { return s.events.TaskCreated(ctx, task) })
	return task, nil
}

// Get returns an active task
func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("task %s not found", id)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// List returns active tasks matching the filter, newest first
func (s *TaskService) List(ctx context.Context, in ListTasksInput) ([]*models.Task, error) {
	filter := repository.TaskFilter{
		AssigneeID: in.AssigneeID,
		Unassigned: in.Unassigned,
		Search:     strings.TrimSpace(in.Search),
		Limit:      in.Limit,
		Offset:     in.Offset,
	}
	if in.Status != "" {
		if !in.Status.Active() {
			return nil, apperror.ValidationField("status", "status must be one of TODO, IN_PROGRESS, DONE")
		}
		filter.Status = &in.Status
	}
	if in.Priority != "" {
		if !in.Priority.Valid() {
			return nil, apperror.ValidationField("priority", "priority must be one of LOW, MEDIUM, HIGH")
		}
		filter.Priority = &in.Priority
	}
	if in.Sort != "" {
		column, ok := sortColumns[in.Sort]
		if !ok {
			return nil, apperror.ValidationField("sort", "sort must be one of createdAt, updatedAt, dueDate, title, priority, status")
		}
		filter.SortBy = column
	}
	switch in.Order {
	case "", "desc":
	case "asc":
		filter.SortOrder = "asc"
	default:
		return nil, apperror.ValidationField("order", "order must be asc or desc")
	}
	if in.Limit < 0 || in.Limit > MaxListLimit {
		return nil, apperror.ValidationField("limit", fmt.Sprintf("limit must be between 0 and %d", MaxListLimit))
	}
	if in.Offset < 0 {
		return nil, apperror.ValidationField("offset", "offset must not be negative")
	}

	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Update replaces a task's mutable fields. Only the creator or the current assignee may update.
func (s *TaskService) Update(ctx context.Context, principal *models.Principal, id uuid.UUID, in UpdateTaskInput) (*models.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperror.ValidationField("title", "title is required")
	}
	if err := validateStatusAndPriority(in.Status, in.Priority); err != nil {
		return nil, err
	}

	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if before.CreatorID != principal.UserID && !before.IsAssignedTo(principal.UserID) {
		return nil, apperror.Forbidden("only the creator or the assignee can update this task")
	}
	if err := s.ensureAssigneeExists(ctx, in.AssigneeID); err != nil {
		return nil, err
	}

	after := *before
	after.Title = in.Title
	after.Description = in.Description
	after.Status = in.Status
	after.Priority = in.Priority
	after.AssigneeID = in.AssigneeID
	after.DueDate = in.DueDate

	if err := s.tasks.Update(ctx, &after); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("task %s not found", id)
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.logger.Info("task updated", "task_id", id, "editor", principal.Username,
		"status", after.Status, "status_changed", before.Status != after.Status)
	s.publish(func() events.Result { return s.events.TaskUpdated(ctx, before, &after) })
	return &after, nil
}

// Delete soft deletes a task. Only the creator may delete.
func (s *TaskService) Delete(ctx context.Context, principal *models.Principal, id uuid.UUID) (*models.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.CreatorID != principal.UserID {
		return nil, apperror.Forbidden("only the creator can delete this task")
	}

	if err := s.tasks.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("task %s not found", id)
		}
		return nil, fmt.Errorf("failed to delete task: %w", err)
	}
	task.Status = models.TaskStatusDeleted

	s.logger.Info("task deleted", "task_id", id, "creator", principal.Username)
	s.publish(func() events.Result { return s.events.TaskDeleted(ctx, task) })
	return task, nil
}

// Mine returns the active tasks the caller created or is assigned to
func (s *TaskService) Mine(ctx context.Context, principal *models.Principal) ([]*models.Task, error) {
	tasks, err := s.tasks.List(ctx, repository.TaskFilter{UserID: &principal.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// DueWithin returns the caller's tasks due in the next minutes
func (s *TaskService) DueWithin(ctx context.Context, principal *models.Principal, minutes int) ([]*models.Task, error) {
	if minutes <= 0 || minutes > maxDueMinutes {
		return nil, apperror.ValidationField("minutes", fmt.Sprintf("minutes must be between 1 and %d", maxDueMinutes))
	}
	from := s.now().UTC()
	tasks, err := s.tasks.ListDueBetween(ctx, principal.UserID, from, from.Add(time.Duration(minutes)*time.Minute))
	if err != nil {
		return nil, fmt.Errorf("failed to list due tasks: %w", err)
	}
	return tasks, nil
}

// Stats counts active tasks by status and relative to the caller
func (s *TaskService) Stats(ctx context.Context, principal *models.Principal) (*models.TaskStats, error) {
	byStatus, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.TaskStats{ByStatus: byStatus}
	counts := []struct {
		dst    *int
		filter repository.TaskFilter
	}{
		{&stats.Created, repository.TaskFilter{CreatorID: &principal.UserID}},
		{&stats.Assigned, repository.TaskFilter{AssigneeID: &principal.UserID}},
		{&stats.Unassigned, repository.TaskFilter{Unassigned: true}},
	}
	for _, c := range counts {
		n, err := s.tasks.Count(ctx, c.filter)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}
	return stats, nil
}

func (s *TaskService) ensureAssigneeExists(ctx context.Context, assigneeID *uuid.UUID) error {
	if assigneeID == nil {
		return nil
	}
	exists, err := s.users.Exists(ctx, *assigneeID)
	if err != nil {
		return fmt.Errorf("check assignee: %w", err)
	}
	if !exists {
		return apperror.NotFound("assignee %s not found", *assigneeID)
	}
	return nil
}

// publish runs a fan-out step. Its outcome never affects the stored task.
func (s *TaskService) publish(fn func() events.Result) {
	if s.events == nil {
		return
	}
	fn()
}

func validateStatusAndPriority(status models.TaskStatus, priority models.Priority) error {
	fields := map[string]string{}
	if !status.Active() {
		fields["status"] = "status must be one of TODO, IN_PROGRESS, DONE"
	}
	if !priority.Valid() {
		fields["priority"] = "priority must be one of LOW, MEDIUM, HIGH"
	}
	if len(fields) > 0 {
		return apperror.Validation("validation failed", fields)
	}
	return nil
}
