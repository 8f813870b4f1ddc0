// Package events turns task lifecycle changes and due-date conditions into broadcast
// task events, private or shared notification messages and persisted notifications.
// Every step is best-effort: failures are logged and reported in a Result, never returned.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gurkanbulca/taskboard/internal/broker"
	"github.com/gurkanbulca/taskboard/internal/models"
)

// Action is the verb carried by a task event on the shared task topic
type Action string

const (
	ActionCreated Action = "CREATED"
	ActionUpdated Action = "UPDATED"
	ActionDeleted Action = "DELETED"
	ActionDueSoon Action = "DUE_SOON"
	ActionOverdue Action = "OVERDUE"
)

// TaskEvent is broadcast on the task topic
type TaskEvent struct {
	Action Action       `json:"action"`
	Task   *models.Task `json:"task,omitempty"`
	TaskID uuid.UUID    `json:"taskId"`
}

// NotificationEvent is sent to a user's private queue or to the shared notifications topic
type NotificationEvent struct {
	ID         uuid.UUID               `json:"id"`
	Type       models.NotificationType `json:"type"`
	TaskID     uuid.UUID               `json:"taskId"`
	Title      string                  `json:"title"`
	AssigneeID *uuid.UUID              `json:"assigneeId"`
	DueDate    *time.Time              `json:"dueDate"`
	CreatedAt  time.Time               `json:"createdAt"`
}

// Publisher is the publish side of the broker
type Publisher interface {
	Publish(ctx context.Context, destination string, payload any) error
	PublishToUser(ctx context.Context, userID uuid.UUID, queue string, payload any) error
}

// NotificationStore persists notifications
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
}

// Result records the outcome of each fan-out step
type Result struct {
	Broadcast error
	Persist   error
	Notify    error
	// Notification is the persisted row, nil when persisting failed
	Notification *models.Notification
}

// Err joins the step errors
func (r Result) Err() error {
	return errors.Join(r.Broadcast, r.Persist, r.Notify)
}

// FanOut delivers task events
type FanOut struct {
	publisher Publisher
	store     NotificationStore
	logger    *slog.Logger
}

func NewFanOut(publisher Publisher, store NotificationStore, logger *slog.Logger) *FanOut {
	if logger == nil {
		logger = slog.Default()
	}
	return &FanOut{
		publisher: publisher,
		store:     store,
		logger:    logger.With("component", "fanout"),
	}
}

// TaskCreated announces a new task
func (f *FanOut) TaskCreated(ctx context.Context, task *models.Task) Result {
	return f.emit(ctx, ActionCreated, models.NotificationCreated, task)
}

// TaskUpdated announces a change. The notification type is STATUS_CHANGED when the status moved, EDITED otherwise.
func (f *FanOut) TaskUpdated(ctx context.Context, before, after *models.Task) Result {
	typ := models.NotificationEdited
	if before != nil && before.Status != after.Status {
		typ = models.NotificationStatusChanged
	}
	return f.emit(ctx, ActionUpdated, typ, after)
}

// TaskDeleted announces a soft delete. The broadcast carries only the task id.
func (f *FanOut) TaskDeleted(ctx context.Context, task *models.Task) Result {
	return f.emit(ctx, ActionDeleted, models.NotificationDeleted, task)
}

// DueDate announces a DUE_SOON or OVERDUE condition
func (f *FanOut) DueDate(ctx context.Context, typ models.NotificationType, task *models.Task) Result {
	action := ActionDueSoon
	if typ == models.NotificationOverdue {
		action = ActionOverdue
	}
	return f.emit(ctx, action, typ, task)
}

func (f *FanOut) emit(ctx context.Context, action Action, typ models.NotificationType, task *models.Task) Result {
	// Side effects outlive the request that triggered them
	ctx = context.WithoutCancel(ctx)

	var res Result
	event := TaskEvent{Action: action, TaskID: task.ID}
	if action != ActionDeleted {
		event.Task = task
	}
	res.Broadcast = safely(func() error {
		return f.publisher.Publish(ctx, broker.TopicTasks, event)
	})

	n := &models.Notification{
		Type:        typ,
		TaskID:      task.ID,
		Title:       task.Title,
		AssigneeID:  task.AssigneeID,
		RecipientID: task.AssigneeID,
		DueDate:     task.DueDate,
	}
	res.Persist = safely(func() error {
		return f.store.Create(ctx, n)
	})
	if res.Persist == nil {
		res.Notification = n
	}

	notice := NotificationEvent{
		ID:         n.ID,
		Type:       typ,
		TaskID:     task.ID,
		Title:      task.Title,
		AssigneeID: task.AssigneeID,
		DueDate:    task.DueDate,
		CreatedAt:  n.CreatedAt,
	}
	res.Notify = safely(func() error {
		if task.AssigneeID != nil {
			return f.publisher.PublishToUser(ctx, *task.AssigneeID, broker.QueueNotifications, notice)
		}
		return f.publisher.Publish(ctx, broker.TopicNotifications, notice)
	})

	if err := res.Err(); err != nil {
		f.logger.Warn("task event fan-out incomplete",
			"action", action, "type", typ, "task_id", task.ID, "error", err)
	} else {
		f.logger.Debug("task event fanned out", "action", action, "type", typ, "task_id", task.ID)
	}
	return res
}

func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
