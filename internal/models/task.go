package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of a task. DELETED marks a soft-deleted task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
	TaskStatusDeleted    TaskStatus = "DELETED"
)

// TaskStatuses lists every stored status value
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusDeleted}

// Valid reports whether s is a known status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusDeleted:
		return true
	}
	return false
}

// Active reports whether s is a normal workflow state
func (s TaskStatus) Active() bool {
	return s.Valid() && s != TaskStatusDeleted
}

// Priority of a task
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Priorities lists every priority value
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	Status      TaskStatus `db:"status" json:"status"`
	Priority    Priority   `db:"priority" json:"priority"`
	AssigneeID  *uuid.UUID `db:"assignee_id" json:"assigneeId"`
	CreatorID   uuid.UUID  `db:"creator_id" json:"creatorId"`
	DueDate     *time.Time `db:"due_date" json:"dueDate"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsAssignedTo reports whether userID is the current assignee
func (t *Task) IsAssignedTo(userID uuid.UUID) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// TaskStats holds task counts used by the dashboard
type TaskStats struct {
	ByStatus   map[TaskStatus]int `json:"byStatus"`
	Created    int                `json:"created"`
	Assigned   int                `json:"assigned"`
	Unassigned int                `json:"unassigned"`
}
