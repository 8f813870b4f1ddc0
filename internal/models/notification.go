package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType tags a notification with the event that produced it
type NotificationType string

const (
	NotificationCreated       NotificationType = "CREATED"
	NotificationEdited        NotificationType = "EDITED"
	NotificationStatusChanged NotificationType = "STATUS_CHANGED"
	NotificationDeleted       NotificationType = "DELETED"
	NotificationDueSoon       NotificationType = "DUE_SOON"
	NotificationOverdue       NotificationType = "OVERDUE"
)

// Notification is a persisted notice for one user, or for everyone when RecipientID is nil
type Notification struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	Type        NotificationType `db:"type" json:"type"`
	TaskID      uuid.UUID        `db:"task_id" json:"taskId"`
	Title       string           `db:"title" json:"title"`
	AssigneeID  *uuid.UUID       `db:"assignee_id" json:"assigneeId"`
	RecipientID *uuid.UUID       `db:"recipient_id" json:"recipientId"`
	ReadFlag    bool             `db:"read_flag" json:"readFlag"`
	DueDate     *time.Time       `db:"due_date" json:"dueDate"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
}

// Broadcast reports whether the notification is visible to every user
func (n *Notification) Broadcast() bool {
	return n.RecipientID == nil
}
