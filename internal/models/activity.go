package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityType tags an activity log entry
type ActivityType string

const (
	ActivityCreated       ActivityType = "CREATED"
	ActivityUpdated       ActivityType = "UPDATED"
	ActivityStatusChanged ActivityType = "STATUS_CHANGED"
	ActivityComment       ActivityType = "COMMENT"
)

var ActivityTypes = []ActivityType{ActivityCreated, ActivityUpdated, ActivityStatusChanged, ActivityComment}

func (t ActivityType) Valid() bool {
	switch t {
	case ActivityCreated, ActivityUpdated, ActivityStatusChanged, ActivityComment:
		return true
	}
	return false
}

// Activity is an append-only log entry attached to a task
type Activity struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	TaskID    uuid.UUID    `db:"task_id" json:"taskId"`
	Type      ActivityType `db:"type" json:"type"`
	ActorID   *uuid.UUID   `db:"actor_id" json:"actorId"`
	ActorName *string      `db:"actor_name" json:"actorName"`
	Detail    string       `db:"detail" json:"detail"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
}
