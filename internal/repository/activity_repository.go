package repository

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/gurkanbulca/taskboard/internal/database"
	"github.com/gurkanbulca/taskboard/internal/models"
)

var activityColumns = []string{"id", "task_id", "type", "actor_id", "actor_name", "detail", "created_at"}

// ActivityRepository is an append-only log
type ActivityRepository struct {
	db *database.DB
}

func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, a *models.Activity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = now()

	insert := r.db.Builder().Insert(database.ActivitiesTable).
		Columns(activityColumns...).
		Values(a.ID, a.TaskID, a.Type, a.ActorID, a.ActorName, a.Detail, a.CreatedAt)
	if err := exec(ctx, r.db, insert); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListByTask returns a task's activity oldest first
func (r *ActivityRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Activity, error) {
	q := r.db.Builder().Select(activityColumns...).
		From(entsql.Table(database.ActivitiesTable)).
		Where(entsql.EQ("task_id", taskID)).
		OrderBy(entsql.Asc("created_at"), entsql.Asc("id"))

	activities := []*models.Activity{}
	if err := selectAll(ctx, r.db, &activities, q); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return activities, nil
}
