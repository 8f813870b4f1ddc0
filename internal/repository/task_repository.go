// internal/repository/task_repository.go
package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/gurkanbulca/taskboard/internal/database"
	"github.com/gurkanbulca/taskboard/internal/models"
)

var taskColumns = []string{
	"id", "title", "description", "status", "priority",
	"assignee_id", "creator_id", "due_date", "created_at", "updated_at",
}

// NotDeleted matches tasks that have not been soft deleted. Every query over active tasks uses it.
func NotDeleted() *entsql.Predicate {
	return entsql.NEQ("status", string(models.TaskStatusDeleted))
}

// TaskRepository is the task store
type TaskRepository struct {
	db *database.DB
}

func NewTaskRepository(db *database.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) selectTasks() *entsql.Selector {
	return r.db.Builder().Select(taskColumns...).From(entsql.Table(database.TasksTable))
}

// Create inserts t, assigning its id and timestamps
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	ts := now()
	t.CreatedAt = ts
	t.UpdatedAt = ts
	if t.DueDate != nil {
		due := t.DueDate.UTC()
		t.DueDate = &due
	}

	insert := r.db.Builder().Insert(database.TasksTable).
		Columns(taskColumns...).
		Values(t.ID, t.Title, t.Description, t.Status, t.Priority,
			t.AssigneeID, t.CreatorID, t.DueDate, t.CreatedAt, t.UpdatedAt)
	if err := exec(ctx, r.db, insert); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetByID returns an active task
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var t models.Task
	q := r.selectTasks().Where(entsql.And(entsql.EQ("id", id), NotDeleted()))
	if err := get(ctx, r.db, &t, q); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetIncludingDeleted returns a task regardless of its lifecycle state
func (r *TaskRepository) GetIncludingDeleted(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var t models.Task
	if err := get(ctx, r.db, &t, r.selectTasks().Where(entsql.EQ("id", id))); err != nil {
		return nil, err
	}
	return &t, nil
}

// Exists reports whether an active task with the given id is stored
func (r *TaskRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int
	q := r.db.Builder().Select(entsql.Count("*")).From(entsql.Table(database.TasksTable)).
		Where(entsql.And(entsql.EQ("id", id), NotDeleted()))
	if err := get(ctx, r.db, &count, q); err != nil {
		return false, fmt.Errorf("count tasks: %w", err)
	}
	return count > 0, nil
}

// Update writes every mutable column of an active task. The creator is never changed.
func (r *TaskRepository) Update(ctx context.Context, t *models.Task) error {
	t.UpdatedAt = now()
	if t.DueDate != nil {
		due := t.DueDate.UTC()
		t.DueDate = &due
	}

	update := r.db.Builder().Update(database.TasksTable).
		Set("title", t.Title).
		Set("description", t.Description).
		Set("status", t.Status).
		Set("priority", t.Priority).
		Set("assignee_id", t.AssigneeID).
		Set("due_date", t.DueDate).
		Set("updated_at", t.UpdatedAt).
		Where(entsql.And(entsql.EQ("id", t.ID), NotDeleted()))
	if err := exec(ctx, r.db, update); err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return nil
}

// SoftDelete moves an active task to DELETED
func (r *TaskRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	update := r.db.Builder().Update(database.TasksTable).
		Set("status", models.TaskStatusDeleted).
		Set("updated_at", now()).
		Where(entsql.And(entsql.EQ("id", id), NotDeleted()))
	if err := exec(ctx, r.db, update); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}

// TaskFilter narrows task listings. Deleted tasks are never returned.
type TaskFilter struct {
	Status     *models.TaskStatus
	Priority   *models.Priority
	AssigneeID *uuid.UUID
	// Unassigned selects tasks without an assignee; ignored when AssigneeID is set
	Unassigned bool
	// UserID selects tasks the user created or is assigned to
	UserID     *uuid.UUID
	CreatorID  *uuid.UUID
	HasDueDate bool
	Search     string
	SortBy     string
	SortOrder  string
	Limit      int
	Offset     int
}

func (f TaskFilter) predicates() []*entsql.Predicate {
	preds := []*entsql.Predicate{NotDeleted()}

	if f.Status != nil {
		preds = append(preds, entsql.EQ("status", string(*f.Status)))
	}
	if f.Priority != nil {
		preds = append(preds, entsql.EQ("priority", string(*f.Priority)))
	}
	switch {
	case f.AssigneeID != nil:
		preds = append(preds, entsql.EQ("assignee_id", *f.AssigneeID))
	case f.Unassigned:
		preds = append(preds, entsql.IsNull("assignee_id"))
	}
	if f.UserID != nil {
		preds = append(preds, entsql.Or(
			entsql.EQ("creator_id", *f.UserID),
			entsql.EQ("assignee_id", *f.UserID),
		))
	}
	if f.CreatorID != nil {
		preds = append(preds, entsql.EQ("creator_id", *f.CreatorID))
	}
	if f.HasDueDate {
		preds = append(preds, entsql.NotNull("due_date"))
	}
	if f.Search != "" {
		preds = append(preds, entsql.Or(
			entsql.ContainsFold("title", f.Search),
			entsql.ContainsFold("description", f.Search),
		))
	}
	return preds
}

func (f TaskFilter) order() string {
	column := "created_at"
	switch f.SortBy {
	case "updated_at", "due_date", "title", "priority", "status":
		column = f.SortBy
	}
	if f.SortOrder == "asc" {
		return entsql.Asc(column)
	}
	return entsql.Desc(column)
}

// List returns the active tasks matching the filter
func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]*models.Task, error) {
	q := r.selectTasks().
		Where(entsql.And(filter.predicates()...)).
		OrderBy(filter.order(), entsql.Asc("id"))

	limit := filter.Limit
	if limit <= 0 && filter.Offset > 0 {
		// SQLite rejects OFFSET without LIMIT
		limit = math.MaxInt32
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	tasks := []*models.Task{}
	if err := selectAll(ctx, r.db, &tasks, q); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Count returns the number of active tasks matching the filter
func (r *TaskRepository) Count(ctx context.Context, filter TaskFilter) (int, error) {
	var count int
	q := r.db.Builder().Select(entsql.Count("*")).From(entsql.Table(database.TasksTable)).
		Where(entsql.And(filter.predicates()...))
	if err := get(ctx, r.db, &count, q); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return count, nil
}

// ListWithDueDate returns every active task that has a due date
func (r *TaskRepository) ListWithDueDate(ctx context.Context) ([]*models.Task, error) {
	return r.List(ctx, TaskFilter{HasDueDate: true, SortBy: "due_date", SortOrder: "asc"})
}

// ListDueBetween returns the user's active tasks due in [from, to]
func (r *TaskRepository) ListDueBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.Task, error) {
	tasks, err := r.List(ctx, TaskFilter{UserID: &userID, HasDueDate: true, SortBy: "due_date", SortOrder: "asc"})
	if err != nil {
		return nil, err
	}

	// Compared in Go: SQLite stores timestamps as text
	due := tasks[:0]
	for _, t := range tasks {
		if !t.DueDate.Before(from) && !t.DueDate.After(to) {
			due = append(due, t)
		}
	}
	return due, nil
}

type statusCount struct {
	Status models.TaskStatus `db:"status"`
	Total  int               `db:"total"`
}

// CountByStatus counts active tasks per status
func (r *TaskRepository) CountByStatus(ctx context.Context) (map[models.TaskStatus]int, error) {
	q := r.db.Builder().
		Select("status", entsql.As(entsql.Count("*"), "total")).
		From(entsql.Table(database.TasksTable)).
		Where(NotDeleted()).
		GroupBy("status")

	var rows []statusCount
	if err := selectAll(ctx, r.db, &rows, q); err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}

	counts := make(map[models.TaskStatus]int, len(rows))
	for _, s := range models.TaskStatuses {
		if s.Active() {
			counts[s] = 0
		}
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
