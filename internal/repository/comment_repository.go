package repository

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/gurkanbulca/taskboard/internal/database"
	"github.com/gurkanbulca/taskboard/internal/models"
)

var commentColumns = []string{"id", "content", "task_id", "author_id", "created_at"}

type CommentRepository struct {
	db *database.DB
}

func NewCommentRepository(db *database.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) selectComments() *entsql.Selector {
	return r.db.Builder().Select(commentColumns...).From(entsql.Table(database.CommentsTable))
}

func (r *CommentRepository) Create(ctx context.Context, c *models.Comment) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = now()

	insert := r.db.Builder().Insert(database.CommentsTable).
		Columns(commentColumns...).
		Values(c.ID, c.Content, c.TaskID, c.AuthorID, c.CreatedAt)
	if err := exec(ctx, r.db, insert); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *CommentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var c models.Comment
	if err := get(ctx, r.db, &c, r.selectComments().Where(entsql.EQ("id", id))); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommentRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string) error {
	update := r.db.Builder().Update(database.CommentsTable).
		Set("content", content).
		Where(entsql.EQ("id", id))
	if err := exec(ctx, r.db, update); err != nil {
		return fmt.Errorf("update comment %s: %w", id, err)
	}
	return nil
}

func (r *CommentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	del := r.db.Builder().Delete(database.CommentsTable).Where(entsql.EQ("id", id))
	if err := exec(ctx, r.db, del); err != nil {
		return fmt.Errorf("delete comment %s: %w", id, err)
	}
	return nil
}

// ListByTask returns a task's comments oldest first
func (r *CommentRepository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.Comment, error) {
	q := r.selectComments().
		Where(entsql.EQ("task_id", taskID)).
		OrderBy(entsql.Asc("created_at"), entsql.Asc("id"))

	comments := []*models.Comment{}
	if err := selectAll(ctx, r.db, &comments, q); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
