package repository

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/gurkanbulca/taskboard/internal/database"
	"github.com/gurkanbulca/taskboard/internal/models"
)

var notificationColumns = []string{
	"id", "type", "task_id", "title", "assignee_id", "recipient_id", "read_flag", "due_date", "created_at",
}

// NotificationRepository is the notification store
type NotificationRepository struct {
	db *database.DB
}

func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) selectNotifications() *entsql.Selector {
	return r.db.Builder().Select(notificationColumns...).From(entsql.Table(database.NotificationsTable))
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = now()
	if n.DueDate != nil {
		due := n.DueDate.UTC()
		n.DueDate = &due
	}

	insert := r.db.Builder().Insert(database.NotificationsTable).
		Columns(notificationColumns...).
		Values(n.ID, n.Type, n.TaskID, n.Title, n.AssigneeID, n.RecipientID, n.ReadFlag, n.DueDate, n.CreatedAt)
	if err := exec(ctx, r.db, insert); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := get(ctx, r.db, &n, r.selectNotifications().Where(entsql.EQ("id", id))); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListVisibleTo returns the user's own notifications and broadcast ones, newest first
func (r *NotificationRepository) ListVisibleTo(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error) {
	q := r.selectNotifications().
		Where(entsql.Or(entsql.EQ("recipient_id", userID), entsql.IsNull("recipient_id"))).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))

	notifications := []*models.Notification{}
	if err := selectAll(ctx, r.db, &notifications, q); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id uuid.UUID) error {
	update := r.db.Builder().Update(database.NotificationsTable).
		Set("read_flag", true).
		Where(entsql.EQ("id", id))
	if err := exec(ctx, r.db, update); err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}
