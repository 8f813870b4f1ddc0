package database

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table names
const (
	UsersTable         = "users"
	TasksTable         = "tasks"
	CommentsTable      = "comments"
	ActivitiesTable    = "activities"
	NotificationsTable = "notifications"
)

const textSize = 2147483647

var (
	// UsersColumns holds the columns for the "users" table.
	UsersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "username", Type: field.TypeString, Unique: true, Size: 50},
		{Name: "email", Type: field.TypeString, Unique: true, Size: 255},
		{Name: "password_hash", Type: field.TypeString},
		{Name: "role", Type: field.TypeEnum, Enums: []string{"USER", "ADMIN"}, Default: "USER"},
		{Name: "created_at", Type: field.TypeTime},
	}
	// UsersTableDef holds the schema information for the "users" table.
	UsersTableDef = &schema.Table{
		Name:       UsersTable,
		Columns:    UsersColumns,
		PrimaryKey: []*schema.Column{UsersColumns[0]},
	}

	// TasksColumns holds the columns for the "tasks" table.
	TasksColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "title", Type: field.TypeString, Size: 100},
		{Name: "description", Type: field.TypeString, Size: 500, Default: ""},
		{Name: "status", Type: field.TypeEnum, Enums: []string{"TODO", "IN_PROGRESS", "DONE", "DELETED"}, Default: "TODO"},
		{Name: "priority", Type: field.TypeEnum, Enums: []string{"LOW", "MEDIUM", "HIGH"}, Default: "MEDIUM"},
		{Name: "due_date", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
		{Name: "assignee_id", Type: field.TypeUUID, Nullable: true},
		{Name: "creator_id", Type: field.TypeUUID},
	}
	// TasksTableDef holds the schema information for the "tasks" table.
	TasksTableDef = &schema.Table{
		Name:       TasksTable,
		Columns:    TasksColumns,
		PrimaryKey: []*schema.Column{TasksColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "tasks_users_assigned_tasks",
				Columns:    []*schema.Column{TasksColumns[8]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.SetNull,
			},
			{
				Symbol:     "tasks_users_created_tasks",
				Columns:    []*schema.Column{TasksColumns[9]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "task_status", Unique: false, Columns: []*schema.Column{TasksColumns[3]}},
			{Name: "task_due_date", Unique: false, Columns: []*schema.Column{TasksColumns[5]}},
			{Name: "task_assignee_id", Unique: false, Columns: []*schema.Column{TasksColumns[8]}},
			{Name: "task_creator_id", Unique: false, Columns: []*schema.Column{TasksColumns[9]}},
		},
	}

	// CommentsColumns holds the columns for the "comments" table.
	CommentsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "content", Type: field.TypeString, Size: textSize},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "task_id", Type: field.TypeUUID},
		{Name: "author_id", Type: field.TypeUUID},
	}
	// CommentsTableDef holds the schema information for the "comments" table.
	CommentsTableDef = &schema.Table{
		Name:       CommentsTable,
		Columns:    CommentsColumns,
		PrimaryKey: []*schema.Column{CommentsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "comments_tasks_comments",
				Columns:    []*schema.Column{CommentsColumns[3]},
				RefColumns: []*schema.Column{TasksColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "comments_users_comments",
				Columns:    []*schema.Column{CommentsColumns[4]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "comment_task_id_created_at", Unique: false, Columns: []*schema.Column{CommentsColumns[3], CommentsColumns[2]}},
		},
	}

	// ActivitiesColumns holds the columns for the "activities" table.
	ActivitiesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "type", Type: field.TypeEnum, Enums: []string{"CREATED", "UPDATED", "STATUS_CHANGED", "COMMENT"}},
		{Name: "actor_id", Type: field.TypeUUID, Nullable: true},
		{Name: "actor_name", Type: field.TypeString, Nullable: true},
		{Name: "detail", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "task_id", Type: field.TypeUUID},
	}
	// ActivitiesTableDef holds the schema information for the "activities" table.
	ActivitiesTableDef = &schema.Table{
		Name:       ActivitiesTable,
		Columns:    ActivitiesColumns,
		PrimaryKey: []*schema.Column{ActivitiesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "activities_tasks_activities",
				Columns:    []*schema.Column{ActivitiesColumns[6]},
				RefColumns: []*schema.Column{TasksColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "activity_task_id_created_at", Unique: false, Columns: []*schema.Column{ActivitiesColumns[6], ActivitiesColumns[5]}},
		},
	}

	// NotificationsColumns holds the columns for the "notifications" table.
	// Task and user ids are plain references so notifications outlive their subjects.
	NotificationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "type", Type: field.TypeString, Size: 32},
		{Name: "task_id", Type: field.TypeUUID},
		{Name: "title", Type: field.TypeString, Size: 255},
		{Name: "assignee_id", Type: field.TypeUUID, Nullable: true},
		{Name: "recipient_id", Type: field.TypeUUID, Nullable: true},
		{Name: "read_flag", Type: field.TypeBool, Default: false},
		{Name: "due_date", Type: field.TypeTime, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
	}
	// NotificationsTableDef holds the schema information for the "notifications" table.
	NotificationsTableDef = &schema.Table{
		Name:       NotificationsTable,
		Columns:    NotificationsColumns,
		PrimaryKey: []*schema.Column{NotificationsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "notification_recipient_id_created_at", Unique: false, Columns: []*schema.Column{NotificationsColumns[5], NotificationsColumns[8]}},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		UsersTableDef,
		TasksTableDef,
		CommentsTableDef,
		ActivitiesTableDef,
		NotificationsTableDef,
	}
)

func init() {
	TasksTableDef.ForeignKeys[0].RefTable = UsersTableDef
	TasksTableDef.ForeignKeys[1].RefTable = UsersTableDef
	CommentsTableDef.ForeignKeys[0].RefTable = TasksTableDef
	CommentsTableDef.ForeignKeys[1].RefTable = UsersTableDef
	ActivitiesTableDef.ForeignKeys[0].RefTable = TasksTableDef
}

// Migrate creates or updates all tables to match the schema
func Migrate(ctx context.Context, db *DB) error {
	m, err := schema.NewMigrate(
		db.Driver(),
		schema.WithDropIndex(true),
		schema.WithDropColumn(true),
		schema.WithForeignKeys(true),
	)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	db.logger.Info("database schema is up to date", "tables", len(Tables))
	return nil
}
