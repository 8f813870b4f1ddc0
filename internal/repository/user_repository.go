package repository

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/gurkanbulca/taskboard/internal/database"
	"github.com/gurkanbulca/taskboard/internal/models"
)

var userColumns = []string{"id", "username", "email", "password_hash", "role", "created_at"}

// UserRepository is the user directory
type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) selectUsers() *entsql.Selector {
	return r.db.Builder().Select(userColumns...).From(entsql.Table(database.UsersTable))
}

// Create inserts u, assigning its id and creation time when unset
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}

	insert := r.db.Builder().Insert(database.UsersTable).
		Columns(userColumns...).
		Values(u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	if err := exec(ctx, r.db, insert); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := get(ctx, r.db, &u, r.selectUsers().Where(entsql.EQ("id", id))); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := get(ctx, r.db, &u, r.selectUsers().Where(entsql.EQ("username", username))); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, entsql.EQ("username", username))
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, entsql.EQ("email", email))
}

// Exists reports whether a user with the given id is stored
func (r *UserRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, entsql.EQ("id", id))
}

func (r *UserRepository) exists(ctx context.Context, p *entsql.Predicate) (bool, error) {
	var count int
	q := r.db.Builder().Select(entsql.Count("*")).From(entsql.Table(database.UsersTable)).Where(p)
	if err := get(ctx, r.db, &count, q); err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return count > 0, nil
}

// List returns all users ordered by username
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := selectAll(ctx, r.db, &users, r.selectUsers().OrderBy(entsql.Asc("username"))); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	q := r.db.Builder().Select(entsql.Count("*")).From(entsql.Table(database.UsersTable))
	if err := get(ctx, r.db, &count, q); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
