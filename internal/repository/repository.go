// internal/repository/repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/gurkanbulca/taskboard/internal/database"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// now returns the storage timestamp. Postgres keeps microseconds, so values are truncated to match.
var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// querier is implemented by a statement built with ent's SQL builder
type querier interface {
	Query() (string, []any)
}

func get(ctx context.Context, db *database.DB, dest any, q querier) error {
	query, args := q.Query()
	db.Trace(query, args...)
	if err := db.GetContext(ctx, dest, query, args...); err != nil {
		return classify(err)
	}
	return nil
}

func selectAll(ctx context.Context, db *database.DB, dest any, q querier) error {
	query, args := q.Query()
	db.Trace(query, args...)
	if err := db.SelectContext(ctx, dest, query, args...); err != nil {
		return classify(err)
	}
	return nil
}

// exec runs a write and reports ErrNotFound when no row was affected
func exec(ctx context.Context, db *database.DB, q querier) error {
	query, args := q.Query()
	db.Trace(query, args...)
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, sqliteErr)
	}

	return err
}
