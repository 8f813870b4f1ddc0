// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"entgo.io/ent/dialect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gurkanbulca/taskboard/internal/database"

	_ "github.com/mattn/go-sqlite3"
)

// Open returns a freshly migrated, isolated in-memory database closed at test cleanup
func Open(t testing.TB) *database.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", name)

	sqlDB, err := sql.Open(dialect.SQLite, dsn)
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db := database.Wrap(sqlDB, dialect.SQLite, false, slog.New(slog.DiscardHandler))
	require.NoError(t, database.Migrate(context.Background(), db))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
