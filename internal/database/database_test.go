package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurkanbulca/taskboard/internal/database"
	"github.com/gurkanbulca/taskboard/internal/database/dbtest"
)

func TestMigrate_CreatesTables(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	for _, table := range database.Tables {
		var count int
		err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table.Name)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s", table.Name)
	}

	// running again is a no-op
	require.NoError(t, database.Migrate(ctx, db))
	require.NoError(t, db.Ping(ctx))
}

func TestConfig_DSN(t *testing.T) {
	pg := database.Config{Driver: "postgres", Host: "h", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", pg.DSN())

	assert.Equal(t, "file:tb.db?cache=shared&_fk=1", database.Config{Driver: "sqlite3", Path: "tb.db"}.DSN())
	assert.Equal(t, "file::memory:?_fk=1", database.Config{Driver: "sqlite3", Path: "file::memory:?_fk=1"}.DSN())
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := database.Open(database.Config{Driver: "mysql"}, nil)
	assert.Error(t, err)
}
