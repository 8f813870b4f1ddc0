package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Config for database connection
type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Path is the SQLite database file, or a full sqlite DSN when it starts with "file:"
	Path  string
	Debug bool
}

// DSN builds the driver specific data source name
func (c Config) DSN() string {
	if c.Driver == dialect.SQLite {
		if len(c.Path) > 5 && c.Path[:5] == "file:" {
			return c.Path
		}
		return fmt.Sprintf("file:%s?cache=shared&_fk=1", c.Path)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// DB bundles the sqlx handle used for scanning with the ent driver used for
// dialect-aware query building and migrations. Both share one *sql.DB pool.
type DB struct {
	*sqlx.DB
	driver  *entsql.Driver
	dialect string
	logger  *slog.Logger
	debug   bool
}

// Open connects to the configured database and verifies the connection
func Open(cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driverName := cfg.Driver
	switch driverName {
	case "", dialect.Postgres:
		driverName = dialect.Postgres
	case dialect.SQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Configure connection pool
	if driverName == dialect.SQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("connected to database", "driver", driverName)
	return Wrap(db, driverName, cfg.Debug, logger), nil
}

// Wrap adopts an already opened *sql.DB
func Wrap(db *sql.DB, driverName string, debug bool, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{
		DB:      sqlx.NewDb(db, driverName),
		driver:  entsql.OpenDB(driverName, db),
		dialect: driverName,
		logger:  logger,
		debug:   debug,
	}
}

// Dialect returns the ent dialect name used to build queries
func (db *DB) Dialect() string {
	return db.dialect
}

// Driver returns the ent SQL driver sharing this connection pool
func (db *DB) Driver() *entsql.Driver {
	return db.driver
}

// Builder starts a query builder for the connection's dialect
func (db *DB) Builder() *entsql.DialectBuilder {
	return entsql.Dialect(db.dialect)
}

// Trace logs a built statement when debug logging is enabled
func (db *DB) Trace(query string, args ...any) {
	if db.debug {
		db.logger.Debug("sql", "query", query, "args", args)
	}
}

// Ping checks the connection with a bounded timeout
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.DB.PingContext(ctx)
}
