// Package sqlstore provides the relational customers/items/orders store.
// SQLite is the default backend; PostgreSQL is supported through lib/pq.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names a supported database/sql driver.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Config holds database connection configuration.
type Config struct {
	Driver          Driver
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns a local SQLite file configuration.
func DefaultConfig() *Config {
	return &Config{
		Driver:          DriverSQLite,
		DSN:             "db.sqlite",
		MaxOpenConns:    1,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// ParseDriver validates a driver name.
func ParseDriver(s string) (Driver, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(s))) {
	case DriverSQLite, "":
		return DriverSQLite, nil
	case DriverPostgres, "postgresql", "pg":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

// Store implements CRUD and bootstrap over database/sql.
type Store struct {
	db  *sql.DB
	cfg *Config
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects, verifies the connection and applies the schema.
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}

	dsn := cfg.DSN
	if cfg.Driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(string(cfg.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// sqliteDSN turns on foreign keys and a busy timeout unless the caller set them.
func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "db.sqlite"
	}
	var pragmas []string
	if !strings.Contains(dsn, "foreign_keys") {
		pragmas = append(pragmas, "_pragma=foreign_keys(1)")
	}
	if !strings.Contains(dsn, "busy_timeout") {
		pragmas = append(pragmas, "_pragma=busy_timeout(5000)")
	}
	if len(pragmas) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + sep + strings.Join(pragmas, "&")
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the configured backend.
func (s *Store) Driver() Driver { return s.cfg.Driver }

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema(s.Driver()) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func schema(driver Driver) []string {
	idCol := "INTEGER PRIMARY KEY"
	refCol := "INTEGER"
	if driver == DriverPostgres {
		idCol = "BIGSERIAL PRIMARY KEY"
		refCol = "BIGINT"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id ` + idCol + `,
			name TEXT NOT NULL,
			phone TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			id ` + idCol + `,
			name TEXT NOT NULL,
			price NUMERIC NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id ` + idCol + `,
			customer_id ` + refCol + ` NOT NULL REFERENCES customers (id),
			item_id ` + refCol + ` NOT NULL REFERENCES items (id),
			quantity INTEGER NOT NULL,
			"timestamp" BIGINT NOT NULL,
			notes TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_items_name ON items (name)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_customer_id ON orders (customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_item_id ON orders (item_id)`,
	}
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.Driver() != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
