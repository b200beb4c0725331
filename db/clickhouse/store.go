// Package clickhouse stores aggregated order runs in ClickHouse for
// analytics: one row per run, per item and per customer.
package clickhouse

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dosa-orders/internal/aggregate"
)

// ExportRun is one exported ETL result.
type ExportRun struct {
	ID          uuid.UUID `ch:"id"`
	Source      string    `ch:"source"`
	Hash        string    `ch:"hash"`
	CountPolicy string    `ch:"count_policy"`
	PricePolicy string    `ch:"price_policy"`
	Orders      uint32    `ch:"orders"`
	ExportedAt  time.Time `ch:"exported_at"`
}

// ItemSale is one item's aggregate within a run.
type ItemSale struct {
	RunID  uuid.UUID       `ch:"run_id"`
	Name   string          `ch:"name"`
	Price  decimal.Decimal `ch:"price"`
	Orders uint32          `ch:"orders"`
}

// CustomerRow is one phone -> name pair within a run.
type CustomerRow struct {
	RunID uuid.UUID `ch:"run_id"`
	Phone string    `ch:"phone"`
	Name  string    `ch:"name"`
}

// Config holds ClickHouse connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "dosa",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// Store writes export runs to ClickHouse.
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewStore opens a ClickHouse connection.
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS order_runs (
		id UUID,
		source String,
		hash String,
		count_policy LowCardinality(String),
		price_policy LowCardinality(String),
		orders UInt32,
		exported_at DateTime64(3)
	) ENGINE = MergeTree ORDER BY (hash, exported_at)`,
	`CREATE TABLE IF NOT EXISTS item_sales (
		run_id UUID,
		name String,
		price Decimal(18, 4),
		orders UInt32
	) ENGINE = MergeTree ORDER BY (run_id, name)`,
	`CREATE TABLE IF NOT EXISTS run_customers (
		run_id UUID,
		phone String,
		name String
	) ENGINE = MergeTree ORDER BY (run_id, phone)`,
}

// EnsureSchema creates the export tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create ClickHouse schema: %w", err)
		}
	}
	return nil
}

// =============================================================================
// RUN OPERATIONS
// =============================================================================

// CreateRun inserts a run header.
func (s *Store) CreateRun(ctx context.Context, run *ExportRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.ExportedAt.IsZero() {
		run.ExportedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO order_runs (id, source, hash, count_policy, price_policy, orders, exported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	return s.conn.Exec(ctx, query,
		run.ID, run.Source, run.Hash, run.CountPolicy, run.PricePolicy, run.Orders, run.ExportedAt,
	)
}

// FindRunByHash returns the latest run with hash, or nil when none exists.
func (s *Store) FindRunByHash(ctx context.Context, hash string) (*ExportRun, error) {
	query := `
		SELECT id, source, hash, count_policy, price_policy, orders, exported_at
		FROM order_runs
		WHERE hash = ?
		ORDER BY exported_at DESC
		LIMIT 1
	`
	row := s.conn.QueryRow(ctx, query, hash)

	var run ExportRun
	err := row.Scan(&run.ID, &run.Source, &run.Hash, &run.CountPolicy, &run.PricePolicy, &run.Orders, &run.ExportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find run by hash: %w", err)
	}
	return &run, nil
}

// BulkInsertItemSales inserts item rows with a single batch.
func (s *Store) BulkInsertItemSales(ctx context.Context, sales []ItemSale) error {
	if len(sales) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO item_sales (run_id, name, price, orders)`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, sale := range sales {
		if err := batch.Append(sale.RunID, sale.Name, sale.Price, sale.Orders); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}
	return batch.Send()
}

// BulkInsertCustomers inserts customer rows with a single batch.
func (s *Store) BulkInsertCustomers(ctx context.Context, rows []CustomerRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO run_customers (run_id, phone, name)`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row.RunID, row.Phone, row.Name); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}
	return batch.Send()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// HashInput fingerprints an input document together with the policies
// applied to it, so re-exporting the same thing can be detected.
func HashInput(raw []byte, opts aggregate.Options) string {
	h := sha256.New()
	h.Write(raw)
	h.Write([]byte{0})
	h.Write([]byte(opts.Count))
	h.Write([]byte{0})
	h.Write([]byte(opts.Price))
	return hex.EncodeToString(h.Sum(nil))
}

// ItemSalesFromIndex flattens an item index in its key order.
func ItemSalesFromIndex(runID uuid.UUID, items *aggregate.ItemIndex) []ItemSale {
	names := items.Names()
	out := make([]ItemSale, 0, len(names))
	for _, name := range names {
		stats, _ := items.Get(name)
		out = append(out, ItemSale{RunID: runID, Name: name, Price: stats.Price, Orders: uint32(stats.Orders)})
	}
	return out
}

// CustomerRowsFromIndex flattens a customer index in its key order.
func CustomerRowsFromIndex(runID uuid.UUID, customers *aggregate.CustomerIndex) []CustomerRow {
	phones := customers.Phones()
	out := make([]CustomerRow, 0, len(phones))
	for _, phone := range phones {
		name, _ := customers.Get(phone)
		out = append(out, CustomerRow{RunID: runID, Phone: phone, Name: name})
	}
	return out
}
