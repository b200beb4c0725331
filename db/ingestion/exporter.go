// Package ingestion pushes aggregated order runs into the ClickHouse
// analytics store.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dosa-orders/db/clickhouse"
	"dosa-orders/internal/aggregate"
)

// Sink is the subset of *clickhouse.Store the exporter writes through.
type Sink interface {
	FindRunByHash(ctx context.Context, hash string) (*clickhouse.ExportRun, error)
	CreateRun(ctx context.Context, run *clickhouse.ExportRun) error
	BulkInsertItemSales(ctx context.Context, sales []clickhouse.ItemSale) error
	BulkInsertCustomers(ctx context.Context, rows []clickhouse.CustomerRow) error
}

// DefaultBatchSize bounds the rows sent per batch insert.
const DefaultBatchSize = 1000

// Exporter writes one ETL result per distinct input.
type Exporter struct {
	sink      Sink
	batchSize int
}

// NewExporter creates an exporter over sink.
func NewExporter(sink Sink) *Exporter {
	return &Exporter{sink: sink, batchSize: DefaultBatchSize}
}

// ExportInput is what gets exported.
type ExportInput struct {
	Source    string
	Raw       []byte
	RunID     uuid.UUID
	Orders    int
	Options   aggregate.Options
	Customers *aggregate.CustomerIndex
	Items     *aggregate.ItemIndex
}

// ExportResult tracks the result of an export.
type ExportResult struct {
	RunID        uuid.UUID
	Hash         string
	Skipped      bool
	ItemRows     int
	CustomerRows int
	Duration     time.Duration
}

// Export inserts item and customer rows and then the run header. An input
// whose hash already has a run is skipped; the header goes last so an
// interrupted export is retried on the next call.
func (e *Exporter) Export(ctx context.Context, input *ExportInput) (*ExportResult, error) {
	startTime := time.Now()
	logger := zerolog.Ctx(ctx)

	result := &ExportResult{
		RunID: input.RunID,
		Hash:  clickhouse.HashInput(input.Raw, input.Options),
	}
	if result.RunID == uuid.Nil {
		result.RunID = uuid.New()
	}

	existing, err := e.sink.FindRunByHash(ctx, result.Hash)
	if err != nil {
		return result, err
	}
	if existing != nil {
		logger.Info().
			Str("run_id", existing.ID.String()).
			Str("source", input.Source).
			Msg("Input already exported; skipping")
		result.RunID = existing.ID
		result.Skipped = true
		result.Duration = time.Since(startTime)
		return result, nil
	}

	sales := clickhouse.ItemSalesFromIndex(result.RunID, input.Items)
	for i := 0; i < len(sales); i += e.batchSize {
		end := min(i+e.batchSize, len(sales))
		if err := e.sink.BulkInsertItemSales(ctx, sales[i:end]); err != nil {
			return result, fmt.Errorf("failed to insert item sales at batch %d: %w", i/e.batchSize, err)
		}
		result.ItemRows += end - i
	}

	customers := clickhouse.CustomerRowsFromIndex(result.RunID, input.Customers)
	for i := 0; i < len(customers); i += e.batchSize {
		end := min(i+e.batchSize, len(customers))
		if err := e.sink.BulkInsertCustomers(ctx, customers[i:end]); err != nil {
			return result, fmt.Errorf("failed to insert customers at batch %d: %w", i/e.batchSize, err)
		}
		result.CustomerRows += end - i
	}

	run := &clickhouse.ExportRun{
		ID:          result.RunID,
		Source:      input.Source,
		Hash:        result.Hash,
		CountPolicy: string(input.Options.Count),
		PricePolicy: string(input.Options.Price),
		Orders:      uint32(input.Orders),
	}
	if err := e.sink.CreateRun(ctx, run); err != nil {
		return result, fmt.Errorf("failed to create run: %w", err)
	}

	result.Duration = time.Since(startTime)
	logger.Info().
		Str("run_id", result.RunID.String()).
		Int("items", result.ItemRows).
		Int("customers", result.CustomerRows).
		Dur("duration", result.Duration).
		Msg("Run exported to ClickHouse")
	return result, nil
}
