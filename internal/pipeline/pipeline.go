// Package pipeline runs the order ETL: parse, aggregate, write.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dosa-orders/internal/aggregate"
	"dosa-orders/internal/jsonfile"
	"dosa-orders/internal/orders"
)

// Config holds one ETL run's settings.
type Config struct {
	InputPath     string
	CustomersPath string
	ItemsPath     string

	// SkipCustomers / SkipItems suppress one of the two artifacts.
	SkipCustomers bool
	SkipItems     bool

	// Strict turns read and parse failures into errors instead of
	// continuing with an empty order list.
	Strict bool

	Aggregate aggregate.Options
}

// DefaultConfig returns the conventional output names in the working directory.
func DefaultConfig(input string) Config {
	return Config{
		InputPath:     input,
		CustomersPath: "customers.json",
		ItemsPath:     "items.json",
		Aggregate:     aggregate.DefaultOptions(),
	}
}

// Result summarizes a run.
type Result struct {
	RunID     uuid.UUID
	Orders    int
	Customers *aggregate.CustomerIndex
	Items     *aggregate.ItemIndex
	// InputErr is the swallowed read/parse failure in lenient mode.
	InputErr error
}

// Run executes the ETL. In lenient mode an unreadable input still produces
// two empty artifacts and a nil error; write failures are always returned.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	res := &Result{RunID: uuid.New()}
	logger := zerolog.Ctx(ctx).With().Str("run_id", res.RunID.String()).Logger()

	loaded, err := readOrders(logger.WithContext(ctx), cfg.InputPath, cfg.Strict)
	if err != nil {
		return res, err
	}
	res.InputErr = loaded.swallowed
	res.Orders = len(loaded.records)

	res.Customers = aggregate.ExtractCustomers(loaded.records)
	res.Items = aggregate.AggregateItems(loaded.records, cfg.Aggregate)
	logger.Info().
		Int("orders", res.Orders).
		Int("customers", res.Customers.Len()).
		Int("items", res.Items.Len()).
		Msg("Orders aggregated")

	if !cfg.SkipCustomers {
		if err := jsonfile.Write(res.Customers, cfg.CustomersPath); err != nil {
			logger.Error().Err(err).Str("file", cfg.CustomersPath).Msg("Failed to write customers")
			return res, err
		}
		logger.Info().Str("file", cfg.CustomersPath).Msg("Customer data written")
	}
	if !cfg.SkipItems {
		if err := jsonfile.Write(res.Items, cfg.ItemsPath); err != nil {
			logger.Error().Err(err).Str("file", cfg.ItemsPath).Msg("Failed to write items")
			return res, err
		}
		logger.Info().Str("file", cfg.ItemsPath).Msg("Item data written")
	}
	return res, nil
}

// LoadOrders reads path. When strict is false, a failure is logged as a
// diagnostic naming the path and an empty, non-nil slice is returned.
func LoadOrders(ctx context.Context, path string, strict bool) ([]orders.OrderRecord, error) {
	loaded, err := readOrders(ctx, path, strict)
	return loaded.records, err
}

// loadedOrders is what readOrders produced. swallowed holds the lenient-mode
// read or parse failure, if any.
type loadedOrders struct {
	records   []orders.OrderRecord
	swallowed error
}

func readOrders(ctx context.Context, path string, strict bool) (loadedOrders, error) {
	parser := orders.NewParser()
	parser.Strict = strict

	records, err := parser.ParseFile(path)
	if err == nil {
		zerolog.Ctx(ctx).Debug().Str("file", path).Int("orders", len(records)).Msg("Orders read")
		return loadedOrders{records: records}, nil
	}
	if strict {
		return loadedOrders{}, err
	}
	zerolog.Ctx(ctx).Error().Err(err).Str("file", path).Msg("Unable to read orders; continuing with no orders")
	return loadedOrders{records: []orders.OrderRecord{}, swallowed: err}, nil
}
