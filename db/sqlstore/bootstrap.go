package sqlstore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"dosa-orders/internal/orders"
)

// BootstrapResult counts what Bootstrap created.
type BootstrapResult struct {
	Customers int
	Items     int
	Orders    int
	Skipped   int
}

// Bootstrap loads parsed order records in one transaction. Customers are
// matched by phone and items by name; each item line becomes one orders
// row with quantity 1. Records with an invalid phone are skipped.
func (s *Store) Bootstrap(ctx context.Context, records []orders.OrderRecord) (*BootstrapResult, error) {
	logger := zerolog.Ctx(ctx)
	stats := &BootstrapResult{}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, rec := range records {
		if !orders.ValidPhone(rec.Phone) {
			logger.Warn().Int("order", i).Str("phone", rec.Phone).Msg("Skipping order with invalid phone")
			stats.Skipped++
			continue
		}

		customer, err := s.customerByPhone(ctx, tx, rec.Phone)
		if err != nil {
			return nil, err
		}
		if customer == nil {
			customer, err = s.createCustomer(ctx, tx, Customer{Name: rec.Name, Phone: rec.Phone})
			if err != nil {
				return nil, err
			}
			stats.Customers++
		}

		var ts int64
		if rec.Timestamp != nil {
			ts = *rec.Timestamp
		}

		for _, line := range rec.Items {
			if !line.Complete() {
				continue
			}
			item, err := s.itemByName(ctx, tx, line.Name)
			if err != nil {
				return nil, err
			}
			if item == nil {
				item, err = s.createItem(ctx, tx, Item{Name: line.Name, Price: line.Price.Decimal})
				if err != nil {
					return nil, err
				}
				stats.Items++
			}
			_, err = s.insertOrder(ctx, tx, Order{
				CustomerID: customer.ID,
				ItemID:     item.ID,
				Quantity:   1,
				Timestamp:  ts,
				Notes:      rec.Notes,
			})
			if err != nil {
				return nil, err
			}
			stats.Orders++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bootstrap: %w", err)
	}
	logger.Info().
		Str("driver", string(s.Driver())).
		Int("customers", stats.Customers).
		Int("items", stats.Items).
		Int("orders", stats.Orders).
		Int("skipped", stats.Skipped).
		Msg("Database bootstrapped")
	return stats, nil
}
