package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const orderColumns = `id, customer_id, item_id, quantity, "timestamp", notes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (*Order, error) {
	var (
		o     Order
		notes sql.NullString
	)
	if err := r.Scan(&o.ID, &o.CustomerID, &o.ItemID, &o.Quantity, &o.Timestamp, &notes); err != nil {
		return nil, err
	}
	if notes.Valid {
		o.Notes = &notes.String
	}
	return &o, nil
}

// checkRefs reports ErrInvalid when the customer or item does not exist.
func (s *Store) checkRefs(ctx context.Context, q querier, o Order) error {
	if _, err := s.getCustomer(ctx, q, o.CustomerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: customer %d does not exist", ErrInvalid, o.CustomerID)
		}
		return err
	}
	if _, err := s.getItem(ctx, q, o.ItemID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: item %d does not exist", ErrInvalid, o.ItemID)
		}
		return err
	}
	return nil
}

// CreateOrder inserts an order after checking that both references exist.
func (s *Store) CreateOrder(ctx context.Context, o Order) (*Order, error) {
	if err := s.checkRefs(ctx, s.db, o); err != nil {
		return nil, err
	}
	return s.insertOrder(ctx, s.db, o)
}

func (s *Store) insertOrder(ctx context.Context, q querier, o Order) (*Order, error) {
	err := q.QueryRowContext(ctx,
		s.rebind(`INSERT INTO orders (customer_id, item_id, quantity, "timestamp", notes)
			VALUES (?, ?, ?, ?, ?) RETURNING id`),
		o.CustomerID, o.ItemID, o.Quantity, o.Timestamp, o.Notes,
	).Scan(&o.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}
	return &o, nil
}

// GetOrder returns the order with id or ErrNotFound.
func (s *Store) GetOrder(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+orderColumns+` FROM orders WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	return o, nil
}

// ListOrders returns all orders ordered by id.
func (s *Store) ListOrders(ctx context.Context) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// UpdateOrder replaces every column of an existing order.
func (s *Store) UpdateOrder(ctx context.Context, o Order) (*Order, error) {
	if _, err := s.GetOrder(ctx, o.ID); err != nil {
		return nil, err
	}
	if err := s.checkRefs(ctx, s.db, o); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE orders SET customer_id = ?, item_id = ?, quantity = ?, "timestamp" = ?, notes = ?
			WHERE id = ?`),
		o.CustomerID, o.ItemID, o.Quantity, o.Timestamp, o.Notes, o.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	return &o, nil
}

// DeleteOrder removes an order.
func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	if _, err := s.GetOrder(ctx, id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM orders WHERE id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}
