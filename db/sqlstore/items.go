package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const itemColumns = "id, name, price"

// CreateItem inserts an item.
func (s *Store) CreateItem(ctx context.Context, it Item) (*Item, error) {
	return s.createItem(ctx, s.db, it)
}

func (s *Store) createItem(ctx context.Context, q querier, it Item) (*Item, error) {
	err := q.QueryRowContext(ctx,
		s.rebind(`INSERT INTO items (name, price) VALUES (?, ?) RETURNING id`),
		it.Name, it.Price,
	).Scan(&it.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert item: %w", err)
	}
	return &it, nil
}

// GetItem returns the item with id or ErrNotFound.
func (s *Store) GetItem(ctx context.Context, id int64) (*Item, error) {
	return s.getItem(ctx, s.db, id)
}

func (s *Store) getItem(ctx context.Context, q querier, id int64) (*Item, error) {
	var it Item
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT `+itemColumns+` FROM items WHERE id = ?`), id,
	).Scan(&it.ID, &it.Name, &it.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item: %w", err)
	}
	return &it, nil
}

// itemByName returns the lowest-id item called name, or nil, nil.
func (s *Store) itemByName(ctx context.Context, q querier, name string) (*Item, error) {
	var it Item
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT `+itemColumns+` FROM items WHERE name = ? ORDER BY id LIMIT 1`), name,
	).Scan(&it.ID, &it.Name, &it.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query item by name: %w", err)
	}
	return &it, nil
}

// ListItems returns all items ordered by id.
func (s *Store) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Price); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateItem replaces name and price of an existing item.
func (s *Store) UpdateItem(ctx context.Context, it Item) (*Item, error) {
	if _, err := s.GetItem(ctx, it.ID); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE items SET name = ?, price = ? WHERE id = ?`),
		it.Name, it.Price, it.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return &it, nil
}

// DeleteItem removes an item. Items with orders are ErrInUse.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	if _, err := s.GetItem(ctx, id); err != nil {
		return err
	}
	n, err := s.countOrdersBy(ctx, "item_id", id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: item %d has %d orders", ErrInUse, id, n)
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM items WHERE id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}
