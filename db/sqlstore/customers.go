package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const customerColumns = "id, name, phone"

// CreateCustomer inserts a customer. A taken phone number is ErrConflict.
func (s *Store) CreateCustomer(ctx context.Context, c Customer) (*Customer, error) {
	return s.createCustomer(ctx, s.db, c)
}

func (s *Store) createCustomer(ctx context.Context, q querier, c Customer) (*Customer, error) {
	if existing, err := s.customerByPhone(ctx, q, c.Phone); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, fmt.Errorf("%w: phone %s already registered", ErrConflict, c.Phone)
	}

	err := q.QueryRowContext(ctx,
		s.rebind(`INSERT INTO customers (name, phone) VALUES (?, ?) RETURNING id`),
		c.Name, c.Phone,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: phone %s already registered", ErrConflict, c.Phone)
		}
		return nil, fmt.Errorf("failed to insert customer: %w", err)
	}
	return &c, nil
}

// GetCustomer returns the customer with id or ErrNotFound.
func (s *Store) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	return s.getCustomer(ctx, s.db, id)
}

func (s *Store) getCustomer(ctx context.Context, q querier, id int64) (*Customer, error) {
	var c Customer
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT `+customerColumns+` FROM customers WHERE id = ?`), id,
	).Scan(&c.ID, &c.Name, &c.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: customer %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query customer: %w", err)
	}
	return &c, nil
}

// customerByPhone returns nil, nil when no customer has phone.
func (s *Store) customerByPhone(ctx context.Context, q querier, phone string) (*Customer, error) {
	var c Customer
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT `+customerColumns+` FROM customers WHERE phone = ?`), phone,
	).Scan(&c.ID, &c.Name, &c.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query customer by phone: %w", err)
	}
	return &c, nil
}

// ListCustomers returns all customers ordered by id.
func (s *Store) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	out := []Customer{}
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCustomer replaces name and phone of an existing customer.
func (s *Store) UpdateCustomer(ctx context.Context, c Customer) (*Customer, error) {
	if _, err := s.GetCustomer(ctx, c.ID); err != nil {
		return nil, err
	}
	if other, err := s.customerByPhone(ctx, s.db, c.Phone); err != nil {
		return nil, err
	} else if other != nil && other.ID != c.ID {
		return nil, fmt.Errorf("%w: phone %s already registered", ErrConflict, c.Phone)
	}

	_, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE customers SET name = ?, phone = ? WHERE id = ?`),
		c.Name, c.Phone, c.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: phone %s already registered", ErrConflict, c.Phone)
		}
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}
	return &c, nil
}

// DeleteCustomer removes a customer. Customers with orders are ErrInUse.
func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	if _, err := s.GetCustomer(ctx, id); err != nil {
		return err
	}
	n, err := s.countOrdersBy(ctx, "customer_id", id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: customer %d has %d orders", ErrInUse, id, n)
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM customers WHERE id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return nil
}

func (s *Store) countOrdersBy(ctx context.Context, column string, id int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(*) FROM orders WHERE `+column+` = ?`), id,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
