package sqlstore

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Store errors, matched with errors.Is.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	ErrInUse    = errors.New("still referenced by orders")
	ErrInvalid  = errors.New("invalid reference")
)

// Customer is a row of the customers table.
type Customer struct {
	ID    int64
	Name  string
	Phone string
}

// Item is a row of the items table.
type Item struct {
	ID    int64
	Name  string
	Price decimal.Decimal
}

// Order is a row of the orders table: one item for one customer.
type Order struct {
	ID         int64
	CustomerID int64
	ItemID     int64
	Quantity   int
	Timestamp  int64
	Notes      *string
}
