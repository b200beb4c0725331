package api

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"dosa-orders/db/sqlstore"
	"dosa-orders/internal/aggregate"
	"dosa-orders/internal/orders"
)

// CustomerRequest is the body of POST and PUT /customers.
type CustomerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (r CustomerRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if !orders.ValidPhone(r.Phone) {
		return errors.New("phone must look like 555-123-4567")
	}
	return nil
}

// CustomerResponse mirrors a customers row.
type CustomerResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func toCustomerResponse(c sqlstore.Customer) CustomerResponse {
	return CustomerResponse{ID: c.ID, Name: c.Name, Phone: c.Phone}
}

// ItemRequest is the body of POST and PUT /items.
type ItemRequest struct {
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price"`
}

func (r ItemRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if r.Price == nil {
		return errors.New("price is required")
	}
	if r.Price.IsNegative() {
		return errors.New("price must not be negative")
	}
	return nil
}

// ItemResponse renders price as a JSON number.
type ItemResponse struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Price json.Number `json:"price"`
}

func toItemResponse(it sqlstore.Item) ItemResponse {
	return ItemResponse{ID: it.ID, Name: it.Name, Price: json.Number(aggregate.FormatPrice(it.Price))}
}

// OrderRequest is the body of POST and PUT /orders.
type OrderRequest struct {
	CustomerID int64   `json:"customer_id"`
	ItemID     int64   `json:"item_id"`
	Quantity   *int    `json:"quantity"`
	Timestamp  *int64  `json:"timestamp"`
	Notes      *string `json:"notes"`
}

func (r OrderRequest) validate() error {
	if r.CustomerID <= 0 {
		return errors.New("customer_id is required")
	}
	if r.ItemID <= 0 {
		return errors.New("item_id is required")
	}
	if r.Quantity == nil || *r.Quantity < 1 {
		return errors.New("quantity must be at least 1")
	}
	if r.Timestamp == nil || *r.Timestamp < 0 {
		return errors.New("timestamp is required")
	}
	return nil
}

func (r OrderRequest) toOrder(id int64) sqlstore.Order {
	return sqlstore.Order{
		ID:         id,
		CustomerID: r.CustomerID,
		ItemID:     r.ItemID,
		Quantity:   *r.Quantity,
		Timestamp:  *r.Timestamp,
		Notes:      r.Notes,
	}
}

// OrderResponse mirrors an orders row; notes is null when absent.
type OrderResponse struct {
	ID         int64   `json:"id"`
	CustomerID int64   `json:"customer_id"`
	ItemID     int64   `json:"item_id"`
	Quantity   int     `json:"quantity"`
	Timestamp  int64   `json:"timestamp"`
	Notes      *string `json:"notes"`
}

func toOrderResponse(o sqlstore.Order) OrderResponse {
	return OrderResponse{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		ItemID:     o.ItemID,
		Quantity:   o.Quantity,
		Timestamp:  o.Timestamp,
		Notes:      o.Notes,
	}
}

// AggregateResponse is the result of POST /api/v1/aggregate.
type AggregateResponse struct {
	Orders    int                      `json:"orders"`
	Customers *aggregate.CustomerIndex `json:"customers"`
	Items     *aggregate.ItemIndex     `json:"items"`
}

// MessageResponse acknowledges a delete.
type MessageResponse struct {
	Message string `json:"message"`
}
