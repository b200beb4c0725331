// Package orders parses customer order documents into typed records.
// All order inputs, from files or the HTTP API, flow through here.
package orders

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// phonePattern is the only accepted customer phone layout: ddd-ddd-dddd.
var phonePattern = regexp.MustCompile(`^\d{3}-\d{3}-\d{4}$`)

// ValidPhone reports whether phone matches ddd-ddd-dddd exactly.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// OrderRecord is one customer transaction.
type OrderRecord struct {
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Notes     *string    `json:"notes"`
	Timestamp *int64     `json:"timestamp,omitempty"`
	Items     []ItemLine `json:"items"`
}

// ItemLine is a single {name, price} pair within an order.
// A zero-valued Price (Valid == false) marks the price as missing.
type ItemLine struct {
	Name  string              `json:"name"`
	Price decimal.NullDecimal `json:"price"`
}

// NewItemLine builds a line with a present price.
func NewItemLine(name string, price decimal.Decimal) ItemLine {
	return ItemLine{Name: name, Price: decimal.NewNullDecimal(price)}
}

// Complete reports whether the line has both a name and a price.
func (l ItemLine) Complete() bool {
	return l.Name != "" && l.Price.Valid
}

// NoteText returns the order notes or "" when absent.
func (o OrderRecord) NoteText() string {
	if o.Notes == nil {
		return ""
	}
	return *o.Notes
}
