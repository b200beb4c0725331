// Package aggregate folds parsed orders into the customer and item indexes.
package aggregate

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// CustomerIndex maps phone -> name. Keys keep first-insertion order.
type CustomerIndex struct {
	keys  []string
	names map[string]string
}

// NewCustomerIndex returns an empty index.
func NewCustomerIndex() *CustomerIndex {
	return &CustomerIndex{names: make(map[string]string)}
}

// Set records name for phone, overwriting any previous name in place.
func (c *CustomerIndex) Set(phone, name string) {
	if _, ok := c.names[phone]; !ok {
		c.keys = append(c.keys, phone)
	}
	c.names[phone] = name
}

// Get returns the name stored for phone.
func (c *CustomerIndex) Get(phone string) (string, bool) {
	name, ok := c.names[phone]
	return name, ok
}

// Len returns the number of distinct phones.
func (c *CustomerIndex) Len() int { return len(c.keys) }

// Phones returns the keys in first-seen order.
func (c *CustomerIndex) Phones() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// MarshalJSON writes {"<phone>": "<name>", ...} in first-seen order.
func (c *CustomerIndex) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, phone := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, phone); err != nil {
			return nil, err
		}
		v, err := marshalString(c.names[phone])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ItemStats is the aggregate for one item name.
type ItemStats struct {
	Price  decimal.Decimal
	Orders int
}

// MarshalJSON writes {"price": <number>, "orders": <int>}.
func (s ItemStats) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"price":`)
	buf.WriteString(FormatPrice(s.Price))
	buf.WriteString(`,"orders":`)
	buf.WriteString(strconv.Itoa(s.Orders))
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FormatPrice renders a price as a JSON number with at least one
// fractional digit: 10 -> 10.0, 12.50 -> 12.5.
func FormatPrice(d decimal.Decimal) string {
	if d.Equal(d.Truncate(0)) {
		return d.StringFixed(1)
	}
	return d.String()
}

// ItemIndex maps item name -> stats. Keys keep first-insertion order.
type ItemIndex struct {
	keys  []string
	stats map[string]*ItemStats
}

// NewItemIndex returns an empty index.
func NewItemIndex() *ItemIndex {
	return &ItemIndex{stats: make(map[string]*ItemStats)}
}

func (x *ItemIndex) entry(name string) (*ItemStats, bool) {
	if st, ok := x.stats[name]; ok {
		return st, false
	}
	st := &ItemStats{}
	x.stats[name] = st
	x.keys = append(x.keys, name)
	return st, true
}

// Get returns a copy of the stats for name.
func (x *ItemIndex) Get(name string) (ItemStats, bool) {
	st, ok := x.stats[name]
	if !ok {
		return ItemStats{}, false
	}
	return *st, true
}

// Len returns the number of distinct item names.
func (x *ItemIndex) Len() int { return len(x.keys) }

// Names returns the keys in first-seen order.
func (x *ItemIndex) Names() []string {
	out := make([]string, len(x.keys))
	copy(out, x.keys)
	return out
}

// TotalOrders sums the orders counter across all items.
func (x *ItemIndex) TotalOrders() int {
	total := 0
	for _, st := range x.stats {
		total += st.Orders
	}
	return total
}

// MarshalJSON writes {"<item>": {"price": ..., "orders": ...}, ...} in
// first-seen order.
func (x *ItemIndex) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range x.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, name); err != nil {
			return nil, err
		}
		v, err := x.stats[name].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	k, err := marshalString(key)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	return nil
}

// marshalString encodes s without HTML escaping so names like "Tea & Coffee"
// survive byte-for-byte.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
