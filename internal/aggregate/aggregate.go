package aggregate

import (
	"fmt"

	"dosa-orders/internal/orders"
)

// CountPolicy decides what one increment of ItemStats.Orders means.
type CountPolicy string

const (
	// CountPerLine increments once per item line, repeats within one order included.
	CountPerLine CountPolicy = "line"
	// CountPerOrder increments once per order for each distinct item name.
	CountPerOrder CountPolicy = "order"
)

// PricePolicy decides which price wins when an item appears with several.
type PricePolicy string

const (
	PriceLastSeen  PricePolicy = "last"
	PriceFirstSeen PricePolicy = "first"
)

// ParseCountPolicy validates a policy name.
func ParseCountPolicy(s string) (CountPolicy, error) {
	switch CountPolicy(s) {
	case CountPerLine, CountPerOrder:
		return CountPolicy(s), nil
	case "":
		return CountPerLine, nil
	}
	return "", fmt.Errorf("unknown count policy %q (want %q or %q)", s, CountPerLine, CountPerOrder)
}

// ParsePricePolicy validates a policy name.
func ParsePricePolicy(s string) (PricePolicy, error) {
	switch PricePolicy(s) {
	case PriceLastSeen, PriceFirstSeen:
		return PricePolicy(s), nil
	case "":
		return PriceLastSeen, nil
	}
	return "", fmt.Errorf("unknown price policy %q (want %q or %q)", s, PriceLastSeen, PriceFirstSeen)
}

// Options tunes AggregateItems.
type Options struct {
	Count CountPolicy
	Price PricePolicy
}

// DefaultOptions counts per item line and keeps the last-seen price.
func DefaultOptions() Options {
	return Options{Count: CountPerLine, Price: PriceLastSeen}
}

// ExtractCustomers builds phone -> name from orders with a well-formed phone
// and a non-empty name. Later orders overwrite earlier names for the same phone.
func ExtractCustomers(records []orders.OrderRecord) *CustomerIndex {
	idx := NewCustomerIndex()
	for _, rec := range records {
		if rec.Phone == "" || rec.Name == "" || !orders.ValidPhone(rec.Phone) {
			continue
		}
		idx.Set(rec.Phone, rec.Name)
	}
	return idx
}

// AggregateItems counts orders and tracks the price for every item name.
// Lines without a name or price are skipped.
func AggregateItems(records []orders.OrderRecord, opts Options) *ItemIndex {
	if opts.Count == "" {
		opts.Count = CountPerLine
	}
	if opts.Price == "" {
		opts.Price = PriceLastSeen
	}

	idx := NewItemIndex()
	for _, rec := range records {
		var seen map[string]bool
		if opts.Count == CountPerOrder {
			seen = make(map[string]bool, len(rec.Items))
		}
		for _, line := range rec.Items {
			if !line.Complete() {
				continue
			}
			st, created := idx.entry(line.Name)
			if created || opts.Price == PriceLastSeen {
				st.Price = line.Price.Decimal
			}
			if seen != nil {
				if seen[line.Name] {
					continue
				}
				seen[line.Name] = true
			}
			st.Orders++
		}
	}
	return idx
}
