package aggregate

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"dosa-orders/internal/orders"
)

var (
	samplePhones = []string{"555-123-4567", "555-987-6543", "5551234567", "", "555-12-34567", "555-000-0000"}
	sampleNames  = []string{"Alice", "Bob", "", "Chandra"}
	sampleItems  = []string{"Masala Dosa", "Idli", "Vada", "", "Filter Coffee"}
)

// recordsFromSeeds expands each seed into one order deterministically so
// gopter only has to generate and shrink plain integers.
func recordsFromSeeds(seeds []int) []orders.OrderRecord {
	records := make([]orders.OrderRecord, 0, len(seeds))
	for _, s := range seeds {
		rec := orders.OrderRecord{
			Phone: samplePhones[s%len(samplePhones)],
			Name:  sampleNames[(s/7)%len(sampleNames)],
		}
		n := (s / 11) % 5
		for j := 0; j < n; j++ {
			k := s/(13+j) + j
			it := orders.ItemLine{Name: sampleItems[k%len(sampleItems)]}
			if k%6 != 0 {
				it.Price = decimal.NewNullDecimal(decimal.New(int64(k%2000), -2))
			}
			rec.Items = append(rec.Items, it)
		}
		records = append(records, rec)
	}
	return records
}

func TestCustomerIndex_PropertyBased(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("keys are exactly the valid phones with a name", prop.ForAll(
		func(seeds []int) bool {
			records := recordsFromSeeds(seeds)
			want := map[string]string{}
			for _, r := range records {
				if r.Name != "" && orders.ValidPhone(r.Phone) {
					want[r.Phone] = r.Name
				}
			}
			idx := ExtractCustomers(records)
			if idx.Len() != len(want) {
				return false
			}
			for phone, name := range want {
				got, ok := idx.Get(phone)
				if !ok || got != name {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100000)),
	))

	properties.TestingRun(t)
}

func TestItemIndex_PropertyBased(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("per-line orders sum to the number of complete lines", prop.ForAll(
		func(seeds []int) bool {
			records := recordsFromSeeds(seeds)
			complete := 0
			for _, r := range records {
				for _, l := range r.Items {
					if l.Complete() {
						complete++
					}
				}
			}
			return AggregateItems(records, DefaultOptions()).TotalOrders() == complete
		},
		gen.SliceOf(gen.IntRange(0, 100000)),
	))

	properties.Property("per-order counts never exceed per-line counts", prop.ForAll(
		func(seeds []int) bool {
			records := recordsFromSeeds(seeds)
			perLine := AggregateItems(records, Options{Count: CountPerLine})
			perOrder := AggregateItems(records, Options{Count: CountPerOrder})
			if perLine.Len() != perOrder.Len() {
				return false
			}
			for _, name := range perLine.Names() {
				a, _ := perLine.Get(name)
				b, _ := perOrder.Get(name)
				if b.Orders > a.Orders || b.Orders < 1 || !a.Price.Equal(b.Price) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100000)),
	))

	properties.Property("aggregation is deterministic", prop.ForAll(
		func(seeds []int) bool {
			records := recordsFromSeeds(seeds)
			a, errA := AggregateItems(records, DefaultOptions()).MarshalJSON()
			b, errB := AggregateItems(records, DefaultOptions()).MarshalJSON()
			return errA == nil && errB == nil && string(a) == string(b)
		},
		gen.SliceOf(gen.IntRange(0, 100000)),
	))

	properties.TestingRun(t)
}
