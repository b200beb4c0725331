package aggregate

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dosa-orders/internal/orders"
)

func line(name, price string) orders.ItemLine {
	return orders.NewItemLine(name, decimal.RequireFromString(price))
}

func TestExtractCustomersLastNameWins(t *testing.T) {
	records := []orders.OrderRecord{
		{Name: "Alice", Phone: "555-123-4567"},
		{Name: "Bob", Phone: "555-987-6543"},
		{Name: "Alicia", Phone: "555-123-4567"},
	}
	idx := ExtractCustomers(records)

	assert.Equal(t, []string{"555-123-4567", "555-987-6543"}, idx.Phones())
	name, ok := idx.Get("555-123-4567")
	require.True(t, ok)
	assert.Equal(t, "Alicia", name)
}

func TestExtractCustomersSkipsInvalid(t *testing.T) {
	records := []orders.OrderRecord{
		{Name: "NoDash", Phone: "5551234567"},
		{Name: "Letters", Phone: "555-abc-4567"},
		{Name: "", Phone: "555-000-0000"},
		{Name: "NoPhone"},
		{Name: "Padded", Phone: " 555-000-0001"},
		{Name: "Ok", Phone: "555-000-0002"},
	}
	idx := ExtractCustomers(records)
	assert.Equal(t, []string{"555-000-0002"}, idx.Phones())
}

func TestAggregateItemsPerLine(t *testing.T) {
	records := []orders.OrderRecord{
		{Name: "A", Items: []orders.ItemLine{line("Dosa", "10"), line("Dosa", "10"), line("Coffee", "2.5")}},
		{Name: "B", Items: []orders.ItemLine{line("Dosa", "11")}},
	}
	idx := AggregateItems(records, DefaultOptions())

	assert.Equal(t, []string{"Dosa", "Coffee"}, idx.Names())
	dosa, _ := idx.Get("Dosa")
	assert.Equal(t, 3, dosa.Orders)
	assert.True(t, dosa.Price.Equal(decimal.NewFromInt(11)))
	assert.Equal(t, 4, idx.TotalOrders())
}

func TestAggregateItemsPerOrder(t *testing.T) {
	records := []orders.OrderRecord{
		{Name: "A", Items: []orders.ItemLine{line("Dosa", "10"), line("Dosa", "10")}},
		{Name: "B", Items: []orders.ItemLine{line("Dosa", "10")}},
	}
	idx := AggregateItems(records, Options{Count: CountPerOrder})
	dosa, _ := idx.Get("Dosa")
	assert.Equal(t, 2, dosa.Orders)
}

func TestAggregateItemsFirstSeenPrice(t *testing.T) {
	records := []orders.OrderRecord{
		{Name: "A", Items: []orders.ItemLine{line("Dosa", "10")}},
		{Name: "B", Items: []orders.ItemLine{line("Dosa", "12.5")}},
	}
	first, _ := AggregateItems(records, Options{Price: PriceFirstSeen}).Get("Dosa")
	last, _ := AggregateItems(records, Options{Price: PriceLastSeen}).Get("Dosa")
	assert.Equal(t, "10", first.Price.String())
	assert.Equal(t, "12.5", last.Price.String())
}

func TestAggregateItemsSkipsIncompleteLines(t *testing.T) {
	records := []orders.OrderRecord{
		{Name: "A", Items: []orders.ItemLine{
			{Name: "NoPrice"},
			{Price: decimal.NewNullDecimal(decimal.NewFromInt(3))},
			line("Vada", "4"),
		}},
	}
	idx := AggregateItems(records, DefaultOptions())
	assert.Equal(t, []string{"Vada"}, idx.Names())
}

func TestParsePolicies(t *testing.T) {
	c, err := ParseCountPolicy("")
	require.NoError(t, err)
	assert.Equal(t, CountPerLine, c)
	c, err = ParseCountPolicy("order")
	require.NoError(t, err)
	assert.Equal(t, CountPerOrder, c)
	_, err = ParseCountPolicy("weekly")
	assert.Error(t, err)

	p, err := ParsePricePolicy("first")
	require.NoError(t, err)
	assert.Equal(t, PriceFirstSeen, p)
	_, err = ParsePricePolicy("average")
	assert.Error(t, err)
}

func TestFormatPrice(t *testing.T) {
	tests := map[string]string{
		"10":     "10.0",
		"12.50":  "12.5",
		"0":      "0.0",
		"3.99":   "3.99",
		"-2":     "-2.0",
		"100.00": "100.0",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatPrice(decimal.RequireFromString(in)), in)
	}
}

func TestIndexesMarshalInKeyOrder(t *testing.T) {
	records := []orders.OrderRecord{
		{Name: "Zed", Phone: "555-000-0009", Items: []orders.ItemLine{line("Tea & Coffee", "2")}},
		{Name: "Amy", Phone: "555-000-0001", Items: []orders.ItemLine{line("<Idli>", "5.25")}},
	}

	customers, err := json.Marshal(ExtractCustomers(records))
	require.NoError(t, err)
	assert.Equal(t, `{"555-000-0009":"Zed","555-000-0001":"Amy"}`, string(customers))

	items, err := itemsJSON(records)
	require.NoError(t, err)
	assert.Equal(t, `{"Tea & Coffee":{"price":2.0,"orders":1},"<Idli>":{"price":5.25,"orders":1}}`, items)

	empty, err := json.Marshal(NewItemIndex())
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(empty))
}

// itemsJSON calls MarshalJSON directly; json.Marshal would escape the HTML
// characters in the keys.
func itemsJSON(records []orders.OrderRecord) (string, error) {
	b, err := AggregateItems(records, DefaultOptions()).MarshalJSON()
	return string(b), err
}
