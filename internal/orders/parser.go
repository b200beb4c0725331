package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/shopspring/decimal"

	apperrors "dosa-orders/pkg/errors"
)

// rawOrder mirrors one JSON array element. Pointer fields distinguish
// "absent" from "zero" so validation can name the missing key.
type rawOrder struct {
	Name      *string    `json:"name"`
	Phone     *string    `json:"phone"`
	Notes     *string    `json:"notes"`
	Timestamp *int64     `json:"timestamp"`
	Items     *[]rawItem `json:"items"`
}

type rawItem struct {
	Name  *string             `json:"name"`
	Price decimal.NullDecimal `json:"price"`
}

// Parser decodes order documents.
type Parser struct {
	// Strict additionally rejects malformed phones and negative prices.
	Strict bool
}

// NewParser creates a new non-strict order parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile parses an orders JSON file.
func (p *Parser) ParseFile(path string) ([]OrderRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError(path, err)
		}
		return nil, apperrors.NewIOError(path, "failed to open orders file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.NewIOError(path, "failed to read orders file", err)
	}
	return p.parse(path, data)
}

// Parse parses orders JSON from a reader.
func (p *Parser) Parse(r io.Reader) ([]OrderRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewIOError("", "failed to read orders", err)
	}
	return p.parse("", data)
}

// ParseBytes parses orders JSON from bytes.
func (p *Parser) ParseBytes(data []byte) ([]OrderRecord, error) {
	return p.parse("", data)
}

func (p *Parser) parse(path string, data []byte) ([]OrderRecord, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, apperrors.NewMalformedInputError(path, "failed to decode orders JSON array", err)
	}
	if elems == nil {
		return nil, apperrors.NewMalformedInputError(path, "orders document must be a JSON array", nil)
	}

	records := make([]OrderRecord, 0, len(elems))
	for i, elem := range elems {
		var raw rawOrder
		if err := json.Unmarshal(elem, &raw); err != nil {
			return nil, apperrors.NewMalformedInputError(path, fmt.Sprintf("order %d is not a valid order object", i), err)
		}
		rec, err := p.transform(i, &raw)
		if err != nil {
			return nil, apperrors.NewMalformedInputError(path, err.Error(), nil)
		}
		records = append(records, rec)
	}
	return records, nil
}

// transform validates a raw order and converts it to the domain record.
func (p *Parser) transform(i int, raw *rawOrder) (OrderRecord, error) {
	if raw.Name == nil {
		return OrderRecord{}, fmt.Errorf("order %d: missing required field %q", i, "name")
	}
	if raw.Items == nil {
		return OrderRecord{}, fmt.Errorf("order %d: missing required field %q", i, "items")
	}

	rec := OrderRecord{
		Name:      *raw.Name,
		Notes:     raw.Notes,
		Timestamp: raw.Timestamp,
		Items:     make([]ItemLine, 0, len(*raw.Items)),
	}
	if raw.Phone != nil {
		rec.Phone = *raw.Phone
	}
	if p.Strict && !ValidPhone(rec.Phone) {
		return OrderRecord{}, fmt.Errorf("order %d: phone %q does not match ddd-ddd-dddd", i, rec.Phone)
	}

	for j, it := range *raw.Items {
		if it.Name == nil {
			return OrderRecord{}, fmt.Errorf("order %d item %d: missing required field %q", i, j, "name")
		}
		if !it.Price.Valid {
			return OrderRecord{}, fmt.Errorf("order %d item %d: missing required field %q", i, j, "price")
		}
		if p.Strict && it.Price.Decimal.IsNegative() {
			return OrderRecord{}, fmt.Errorf("order %d item %d: negative price %s", i, j, it.Price.Decimal)
		}
		rec.Items = append(rec.Items, ItemLine{Name: *it.Name, Price: it.Price})
	}
	return rec, nil
}
