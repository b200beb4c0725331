// Package report renders parsed orders for humans.
package report

import (
	"fmt"
	"io"
	"strings"

	"dosa-orders/internal/orders"
)

// Format selects the report layout.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// Write renders every order to w.
func Write(w io.Writer, records []orders.OrderRecord, format Format) error {
	switch format {
	case FormatText, "":
		return writeText(w, records)
	case FormatMarkdown:
		return writeMarkdown(w, records)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeText(w io.Writer, records []orders.OrderRecord) error {
	var sb strings.Builder
	for _, o := range records {
		fmt.Fprintf(&sb, "Order from %s (%s):\n", o.Name, o.Phone)
		for _, it := range o.Items {
			fmt.Fprintf(&sb, " - %s: $%s\n", it.Name, price(it))
		}
		if notes := o.NoteText(); notes != "" {
			fmt.Fprintf(&sb, " Notes: %s\n", notes)
		}
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeMarkdown(w io.Writer, records []orders.OrderRecord) error {
	var sb strings.Builder
	sb.WriteString("## Orders\n")
	for _, o := range records {
		fmt.Fprintf(&sb, "\n### %s (%s)\n\n", o.Name, o.Phone)
		sb.WriteString("| Item | Price |\n")
		sb.WriteString("|------|-------|\n")
		for _, it := range o.Items {
			fmt.Fprintf(&sb, "| %s | $%s |\n", it.Name, price(it))
		}
		if notes := o.NoteText(); notes != "" {
			fmt.Fprintf(&sb, "\n> %s\n", notes)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func price(it orders.ItemLine) string {
	if !it.Price.Valid {
		return "?"
	}
	return it.Price.Decimal.StringFixed(2)
}
