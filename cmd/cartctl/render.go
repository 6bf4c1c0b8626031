package main

import (
	"encoding/json"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/urfave/cli/v2"

	"storefront-client/internal/presenter"
)

const maxColWidth = 40

func renderCart(page presenter.CartPage) string {
	var b strings.Builder
	if page.Empty {
		b.WriteString(page.EmptyTitle + "\n" + page.EmptyDetail + "\n\n")
	} else {
		table := uitable.New()
		table.MaxColWidth = maxColWidth
		table.AddRow("ITEM", "PRODUCT", "PRICE", "QTY", "TOTAL")
		for _, row := range page.Rows {
			table.AddRow(row.ItemID, row.Name, row.UnitPrice, row.Quantity, row.LineTotal)
		}
		b.WriteString(table.String() + "\n\n")
	}

	totals := uitable.New()
	totals.AddRow("Subtotal", page.Subtotal)
	totals.AddRow("Shipping", page.Shipping)
	totals.AddRow("Total", page.Total)
	b.WriteString(totals.String() + "\n")
	return b.String()
}

func renderSummary(sum presenter.Summary) string {
	var b strings.Builder
	if len(sum.Lines) > 0 {
		table := uitable.New()
		table.MaxColWidth = maxColWidth
		table.AddRow("PRODUCT", "QTY", "UNIT", "TOTAL")
		for _, line := range sum.Lines {
			table.AddRow(line.Name, line.Quantity, line.UnitPrice, line.LineTotal)
		}
		b.WriteString(table.String() + "\n\n")
	}
	totals := uitable.New()
	totals.AddRow("Subtotal", sum.Subtotal)
	totals.AddRow("Shipping", sum.Shipping)
	totals.AddRow("Total", sum.Total)
	b.WriteString(totals.String() + "\n")
	return b.String()
}

func printJSON(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
