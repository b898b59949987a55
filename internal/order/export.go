package order

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
)

const exportTimeLayout = "2006-01-02 15:04:05"

var exportHeaders = []string{
	"Reference", "Date", "Customer", "Email", "Phone", "Address", "City", "Postal code", "Country",
	"Items", "Subtotal", "Discount", "Promotion code", "Shipping", "Total",
	"Status", "Payment method", "Payment status", "Tracking number",
}

// ExportXLSX writes one row per order to w as an Excel workbook.
func ExportXLSX(w io.Writer, orders []Order) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return fmt.Errorf("failed to create orders sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetValue(h)
	}

	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetValue(o.Reference)
		row.AddCell().SetValue(o.CreatedAt.Format(exportTimeLayout))
		row.AddCell().SetValue(o.Customer.Name)
		row.AddCell().SetValue(o.Customer.Email)
		row.AddCell().SetValue(o.Customer.Phone)
		row.AddCell().SetValue(strings.TrimSpace(o.ShippingAddress.Line1 + " " + o.ShippingAddress.Line2))
		row.AddCell().SetValue(o.ShippingAddress.City)
		row.AddCell().SetValue(o.ShippingAddress.PostalCode)
		row.AddCell().SetValue(o.ShippingAddress.Country)
		row.AddCell().SetValue(itemsSummary(o.Items))
		addAmount(row, o.Subtotal)
		addAmount(row, o.DiscountAmount)
		row.AddCell().SetValue(o.PromotionCode)
		addAmount(row, o.ShippingCost)
		addAmount(row, o.Total)
		row.AddCell().SetValue(o.Status.String())
		row.AddCell().SetValue(string(o.PaymentMethod))
		row.AddCell().SetValue(o.PaymentStatus.String())
		row.AddCell().SetValue(o.TrackingNumber)
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write orders workbook: %w", err)
	}
	return nil
}

// addAmount writes d as a numeric cell whose stored value is the exact
// decimal text rather than a float rendering.
func addAmount(row *xlsx.Row, d decimal.Decimal) {
	cell := row.AddCell()
	cell.SetFloatWithFormat(d.InexactFloat64(), "0.00")
	cell.Value = d.StringFixed(2)
}

func itemsSummary(items []Item) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%dx %s (%s/%s)", it.Quantity, it.ProductName, it.Color, it.Size))
	}
	return strings.Join(parts, "; ")
}
