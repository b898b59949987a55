// Package pricing holds the storefront's line pricing rules. LineTotal is the
// only place a line amount is computed: cart summaries, checkout subtotals and
// order line snapshots all go through it.
package pricing

import (
	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/modest-storefront/internal/catalog"
)

// TieredCategory is sold in pairs: every pair costs PairPrice, a leftover
// single unit costs SinglePrice, whatever the product's listed price.
const TieredCategory = catalog.CategoryHijabWrapping

var (
	PairPrice   = decimal.NewFromInt(25)
	SinglePrice = decimal.NewFromInt(13)
)

// LineTotal returns the price of quantity units of a product. Non-positive
// quantities cost nothing.
func LineTotal(category catalog.Category, unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}

	if category == TieredCategory {
		pairs := decimal.NewFromInt(int64(quantity / 2))
		singles := decimal.NewFromInt(int64(quantity % 2))
		return PairPrice.Mul(pairs).Add(SinglePrice.Mul(singles))
	}

	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Line is the pricing view of one cart or order line.
type Line struct {
	ProductID uuid.UUID
	Category  catalog.Category
	UnitPrice decimal.Decimal
	Quantity  int
}

func (l Line) Total() decimal.Decimal {
	return LineTotal(l.Category, l.UnitPrice, l.Quantity)
}

// Gross is the undiscounted unit price times quantity, ignoring pair pricing.
func (l Line) Gross() decimal.Decimal {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return Round(total)
}

// Round rounds to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
