package promotion

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/modest-storefront/internal/pricing"
)

var (
	ErrNotActive         = errors.New("promotion is not active")
	ErrMinimumNotMet     = errors.New("minimum purchase amount not reached")
	ErrUsageLimitReached = errors.New("promotion usage limit reached")
	ErrNotApplicable     = errors.New("promotion does not apply to this cart")
)

var hundred = decimal.NewFromInt(100)

// Discount returns the amount p takes off a cart, always within [0, subtotal]
// and rounded to cents. Validity of p is the caller's concern.
func Discount(p *Promotion, subtotal decimal.Decimal, lines []pricing.Line) decimal.Decimal {
	if p == nil || !subtotal.IsPositive() {
		return decimal.Zero
	}
	if p.MinPurchase != nil && subtotal.LessThan(*p.MinPurchase) {
		return decimal.Zero
	}
	if p.UsageExhausted() {
		return decimal.Zero
	}

	eligible := eligibleAmount(p, subtotal, lines)
	if !eligible.IsPositive() {
		return decimal.Zero
	}

	var discount decimal.Decimal
	switch p.DiscountType {
	case DiscountPercentage:
		discount = eligible.Mul(p.DiscountValue).Div(hundred)
	default:
		discount = p.DiscountValue
	}

	if p.MaxDiscount != nil && discount.GreaterThan(*p.MaxDiscount) {
		discount = *p.MaxDiscount
	}

	// Round first, then cap at the largest cent amount not above subtotal.
	discount = pricing.Round(discount)
	if ceiling := subtotal.Truncate(2); discount.GreaterThan(ceiling) {
		discount = ceiling
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount
}

func eligibleAmount(p *Promotion, subtotal decimal.Decimal, lines []pricing.Line) decimal.Decimal {
	switch {
	case p.restrictsCategories():
		sum := decimal.Zero
		for _, l := range lines {
			if p.allowsCategory(l.Category) {
				sum = sum.Add(l.Gross())
			}
		}
		return sum
	case p.restrictsProducts():
		sum := decimal.Zero
		for _, l := range lines {
			if p.allowsProduct(l.ProductID) {
				sum = sum.Add(l.Gross())
			}
		}
		return sum
	default:
		return subtotal
	}
}

// BestAutomatic picks, among the automatic promotions valid at now, the one
// giving the largest discount. Ties keep the first one evaluated. It returns a
// nil promotion when nothing yields a positive discount.
func BestAutomatic(promos []Promotion, subtotal decimal.Decimal, lines []pricing.Line, now time.Time) (*Promotion, decimal.Decimal) {
	var (
		best         *Promotion
		bestDiscount = decimal.Zero
	)
	for i := range promos {
		p := &promos[i]
		if !p.IsAutomatic() || !p.IsValidAt(now) {
			continue
		}
		d := Discount(p, subtotal, lines)
		if d.GreaterThan(bestDiscount) {
			best = p
			bestDiscount = d
		}
	}
	return best, bestDiscount
}

// Check explains why a manually entered promotion cannot be used right now.
func Check(p *Promotion, subtotal decimal.Decimal, now time.Time) error {
	if !p.IsValidAt(now) {
		return ErrNotActive
	}
	if p.UsageExhausted() {
		return ErrUsageLimitReached
	}
	if p.MinPurchase != nil && subtotal.LessThan(*p.MinPurchase) {
		return ErrMinimumNotMet
	}
	return nil
}
