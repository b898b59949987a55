package promotion

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/modest-storefront/internal/catalog"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// Promotion is a storewide or targeted discount. A promotion without a code is
// automatic: it is applied without any customer action.
type Promotion struct {
	ID            uuid.UUID          `json:"id"`
	Name          string             `json:"name"`
	Code          *string            `json:"code,omitempty"`
	DiscountType  DiscountType       `json:"discount_type"`
	DiscountValue decimal.Decimal    `json:"discount_value"`
	StartsAt      time.Time          `json:"starts_at"`
	EndsAt        time.Time          `json:"ends_at"`
	IsActive      bool               `json:"is_active"`
	MinPurchase   *decimal.Decimal   `json:"min_purchase,omitempty"`
	MaxDiscount   *decimal.Decimal   `json:"max_discount,omitempty"`
	Categories    []catalog.Category `json:"categories"`
	ProductIDs    []uuid.UUID        `json:"product_ids"`
	UsageLimit    *int               `json:"usage_limit,omitempty"`
	UsageCount    int                `json:"usage_count"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func (p *Promotion) IsAutomatic() bool {
	return p.Code == nil || *p.Code == ""
}

// IsValidAt reports whether the promotion is active and now lies in [StartsAt, EndsAt].
func (p *Promotion) IsValidAt(now time.Time) bool {
	return p.IsActive && !now.Before(p.StartsAt) && !now.After(p.EndsAt)
}

func (p *Promotion) UsageExhausted() bool {
	return p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit
}

func (p *Promotion) CodeValue() string {
	if p.Code == nil {
		return ""
	}
	return *p.Code
}

func (p *Promotion) restrictsCategories() bool {
	return len(p.Categories) > 0
}

func (p *Promotion) restrictsProducts() bool {
	return len(p.ProductIDs) > 0
}

func (p *Promotion) allowsCategory(c catalog.Category) bool {
	for _, allowed := range p.Categories {
		if allowed == c {
			return true
		}
	}
	return false
}

func (p *Promotion) allowsProduct(id uuid.UUID) bool {
	for _, allowed := range p.ProductIDs {
		if allowed == id {
			return true
		}
	}
	return false
}
