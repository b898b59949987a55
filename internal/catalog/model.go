package catalog

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryHijabWrapping  Category = "hijab-wrapping"
	CategoryRobeDress      Category = "robe-dress"
	CategoryCoordinatedSet Category = "coordinated-set"
	CategoryGiftBox        Category = "gift-box"
)

func (c Category) String() string {
	return string(c)
}

func (c Category) Valid() bool {
	switch c {
	case CategoryHijabWrapping, CategoryRobeDress, CategoryCoordinatedSet, CategoryGiftBox:
		return true
	}
	return false
}

// Product is the normalized catalog record. Name/Description hold the default
// (French) copy, the EN/AR fields are optional translations.
type Product struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	NameEN        string           `json:"name_en,omitempty"`
	NameAR        string           `json:"name_ar,omitempty"`
	Description   string           `json:"description,omitempty"`
	DescriptionEN string           `json:"description_en,omitempty"`
	DescriptionAR string           `json:"description_ar,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	Category      Category         `json:"category"`
	Subcategory   string           `json:"subcategory,omitempty"`
	Images        []string         `json:"images"`
	Colors        []string         `json:"colors"`
	Sizes         []string         `json:"sizes"`
	InStock       bool             `json:"in_stock"`
	IsNew         bool             `json:"is_new"`
	IsBestSeller  bool             `json:"is_best_seller"`
	IsOnSale      bool             `json:"is_on_sale"`
	Rating        decimal.Decimal  `json:"rating"`
	ReviewCount   int              `json:"review_count"`
	Tags          []string         `json:"tags"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (p *Product) Purchasable() bool {
	return p.InStock && len(p.Colors) > 0 && len(p.Sizes) > 0
}

func (p *Product) HasVariant(color, size string) bool {
	return contains(p.Colors, color) && contains(p.Sizes, size)
}

func (p *Product) LocalizedName(lang string) string {
	switch lang {
	case "en":
		if p.NameEN != "" {
			return p.NameEN
		}
	case "ar":
		if p.NameAR != "" {
			return p.NameAR
		}
	}
	return p.Name
}

// MainImage returns the first image, used for order line snapshots.
func (p *Product) MainImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

type CategoryInfo struct {
	Slug      Category  `json:"slug" db:"slug"`
	Name      string    `json:"name" db:"name"`
	NameEN    string    `json:"name_en,omitempty" db:"name_en"`
	NameAR    string    `json:"name_ar,omitempty" db:"name_ar"`
	ImageURL  string    `json:"image_url,omitempty" db:"image_url"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Subcategory struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Category  Category  `json:"category" db:"category"`
	Name      string    `json:"name" db:"name"`
	NameEN    string    `json:"name_en,omitempty" db:"name_en"`
	NameAR    string    `json:"name_ar,omitempty" db:"name_ar"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type ProductFilter struct {
	Category    Category
	Subcategory string
	Search      string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	InStockOnly bool
	NewOnly     bool
	BestSeller  bool
	OnSaleOnly  bool
	Limit       int
	Offset      int
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
