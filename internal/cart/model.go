package cart

import (
	"errors"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/modest-storefront/internal/catalog"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrItemNotFound    = errors.New("cart item not found")
)

// Key identifies a cart line. Adding the same key twice increments quantity.
type Key struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Color     string    `json:"color" validate:"required"`
	Size      string    `json:"size" validate:"required"`
}

type Item struct {
	Key
	Quantity int `json:"quantity"`
}

// Cart keeps its lines in insertion order.
type Cart struct {
	ID        uuid.UUID `json:"id"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

func New(id uuid.UUID) *Cart {
	return &Cart{ID: id, Items: []Item{}}
}

func (c *Cart) indexOf(key Key) int {
	for i := range c.Items {
		if c.Items[i].Key == key {
			return i
		}
	}
	return -1
}

func (c *Cart) Add(key Key, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if i := c.indexOf(key); i >= 0 {
		c.Items[i].Quantity += quantity
		return nil
	}
	c.Items = append(c.Items, Item{Key: key, Quantity: quantity})
	return nil
}

// SetQuantity replaces the quantity of an existing line.
func (c *Cart) SetQuantity(key Key, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	i := c.indexOf(key)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items[i].Quantity = quantity
	return nil
}

func (c *Cart) Remove(key Key) error {
	i := c.indexOf(key)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return nil
}

func (c *Cart) Clear() {
	c.Items = []Item{}
}

func (c *Cart) TotalQuantity() int {
	total := 0
	for _, it := range c.Items {
		total += it.Quantity
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Line is a priced cart line with the product snapshot it was priced from.
type Line struct {
	Key
	Product   *catalog.Product `json:"product"`
	Quantity  int              `json:"quantity"`
	UnitPrice decimal.Decimal  `json:"unit_price"`
	LineTotal decimal.Decimal  `json:"line_total"`
}

type Summary struct {
	CartID        uuid.UUID       `json:"cart_id"`
	Lines         []Line          `json:"lines"`
	TotalQuantity int             `json:"total_quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}
