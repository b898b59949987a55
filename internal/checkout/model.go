package checkout

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/modest-storefront/internal/cart"
	"github.com/vasiliy-maslov/modest-storefront/internal/order"
	"github.com/vasiliy-maslov/modest-storefront/internal/promotion"
)

// State is the checkout state machine: pending, then success or failed.
type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailed  State = "failed"
)

type Request struct {
	CartID          uuid.UUID      `json:"cart_id" validate:"required"`
	Customer        order.Customer `json:"customer"`
	ShippingAddress order.Address  `json:"shipping_address"`
	PromotionCode   string         `json:"promotion_code,omitempty" validate:"omitempty,max=64"`
	Notes           string         `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// Quote is a priced preview of a cart. Computing it never consumes a
// promotion.
type Quote struct {
	CartID        uuid.UUID            `json:"cart_id"`
	Lines         []cart.Line          `json:"lines"`
	TotalQuantity int                  `json:"total_quantity"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	Promotion     *promotion.Promotion `json:"promotion,omitempty"`
	Automatic     bool                 `json:"automatic_promotion"`
	Discount      decimal.Decimal      `json:"discount"`
	Shipping      decimal.Decimal      `json:"shipping"`
	Total         decimal.Decimal      `json:"total"`
}

// Session ties a hosted checkout to the order draft it pays for. The order
// itself is only persisted once the payment is confirmed.
type Session struct {
	CheckoutID string       `json:"checkout_id"`
	Reference  string       `json:"reference"`
	CartID     uuid.UUID    `json:"cart_id"`
	State      State        `json:"state"`
	Draft      *order.Order `json:"draft"`
	OrderID    *uuid.UUID   `json:"order_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type CardPayment struct {
	CheckoutID  string          `json:"checkout_id"`
	RedirectURL string          `json:"redirect_url"`
	Reference   string          `json:"reference"`
	Total       decimal.Decimal `json:"total"`
	State       State           `json:"state"`
}

type Result struct {
	State State        `json:"state"`
	Order *order.Order `json:"order,omitempty"`
}

type WhatsAppResult struct {
	State   State        `json:"state"`
	Order   *order.Order `json:"order"`
	Message string       `json:"message"`
	Link    string       `json:"link"`
}
