// Package payment talks to the hosted card checkout. The storefront creates
// a checkout for an order total, redirects the customer to the hosted page,
// then polls the checkout status to learn whether it was paid.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusFailed  Status = "FAILED"
	StatusExpired Status = "EXPIRED"
)

type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Outcome maps a provider status onto the storefront's checkout states.
// Unknown statuses are treated as still pending.
func (s Status) Outcome() Outcome {
	switch Status(strings.ToUpper(string(s))) {
	case StatusPaid:
		return OutcomeSuccess
	case StatusFailed, StatusExpired:
		return OutcomeFailed
	default:
		return OutcomePending
	}
}

type CheckoutRequest struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	Description string
	ReturnURL   string
}

type Checkout struct {
	ID            string
	Reference     string
	Amount        decimal.Decimal
	Currency      string
	Status        Status
	RedirectURL   string
	TransactionID string
}

type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	GetCheckout(ctx context.Context, id string) (*Checkout, error)
}

var ErrCheckoutNotFound = errors.New("payment checkout not found")

// APIError is a non-2xx answer from the payment provider.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment api error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("payment api error (%d): %s", e.StatusCode, e.Message)
}
