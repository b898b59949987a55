package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/modest-storefront/internal/pricing"
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusProcessing: true,
		StatusCancelled:  true,
		StatusRefunded:   true,
	},
	StatusProcessing: {
		StatusShipped:   true,
		StatusCancelled: true,
		StatusRefunded:  true,
	},
	StatusShipped: {
		StatusDelivered: true,
		StatusRefunded:  true,
	},
	StatusDelivered: {
		StatusRefunded: true,
	},
	StatusCancelled: {},
	StatusRefunded:  {},
}

var allowedPaymentTransitions = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending: {
		PaymentPaid:      true,
		PaymentFailed:    true,
		PaymentCancelled: true,
	},
	PaymentFailed: {
		PaymentPaid:      true,
		PaymentCancelled: true,
	},
	PaymentPaid: {
		PaymentRefunded: true,
	},
	PaymentRefunded:  {},
	PaymentCancelled: {},
}

var (
	ErrValidation              = errors.New("validation failed")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
)

type Service interface {
	CreateOrder(ctx context.Context, o *Order) (*Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrderByReference(ctx context.Context, reference string) (*Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Order, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) (*Order, error)
	SetTracking(ctx context.Context, id uuid.UUID, trackingNumber string) (*Order, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// CreateOrder recomputes subtotal and total from the item snapshots before
// persisting, so a stored order always satisfies
// total = subtotal - discount + shipping.
func (s *service) CreateOrder(ctx context.Context, o *Order) (*Order, error) {
	if len(o.Items) == 0 {
		log.Warn().Msg("service: attempt to create order with no items")
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	}
	if !o.PaymentMethod.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, o.PaymentMethod)
	}

	subtotal := decimal.Zero
	for i := range o.Items {
		item := &o.Items[i]
		if item.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: product id in order item cannot be nil", ErrValidation)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for product %s must be greater than zero", ErrValidation, item.ProductID)
		}
		if item.UnitPrice.IsNegative() || item.LineTotal.IsNegative() {
			return nil, fmt.Errorf("%w: amounts for product %s cannot be negative", ErrValidation, item.ProductID)
		}
		item.ID = uuid.Nil
		subtotal = subtotal.Add(item.LineTotal)
	}

	o.Subtotal = pricing.Round(subtotal)
	if o.DiscountAmount.IsNegative() || o.DiscountAmount.GreaterThan(o.Subtotal) {
		return nil, fmt.Errorf("%w: discount must be within [0, subtotal]", ErrValidation)
	}
	if o.ShippingCost.IsNegative() {
		return nil, fmt.Errorf("%w: shipping cost cannot be negative", ErrValidation)
	}
	o.Total = pricing.Round(o.Subtotal.Sub(o.DiscountAmount).Add(o.ShippingCost))

	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = PaymentPending
	}
	if o.Reference == "" {
		ref, err := NewReference(time.Now())
		if err != nil {
			return nil, err
		}
		o.Reference = ref
	}
	o.ID = uuid.Nil

	if err := s.repo.Create(ctx, o); err != nil {
		log.Error().Err(err).Str("order_ref", o.Reference).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	log.Info().
		Stringer("order_id", o.ID).
		Str("order_ref", o.Reference).
		Str("payment_method", string(o.PaymentMethod)).
		Str("total", o.Total.StringFixed(2)).
		Msg("service: order created")
	return o, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

func (s *service) GetOrderByReference(ctx context.Context, reference string) (*Order, error) {
	reference = strings.ToUpper(strings.TrimSpace(reference))
	o, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Str("order_ref", reference).Msg("service: failed to fetch order by reference")
		return nil, fmt.Errorf("service: failed to fetch order by reference: %w", err)
	}
	return o, nil
}

func (s *service) ListOrders(ctx context.Context, f ListFilter) ([]Order, error) {
	orders, err := s.repo.List(ctx, f)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus Status) (*Order, error) {
	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.Status == newStatus {
		log.Info().Stringer("order_id", id).Stringer("status", newStatus).Msg("service: order status is already the same, no update needed")
		return current, nil
	}

	transitions, ok := allowedTransitions[current.Status]
	if !ok || !transitions[newStatus] {
		log.Warn().
			Stringer("order_id", id).
			Stringer("current_status", current.Status).
			Stringer("new_status", newStatus).
			Msg("service: invalid status transition attempt")
		return nil, fmt.Errorf("%w: from %s to %s", ErrInvalidStatusTransition, current.Status, newStatus)
	}

	if err := s.repo.UpdateStatus(ctx, id, newStatus, time.Now()); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", id).Stringer("new_status", newStatus).Msg("service: failed to update order status in repository")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}

	log.Info().Stringer("order_id", id).Stringer("old_status", current.Status).Stringer("new_status", newStatus).Msg("service: order status updated")
	return s.GetOrder(ctx, id)
}

func (s *service) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, newStatus PaymentStatus) (*Order, error) {
	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.PaymentStatus == newStatus {
		return current, nil
	}

	transitions, ok := allowedPaymentTransitions[current.PaymentStatus]
	if !ok || !transitions[newStatus] {
		log.Warn().
			Stringer("order_id", id).
			Stringer("current_payment_status", current.PaymentStatus).
			Stringer("new_payment_status", newStatus).
			Msg("service: invalid payment status transition attempt")
		return nil, fmt.Errorf("%w: payment from %s to %s", ErrInvalidStatusTransition, current.PaymentStatus, newStatus)
	}

	if err := s.repo.UpdatePaymentStatus(ctx, id, newStatus); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to update payment status: %w", err)
	}

	log.Info().Stringer("order_id", id).Stringer("payment_status", newStatus).Msg("service: payment status updated")
	return s.GetOrder(ctx, id)
}

func (s *service) SetTracking(ctx context.Context, id uuid.UUID, trackingNumber string) (*Order, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, fmt.Errorf("%w: tracking number is required", ErrValidation)
	}

	if err := s.repo.UpdateTracking(ctx, id, trackingNumber); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to set tracking number: %w", err)
	}
	return s.GetOrder(ctx, id)
}
