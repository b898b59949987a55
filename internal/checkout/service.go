package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/modest-storefront/internal/cart"
	"github.com/vasiliy-maslov/modest-storefront/internal/config"
	"github.com/vasiliy-maslov/modest-storefront/internal/messaging"
	"github.com/vasiliy-maslov/modest-storefront/internal/order"
	"github.com/vasiliy-maslov/modest-storefront/internal/payment"
	"github.com/vasiliy-maslov/modest-storefront/internal/pricing"
	"github.com/vasiliy-maslov/modest-storefront/internal/promotion"
)

var (
	ErrInvalidRequest  = errors.New("invalid checkout request")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrNothingToPay    = errors.New("order total is zero, nothing to pay by card")
	ErrPaymentDeclined = errors.New("payment was declined or expired")
	ErrAmountMismatch  = errors.New("paid amount does not match the order total")
)

type Service interface {
	Quote(ctx context.Context, cartID uuid.UUID, promotionCode string) (*Quote, error)
	StartCardPayment(ctx context.Context, req Request) (*CardPayment, error)
	ConfirmCardPayment(ctx context.Context, checkoutID string) (*Result, error)
	PlaceWhatsAppOrder(ctx context.Context, req Request) (*WhatsAppResult, error)
}

type Options struct {
	Payment   config.PaymentConfig
	Messaging config.MessagingConfig
	Shipping  config.ShippingConfig
}

type service struct {
	carts      cart.Service
	promotions promotion.Service
	orders     order.Service
	gateway    payment.Gateway
	sessions   SessionRepository
	validate   *validator.Validate
	opts       Options
}

func NewService(
	carts cart.Service,
	promotions promotion.Service,
	orders order.Service,
	gateway payment.Gateway,
	sessions SessionRepository,
	opts Options,
) Service {
	return &service{
		carts:      carts,
		promotions: promotions,
		orders:     orders,
		gateway:    gateway,
		sessions:   sessions,
		validate:   validator.New(),
		opts:       opts,
	}
}

func (s *service) Quote(ctx context.Context, cartID uuid.UUID, promotionCode string) (*Quote, error) {
	summary, err := s.carts.Summary(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if len(summary.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]pricing.Line, 0, len(summary.Lines))
	for _, l := range summary.Lines {
		lines = append(lines, pricing.Line{
			ProductID: l.ProductID,
			Category:  l.Product.Category,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
		})
	}

	q := &Quote{
		CartID:        cartID,
		Lines:         summary.Lines,
		TotalQuantity: summary.TotalQuantity,
		Subtotal:      summary.Subtotal,
	}

	applied, err := s.promotions.Resolve(ctx, promotionCode, summary.Subtotal, lines)
	if err != nil {
		return nil, err
	}
	if applied != nil {
		q.Promotion = applied.Promotion
		q.Automatic = applied.Automatic
		q.Discount = applied.Discount
	}

	discounted := q.Subtotal.Sub(q.Discount)
	q.Shipping = ShippingCost(s.opts.Shipping, discounted)
	q.Total = pricing.Round(discounted.Add(q.Shipping))
	return q, nil
}

func (s *service) StartCardPayment(ctx context.Context, req Request) (*CardPayment, error) {
	draft, err := s.buildDraft(ctx, req, order.PaymentMethodCard)
	if err != nil {
		return nil, err
	}
	if !draft.Total.IsPositive() {
		return nil, ErrNothingToPay
	}

	checkout, err := s.gateway.CreateCheckout(ctx, payment.CheckoutRequest{
		Reference:   draft.Reference,
		Amount:      draft.Total,
		Currency:    s.opts.Payment.Currency,
		Description: "Order " + draft.Reference,
		ReturnURL:   s.opts.Payment.ReturnURL,
	})
	if err != nil {
		log.Error().Err(err).Str("order_ref", draft.Reference).Msg("service: failed to create hosted checkout")
		return nil, fmt.Errorf("service: failed to create hosted checkout: %w", err)
	}
	draft.CheckoutID = checkout.ID

	session := &Session{
		CheckoutID: checkout.ID,
		Reference:  draft.Reference,
		CartID:     req.CartID,
		State:      StatePending,
		Draft:      draft,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		log.Error().Err(err).Str("checkout_id", checkout.ID).Msg("service: failed to store checkout session")
		return nil, fmt.Errorf("service: failed to store checkout session: %w", err)
	}

	log.Info().Str("checkout_id", checkout.ID).Str("order_ref", draft.Reference).Str("total", draft.Total.StringFixed(2)).Msg("service: card checkout started")
	return &CardPayment{
		CheckoutID:  checkout.ID,
		RedirectURL: checkout.RedirectURL,
		Reference:   draft.Reference,
		Total:       draft.Total,
		State:       StatePending,
	}, nil
}

// ConfirmCardPayment polls the hosted checkout and settles the session. A paid
// checkout persists exactly one order and clears the cart. A failed or expired
// one persists nothing and leaves the cart as it was. Confirming a settled
// session again returns the same outcome.
func (s *service) ConfirmCardPayment(ctx context.Context, checkoutID string) (*Result, error) {
	session, err := s.sessions.GetByCheckoutID(ctx, checkoutID)
	if err != nil {
		return nil, err
	}

	switch session.State {
	case StateSuccess:
		if session.OrderID != nil {
			o, err := s.orders.GetOrder(ctx, *session.OrderID)
			if err != nil {
				return nil, err
			}
			return &Result{State: StateSuccess, Order: o}, nil
		}
		o, err := s.orders.GetOrderByReference(ctx, session.Reference)
		if err != nil {
			return nil, err
		}
		return &Result{State: StateSuccess, Order: o}, nil
	case StateFailed:
		return &Result{State: StateFailed}, ErrPaymentDeclined
	}

	checkout, err := s.gateway.GetCheckout(ctx, checkoutID)
	if err != nil {
		log.Error().Err(err).Str("checkout_id", checkoutID).Msg("service: failed to poll hosted checkout")
		return nil, fmt.Errorf("service: failed to poll hosted checkout: %w", err)
	}

	switch checkout.Status.Outcome() {
	case payment.OutcomeFailed:
		if err := s.sessions.UpdateState(ctx, checkoutID, StateFailed, nil); err != nil && !errors.Is(err, ErrSessionNotFound) {
			log.Error().Err(err).Str("checkout_id", checkoutID).Msg("service: failed to mark checkout session failed")
		}
		log.Warn().Str("checkout_id", checkoutID).Str("order_ref", session.Reference).Str("status", string(checkout.Status)).Msg("service: card payment failed, cart preserved")
		return &Result{State: StateFailed}, ErrPaymentDeclined
	case payment.OutcomePending:
		return &Result{State: StatePending}, nil
	}

	draft := session.Draft
	if !checkout.Amount.IsZero() && !checkout.Amount.Equal(draft.Total) {
		log.Error().
			Str("checkout_id", checkoutID).
			Str("paid", checkout.Amount.String()).
			Str("expected", draft.Total.String()).
			Msg("service: paid amount mismatch")
		return nil, ErrAmountMismatch
	}

	draft.Status = order.StatusConfirmed
	draft.PaymentStatus = order.PaymentPaid
	draft.CheckoutID = checkoutID

	created, err := s.orders.CreateOrder(ctx, draft)
	if err != nil {
		if errors.Is(err, order.ErrReferenceExists) {
			existing, getErr := s.orders.GetOrderByReference(ctx, session.Reference)
			if getErr != nil {
				return nil, getErr
			}
			if err := s.sessions.UpdateState(ctx, checkoutID, StateSuccess, &existing.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
				log.Error().Err(err).Str("checkout_id", checkoutID).Msg("service: failed to mark checkout session succeeded")
			}
			return &Result{State: StateSuccess, Order: existing}, nil
		}
		return nil, err
	}

	s.completeOrder(ctx, created, session.CartID)

	if err := s.sessions.UpdateState(ctx, checkoutID, StateSuccess, &created.ID); err != nil {
		log.Error().Err(err).Str("checkout_id", checkoutID).Msg("service: failed to mark checkout session succeeded")
	}

	log.Info().Str("checkout_id", checkoutID).Str("order_ref", created.Reference).Msg("service: card payment confirmed, order placed")
	return &Result{State: StateSuccess, Order: created}, nil
}

// PlaceWhatsAppOrder persists the order right away, payment being collected
// on delivery, and returns the message to hand over to WhatsApp.
func (s *service) PlaceWhatsAppOrder(ctx context.Context, req Request) (*WhatsAppResult, error) {
	draft, err := s.buildDraft(ctx, req, order.PaymentMethodWhatsApp)
	if err != nil {
		return nil, err
	}
	draft.Status = order.StatusPending
	draft.PaymentStatus = order.PaymentPending

	created, err := s.orders.CreateOrder(ctx, draft)
	if err != nil {
		return nil, err
	}

	s.completeOrder(ctx, created, req.CartID)

	text := messaging.OrderMessage(created, s.opts.Messaging.Language)
	log.Info().Str("order_ref", created.Reference).Msg("service: whatsapp order placed")
	return &WhatsAppResult{
		State:   StateSuccess,
		Order:   created,
		Message: text,
		Link:    messaging.WhatsAppLink(s.opts.Messaging.WhatsAppPhone, text),
	}, nil
}

func (s *service) buildDraft(ctx context.Context, req Request, method order.PaymentMethod) (*order.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	q, err := s.Quote(ctx, req.CartID, req.PromotionCode)
	if err != nil {
		return nil, err
	}
	if err := checkAvailability(q.Lines); err != nil {
		return nil, err
	}

	reference, err := order.NewReference(time.Now())
	if err != nil {
		return nil, err
	}

	items := make([]order.Item, 0, len(q.Lines))
	for _, l := range q.Lines {
		items = append(items, order.Item{
			ProductID:    l.ProductID,
			ProductName:  l.Product.Name,
			ProductImage: l.Product.MainImage(),
			UnitPrice:    l.UnitPrice,
			Quantity:     l.Quantity,
			LineTotal:    l.LineTotal,
			Color:        l.Color,
			Size:         l.Size,
		})
	}

	draft := &order.Order{
		Reference:       reference,
		Customer:        req.Customer,
		ShippingAddress: req.ShippingAddress,
		Items:           items,
		Subtotal:        q.Subtotal,
		DiscountAmount:  q.Discount,
		ShippingCost:    q.Shipping,
		Total:           q.Total,
		PaymentMethod:   method,
		Notes:           req.Notes,
	}
	if q.Promotion != nil {
		id := q.Promotion.ID
		draft.PromotionID = &id
		draft.PromotionCode = q.Promotion.CodeValue()
	}
	return draft, nil
}

// checkAvailability re-checks stock and the chosen variant of every line at
// order time.
func checkAvailability(lines []cart.Line) error {
	for _, l := range lines {
		if !l.Product.Purchasable() {
			log.Warn().Stringer("product_id", l.ProductID).Msg("service: product no longer purchasable at checkout")
			return fmt.Errorf("service: %s: %w", l.Product.Name, cart.ErrProductUnavailable)
		}
		if !l.Product.HasVariant(l.Color, l.Size) {
			log.Warn().Stringer("product_id", l.ProductID).Str("color", l.Color).Str("size", l.Size).Msg("service: variant no longer offered at checkout")
			return fmt.Errorf("service: %s (%s/%s): %w", l.Product.Name, l.Color, l.Size, cart.ErrVariantUnavailable)
		}
	}
	return nil
}

// completeOrder runs the side effects of a persisted order. The order exists
// at this point, so failures are logged rather than returned.
func (s *service) completeOrder(ctx context.Context, o *order.Order, cartID uuid.UUID) {
	if o.PromotionID != nil {
		if err := s.promotions.RecordUsage(ctx, *o.PromotionID); err != nil {
			log.Error().Err(err).Str("order_ref", o.Reference).Stringer("promotion_id", o.PromotionID).Msg("service: failed to record promotion usage")
		}
	}
	if err := s.carts.Clear(ctx, cartID); err != nil {
		log.Error().Err(err).Str("order_ref", o.Reference).Stringer("cart_id", cartID).Msg("service: failed to clear cart after order")
	}
}
