package checkout_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/modest-storefront/internal/cart"
	"github.com/vasiliy-maslov/modest-storefront/internal/catalog"
	"github.com/vasiliy-maslov/modest-storefront/internal/checkout"
	"github.com/vasiliy-maslov/modest-storefront/internal/config"
	"github.com/vasiliy-maslov/modest-storefront/internal/order"
	"github.com/vasiliy-maslov/modest-storefront/internal/payment"
	"github.com/vasiliy-maslov/modest-storefront/internal/promotion"
)

// In-memory stand-ins for the postgres repositories and the payment gateway.

type fakeCatalog struct {
	catalog.Service
	products map[uuid.UUID]*catalog.Product
}

func (f *fakeCatalog) GetProduct(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

type memCarts struct {
	mu    sync.Mutex
	carts map[uuid.UUID]cart.Cart
}

func (m *memCarts) Get(_ context.Context, id uuid.UUID) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return cart.New(id), nil
	}
	c.Items = append([]cart.Item(nil), c.Items...)
	return &c, nil
}

func (m *memCarts) Save(_ context.Context, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *c
	stored.Items = append([]cart.Item(nil), c.Items...)
	m.carts[c.ID] = stored
	return nil
}

func (m *memCarts) Clear(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, id)
	return nil
}

type memPromotions struct {
	promotion.Repository
	mu     sync.Mutex
	promos []promotion.Promotion
}

func (m *memPromotions) GetByCode(_ context.Context, code string) (*promotion.Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.promos {
		if strings.EqualFold(p.CodeValue(), code) {
			cp := p
			return &cp, nil
		}
	}
	return nil, promotion.ErrNotFound
}

func (m *memPromotions) ListActive(_ context.Context, now time.Time) ([]promotion.Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []promotion.Promotion
	for _, p := range m.promos {
		if p.IsValidAt(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPromotions) IncrementUsage(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.promos {
		if m.promos[i].ID == id {
			m.promos[i].UsageCount++
			return nil
		}
	}
	return promotion.ErrNotFound
}

func (m *memPromotions) usage(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.promos {
		if p.ID == id {
			return p.UsageCount
		}
	}
	return -1
}

type memOrders struct {
	order.Repository
	mu     sync.Mutex
	orders []order.Order
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.Reference == o.Reference {
			return order.ErrReferenceExists
		}
	}
	o.ID = uuid.Must(uuid.NewV4())
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	m.orders = append(m.orders, *o)
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			cp := o
			return &cp, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (m *memOrders) GetByReference(_ context.Context, reference string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.Reference == reference {
			cp := o
			return &cp, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]checkout.Session
}

func (m *memSessions) Create(_ context.Context, s *checkout.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *s
	draft := *s.Draft
	stored.Draft = &draft
	m.sessions[s.CheckoutID] = stored
	return nil
}

func (m *memSessions) GetByCheckoutID(_ context.Context, checkoutID string) (*checkout.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[checkoutID]
	if !ok {
		return nil, checkout.ErrSessionNotFound
	}
	draft := *s.Draft
	s.Draft = &draft
	return &s, nil
}

func (m *memSessions) UpdateState(_ context.Context, checkoutID string, state checkout.State, orderID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[checkoutID]
	if !ok || s.State != checkout.StatePending {
		return checkout.ErrSessionNotFound
	}
	s.State = state
	if orderID != nil {
		s.OrderID = orderID
	}
	m.sessions[checkoutID] = s
	return nil
}

type fakeGateway struct {
	mu        sync.Mutex
	created   []payment.CheckoutRequest
	checkouts map[string]*payment.Checkout
	createErr error
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, req)
	co := &payment.Checkout{
		ID:          "chk-" + req.Reference,
		Reference:   req.Reference,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Status:      payment.StatusPending,
		RedirectURL: "https://pay.example.com/c/" + req.Reference,
	}
	g.checkouts[co.ID] = co
	return co, nil
}

func (g *fakeGateway) GetCheckout(_ context.Context, id string) (*payment.Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	co, ok := g.checkouts[id]
	if !ok {
		return nil, payment.ErrCheckoutNotFound
	}
	cp := *co
	return &cp, nil
}

func (g *fakeGateway) settle(id string, status payment.Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkouts[id].Status = status
}

type fixture struct {
	svc      checkout.Service
	carts    cart.Service
	cartRepo *memCarts
	promos   *memPromotions
	orders   *memOrders
	sessions *memSessions
	gateway  *fakeGateway
	hijab    *catalog.Product
	dress    *catalog.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hijab := &catalog.Product{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     "Hijab jersey",
		Price:    decimal.NewFromInt(14),
		Category: catalog.CategoryHijabWrapping,
		Images:   []string{"https://cdn.example.com/hijab.jpg"},
		Colors:   []string{"noir", "beige"},
		Sizes:    []string{"unique"},
		InStock:  true,
	}
	dress := &catalog.Product{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     "Abaya lin",
		Price:    decimal.RequireFromString("49.90"),
		Category: catalog.CategoryRobeDress,
		Colors:   []string{"sable"},
		Sizes:    []string{"M", "L"},
		InStock:  true,
	}
	cat := &fakeCatalog{products: map[uuid.UUID]*catalog.Product{hijab.ID: hijab, dress.ID: dress}}

	threshold := decimal.NewFromInt(100)
	f := &fixture{
		cartRepo: &memCarts{carts: map[uuid.UUID]cart.Cart{}},
		promos:   &memPromotions{},
		orders:   &memOrders{},
		sessions: &memSessions{sessions: map[string]checkout.Session{}},
		gateway:  &fakeGateway{checkouts: map[string]*payment.Checkout{}},
		hijab:    hijab,
		dress:    dress,
	}
	f.carts = cart.NewService(f.cartRepo, cat)
	f.svc = checkout.NewService(
		f.carts,
		promotion.NewService(f.promos),
		order.NewService(f.orders),
		f.gateway,
		f.sessions,
		checkout.Options{
			Payment:   config.PaymentConfig{Currency: "EUR", ReturnURL: "https://shop.example.com/checkout/return"},
			Messaging: config.MessagingConfig{WhatsAppPhone: "+33612345678", Language: "en"},
			Shipping:  config.ShippingConfig{FlatRate: decimal.RequireFromString("5.90"), FreeShippingThreshold: &threshold},
		},
	)
	return f
}

// fillCart puts 3 hijabs (38.00 with pair pricing) and 2 dresses (99.80) in a new cart.
func (f *fixture) fillCart(t *testing.T) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	_, err := f.carts.AddItem(ctx, id, cart.Key{ProductID: f.hijab.ID, Color: "noir", Size: "unique"}, 3)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, id, cart.Key{ProductID: f.dress.ID, Color: "sable", Size: "M"}, 2)
	require.NoError(t, err)
	return id
}

func (f *fixture) addCodePromotion(code string, percent int64) promotion.Promotion {
	now := time.Now()
	p := promotion.Promotion{
		ID:            uuid.Must(uuid.NewV4()),
		Name:          "Eid",
		Code:          &code,
		DiscountType:  promotion.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(percent),
		StartsAt:      now.Add(-time.Hour),
		EndsAt:        now.Add(time.Hour),
		IsActive:      true,
	}
	f.promos.promos = append(f.promos.promos, p)
	return p
}

func request(cartID uuid.UUID) checkout.Request {
	return checkout.Request{
		CartID:   cartID,
		Customer: order.Customer{Name: "Amina B.", Email: "amina@example.com", Phone: "+33 6 12 34 56 78"},
		ShippingAddress: order.Address{
			Line1: "12 rue des Lilas", City: "Lyon", PostalCode: "69003", Country: "FR",
		},
	}
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	cartID := f.fillCart(t)

	q, err := f.svc.Quote(context.Background(), cartID, "")
	require.NoError(t, err)

	assert.Equal(t, 5, q.TotalQuantity)
	assert.Equal(t, "137.8", q.Subtotal.String())
	assert.True(t, q.Discount.IsZero())
	assert.Nil(t, q.Promotion)
	assert.True(t, q.Shipping.IsZero(), "free shipping above threshold")
	assert.Equal(t, "137.8", q.Total.String())
}

func TestQuote_WithCodeDoesNotConsumeIt(t *testing.T) {
	f := newFixture(t)
	cartID := f.fillCart(t)
	p := f.addCodePromotion("EID10", 10)

	q, err := f.svc.Quote(context.Background(), cartID, "eid10")
	require.NoError(t, err)

	require.NotNil(t, q.Promotion)
	assert.False(t, q.Automatic)
	assert.Equal(t, "13.78", q.Discount.String())
	assert.Equal(t, "124.02", q.Total.String())
	assert.Equal(t, 0, f.promos.usage(p.ID))
}

func TestQuote_FlatShippingBelowThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := uuid.Must(uuid.NewV4())
	_, err := f.carts.AddItem(ctx, cartID, cart.Key{ProductID: f.dress.ID, Color: "sable", Size: "L"}, 1)
	require.NoError(t, err)

	q, err := f.svc.Quote(ctx, cartID, "")
	require.NoError(t, err)
	assert.Equal(t, "5.9", q.Shipping.String())
	assert.Equal(t, "55.8", q.Total.String())
}

func TestQuote_Errors(t *testing.T) {
	f := newFixture(t)
	cartID := f.fillCart(t)

	_, err := f.svc.Quote(context.Background(), uuid.Must(uuid.NewV4()), "")
	assert.ErrorIs(t, err, checkout.ErrEmptyCart)

	_, err = f.svc.Quote(context.Background(), cartID, "NOPE")
	assert.ErrorIs(t, err, promotion.ErrInvalidCode)
}

func TestCardPayment_PaidPersistsExactlyOneOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.fillCart(t)
	p := f.addCodePromotion("EID10", 10)

	req := request(cartID)
	req.PromotionCode = "EID10"
	started, err := f.svc.StartCardPayment(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, checkout.StatePending, started.State)
	assert.Equal(t, "124.02", started.Total.String())
	assert.NotEmpty(t, started.RedirectURL)
	require.Len(t, f.gateway.created, 1)
	assert.Equal(t, "EUR", f.gateway.created[0].Currency)
	assert.Equal(t, started.Reference, f.gateway.created[0].Reference)
	assert.Equal(t, 0, f.orders.count(), "no order before the payment is confirmed")

	f.gateway.settle(started.CheckoutID, payment.StatusPaid)

	res, err := f.svc.ConfirmCardPayment(ctx, started.CheckoutID)
	require.NoError(t, err)
	require.Equal(t, checkout.StateSuccess, res.State)
	require.NotNil(t, res.Order)

	o := res.Order
	assert.Equal(t, started.Reference, o.Reference)
	assert.Equal(t, order.StatusConfirmed, o.Status)
	assert.Equal(t, order.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, order.PaymentMethodCard, o.PaymentMethod)
	assert.Equal(t, started.CheckoutID, o.CheckoutID)
	assert.Equal(t, "EID10", o.PromotionCode)
	assert.Equal(t, "13.78", o.DiscountAmount.String())
	assert.Equal(t, "124.02", o.Total.String())
	require.Len(t, o.Items, 2)
	assert.Equal(t, "https://cdn.example.com/hijab.jpg", o.Items[0].ProductImage)

	assert.Equal(t, 1, f.orders.count())
	assert.Equal(t, 1, f.promos.usage(p.ID))

	c, err := f.carts.GetCart(ctx, cartID)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	again, err := f.svc.ConfirmCardPayment(ctx, started.CheckoutID)
	require.NoError(t, err)
	assert.Equal(t, checkout.StateSuccess, again.State)
	assert.Equal(t, o.ID, again.Order.ID)
	assert.Equal(t, 1, f.orders.count(), "confirming twice must not duplicate the order")
	assert.Equal(t, 1, f.promos.usage(p.ID))
}

func TestCardPayment_ConcurrentConfirmationReturnsStoredOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.fillCart(t)

	started, err := f.svc.StartCardPayment(ctx, request(cartID))
	require.NoError(t, err)
	f.gateway.settle(started.CheckoutID, payment.StatusPaid)

	// Another confirmation persisted the order but has not settled the session yet.
	storedID := uuid.Must(uuid.NewV4())
	f.orders.orders = append(f.orders.orders, order.Order{
		ID:            storedID,
		Reference:     started.Reference,
		Status:        order.StatusConfirmed,
		PaymentStatus: order.PaymentPaid,
	})

	res, err := f.svc.ConfirmCardPayment(ctx, started.CheckoutID)
	require.NoError(t, err)
	assert.Equal(t, checkout.StateSuccess, res.State)
	assert.Equal(t, storedID, res.Order.ID)
	assert.Equal(t, 1, f.orders.count())

	session := f.sessions.sessions[started.CheckoutID]
	assert.Equal(t, checkout.StateSuccess, session.State)
	require.NotNil(t, session.OrderID)
	assert.Equal(t, storedID, *session.OrderID)
}

func TestCardPayment_FailedKeepsCart(t *testing.T) {
	for _, status := range []payment.Status{payment.StatusFailed, payment.StatusExpired} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			cartID := f.fillCart(t)

			started, err := f.svc.StartCardPayment(ctx, request(cartID))
			require.NoError(t, err)
			f.gateway.settle(started.CheckoutID, status)

			res, err := f.svc.ConfirmCardPayment(ctx, started.CheckoutID)
			assert.ErrorIs(t, err, checkout.ErrPaymentDeclined)
			require.NotNil(t, res)
			assert.Equal(t, checkout.StateFailed, res.State)
			assert.Nil(t, res.Order)
			assert.Equal(t, 0, f.orders.count())

			summary, err := f.carts.Summary(ctx, cartID)
			require.NoError(t, err)
			assert.Len(t, summary.Lines, 2)
			assert.Equal(t, "137.8", summary.Subtotal.String())

			// A late success from the gateway cannot revive a failed session.
			f.gateway.settle(started.CheckoutID, payment.StatusPaid)
			_, err = f.svc.ConfirmCardPayment(ctx, started.CheckoutID)
			assert.ErrorIs(t, err, checkout.ErrPaymentDeclined)
			assert.Equal(t, 0, f.orders.count())
		})
	}
}

func TestCardPayment_PendingLeavesEverythingAsIs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.fillCart(t)

	started, err := f.svc.StartCardPayment(ctx, request(cartID))
	require.NoError(t, err)

	res, err := f.svc.ConfirmCardPayment(ctx, started.CheckoutID)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatePending, res.State)
	assert.Equal(t, 0, f.orders.count())

	s, err := f.sessions.GetByCheckoutID(ctx, started.CheckoutID)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatePending, s.State)
}

func TestCardPayment_AmountMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.fillCart(t)

	started, err := f.svc.StartCardPayment(ctx, request(cartID))
	require.NoError(t, err)
	f.gateway.settle(started.CheckoutID, payment.StatusPaid)
	f.gateway.checkouts[started.CheckoutID].Amount = decimal.NewFromInt(1)

	_, err = f.svc.ConfirmCardPayment(ctx, started.CheckoutID)
	assert.ErrorIs(t, err, checkout.ErrAmountMismatch)
	assert.Equal(t, 0, f.orders.count())
}

func TestStartCardPayment_Errors(t *testing.T) {
	t.Run("invalid request", func(t *testing.T) {
		f := newFixture(t)
		req := request(f.fillCart(t))
		req.Customer.Email = "not-an-email"

		_, err := f.svc.StartCardPayment(context.Background(), req)
		assert.ErrorIs(t, err, checkout.ErrInvalidRequest)
		assert.Empty(t, f.gateway.created)
	})

	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.StartCardPayment(context.Background(), request(uuid.Must(uuid.NewV4())))
		assert.ErrorIs(t, err, checkout.ErrEmptyCart)
	})

	t.Run("gateway down", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.createErr = errors.New("connection refused")

		_, err := f.svc.StartCardPayment(context.Background(), request(f.fillCart(t)))
		assert.Error(t, err)
		assert.Empty(t, f.sessions.sessions)
	})

	t.Run("unknown checkout", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ConfirmCardPayment(context.Background(), "missing")
		assert.ErrorIs(t, err, checkout.ErrSessionNotFound)
	})
}

func TestCheckout_RechecksAvailabilityAtOrderTime(t *testing.T) {
	tests := []struct {
		name    string
		change  func(f *fixture)
		wantErr error
	}{
		{
			name:    "out of stock",
			change:  func(f *fixture) { f.dress.InStock = false },
			wantErr: cart.ErrProductUnavailable,
		},
		{
			name:    "no sizes left",
			change:  func(f *fixture) { f.dress.Sizes = nil },
			wantErr: cart.ErrProductUnavailable,
		},
		{
			name:    "chosen size dropped",
			change:  func(f *fixture) { f.dress.Sizes = []string{"L"} },
			wantErr: cart.ErrVariantUnavailable,
		},
		{
			name:    "chosen color dropped",
			change:  func(f *fixture) { f.hijab.Colors = []string{"beige"} },
			wantErr: cart.ErrVariantUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("whatsapp", func(t *testing.T) {
				f := newFixture(t)
				cartID := f.fillCart(t)
				tt.change(f)

				_, err := f.svc.PlaceWhatsAppOrder(ctx, request(cartID))
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 0, f.orders.count())

				summary, err := f.carts.Summary(ctx, cartID)
				require.NoError(t, err)
				assert.Len(t, summary.Lines, 2, "cart is left untouched")
			})

			t.Run("card", func(t *testing.T) {
				f := newFixture(t)
				cartID := f.fillCart(t)
				tt.change(f)

				_, err := f.svc.StartCardPayment(ctx, request(cartID))
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.gateway.created, "no hosted checkout for unavailable items")
			})
		})
	}
}

func TestPlaceWhatsAppOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cartID := f.fillCart(t)

	res, err := f.svc.PlaceWhatsAppOrder(ctx, request(cartID))
	require.NoError(t, err)

	assert.Equal(t, checkout.StateSuccess, res.State)
	require.NotNil(t, res.Order)
	assert.Equal(t, order.StatusPending, res.Order.Status)
	assert.Equal(t, order.PaymentPending, res.Order.PaymentStatus)
	assert.Equal(t, order.PaymentMethodWhatsApp, res.Order.PaymentMethod)
	assert.Equal(t, "137.8", res.Order.Total.String())
	assert.Equal(t, 1, f.orders.count())

	assert.True(t, strings.HasPrefix(res.Message, "New order "+res.Order.Reference))
	assert.Contains(t, res.Message, "Total: 137.80 €")
	assert.True(t, strings.HasPrefix(res.Link, "https://wa.me/33612345678?text="))

	c, err := f.carts.GetCart(ctx, cartID)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}
