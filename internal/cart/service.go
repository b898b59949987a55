package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/modest-storefront/internal/catalog"
	"github.com/vasiliy-maslov/modest-storefront/internal/pricing"
)

var (
	ErrProductUnavailable = errors.New("product is not available")
	ErrVariantUnavailable = errors.New("selected color or size is not offered")
)

type Service interface {
	NewCart() (*Cart, error)
	GetCart(ctx context.Context, id uuid.UUID) (*Cart, error)
	AddItem(ctx context.Context, id uuid.UUID, key Key, quantity int) (*Cart, error)
	UpdateItem(ctx context.Context, id uuid.UUID, key Key, quantity int) (*Cart, error)
	RemoveItem(ctx context.Context, id uuid.UUID, key Key) (*Cart, error)
	Clear(ctx context.Context, id uuid.UUID) error
	Summary(ctx context.Context, id uuid.UUID) (*Summary, error)
}

type service struct {
	repo    Repository
	catalog catalog.Service
}

func NewService(repo Repository, catalogService catalog.Service) Service {
	return &service{repo: repo, catalog: catalogService}
}

func (s *service) NewCart() (*Cart, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate cart id: %w", err)
	}
	return New(id), nil
}

func (s *service) GetCart(ctx context.Context, id uuid.UUID) (*Cart, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		log.Error().Err(err).Stringer("cart_id", id).Msg("service: failed to load cart")
		return nil, fmt.Errorf("service: failed to load cart: %w", err)
	}
	return c, nil
}

func (s *service) AddItem(ctx context.Context, id uuid.UUID, key Key, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := s.checkVariant(ctx, key); err != nil {
		return nil, err
	}

	return s.mutate(ctx, id, func(c *Cart) error {
		return c.Add(key, quantity)
	})
}

func (s *service) UpdateItem(ctx context.Context, id uuid.UUID, key Key, quantity int) (*Cart, error) {
	return s.mutate(ctx, id, func(c *Cart) error {
		return c.SetQuantity(key, quantity)
	})
}

func (s *service) RemoveItem(ctx context.Context, id uuid.UUID, key Key) (*Cart, error) {
	return s.mutate(ctx, id, func(c *Cart) error {
		return c.Remove(key)
	})
}

func (s *service) Clear(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Clear(ctx, id); err != nil {
		log.Error().Err(err).Stringer("cart_id", id).Msg("service: failed to clear cart")
		return fmt.Errorf("service: failed to clear cart: %w", err)
	}
	return nil
}

// Summary prices every line with pricing.LineTotal. Lines whose product no
// longer exists are left out.
func (s *service) Summary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	c, err := s.GetCart(ctx, id)
	if err != nil {
		return nil, err
	}

	summary := &Summary{CartID: id, Lines: make([]Line, 0, len(c.Items))}
	priced := make([]pricing.Line, 0, len(c.Items))

	for _, it := range c.Items {
		p, err := s.catalog.GetProduct(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				log.Warn().Stringer("cart_id", id).Stringer("product_id", it.ProductID).Msg("service: dropping cart line for missing product")
				continue
			}
			return nil, fmt.Errorf("service: failed to price cart: %w", err)
		}

		pl := pricing.Line{ProductID: p.ID, Category: p.Category, UnitPrice: p.Price, Quantity: it.Quantity}
		priced = append(priced, pl)
		summary.Lines = append(summary.Lines, Line{
			Key:       it.Key,
			Product:   p,
			Quantity:  it.Quantity,
			UnitPrice: p.Price,
			LineTotal: pl.Total(),
		})
		summary.TotalQuantity += it.Quantity
	}

	summary.Subtotal = pricing.Subtotal(priced)
	return summary, nil
}

func (s *service) checkVariant(ctx context.Context, key Key) error {
	p, err := s.catalog.GetProduct(ctx, key.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return ErrProductUnavailable
		}
		return err
	}
	if !p.Purchasable() {
		return ErrProductUnavailable
	}
	if !p.HasVariant(key.Color, key.Size) {
		return ErrVariantUnavailable
	}
	return nil
}

func (s *service) mutate(ctx context.Context, id uuid.UUID, fn func(c *Cart) error) (*Cart, error) {
	c, err := s.GetCart(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, c); err != nil {
		log.Error().Err(err).Stringer("cart_id", id).Msg("service: failed to save cart")
		return nil, fmt.Errorf("service: failed to save cart: %w", err)
	}
	return c, nil
}
