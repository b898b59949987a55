package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

var ErrValidation = errors.New("validation failed")

type Service interface {
	ListProducts(ctx context.Context, f ProductFilter) ([]Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	CreateProduct(ctx context.Context, p *Product) (*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]CategoryInfo, error)
	CreateCategory(ctx context.Context, c *CategoryInfo) error
	ListSubcategories(ctx context.Context, category Category) ([]Subcategory, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// ListProducts never fails the storefront: a store error is logged and an
// empty page is returned instead.
func (s *service) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	products, err := s.repo.ListProducts(ctx, f)
	if err != nil {
		log.Error().Err(err).Str("category", f.Category.String()).Msg("service: failed to list products, serving empty catalog")
		return []Product{}, nil
	}
	return products, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to get product")
		return nil, fmt.Errorf("service: failed to get product: %w", err)
	}
	return p, nil
}

func (s *service) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	p.ID = uuid.Nil

	if err := s.repo.CreateProduct(ctx, p); err != nil {
		log.Error().Err(err).Msg("service: failed to create product in repository")
		return nil, fmt.Errorf("service: failed to create product: %w", err)
	}

	log.Info().Stringer("product_id", p.ID).Str("category", p.Category.String()).Msg("service: product created")
	return p, nil
}

func (s *service) UpdateProduct(ctx context.Context, p *Product) error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("%w: product id is required", ErrValidation)
	}
	if err := validateProduct(p); err != nil {
		return err
	}

	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("product_id", p.ID).Msg("service: failed to update product")
		return fmt.Errorf("service: failed to update product: %w", err)
	}
	return nil
}

func (s *service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to delete product")
		return fmt.Errorf("service: failed to delete product: %w", err)
	}
	return nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryInfo, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list categories, serving empty list")
		return []CategoryInfo{}, nil
	}
	return categories, nil
}

func (s *service) CreateCategory(ctx context.Context, c *CategoryInfo) error {
	if !c.Slug.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, c.Slug)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: category name is required", ErrValidation)
	}

	if err := s.repo.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, ErrCategoryExists) {
			return ErrCategoryExists
		}
		return fmt.Errorf("service: failed to create category: %w", err)
	}
	return nil
}

func (s *service) ListSubcategories(ctx context.Context, category Category) ([]Subcategory, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}
	subcategories, err := s.repo.ListSubcategories(ctx, category)
	if err != nil {
		log.Error().Err(err).Str("category", category.String()).Msg("service: failed to list subcategories, serving empty list")
		return []Subcategory{}, nil
	}
	return subcategories, nil
}

func validateProduct(p *Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if !p.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, p.Category)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}
	if p.OriginalPrice != nil && p.OriginalPrice.IsNegative() {
		return fmt.Errorf("%w: original price cannot be negative", ErrValidation)
	}
	if p.InStock && (len(p.Colors) == 0 || len(p.Sizes) == 0) {
		return fmt.Errorf("%w: purchasable products need at least one color and one size", ErrValidation)
	}
	return nil
}
